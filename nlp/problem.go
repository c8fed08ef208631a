/*
Copyright © 2021 the CATS authors.
This file is part of CATS.

CATS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CATS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CATS.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package nlp holds the interface between a model builder and a nonlinear
// programming solver: a variable table with bounds and scaling factors, a
// list of sparse residual constraints, and an optional least-squares
// objective. It also provides a default solver.
package nlp

import (
	"fmt"
	"math"
)

// GlobalBlock is the block index of decision variables that are not
// associated with any single solve block, such as kinetic parameters.
const GlobalBlock = -1

// Constraint is a single equality constraint Eval(x) = 0.
type Constraint struct {
	Name string

	// Vars are the indices of the variables that Eval depends on.
	// They define the sparsity pattern of the Jacobian row.
	Vars []int

	// Block is the solve block this constraint belongs to. Constraints
	// in lower blocks never depend on free variables in higher blocks.
	Block int

	// Scale multiplies the residual. Zero means "compute automatically".
	Scale float64

	// Inactive constraints are ignored by solvers.
	Inactive bool

	// Eval returns the residual of the constraint at x.
	Eval func(x []float64) float64
}

// Objective is a weighted least-squares objective Σ r_i(x)².
type Objective struct {
	// N is the number of residuals.
	N int

	// Residuals fills dst (of length N) with the weighted residuals
	// √w·(simulated − observed) at x.
	Residuals func(x, dst []float64)
}

// Value returns Σ r_i(x)².
func (o *Objective) Value(x []float64) float64 {
	if o == nil || o.N == 0 {
		return 0
	}
	r := make([]float64, o.N)
	o.Residuals(x, r)
	var sum float64
	for _, v := range r {
		sum += v * v
	}
	return sum
}

// Problem is the complete NLP handed to a Solver. Variables are stored as
// parallel slices; the index of a variable is its position in X.
type Problem struct {
	Names        []string
	X            []float64
	Lower, Upper []float64
	Fixed        []bool
	// Scale is the variable scaling factor (≈1/typical magnitude).
	Scale []float64
	// Block is the solve block of each variable, or GlobalBlock.
	Block []int

	Constraints []Constraint

	// Objective is nil in simulation mode.
	Objective *Objective

	// Predict, when set, overwrites the free variables of a block in x
	// with a fresh starting guess. Solvers call it when a block fails to
	// converge from its current values.
	Predict func(x []float64, block int)
}

// AddVar appends a variable and returns its index.
func (p *Problem) AddVar(name string, value, lower, upper float64, block int) int {
	p.Names = append(p.Names, name)
	p.X = append(p.X, value)
	p.Lower = append(p.Lower, lower)
	p.Upper = append(p.Upper, upper)
	p.Fixed = append(p.Fixed, false)
	p.Scale = append(p.Scale, 1)
	p.Block = append(p.Block, block)
	return len(p.X) - 1
}

// AddConstraint appends c and returns its index.
func (p *Problem) AddConstraint(c Constraint) int {
	p.Constraints = append(p.Constraints, c)
	return len(p.Constraints) - 1
}

// NumVars returns the number of variables, fixed or free.
func (p *Problem) NumVars() int { return len(p.X) }

// FreeVars returns the indices of the variables that are not fixed.
func (p *Problem) FreeVars() []int {
	var o []int
	for i, f := range p.Fixed {
		if !f {
			o = append(o, i)
		}
	}
	return o
}

// Entry is a structural nonzero of the constraint Jacobian.
type Entry struct {
	Row, Col int
}

// JacobianStructure returns the nonzero pattern of the Jacobian of the
// active constraints with respect to the free variables.
func (p *Problem) JacobianStructure() []Entry {
	var o []Entry
	for i, c := range p.Constraints {
		if c.Inactive {
			continue
		}
		for _, v := range c.Vars {
			if !p.Fixed[v] {
				o = append(o, Entry{Row: i, Col: v})
			}
		}
	}
	return o
}

// Residuals evaluates every active constraint at x. Inactive constraints
// are reported as zero.
func (p *Problem) Residuals(x []float64) []float64 {
	o := make([]float64, len(p.Constraints))
	for i, c := range p.Constraints {
		if c.Inactive {
			continue
		}
		o[i] = c.Eval(x)
	}
	return o
}

// MaxResidual returns the largest absolute residual over the active
// constraints and the name of the constraint where it occurs.
func (p *Problem) MaxResidual() (float64, string) {
	var m float64
	var name string
	for _, c := range p.Constraints {
		if c.Inactive {
			continue
		}
		if r := math.Abs(c.Eval(p.X)); r > m || math.IsNaN(r) {
			m, name = r, c.Name
			if math.IsNaN(r) {
				return r, name
			}
		}
	}
	return m, name
}

// Clip projects x[i] onto the bounds of variable i.
func (p *Problem) Clip(i int, v float64) float64 {
	if v < p.Lower[i] {
		return p.Lower[i]
	}
	if v > p.Upper[i] {
		return p.Upper[i]
	}
	return v
}

// Typical returns the typical magnitude of variable i, derived from its
// scaling factor.
func (p *Problem) Typical(i int) float64 {
	if s := p.Scale[i]; s > 0 && !math.IsInf(s, 0) {
		return 1 / s
	}
	return 1
}

// Validate checks that the slices of p have consistent lengths and that
// every constraint references existing variables.
func (p *Problem) Validate() error {
	n := len(p.X)
	for _, l := range []int{len(p.Names), len(p.Lower), len(p.Upper), len(p.Fixed), len(p.Scale), len(p.Block)} {
		if l != n {
			return fmt.Errorf("nlp: inconsistent variable table: %d variables but a column of length %d", n, l)
		}
	}
	for _, c := range p.Constraints {
		if c.Eval == nil {
			return fmt.Errorf("nlp: constraint %s has no residual function", c.Name)
		}
		for _, v := range c.Vars {
			if v < 0 || v >= n {
				return fmt.Errorf("nlp: constraint %s references variable %d of %d", c.Name, v, n)
			}
		}
	}
	return nil
}

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

package nlp

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Newton solves the equality constraints of a Problem one block at a
// time, in ascending block order, with a damped Newton method. The
// Jacobian of each block is approximated by forward differences over the
// sparsity pattern of the constraints and factorized densely. A block that
// does not converge is retried once from Problem.Predict when it is set.
//
// Variables in GlobalBlock are held at their current values. Newton
// ignores the objective.
type Newton struct {
	// Tolerance is the convergence threshold on the largest scaled
	// residual of a block.
	Tolerance float64

	// MaxIter is the maximum number of Newton iterations per block.
	MaxIter int

	// MinStep is the smallest line-search step length attempted before
	// the block is declared stalled.
	MinStep float64

	Log logrus.FieldLogger
}

// NewNewton returns a Newton solver with default settings.
func NewNewton() *Newton {
	return &Newton{
		Tolerance: 1e-9,
		MaxIter:   100,
		MinStep:   1e-10,
		Log:       logrus.StandardLogger(),
	}
}

// Tighten reduces the convergence tolerance by two orders of magnitude
// and doubles the iteration limit.
func (n *Newton) Tighten() {
	n.Tolerance /= 100
	n.MaxIter *= 2
}

type block struct {
	id    int
	vars  []int
	cons  []int
	local map[int]int
}

// blocks partitions the free variables and active constraints of p.
func blocks(p *Problem) ([]*block, error) {
	bm := make(map[int]*block)
	get := func(id int) *block {
		b, ok := bm[id]
		if !ok {
			b = &block{id: id, local: make(map[int]int)}
			bm[id] = b
		}
		return b
	}
	for i := range p.X {
		if p.Fixed[i] || p.Block[i] == GlobalBlock {
			continue
		}
		b := get(p.Block[i])
		b.local[i] = len(b.vars)
		b.vars = append(b.vars, i)
	}
	for i, c := range p.Constraints {
		if c.Inactive {
			continue
		}
		b := get(c.Block)
		b.cons = append(b.cons, i)
	}
	o := make([]*block, 0, len(bm))
	for _, b := range bm {
		if len(b.vars) != len(b.cons) {
			return nil, fmt.Errorf("nlp: block %d has %d equations for %d unknowns", b.id, len(b.cons), len(b.vars))
		}
		o = append(o, b)
	}
	sort.Slice(o, func(i, j int) bool { return o[i].id < o[j].id })
	return o, nil
}

// Solve implements Solver.
func (n *Newton) Solve(p *Problem) (Status, error) {
	if err := p.Validate(); err != nil {
		return Status{Solver: Error, Termination: Infeasible}, err
	}
	bs, err := blocks(p)
	if err != nil {
		return Status{Solver: Error, Termination: Infeasible}, err
	}
	var st Status
	for _, b := range bs {
		st.Block = b.id
		it, res, term, err := n.solveBlock(p, b)
		if err != nil && p.Predict != nil {
			n.logger().WithError(err).WithField("block", b.id).Debug("nlp: retrying block from the predicted state")
			st.Iterations += it
			p.Predict(p.X, b.id)
			it, res, term, err = n.solveBlock(p, b)
		}
		st.Iterations += it
		st.Residual = math.Max(st.Residual, res)
		if err != nil {
			st.Solver = Error
			st.Termination = term
			return st, err
		}
	}
	st.Solver = OK
	st.Termination = Optimal
	return st, nil
}

func (n *Newton) logger() logrus.FieldLogger {
	if n.Log == nil {
		return logrus.StandardLogger()
	}
	return n.Log
}

// solveBlock runs the damped Newton iteration on block b.
func (n *Newton) solveBlock(p *Problem, b *block) (iterations int, residual float64, term Termination, err error) {
	nb := len(b.vars)
	if nb == 0 {
		return 0, 0, Optimal, nil
	}
	x := p.X
	typ := make([]float64, nb)
	for j, v := range b.vars {
		typ[j] = p.Typical(v)
	}
	rowScale := make([]float64, nb)
	for i, ci := range b.cons {
		rowScale[i] = p.Constraints[ci].Scale
	}

	f := make([]float64, nb)
	eval := func(dst []float64) {
		for i, ci := range b.cons {
			dst[i] = p.Constraints[ci].Eval(x) * rowScale[i]
		}
	}
	jac := mat.NewDense(nb, nb, nil)
	fillJacobian := func() {
		jac.Zero()
		for i, ci := range b.cons {
			c := p.Constraints[ci]
			f0 := c.Eval(x)
			for _, v := range c.Vars {
				j, ok := b.local[v]
				if !ok {
					continue
				}
				h := 1e-7 * math.Max(math.Abs(x[v]), typ[j])
				xv := x[v]
				x[v] = xv + h
				f1 := c.Eval(x)
				x[v] = xv
				// Column scaling: derivative with respect to x/typ.
				jac.Set(i, j, (f1-f0)/h*typ[j])
			}
		}
	}

	// Automatic row scaling from the first Jacobian.
	fillJacobian()
	for i := range rowScale {
		if rowScale[i] != 0 {
			continue
		}
		m := 0.
		for j := 0; j < nb; j++ {
			m = math.Max(m, math.Abs(jac.At(i, j)))
		}
		if m == 0 {
			rowScale[i] = 1
		} else {
			rowScale[i] = clip(1/m, 1e-8, 1e8)
		}
	}

	eval(f)
	dx := mat.NewVecDense(nb, nil)
	rhs := mat.NewVecDense(nb, nil)
	xOld := make([]float64, nb)
	ftrial := make([]float64, nb)
	var lu mat.LU
	for iterations = 0; ; iterations++ {
		residual = floats.Norm(f, math.Inf(1))
		if math.IsNaN(residual) || math.IsInf(residual, 0) {
			return iterations, residual, Infeasible, fmt.Errorf("nlp: block %d: residual is not finite", b.id)
		}
		if residual < n.Tolerance {
			return iterations, residual, Optimal, nil
		}
		if iterations >= n.MaxIter {
			return iterations, residual, MaxIterations, fmt.Errorf("nlp: block %d: no convergence after %d iterations (residual %g)", b.id, iterations, residual)
		}
		if iterations > 0 {
			fillJacobian()
		}
		for i := 0; i < nb; i++ {
			for j := 0; j < nb; j++ {
				jac.Set(i, j, jac.At(i, j)*rowScale[i])
			}
			rhs.SetVec(i, -f[i])
		}
		lu.Factorize(jac)
		if err := lu.SolveVecTo(dx, false, rhs); err != nil {
			if _, ok := err.(mat.Condition); !ok {
				return iterations, residual, Infeasible, fmt.Errorf("nlp: block %d: %v", b.id, err)
			}
		}
		for j, v := range b.vars {
			xOld[j] = x[v]
		}
		norm0 := floats.Norm(f, 2)
		accepted := false
		for alpha := 1.0; alpha >= n.MinStep; alpha /= 2 {
			for j, v := range b.vars {
				x[v] = p.Clip(v, xOld[j]+alpha*dx.AtVec(j)*typ[j])
			}
			eval(ftrial)
			norm1 := floats.Norm(ftrial, 2)
			if !math.IsNaN(norm1) && norm1 <= (1-1e-4*alpha)*norm0 {
				accepted = true
				break
			}
		}
		if !accepted {
			for j, v := range b.vars {
				x[v] = xOld[j]
			}
			return iterations, residual, Infeasible, fmt.Errorf("nlp: block %d: line search stalled at residual %g", b.id, residual)
		}
		copy(f, ftrial)
		n.logger().WithFields(logrus.Fields{
			"block":     b.id,
			"iteration": iterations + 1,
			"residual":  floats.Norm(f, math.Inf(1)),
		}).Debug("nlp: newton step")
	}
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

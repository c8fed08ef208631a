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

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// failedObjective is returned to the optimizer when the inner simulation
// does not converge for a trial parameter set.
const failedObjective = 1e30

// LeastSquares minimizes the objective of a Problem over its free
// GlobalBlock variables (the kinetic parameters) subject to the equality
// constraints, which are satisfied for every trial point by an inner
// Solver. Bounds on the parameters are enforced through a logistic
// transform. When the problem has no objective or no free global
// variables, LeastSquares simply runs the inner Solver.
type LeastSquares struct {
	// Inner solves the equality constraints for fixed parameters.
	Inner Solver

	// Method is "lbfgs" (default) or "neldermead".
	Method string

	// MaxIterations is the maximum number of major iterations of the
	// outer optimizer.
	MaxIterations int

	// GradientThreshold is the convergence threshold on the gradient
	// norm in the transformed parameter space.
	GradientThreshold float64

	// Regularization adds Regularization·Σ((p−p0)/p0)² to the objective,
	// where p0 are the parameter values at the start of the solve.
	Regularization float64

	Log logrus.FieldLogger
}

// NewLeastSquares returns a LeastSquares solver with a default Newton
// inner solver.
func NewLeastSquares() *LeastSquares {
	return &LeastSquares{
		Inner:             NewNewton(),
		Method:            "lbfgs",
		MaxIterations:     200,
		GradientThreshold: 1e-6,
		Log:               logrus.StandardLogger(),
	}
}

// Tighten tightens the inner solver and the outer gradient threshold.
func (ls *LeastSquares) Tighten() {
	if t, ok := ls.Inner.(Tightener); ok {
		t.Tighten()
	}
	ls.GradientThreshold /= 100
	ls.MaxIterations *= 2
}

// logistic maps y ∈ ℝ onto (lo, hi).
func logistic(y, lo, hi float64) float64 {
	return lo + (hi-lo)/(1+math.Exp(-y))
}

// logit is the inverse of logistic.
func logit(x, lo, hi float64) float64 {
	f := (x - lo) / (hi - lo)
	f = clip(f, 1e-9, 1-1e-9)
	return math.Log(f / (1 - f))
}

type transform struct {
	idx     []int
	lo, hi  []float64
	typical []float64
}

func (t *transform) toX(y []float64, x []float64) {
	for k, i := range t.idx {
		if math.IsInf(t.lo[k], 0) || math.IsInf(t.hi[k], 0) {
			x[i] = y[k] * t.typical[k]
		} else {
			x[i] = logistic(y[k], t.lo[k], t.hi[k])
		}
	}
}

func (t *transform) toY(x []float64) []float64 {
	y := make([]float64, len(t.idx))
	for k, i := range t.idx {
		if math.IsInf(t.lo[k], 0) || math.IsInf(t.hi[k], 0) {
			y[k] = x[i] / t.typical[k]
		} else {
			y[k] = logit(x[i], t.lo[k], t.hi[k])
		}
	}
	return y
}

// Solve implements Solver.
func (ls *LeastSquares) Solve(p *Problem) (Status, error) {
	inner := ls.Inner
	if inner == nil {
		inner = NewNewton()
	}
	t := &transform{}
	for i := range p.X {
		if p.Fixed[i] || p.Block[i] != GlobalBlock {
			continue
		}
		if p.Lower[i] == p.Upper[i] {
			continue
		}
		t.idx = append(t.idx, i)
		t.lo = append(t.lo, p.Lower[i])
		t.hi = append(t.hi, p.Upper[i])
		t.typical = append(t.typical, math.Max(math.Abs(p.X[i]), 1))
	}
	if p.Objective == nil || len(t.idx) == 0 {
		st, err := inner.Solve(p)
		st.Objective = p.Objective.Value(p.X)
		return st, err
	}

	seed := make([]float64, len(p.X))
	copy(seed, p.X)
	p0 := make([]float64, len(t.idx))
	for k, i := range t.idx {
		p0[k] = p.X[i]
	}

	var innerIter int
	f := func(y []float64) float64 {
		copy(p.X, seed)
		t.toX(y, p.X)
		st, err := inner.Solve(p)
		innerIter += st.Iterations
		if err != nil {
			return failedObjective
		}
		v := p.Objective.Value(p.X)
		if ls.Regularization > 0 {
			for k, i := range t.idx {
				d := (p.X[i] - p0[k]) / math.Max(math.Abs(p0[k]), 1e-300)
				v += ls.Regularization * d * d
			}
		}
		return v
	}
	problem := optimize.Problem{
		Func: f,
		Grad: func(grad, y []float64) {
			fd.Gradient(grad, f, y, &fd.Settings{Formula: fd.Forward, Step: 1e-6})
		},
	}
	var method optimize.Method
	switch ls.Method {
	case "", "lbfgs":
		method = &optimize.LBFGS{}
	case "neldermead":
		method = &optimize.NelderMead{}
	default:
		return Status{Solver: Error, Termination: Infeasible}, fmt.Errorf("nlp: invalid optimization method %q", ls.Method)
	}
	settings := &optimize.Settings{
		MajorIterations:   ls.MaxIterations,
		GradientThreshold: ls.GradientThreshold,
	}
	y0 := t.toY(p.X)
	if v := f(y0); v >= failedObjective {
		return Status{Solver: Error, Termination: Infeasible}, fmt.Errorf("nlp: the model does not converge at the initial parameter values")
	}
	res, err := optimize.Minimize(problem, y0, settings, method)
	if res == nil {
		return Status{Solver: Error, Termination: Infeasible}, fmt.Errorf("nlp: estimation failed: %v", err)
	}

	// Leave the problem at the best point found.
	copy(p.X, seed)
	t.toX(res.X, p.X)
	st, ierr := inner.Solve(p)
	st.Iterations = innerIter + st.Iterations
	st.Objective = p.Objective.Value(p.X)
	if ierr != nil {
		return st, ierr
	}
	ls.logger().WithFields(logrus.Fields{
		"objective":   st.Objective,
		"evaluations": res.Stats.FuncEvaluations,
		"status":      res.Status.String(),
	}).Info("nlp: estimation finished")

	switch {
	case err != nil:
		ls.logger().WithError(err).Warn("nlp: optimizer stopped early")
		st.Solver = Warning
		st.Termination = Feasible
	case res.Status == optimize.IterationLimit || res.Status == optimize.FunctionEvaluationLimit:
		st.Solver = Warning
		st.Termination = MaxIterations
	default:
		st.Solver = OK
		st.Termination = Optimal
	}
	return st, nil
}

func (ls *LeastSquares) logger() logrus.FieldLogger {
	if ls.Log == nil {
		return logrus.StandardLogger()
	}
	return ls.Log
}

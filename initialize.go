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

package cats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aladshaw3/cats-sub001/nlp"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// prepare brings the per-scenario constants and the ppm conditions up to
// date, computes the initial open sites and checks that the conditions
// are complete.
func (m *Model) prepare(op string) error {
	if m.disc == nil {
		return newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
	}
	if err := m.checkConditions(op); err != nil {
		return err
	}
	m.refreshScenarios()
	keys := make([]string, 0, len(m.refresh))
	for k := range m.refresh {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.refresh[k]()
	}
	d := m.disc
	for s := range m.sites.names {
		for sc := 0; sc < d.nsc; sc++ {
			for iz := 0; iz < d.nz; iz++ {
				m.p.X[d.vi(famS, s, sc, iz, 0)] = m.openSites(s, m.p.X, sc, iz, 0)
			}
		}
	}
	return nil
}

// massFamilies are the families solved by the mass balances.
var massFamilies = []family{famCb, famC, famQ, famS}

// steadyProblem returns a copy of the problem in which only the state at
// the first time node is free and the time derivatives vanish.
func (m *Model) steadyProblem() *nlp.Problem {
	d := m.disc
	p := &nlp.Problem{
		Names: m.p.Names,
		X:     append([]float64(nil), m.p.X...),
		Lower: m.p.Lower,
		Upper: m.p.Upper,
		Fixed: make([]bool, len(m.p.X)),
		Scale: m.p.Scale,
		Block: m.p.Block,
	}
	for i := range p.Fixed {
		p.Fixed[i] = true
	}
	for _, f := range massFamilies {
		for s := 0; s < d.count[f]; s++ {
			for sc := 0; sc < d.nsc; sc++ {
				for iz := 0; iz < d.nz; iz++ {
					if f == famCb && iz == 0 {
						continue
					}
					p.Fixed[d.vi(f, s, sc, iz, 0)] = false
				}
			}
		}
	}
	for sc := 0; sc < d.nsc; sc++ {
		for iz := 0; iz < d.nz; iz++ {
			m.pointBalances(p, point{sc: sc, iz: iz, it: 0, block: d.block(sc, 0), steady: true})
		}
	}
	return p
}

// propagate copies the mass-balance state at the first time node of x to
// every later time node that is not fixed.
func (m *Model) propagate(x []float64) {
	d := m.disc
	for _, f := range massFamilies {
		for s := 0; s < d.count[f]; s++ {
			for sc := 0; sc < d.nsc; sc++ {
				for iz := 0; iz < d.nz; iz++ {
					v := x[d.vi(f, s, sc, iz, 0)]
					for it := 1; it < d.nt; it++ {
						if i := d.vi(f, s, sc, iz, it); !m.p.Fixed[i] {
							m.p.X[i] = v
						}
					}
				}
			}
		}
	}
}

// InitializeAutoScaling computes the steady state at the initial boundary
// conditions and temperatures and uses it as the starting guess at every
// later time. The initial conditions themselves are not changed.
func (m *Model) InitializeAutoScaling() error {
	const op = "InitializeAutoScaling"
	if err := m.prepare(op); err != nil {
		return err
	}
	p := m.steadyProblem()
	n := nlp.NewNewton()
	n.Log = m.logger()
	st, err := n.Solve(p)
	if err != nil {
		return &Error{Kind: SolverError, Op: op, Err: fmt.Errorf("%w: %v", ErrInitializationStalled, err), Status: st}
	}
	m.propagate(p.X)
	m.autoScale()
	m.seed = append([]float64(nil), m.p.X...)
	m.logger().WithFields(logrus.Fields{
		"iterations": st.Iterations,
		"residual":   st.Residual,
	}).Info("cats: initialized steady seed")
	return nil
}

// initialize runs InitializeAutoScaling and falls back to propagating the
// initial conditions when the steady seed does not converge.
func (m *Model) initialize() error {
	err := m.InitializeAutoScaling()
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrInitializationStalled) {
		return err
	}
	m.warn("cats: steady initialization failed, using the initial conditions as the starting guess: %v", err)
	m.propagate(m.p.X)
	m.autoScale()
	m.seed = append([]float64(nil), m.p.X...)
	return nil
}

// autoScale sets the scaling factor of every variable to 1/|x| clipped to
// [1e-8, 1e8]. Variables at zero use the largest magnitude of their
// family.
func (m *Model) autoScale() {
	d := m.disc
	max := make(map[family]float64)
	fam := make([]family, len(m.p.X))
	for i := range fam {
		fam[i] = nFamilies
	}
	for f := family(0); f < nFamilies; f++ {
		n := d.count[f] * d.nsc * d.nz * d.nt
		for i := d.base[f]; i < d.base[f]+n; i++ {
			fam[i] = f
			max[f] = math.Max(max[f], math.Abs(m.p.X[i]))
		}
	}
	for i, v := range m.p.X {
		a := math.Abs(v)
		if a == 0 {
			a = max[fam[i]]
		}
		if a == 0 {
			m.p.Scale[i] = 1
			continue
		}
		m.p.Scale[i] = math.Min(math.Max(1/a, 1e-8), 1e8)
	}
}

// errRestart requests a re-solve after a solver warning.
var errRestart = errors.New("cats: solver warning")

// widenBounds doubles the width of the bounds of every free kinetic
// parameter around its value. A non-negative lower bound stays
// non-negative.
func (m *Model) widenBounds() {
	for i := 0; i < m.nParams; i++ {
		if m.p.Fixed[i] {
			continue
		}
		lo, hi, v := m.p.Lower[i], m.p.Upper[i], m.p.X[i]
		m.p.Lower[i] = v - 2*(v-lo)
		if lo >= 0 {
			m.p.Lower[i] = math.Max(m.p.Lower[i], 0)
		}
		m.p.Upper[i] = v + 2*(hi-v)
	}
}

// solve runs the solver with the configured restart policy.
func (m *Model) solve(op string) error {
	if m.Solver == nil {
		m.Solver = nlp.NewLeastSquares()
	}
	if m.seed == nil {
		m.seed = append([]float64(nil), m.p.X...)
	}
	retries := uint64(0)
	if m.RestartOnError || m.RestartOnWarning {
		retries = 1
	}
	var final error
	attempt := 0
	operation := func() error {
		attempt++
		st, err := m.Solver.Solve(&m.p)
		m.Status = st
		final = err
		switch {
		case err != nil && m.RestartOnError && attempt == 1:
			return err
		case err == nil && st.Solver == nlp.Warning && m.RestartOnWarning && attempt == 1:
			return errRestart
		}
		return nil
	}
	notify := func(err error, _ time.Duration) {
		if err == errRestart {
			m.warn("cats: %s: solver returned %v, retrying with tighter tolerances", op, m.Status)
			if t, ok := m.Solver.(nlp.Tightener); ok {
				t.Tighten()
			}
			return
		}
		m.warn("cats: %s: solver failed (%v), retrying with wider parameter bounds", op, err)
		m.widenBounds()
		for i := m.nParams; i < len(m.p.X); i++ {
			if !m.p.Fixed[i] {
				m.p.X[i] = m.seed[i]
			}
		}
		if ls, ok := m.Solver.(*nlp.LeastSquares); ok && ls.Regularization == 0 {
			ls.Regularization = 1e-3
		}
	}
	if err := backoff.RetryNotify(operation, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries), notify); err != nil && err != errRestart {
		final = err
	}
	if final != nil {
		cause := ErrSolverInfeasible
		if m.Status.Termination == nlp.MaxIterations {
			cause = ErrSolverMaxIter
		}
		return &Error{Kind: SolverError, Op: op, Err: fmt.Errorf("%w: %v", cause, final), Status: m.Status}
	}
	if m.Status.Solver == nlp.Warning {
		m.warn("cats: %s: solver finished with %v", op, m.Status)
	}
	m.logger().WithFields(logrus.Fields{
		"status":     m.Status.String(),
		"iterations": m.Status.Iterations,
		"objective":  m.Status.Objective,
	}).Info("cats: solve finished")
	return nil
}

// InitializeSimulator solves the model with every kinetic parameter held
// at its current value.
func (m *Model) InitializeSimulator() error {
	const op = "InitializeSimulator"
	if err := m.prepare(op); err != nil {
		return err
	}
	if m.seed == nil {
		m.autoScale()
	}
	fixed := append([]bool(nil), m.p.Fixed[:m.nParams]...)
	obj := m.p.Objective
	m.FixAllReactions()
	m.p.Objective = nil
	err := m.solve(op)
	copy(m.p.Fixed, fixed)
	m.p.Objective = obj
	return err
}

// RunModel solves the model. When observations are set and kinetic
// parameters are free, the parameters are estimated by minimizing the
// weighted squared difference between simulated and observed
// concentrations.
func (m *Model) RunModel() error {
	const op = "RunModel"
	if err := m.prepare(op); err != nil {
		return err
	}
	if m.seed == nil {
		m.autoScale()
	}
	m.p.Objective = nil
	if len(m.obs) > 0 {
		o, err := m.objective(op)
		if err != nil {
			return err
		}
		m.p.Objective = o
	}
	return m.solve(op)
}

// FinalizeAutoScaling rescales the variables at the solution and checks
// that the simulation model alone is feasible at the estimated
// parameters.
func (m *Model) FinalizeAutoScaling() error {
	const op = "FinalizeAutoScaling"
	if err := m.prepare(op); err != nil {
		return err
	}
	m.autoScale()
	obj := m.p.Objective
	m.p.Objective = nil
	defer func() { m.p.Objective = obj }()
	n := nlp.NewNewton()
	n.Log = m.logger()
	st, err := n.Solve(&m.p)
	m.Status.Residual = st.Residual
	if err != nil {
		cause := ErrSolverInfeasible
		if st.Termination == nlp.MaxIterations {
			cause = ErrSolverMaxIter
		}
		return &Error{Kind: SolverError, Op: op, Err: fmt.Errorf("%w: %v", cause, err), Status: st}
	}
	return nil
}

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
	"fmt"
	"io"
	"math"
	"time"
)

// BuildConstraints returns a function that builds the model equations.
func BuildConstraints() DomainManipulator {
	return func(m *Model) error { return m.BuildConstraints() }
}

// Discretize returns a function that discretizes the model.
func Discretize(opts DiscretizationOptions) DomainManipulator {
	return func(m *Model) error { return m.Discretize(opts) }
}

// InitializeAutoScaling returns a function that computes the steady seed
// and the variable scaling.
func InitializeAutoScaling() DomainManipulator {
	return func(m *Model) error { return m.initialize() }
}

// InitializeSimulator returns a function that solves the model at fixed
// kinetic parameters.
func InitializeSimulator() DomainManipulator {
	return func(m *Model) error { return m.InitializeSimulator() }
}

// RunModel returns a function that solves the model, estimating the free
// kinetic parameters when observations are set.
func RunModel() DomainManipulator {
	return func(m *Model) error { return m.RunModel() }
}

// FinalizeAutoScaling returns a function that re-solves the simulation
// model at the solution.
func FinalizeAutoScaling() DomainManipulator {
	return func(m *Model) error { return m.FinalizeAutoScaling() }
}

// ConservationCheck returns a function that checks the solution: no
// concentration may be more negative than tolerance times the largest
// value of its family, and every site balance must close to within
// tolerance relative to the site density.
func ConservationCheck(tolerance float64) DomainManipulator {
	return func(m *Model) error {
		const op = "ConservationCheck"
		if m.disc == nil {
			return newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
		}
		d := m.disc
		x := m.p.X
		for _, f := range []family{famCb, famC, famQ} {
			n := d.count[f] * d.nsc * d.nz * d.nt
			var max float64
			for i := d.base[f]; i < d.base[f]+n; i++ {
				max = math.Max(max, math.Abs(x[i]))
			}
			for i := d.base[f]; i < d.base[f]+n; i++ {
				if x[i] < -tolerance*max {
					return newError(SolverError, op, ErrNegativeConcentration, "%s = %g", m.p.Names[i], x[i])
				}
			}
		}
		for s := range m.sites.names {
			for sc := 0; sc < d.nsc; sc++ {
				smax := d.scen[sc].smax[s]
				for iz := 0; iz < d.nz; iz++ {
					for it := 0; it < d.nt; it++ {
						i := d.vi(famS, s, sc, iz, it)
						if r := x[i] - m.openSites(s, x, sc, iz, it); math.Abs(r) > tolerance*math.Max(smax, 1e-30) {
							return newError(SolverError, op, ErrSolverInfeasible, "site balance of %s is off by %g", m.p.Names[i], r)
						}
					}
				}
			}
		}
		return nil
	}
}

// Log writes solver status messages to w.
func Log(w io.Writer) DomainManipulator {
	startTime := time.Now()
	stepTime := time.Now()
	step := 0
	return func(m *Model) error {
		step++
		st := m.Status
		fmt.Fprintf(w, "Step %-3d  walltime=%6.3gh  Δwalltime=%4.2gs  status=%v  iterations=%d  residual=%.3g  objective=%.4g\n",
			step, time.Since(startTime).Hours(), time.Since(stepTime).Seconds(),
			st, st.Iterations, st.Residual, st.Objective)
		stepTime = time.Now()
		return nil
	}
}

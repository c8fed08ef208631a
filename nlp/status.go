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

import "fmt"

// SolverStatus is the first element of the status pair returned by a
// Solver.
type SolverStatus int

const (
	OK SolverStatus = iota
	Warning
	Error
)

func (s SolverStatus) String() string {
	switch s {
	case OK:
		return "ok"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("SolverStatus(%d)", int(s))
}

// Termination is the second element of the status pair returned by a
// Solver.
type Termination int

const (
	Optimal Termination = iota
	Feasible
	Infeasible
	MaxIterations
)

func (t Termination) String() string {
	switch t {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	case MaxIterations:
		return "max_iter"
	}
	return fmt.Sprintf("Termination(%d)", int(t))
}

// Status reports the outcome of a solve.
type Status struct {
	Solver      SolverStatus
	Termination Termination

	// Iterations is the total number of Newton (or outer optimizer)
	// iterations performed.
	Iterations int

	// Residual is the largest scaled residual at the returned point.
	Residual float64

	// Objective is the objective value at the returned point, or zero
	// in simulation mode.
	Objective float64

	// Block is the last block attempted. On failure it is the block
	// that failed; every lower block holds a converged solution.
	Block int
}

func (s Status) String() string {
	return fmt.Sprintf("(%v, %v)", s.Solver, s.Termination)
}

// Solver solves a Problem in place: on return p.X holds the solution, or
// the last feasible iterate if the solve failed.
type Solver interface {
	Solve(p *Problem) (Status, error)
}

// Tightener is implemented by solvers whose tolerances can be tightened
// for a retry after a warning.
type Tightener interface {
	Tighten()
}

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

	"github.com/aladshaw3/cats-sub001/nlp"
)

// Kind classifies the errors returned by a Model.
type Kind int

const (
	// DomainError is an invalid set declaration or identifier.
	DomainError Kind = iota + 1
	// OrderingError is an operation called before its prerequisites.
	OrderingError
	// UnitError is an invalid physical quantity.
	UnitError
	// SolverError is a failed solve.
	SolverError
	// PersistenceError is an unusable model state document.
	PersistenceError
)

func (k Kind) String() string {
	switch k {
	case DomainError:
		return "DomainError"
	case OrderingError:
		return "OrderingError"
	case UnitError:
		return "UnitError"
	case SolverError:
		return "SolverError"
	case PersistenceError:
		return "PersistenceError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinel causes. Use errors.Is to test for them.
var (
	ErrDomainAlreadyFixed        = errors.New("sets cannot be modified after BuildConstraints")
	ErrUnknownIdentifier         = errors.New("unknown identifier")
	ErrMissingTransportParameter = errors.New("missing transport parameter")

	ErrDiscretizationOutOfOrder = errors.New("discretization out of order")
	ErrICBeforeDiscretization   = errors.New("boundary or initial condition set before discretization")
	ErrObservationsNotSet       = errors.New("no observations have been set")

	ErrTemperatureNotSet     = errors.New("temperature has not been set")
	ErrNegativeConcentration = errors.New("negative concentration")

	ErrInitializationStalled = errors.New("initialization stalled")
	ErrSolverInfeasible      = errors.New("solver reported an infeasible problem")
	ErrSolverMaxIter         = errors.New("solver reached the maximum number of iterations")
	ErrBoundaryNotSet        = errors.New("boundary condition has not been set")

	ErrStateNotInDocument = errors.New("requested state is not in the document")
	ErrVersionMismatch    = errors.New("document version mismatch")
)

// Error is an error returned by a Model operation.
type Error struct {
	Kind Kind
	Op   string // Operation that failed
	Err  error  // Underlying cause

	// Status is the solver status for SolverErrors.
	Status nlp.Status
}

func (e *Error) Error() string {
	return fmt.Sprintf("cats: %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func newError(k Kind, op string, cause error, format string, args ...interface{}) error {
	if format == "" {
		return &Error{Kind: k, Op: op, Err: cause}
	}
	return &Error{Kind: k, Op: op, Err: fmt.Errorf("%w: %s", cause, fmt.Sprintf(format, args...))}
}

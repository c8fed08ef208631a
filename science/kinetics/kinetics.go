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

// Package kinetics contains the rate laws of heterogeneous catalytic
// reactions.
package kinetics

import (
	"fmt"
	"math"
)

// R is the ideal gas constant [J/mol/K].
const R = 8.3145

// Family is a kinetic rate-law family.
type Family int

const (
	// Arrhenius is an irreversible reaction with rate
	// A·exp(−E/RT)·Π reactant^order.
	Arrhenius Family = iota

	// EquilibriumArrhenius is a reversible reaction whose reverse rate is
	// the forward rate times Π product^order / (K·Π reactant^order),
	// with K = exp(ΔS/R − ΔH/RT).
	EquilibriumArrhenius
)

func (f Family) String() string {
	switch f {
	case Arrhenius:
		return "Arrhenius"
	case EquilibriumArrhenius:
		return "EquilibriumArrhenius"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily converts a family name into a Family.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "Arrhenius", "arrhenius":
		return Arrhenius, nil
	case "EquilibriumArrhenius", "equilibrium_arrhenius", "equilibriumarrhenius":
		return EquilibriumArrhenius, nil
	}
	return 0, fmt.Errorf("kinetics: invalid reaction family %q; valid options are Arrhenius and EquilibriumArrhenius", s)
}

// Parameter names.
const (
	A  = "A"
	E  = "E"
	DH = "dH"
	DS = "dS"
)

// Parameters returns the names of the decision variables of the family.
// Every family also carries a heat of reaction for energy balances; it is
// only part of the rate law for EquilibriumArrhenius.
func (f Family) Parameters() []string {
	if f == EquilibriumArrhenius {
		return []string{A, E, DH, DS}
	}
	return []string{A, E, DH}
}

// Params holds the values of the kinetic parameters of one reaction.
type Params struct {
	A  float64 // Pre-exponential factor
	E  float64 // Activation energy [J/mol]
	DH float64 // Heat of reaction [J/mol]
	DS float64 // Entropy of reaction [J/mol/K]
}

// RateConstant returns A·exp(−E/RT).
func RateConstant(a, e, T float64) float64 {
	return a * math.Exp(-e/(R*T))
}

// EquilibriumConstant returns exp(ΔS/R − ΔH/RT).
func EquilibriumConstant(dH, dS, T float64) float64 {
	return math.Exp(dS/R - dH/(R*T))
}

// Power returns c^order for a concentration c. Negative concentrations
// are treated as zero for non-integer orders.
func Power(c, order float64) float64 {
	switch order {
	case 0:
		return 1
	case 1:
		return c
	case 2:
		return c * c
	}
	if c <= 0 {
		if order == math.Trunc(order) {
			return math.Pow(c, order)
		}
		return 0
	}
	return math.Pow(c, order)
}

// Rate returns the net reaction rate at temperature T, where reactants and
// products are Π reactant^order and Π product^order.
func (f Family) Rate(p Params, T, reactants, products float64) float64 {
	k := RateConstant(p.A, p.E, T)
	rf := k * reactants
	if f != EquilibriumArrhenius {
		return rf
	}
	return rf - k*products/EquilibriumConstant(p.DH, p.DS, T)
}

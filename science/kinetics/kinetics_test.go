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

package kinetics

import (
	"math"
	"testing"
)

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func TestArrhenius(t *testing.T) {
	p := Params{A: 3.0028e19, E: 205901.5765}
	T := 600.
	want := 3.0028e19 * math.Exp(-205901.5765/(R*T)) * 2e-4 * math.Sqrt(3e-4)
	r := Arrhenius.Rate(p, T, Power(2e-4, 1)*Power(3e-4, 0.5), 0)
	if different(r, want, 1e-12) {
		t.Errorf("have %g, want %g", r, want)
	}
}

// At equilibrium the net rate vanishes.
func TestEquilibriumArrhenius(t *testing.T) {
	p := Params{A: 250000, DH: -54547.9, DS: -29.9943}
	T := 523.15
	K := EquilibriumConstant(p.DH, p.DS, T)
	S, C := 0.1, 7e-6
	q := K * S * C
	r := EquilibriumArrhenius.Rate(p, T, S*C, q)
	if math.Abs(r) > 1e-12*RateConstant(p.A, p.E, T)*S*C {
		t.Errorf("net rate at equilibrium: %g", r)
	}
	// Exothermic adsorption: K decreases with temperature.
	if EquilibriumConstant(p.DH, p.DS, 600) >= K {
		t.Error("equilibrium constant should decrease with temperature")
	}
}

func TestPower(t *testing.T) {
	cases := []struct{ c, o, want float64 }{
		{2, 0, 1},
		{2, 1, 2},
		{-2, 1, -2},
		{3, 2, 9},
		{4, 0.5, 2},
		{-4, 0.5, 0},
	}
	for _, c := range cases {
		if v := Power(c.c, c.o); v != c.want {
			t.Errorf("Power(%g, %g) = %g, want %g", c.c, c.o, v, c.want)
		}
	}
}

func TestParseFamily(t *testing.T) {
	for _, f := range []Family{Arrhenius, EquilibriumArrhenius} {
		g, err := ParseFamily(f.String())
		if err != nil {
			t.Fatal(err)
		}
		if g != f {
			t.Errorf("have %v, want %v", g, f)
		}
	}
	if _, err := ParseFamily("MichaelisMenten"); err == nil {
		t.Error("expected an error")
	}
}

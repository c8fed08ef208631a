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

// Package transport provides closed-form gas property and interphase
// mass-transfer correlations for monolith and packed-bed reactors.
//
// Units: length cm, time min, mass g, concentration mol/L, pressure kPa,
// temperature K, energy J.
package transport

import (
	"fmt"
	"math"

	"github.com/ctessum/unit"
)

// R is the ideal gas constant [J/mol/K].
const R = 8.3145

// Unit conversions.
const (
	pascalSecondToGPerCmMin = 10 * 60 // Pa·s -> g/cm/s -> g/cm/min
	cm2PerSToCm2PerMin      = 60
)

// Geometry selects the reactor geometry.
type Geometry int

const (
	// Monolith is a honeycomb with parallel channels.
	Monolith Geometry = iota
	// PackedBed is a bed of spherical particles.
	PackedBed
)

func (g Geometry) String() string {
	switch g {
	case Monolith:
		return "monolith"
	case PackedBed:
		return "packed_bed"
	}
	return fmt.Sprintf("Geometry(%d)", int(g))
}

// ParseGeometry converts a string into a Geometry.
func ParseGeometry(s string) (Geometry, error) {
	switch s {
	case "monolith", "Monolith", "":
		return Monolith, nil
	case "packed_bed", "PackedBed", "packedbed":
		return PackedBed, nil
	}
	return 0, fmt.Errorf("transport: invalid geometry %q", s)
}

// Sutherland holds the reference parameters of a Sutherland viscosity law.
type Sutherland struct {
	MuRef float64 // Reference viscosity [Pa·s]
	TRef  float64 // Reference temperature [K]
	S     float64 // Sutherland constant [K]
}

// Viscosity returns the viscosity at temperature T [g/cm/min].
func (s Sutherland) Viscosity(T float64) float64 {
	mu := s.MuRef * math.Pow(T/s.TRef, 1.5) * (s.TRef + s.S) / (T + s.S)
	return mu * pascalSecondToGPerCmMin
}

// Valid reports whether the law has been parameterized.
func (s Sutherland) Valid() bool {
	return s.MuRef > 0 && s.TRef > 0
}

// MixtureViscosity returns the mole-fraction-weighted viscosity of a gas
// mixture [g/cm/min]. x and laws must have the same length.
func MixtureViscosity(T float64, x []float64, laws []Sutherland) float64 {
	var mu, xt float64
	for i, l := range laws {
		mu += x[i] * l.Viscosity(T)
		xt += x[i]
	}
	if xt == 0 {
		return 0
	}
	return mu / xt
}

// Density returns the ideal gas density [g/cm³] at pressure P [kPa],
// temperature T [K] and mean molar mass M [g/mol].
func Density(P, T, M float64) float64 {
	return P * M / (R * T) / 1000
}

// MolarConcentration returns the total gas concentration [mol/L] at
// pressure P [kPa] and temperature T [K].
func MolarConcentration(P, T float64) float64 {
	return P / (R * T)
}

// PPMToMolar converts a mole fraction in ppm to a concentration [mol/L].
func PPMToMolar(ppm, P, T float64) float64 {
	return ppm * 1e-6 * MolarConcentration(P, T)
}

// MolarToPPM converts a concentration [mol/L] to a mole fraction in ppm.
func MolarToPPM(c, P, T float64) float64 {
	return c / MolarConcentration(P, T) * 1e6
}

// Diffusivity holds the reference state of a binary gas diffusivity.
type Diffusivity struct {
	DRef float64 // Reference diffusivity [cm²/s]
	TRef float64 // Reference temperature [K]
	PRef float64 // Reference pressure [kPa]
}

// Valid reports whether the diffusivity has been parameterized.
func (d Diffusivity) Valid() bool {
	return d.DRef > 0 && d.TRef > 0 && d.PRef > 0
}

// At returns the molecular diffusivity [cm²/min] at temperature T [K] and
// pressure P [kPa], scaled from the reference state by T^1.75/P.
func (d Diffusivity) At(T, P float64) float64 {
	return d.DRef * cm2PerSToCm2PerMin * math.Pow(T/d.TRef, 1.75) * (d.PRef / P)
}

// Bed describes the geometry of the catalyst bed.
type Bed struct {
	Geometry Geometry

	Length           float64 // Bed length [cm]
	BulkPorosity     float64 // Open (channel) volume fraction [-]
	CellDensity      float64 // Monolith cells per area [cells/cm²]
	ParticleDiameter float64 // Packed-bed particle diameter [cm]

	// SpecificArea overrides the computed gas-solid area per bed
	// volume [1/cm] when positive.
	SpecificArea float64
}

// HydraulicDiameter returns d_h [cm].
func (b Bed) HydraulicDiameter() float64 {
	if b.Geometry == PackedBed {
		return b.ParticleDiameter
	}
	return math.Sqrt(b.BulkPorosity) / math.Sqrt(b.CellDensity)
}

// Area returns the gas-solid interfacial area per bed volume G_a [1/cm].
func (b Bed) Area() float64 {
	if b.SpecificArea > 0 {
		return b.SpecificArea
	}
	if b.Geometry == PackedBed {
		return 6 * (1 - b.BulkPorosity) / b.ParticleDiameter
	}
	return 4 * b.BulkPorosity / b.HydraulicDiameter()
}

// HeatExchangeArea returns the gas-solid heat exchange area per gas
// volume [1/cm]: 2/channel radius for a monolith, G_a/ε_b for a packed bed.
func (b Bed) HeatExchangeArea() float64 {
	if b.Geometry == PackedBed {
		return b.Area() / b.BulkPorosity
	}
	return 2 / (b.HydraulicDiameter() / 2)
}

// Validate checks that the geometric parameters are physical.
func (b Bed) Validate() error {
	if !(b.Length > 0) {
		return fmt.Errorf("transport: bed length must be positive, got %g", b.Length)
	}
	if !(b.BulkPorosity > 0 && b.BulkPorosity < 1) {
		return fmt.Errorf("transport: bulk porosity must be in (0, 1), got %g", b.BulkPorosity)
	}
	switch b.Geometry {
	case Monolith:
		if !(b.CellDensity > 0) && !(b.SpecificArea > 0) {
			return fmt.Errorf("transport: monolith cell density must be positive, got %g", b.CellDensity)
		}
	case PackedBed:
		if !(b.ParticleDiameter > 0) {
			return fmt.Errorf("transport: particle diameter must be positive, got %g", b.ParticleDiameter)
		}
	}
	return nil
}

// Velocity returns the interstitial gas velocity [cm/min] for space
// velocity sv [1/min] given at reference conditions (Tref [K], Pref [kPa])
// at local temperature T and pressure P.
func (b Bed) Velocity(sv, T, P, Tref, Pref float64) float64 {
	return sv * b.Length / b.BulkPorosity * (T / Tref) * (Pref / P)
}

// Reynolds returns ρ·v·d_h/μ.
func Reynolds(rho, v, dh, mu float64) float64 {
	return rho * v * dh / mu
}

// Schmidt returns μ/(ρ·D_m).
func Schmidt(mu, rho, dm float64) float64 {
	return mu / (rho * dm)
}

// Sherwood returns the Sherwood number for the bed geometry.
func (b Bed) Sherwood(re, sc float64) float64 {
	if b.Geometry == PackedBed {
		return 2 + 1.1*math.Pow(re, 0.6)*math.Cbrt(sc)
	}
	return 2.978 * math.Pow(1+0.095*re*sc*b.HydraulicDiameter()/b.Length, 0.45)
}

// MassTransfer returns the film mass-transfer coefficient k_m [cm/min].
func (b Bed) MassTransfer(sh, dm float64) float64 {
	return sh * dm / b.HydraulicDiameter()
}

// CheckDimensions checks the inputs of the correlations above: gas density
// rho [g/cm³], velocity v [cm/min], hydraulic diameter dh [cm], viscosity
// mu [g/cm/min], diffusivity dm [cm²/min] and interfacial area ga [1/cm].
// Every input must be positive and finite. The Reynolds and Schmidt numbers
// and the volumetric exchange rate are then recomputed in SI units and must
// be dimensionless (a rate for the exchange) and agree with the values
// computed in the package units.
func CheckDimensions(rho, v, dh, mu, dm, ga float64) error {
	for _, in := range []struct {
		name  string
		value float64
	}{
		{"density", rho}, {"velocity", v}, {"hydraulic diameter", dh},
		{"viscosity", mu}, {"diffusivity", dm}, {"interfacial area", ga},
	} {
		if !(in.value > 0) || math.IsInf(in.value, 0) {
			return fmt.Errorf("transport: %s must be positive and finite, got %g", in.name, in.value)
		}
	}
	rhoU := unit.New(rho*1000, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -3})
	vU := unit.New(v/100/60, unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1})
	dhU := unit.New(dh/100, unit.Dimensions{unit.LengthDim: 1})
	muU := unit.New(mu/1000*100/60, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -1, unit.TimeDim: -1})
	dmU := unit.New(dm/1e4/60, unit.Dimensions{unit.LengthDim: 2, unit.TimeDim: -1})
	gaU := unit.New(ga*100, unit.Dimensions{unit.LengthDim: -1})

	check := func(name string, u *unit.Unit, d unit.Dimensions, want float64) error {
		if err := u.Check(d); err != nil {
			return fmt.Errorf("transport: %s: %v", name, err)
		}
		if have := u.Value(); math.Abs(have-want) > 1e-9*math.Abs(want) {
			return fmt.Errorf("transport: %s is %g in SI units but %g in model units", name, have, want)
		}
		return nil
	}
	if err := check("Reynolds number", unit.Div(unit.Mul(rhoU, vU, dhU), muU), unit.Dimensions{},
		Reynolds(rho, v, dh, mu)); err != nil {
		return err
	}
	if err := check("Schmidt number", unit.Div(muU, unit.Mul(rhoU, dmU)), unit.Dimensions{},
		Schmidt(mu, rho, dm)); err != nil {
		return err
	}
	// 1/s in SI, 1/min in model units.
	return check("mass-transfer rate", unit.Mul(unit.Div(dmU, dhU), gaU), unit.Dimensions{unit.TimeDim: -1},
		dm/dh*ga/60)
}

// HeatCapacity is a polynomial cp(T) = Σ c_i T^i [J/g/K].
type HeatCapacity []float64

// At evaluates the polynomial at T.
func (h HeatCapacity) At(T float64) float64 {
	var v float64
	for i := len(h) - 1; i >= 0; i-- {
		v = v*T + h[i]
	}
	return v
}

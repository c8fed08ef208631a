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
	"testing"

	"github.com/aladshaw3/cats-sub001/science/kinetics"
	"github.com/aladshaw3/cats-sub001/science/transport"
)

// coModel declares CO oxidation, CO + ½O2 → CO2, with energy balances.
func coModel(t *testing.T) *Model {
	t.Helper()
	m := New()
	m.Log = quietLogger()
	m.Bed = transport.Bed{Geometry: transport.Monolith, BulkPorosity: 0.3309, CellDensity: 62}
	diff := transport.Diffusivity{DRef: 0.208, TRef: 273.15, PRef: 101.35}
	check := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	check(m.EnableEnergyBalance(DefaultEnergyParameters()))
	check(m.AddAxialDim(0, 5))
	check(m.AddTemporalDim(0, 10))
	check(m.AddAgeSet(testAge))
	check(m.AddTemperatureSet(testTemp))
	check(m.AddGasSpecies("CO", "O2", "CO2"))
	for _, g := range []GasSpecies{
		{Name: "CO", MolarMass: 28.01, Viscosity: transport.Sutherland{MuRef: 1.66e-5, TRef: 273.15, S: 136}, Diffusivity: diff},
		{Name: "O2", MolarMass: 32.00, Viscosity: transport.Sutherland{MuRef: 1.92e-5, TRef: 273.15, S: 139}, Diffusivity: diff},
		{Name: "CO2", MolarMass: 44.01, Viscosity: transport.Sutherland{MuRef: 1.37e-5, TRef: 273.15, S: 222}, Diffusivity: diff},
	} {
		check(m.SetSpeciesProperties(g))
	}
	check(m.AddReaction("ox", kinetics.Arrhenius))
	check(m.SetReactionInfo("ox", ReactionInfo{
		Parameters: map[string]float64{kinetics.A: 1e13, kinetics.E: 100000, kinetics.DH: -283000},
		Reactants:  map[string]float64{"CO": 1, "O2": 0.5},
		Products:   map[string]float64{"CO2": 1},
	}))
	check(m.SetInletMoleFractions(map[string]float64{"CO": 0.005, "O2": 0.1}))
	check(m.SetSpaceVelocityAll(1000))
	check(m.BuildConstraints())
	check(m.Discretize(DiscretizationOptions{Method: FiniteDifference, TimeElements: 10, AxialElements: 5}))
	return m
}

func TestEnableEnergyAfterBuild(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.EnableEnergyBalance(DefaultEnergyParameters()); !errors.Is(err, ErrDomainAlreadyFixed) {
		t.Errorf("EnableEnergyBalance after BuildConstraints: %v", err)
	}
	if !m.Isothermal() {
		t.Error("model should be isothermal")
	}
	e := DefaultEnergyParameters()
	e.SolidDensity = 0
	if err := New().EnableEnergyBalance(e); !errors.Is(err, ErrMissingTransportParameter) {
		t.Errorf("zero solid density: %v", err)
	}
}

func TestEnergyVariables(t *testing.T) {
	m := coModel(t)
	if m.Isothermal() {
		t.Fatal("model should not be isothermal")
	}
	if err := m.SetIsothermalTempAll(400); err != nil {
		t.Fatal(err)
	}
	d := m.disc
	for iz := range d.z {
		for _, f := range []family{famT, famTs, famTw} {
			if T := m.p.X[d.vi(f, 0, 0, iz, 0)]; T != 400 {
				t.Errorf("initial %s(z=%g) = %g", f, d.z[iz], T)
			}
		}
		// Only the inlet gas temperature is imposed at later times.
		i := d.vi(famT, 0, 0, iz, d.nt-1)
		if fixed := m.p.Fixed[i]; fixed != (iz == 0) {
			t.Errorf("T(z=%g) fixed = %v", d.z[iz], fixed)
		}
	}
	if _, err := m.Breakthrough("Ts", testAge, testTemp); err != nil {
		t.Error(err)
	}
}

func TestCOLightOff(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping light-off simulation in short mode")
	}
	m := coModel(t)
	for _, err := range []error{
		m.SetIsothermalTempAll(400),
		m.SetTemperatureRamp(testAge, testTemp, 0, 8, 600),
		m.SetConstBCInPPM("CO", testAge, testTemp, 5000),
		m.SetConstBCInPPM("O2", testAge, testTemp, 100000),
		m.SetConstBC("CO2", testAge, testTemp, 0),
		m.SetConstIC("CO", testAge, testTemp, 0),
		m.SetConstIC("O2", testAge, testTemp, 0),
		m.SetConstIC("CO2", testAge, testTemp, 0),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	simulate(t, m)
	if err := ConservationCheck(1e-6)(m); err != nil {
		t.Error(err)
	}
	co, err := m.DerivedSeries("1 - CO / CO_in", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	n := len(co.Values)
	if !(co.Values[n-1] > co.Values[1]+0.1) {
		t.Errorf("CO conversion did not light off: %v", co.Values)
	}
	co2, err := m.Breakthrough("CO2", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	if !(co2.Values[n-1] > 0) {
		t.Errorf("no CO2 at the outlet: %v", co2.Values)
	}
	ts, err := m.Breakthrough("Ts", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	if !(ts.Values[n-1] > 500) {
		t.Errorf("outlet solid temperature %g did not follow the ramp", ts.Values[n-1])
	}
}

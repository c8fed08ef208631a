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
	"math"
	"testing"

	"github.com/aladshaw3/cats-sub001/science/kinetics"
)

func TestWeightFactors(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if w := m.WeightFactor("NH3", testAge, testTemp); w != 1 {
		t.Errorf("default weight = %g", w)
	}
	if err := m.SetDataValuesFor("NH3", testAge, testTemp, 5, []float64{1, 2, 3}, []float64{0, 2e-5, 4e-5}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDataValuesFor("H2O", testAge, testTemp, 5, []float64{1}, []float64{0}); err != nil {
		t.Fatal(err)
	}
	if err := m.AutoSelectAllWeightFactors(); err != nil {
		t.Fatal(err)
	}
	if w := m.WeightFactor("NH3", testAge, testTemp); different(w, 1/(4e-5*4e-5), 1e-12) {
		t.Errorf("NH3 weight = %g", w)
	}
	if w := m.WeightFactor("H2O", testAge, testTemp); w != 1 {
		t.Errorf("weight of all-zero data = %g", w)
	}
	// Replacing a series keeps one series per species and position.
	if err := m.SetDataValuesFor("NH3", testAge, testTemp, 5, []float64{1}, []float64{1e-5}); err != nil {
		t.Fatal(err)
	}
	if n := len(m.Observations()); n != 2 {
		t.Errorf("%d observation series, want 2", n)
	}
}

func TestObjective(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	d := m.disc
	for it := range d.t {
		m.p.X[d.vi(famCb, 0, 0, d.nz-1, it)] = d.t[it] * 1e-5
	}
	// 0.25 lies between the nodes at 0 and 0.5.
	if err := m.SetDataValuesFor("NH3", testAge, testTemp, 5, []float64{0.25, 1}, []float64{0, 1e-5}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetWeightFactor("NH3", testAge, testTemp, 1e10); err != nil {
		t.Fatal(err)
	}
	v, err := m.ObjectiveValue()
	if err != nil {
		t.Fatal(err)
	}
	want := 1e10 * math.Pow(0.25e-5, 2)
	if different(v, want, 1e-9) {
		t.Errorf("objective = %g, want %g", v, want)
	}
	if err := m.IgnoreWeightFactor("NH3", testAge, testTemp, 0, 0.3); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.ObjectiveValue(); absDifferent(v, 0, 1e-20) {
		t.Errorf("objective with the window ignored = %g", v)
	}
}

func TestObservationsInDataSets(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.SetDataValuesFor("H2O", testAge, testTemp, 5, []float64{1}, []float64{0}); err != nil {
		t.Fatal(err)
	}
	m.dataGas.add("NH3")
	if _, err := m.ObjectiveValue(); !IsKind(err, DomainError) {
		t.Errorf("observation of a species outside the data set: %v", err)
	}
}

func TestObservationsOutsideDomain(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	for _, v := range []struct {
		name  string
		z     float64
		times []float64
	}{
		{"after the time domain", 5, []float64{1, 9}},
		{"before the time domain", 5, []float64{-0.5}},
		{"between axial nodes", 2.5, []float64{1}},
	} {
		if err := m.SetDataValuesFor("NH3", testAge, testTemp, v.z, v.times, make([]float64, len(v.times))); !IsKind(err, DomainError) {
			t.Errorf("%s: %v", v.name, err)
		}
	}
	if n := len(m.Observations()); n != 0 {
		t.Errorf("%d observation series stored", n)
	}

	m.axialData = []float64{5}
	m.temporalData = []float64{0.5, 1, 1.25}
	if err := m.SetDataValuesFor("NH3", testAge, testTemp, 5, []float64{0.5, 1.25}, []float64{0, 0}); err != nil {
		t.Errorf("observations in the data sets: %v", err)
	}
	if err := m.SetDataValuesFor("NH3", testAge, testTemp, 2, []float64{1}, []float64{0}); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("z outside the axial data set: %v", err)
	}
	if err := m.SetDataValuesFor("NH3", testAge, testTemp, 5, []float64{1, 2}, []float64{0, 0}); !IsKind(err, DomainError) {
		t.Errorf("t outside the temporal data set: %v", err)
	}
	if _, err := m.ObjectiveValue(); err != nil {
		t.Error(err)
	}
	m.temporalData = []float64{1}
	if _, err := m.ObjectiveValue(); !IsKind(err, DomainError) {
		t.Errorf("objective over observations outside the temporal data set: %v", err)
	}
}

func TestWidenBounds(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	m.FixAllReactions()
	for _, name := range []string{kinetics.A, kinetics.DH} {
		if err := m.UnfixParameter("r1", name); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.SetParameterBounds("r1", kinetics.A, 1e5, 1e6); err != nil {
		t.Fatal(err)
	}
	ds, _ := m.Parameter("r1", kinetics.DS)
	m.widenBounds()
	for name, want := range map[string][2]float64{
		kinetics.A:  {0, 1.75e6},
		kinetics.DH: {-75600, -32400},
		kinetics.DS: {ds.Lower, ds.Upper},
	} {
		p, err := m.Parameter("r1", name)
		if err != nil {
			t.Fatal(err)
		}
		if absDifferent(p.Lower, want[0], 1e-6) || absDifferent(p.Upper, want[1], 1e-6) {
			t.Errorf("%s bounds [%g, %g], want %v", name, p.Lower, p.Upper, want)
		}
	}
}

// Recovers the pre-exponential factor from observations simulated at its
// true value.
func TestEstimateNH3(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping parameter estimation in short mode")
	}
	truth := nh3Model(t, FiniteDifference)
	nh3Conditions(t, truth)
	if err := truth.SetParameter("r1", kinetics.A, 2000); err != nil {
		t.Fatal(err)
	}
	simulate(t, truth)
	obs, err := truth.Breakthrough("NH3", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}

	m := nh3Model(t, FiniteDifference)
	nh3Conditions(t, m)
	m.FixAllReactions()
	if err := m.SetParameter("r1", kinetics.A, 1700); err != nil {
		t.Fatal(err)
	}
	if err := m.SetParameterBounds("r1", kinetics.A, 1000, 4000); err != nil {
		t.Fatal(err)
	}
	if err := m.UnfixParameter("r1", kinetics.A); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDataValuesFor("NH3", testAge, testTemp, 5, obs.Times, obs.Values); err != nil {
		t.Fatal(err)
	}
	if err := m.AutoSelectAllWeightFactors(); err != nil {
		t.Fatal(err)
	}
	m.RestartOnError = true
	m.InitFuncs = []DomainManipulator{InitializeAutoScaling(), InitializeSimulator()}
	m.RunFuncs = []DomainManipulator{RunModel(), FinalizeAutoScaling()}
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	before, err := m.ObjectiveValue()
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Run(); err != nil {
		t.Fatal(err)
	}
	after, err := m.ObjectiveValue()
	if err != nil {
		t.Fatal(err)
	}
	if after > before {
		t.Errorf("objective increased from %g to %g", before, after)
	}
	p, _ := m.Parameter("r1", kinetics.A)
	if math.Abs(p.Value-2000) > math.Abs(1700-2000) {
		t.Errorf("A = %g moved away from 2000", p.Value)
	}
	if p.Value < p.Lower || p.Value > p.Upper {
		t.Errorf("A = %g is outside [%g, %g]", p.Value, p.Lower, p.Upper)
	}
}

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
	"io/ioutil"
	"math"
	"strings"
	"testing"

	"github.com/aladshaw3/cats-sub001/nlp"
	"github.com/aladshaw3/cats-sub001/science/kinetics"
	"github.com/aladshaw3/cats-sub001/science/transport"
	"github.com/aladshaw3/cats-sub001/tabular"
	"github.com/sirupsen/logrus"
)

const (
	testTolerance = 1e-6
	testAge       = "A0"
	testTemp      = "T0"
	testT         = 423.15 // K
	testPPM       = 1000.
	testSmax      = 0.05 // mol/L
)

func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

var (
	nh3 = GasSpecies{
		Name:        "NH3",
		MolarMass:   17.031,
		Viscosity:   transport.Sutherland{MuRef: 0.92e-5, TRef: 273.15, S: 370},
		Diffusivity: transport.Diffusivity{DRef: 0.221, TRef: 273.15, PRef: 101.35},
	}
	h2o = GasSpecies{
		Name:        "H2O",
		MolarMass:   18.015,
		Viscosity:   transport.Sutherland{MuRef: 1.12e-5, TRef: 350, S: 1064},
		Diffusivity: transport.Diffusivity{DRef: 0.214, TRef: 273.15, PRef: 101.35},
	}
)

// nh3Model declares an ammonia storage model: NH3 + Z1 ⇌ q1 on a
// monolith, with an inert H2O tracer. The model is discretized but no
// conditions are set.
func nh3Model(t *testing.T, method Method) *Model {
	t.Helper()
	m := nh3Declared(t, []string{testAge}, []string{testTemp}, testSmax, 4)
	if err := m.Discretize(DiscretizationOptions{Method: method, TimeElements: 8, AxialElements: 5, CollocationPoints: 2}); err != nil {
		t.Fatal(err)
	}
	return m
}

// nh3Declared declares the ammonia storage model over the given ages and
// temperature sets on the time domain [0, end] and builds its
// constraints.
func nh3Declared(t *testing.T, ages, temps []string, smax, end float64) *Model {
	t.Helper()
	m := New()
	m.Log = quietLogger()
	m.Bed = transport.Bed{Geometry: transport.Monolith, BulkPorosity: 0.3309, CellDensity: 62}
	check := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	check(m.AddAxialDim(0, 5))
	check(m.AddTemporalDim(0, end))
	check(m.AddAgeSet(ages...))
	check(m.AddTemperatureSet(temps...))
	check(m.AddGasSpecies("NH3", "H2O"))
	check(m.SetSpeciesProperties(nh3))
	check(m.SetSpeciesProperties(h2o))
	check(m.AddSurfaceSpecies("q1"))
	check(m.AddSurfaceSites("Z1"))
	for _, a := range ages {
		check(m.SetSiteDensity("Z1", a, smax))
	}
	check(m.SetSiteBalanceTerms("Z1", map[string]float64{"q1": 1}))
	check(m.AddReaction("r1", kinetics.EquilibriumArrhenius))
	check(m.SetReactionInfo("r1", ReactionInfo{
		Parameters: map[string]float64{kinetics.A: 250000, kinetics.E: 0, kinetics.DH: -54000, kinetics.DS: 30},
		Reactants:  map[string]float64{"NH3": 1, "Z1": 1},
		Products:   map[string]float64{"q1": 1},
	}))
	check(m.SetInletMoleFractions(map[string]float64{"NH3": 0.001, "H2O": 0.05}))
	check(m.SetSpaceVelocityAll(1000))
	check(m.BuildConstraints())
	return m
}

// nh3Conditions sets a step feed of NH3 and H2O into an empty bed.
func nh3Conditions(t *testing.T, m *Model) {
	t.Helper()
	for _, f := range []func() error{
		func() error { return m.SetIsothermalTempAll(testT) },
		func() error { return m.SetConstBCInPPM("NH3", testAge, testTemp, testPPM) },
		func() error { return m.SetConstBCInPPM("H2O", testAge, testTemp, 50000) },
		func() error { return m.SetConstIC("NH3", testAge, testTemp, 0) },
		func() error { return m.SetConstIC("H2O", testAge, testTemp, 0) },
		func() error { return m.SetConstIC("q1", testAge, testTemp, 0) },
	} {
		if err := f(); err != nil {
			t.Fatal(err)
		}
	}
}

func simulate(t *testing.T, m *Model) {
	t.Helper()
	if err := m.initialize(); err != nil {
		t.Fatal(err)
	}
	if err := m.InitializeSimulator(); err != nil {
		t.Fatal(err)
	}
}

func TestNH3Storage(t *testing.T) {
	for _, method := range []Method{FiniteDifference, OrthogonalCollocation} {
		t.Run(method.String(), func(t *testing.T) {
			m := nh3Model(t, method)
			nh3Conditions(t, m)
			simulate(t, m)

			out, err := m.Breakthrough("NH3", testAge, testTemp)
			if err != nil {
				t.Fatal(err)
			}
			in := transport.PPMToMolar(testPPM, m.RefPressure, testT)
			for i := 1; i < len(out.Values); i++ {
				if out.Values[i] < out.Values[i-1]-1e-3*in {
					t.Errorf("outlet NH3 decreases at t=%g: %g < %g", out.Times[i], out.Values[i], out.Values[i-1])
				}
			}
			if final := out.Values[len(out.Values)-1]; different(final, in, 0.05) {
				t.Errorf("final outlet NH3 %g, want ≈ inlet %g", final, in)
			}

			q, err := m.AllLocations("q1", testAge, testTemp)
			if err != nil {
				t.Fatal(err)
			}
			for _, v := range q.Elements {
				if v > testSmax*(1+testTolerance) {
					t.Errorf("q1 = %g exceeds the site density %g", v, testSmax)
				}
			}
			if err := ConservationCheck(1e-6)(m); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestInertSpecies(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	nh3Conditions(t, m)
	simulate(t, m)
	out, err := m.Breakthrough("H2O", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	in := transport.PPMToMolar(50000, m.RefPressure, testT)
	if final := out.Values[len(out.Values)-1]; different(final, in, 1e-3) {
		t.Errorf("outlet H2O %g, want inlet %g", final, in)
	}
	for _, r := range m.Reactions() {
		if u, _ := m.MolarContribution(r.ID, "H2O", 2.5); u != 0 {
			t.Errorf("H2O contribution to %s = %g", r.ID, u)
		}
	}
}

func TestZeroRate(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.SetParameter("r1", kinetics.A, 0); err != nil {
		t.Fatal(err)
	}
	nh3Conditions(t, m)
	simulate(t, m)
	q, err := m.AllLocations("q1", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range q.Elements {
		if absDifferent(v, 0, 1e-12) {
			t.Fatalf("q1 = %g without reaction", v)
		}
	}
	s, err := m.IntegralAverage("Z1", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range s.Values {
		if different(v, testSmax, testTolerance) {
			t.Errorf("open sites %g, want %g", v, testSmax)
		}
	}
}

func TestReactionZone(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.SetReactionZone("r1", 0, 2); err != nil {
		t.Fatal(err)
	}
	if u, _ := m.MolarContribution("r1", "NH3", 3); u != 0 {
		t.Errorf("contribution outside the zone = %g", u)
	}
	if u, _ := m.MolarContribution("r1", "NH3", 1); u != -1 {
		t.Errorf("contribution inside the zone = %g, want -1", u)
	}
	nh3Conditions(t, m)
	simulate(t, m)
	q, err := m.AllLocations("q1", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	z := m.AxialPoints()
	var inside float64
	for iz, zz := range z {
		for it := range m.TimePoints() {
			v := q.Get(iz, it)
			if zz > 2+1e-9 && absDifferent(v, 0, 1e-12) {
				t.Errorf("q1(z=%g) = %g outside the reaction zone", zz, v)
			}
			if zz <= 2 {
				inside = math.Max(inside, v)
			}
		}
	}
	if !(inside > 0) {
		t.Error("no storage inside the reaction zone")
	}
}

func TestStepBC(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.SetIsothermalTempAll(testT); err != nil {
		t.Fatal(err)
	}
	points := []tabular.Point{{Time: 2, Value: 1e-5}, {Time: 1, Value: 2e-5}}
	if err := m.SetTimeDependentBC("NH3", testAge, testTemp, points, 0); err != nil {
		t.Fatal(err)
	}
	d := m.disc
	want := map[float64]float64{0: 0, 0.5: 0, 1: 2e-5, 1.5: 2e-5, 2: 1e-5, 4: 1e-5}
	for it, tt := range d.t {
		w, ok := want[tt]
		if !ok {
			continue
		}
		if v := m.p.X[d.vi(famCb, 0, 0, 0, it)]; v != w {
			t.Errorf("inlet NH3 at t=%g = %g, want %g", tt, v, w)
		}
	}
}

func TestPredict(t *testing.T) {
	m := nh3Model(t, OrthogonalCollocation)
	nh3Conditions(t, m)
	if err := m.prepare("test"); err != nil {
		t.Fatal(err)
	}
	d := m.disc
	for iz := range d.z {
		for it := 1; it < d.nt; it++ {
			m.p.X[d.vi(famQ, 0, 0, iz, it)] = 1
		}
	}
	m.predict(m.p.X, d.block(0, 1))
	in := transport.PPMToMolar(testPPM, m.RefPressure, testT)
	for it := 1; it < d.nt; it++ {
		want := 1.
		if d.tblock[it] == d.tblock[1] {
			want = 0
			if v := m.p.X[d.vi(famCb, 0, 0, 0, it)]; different(v, in, 1e-12) {
				t.Errorf("inlet NH3 at t=%g = %g, want the boundary value %g", d.t[it], v, in)
			}
		}
		for iz := range d.z {
			if v := m.p.X[d.vi(famQ, 0, 0, iz, it)]; v != want {
				t.Errorf("q1(z=%g, t=%g) = %g, want %g", d.z[iz], d.t[it], v, want)
			}
		}
	}
}

func TestTemperatureRamp(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.SetTemperatureRamp(testAge, testTemp, 1, 3, 500); !errors.Is(err, ErrTemperatureNotSet) {
		t.Errorf("ramp before a temperature: %v", err)
	}
	if err := m.SetIsothermalTempAll(400); err != nil {
		t.Fatal(err)
	}
	if err := m.SetTemperatureRamp(testAge, testTemp, 1, 3, 500); err != nil {
		t.Fatal(err)
	}
	d := m.disc
	for it, tt := range d.t {
		var want float64
		switch {
		case tt <= 1:
			want = 400
		case tt >= 3:
			want = 500
		default:
			want = 400 + 100*(tt-1)/2
		}
		for iz := range d.z {
			if T := m.p.X[d.vi(famT, 0, 0, iz, it)]; absDifferent(T, want, 1e-9) {
				t.Errorf("T(z=%g, t=%g) = %g, want %g", d.z[iz], tt, T, want)
			}
		}
	}
}

func TestTemperatureFromData(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	data := map[string][]tabular.Point{
		"T_in":  {{Time: 4, Value: 480}, {Time: 0, Value: 400}},
		"T_out": {{Time: 0, Value: 420}, {Time: 4, Value: 500}},
	}
	zmap := map[string]float64{"T_in": 0, "T_out": 4}
	if err := m.SetTemperatureFromData(testAge, testTemp, data, zmap); err != nil {
		t.Fatal(err)
	}
	d := m.disc
	for it, tt := range d.t {
		for iz, z := range d.z {
			want := 400 + 20*tt + 20*math.Min(z, 4)/4
			if T := m.p.X[d.vi(famT, 0, 0, iz, it)]; absDifferent(T, want, 1e-9) {
				t.Errorf("T(z=%g, t=%g) = %g, want %g", z, tt, T, want)
			}
		}
	}

	if err := m.SetTemperatureFromData(testAge, testTemp, data, map[string]float64{"T_mid": 2}); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("missing sensor column: %v", err)
	}
	if err := m.SetTemperatureFromData(testAge, testTemp, data, map[string]float64{"T_in": 7}); !IsKind(err, DomainError) {
		t.Errorf("sensor outside the bed: %v", err)
	}
	data["T_in"][0].Value = 0
	if err := m.SetTemperatureFromData(testAge, testTemp, data, zmap); !IsKind(err, UnitError) {
		t.Errorf("zero temperature: %v", err)
	}
}

// Conversions from ppm follow the temperature program: the same ppm feed
// is a lower molar concentration at higher temperature.
func TestPPMFollowsTemperature(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	nh3Conditions(t, m)
	if err := m.SetTemperatureRamp(testAge, testTemp, 1, 3, 2*testT); err != nil {
		t.Fatal(err)
	}
	if err := m.prepare("test"); err != nil {
		t.Fatal(err)
	}
	d := m.disc
	first := m.p.X[d.vi(famCb, 0, 0, 0, 0)]
	last := m.p.X[d.vi(famCb, 0, 0, 0, d.nt-1)]
	if different(first, 2*last, 1e-9) {
		t.Errorf("inlet NH3 at the end %g, want half of %g", last, first)
	}
}

func TestSiteClosure(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	nh3Conditions(t, m)
	if err := m.SetConstIC("q1", testAge, testTemp, 0.02); err != nil {
		t.Fatal(err)
	}
	if err := m.prepare("test"); err != nil {
		t.Fatal(err)
	}
	d := m.disc
	for iz := range d.z {
		if S := m.p.X[d.vi(famS, 0, 0, iz, 0)]; different(S, testSmax-0.02, 1e-12) {
			t.Errorf("initial open sites %g, want %g", S, testSmax-0.02)
		}
	}
}

func TestOrdering(t *testing.T) {
	m := New()
	m.Log = quietLogger()
	if err := m.Discretize(DiscretizationOptions{TimeElements: 1, AxialElements: 1}); !IsKind(err, OrderingError) {
		t.Errorf("Discretize before BuildConstraints: %v", err)
	}
	if err := m.SetConstIC("NH3", testAge, testTemp, 0); !errors.Is(err, ErrICBeforeDiscretization) {
		t.Errorf("IC before Discretize: %v", err)
	}
	if err := m.BuildConstraints(); !IsKind(err, DomainError) {
		t.Errorf("BuildConstraints without domains: %v", err)
	}

	m = nh3Model(t, FiniteDifference)
	if err := m.AddGasSpecies("CO"); !errors.Is(err, ErrDomainAlreadyFixed) {
		t.Errorf("AddGasSpecies after BuildConstraints: %v", err)
	}
	if err := m.Discretize(DiscretizationOptions{TimeElements: 1, AxialElements: 1}); !errors.Is(err, ErrDiscretizationOutOfOrder) {
		t.Errorf("second Discretize: %v", err)
	}
	if err := m.InitializeSimulator(); !errors.Is(err, ErrTemperatureNotSet) {
		t.Errorf("solve without a temperature: %v", err)
	}
	if err := m.SetIsothermalTempAll(testT); err != nil {
		t.Fatal(err)
	}
	if err := m.InitializeSimulator(); !errors.Is(err, ErrBoundaryNotSet) {
		t.Errorf("solve without boundary conditions: %v", err)
	}
	if err := m.RunModel(); !IsKind(err, OrderingError) {
		t.Errorf("RunModel without boundary conditions: %v", err)
	}
	if err := m.AutoSelectAllWeightFactors(); !errors.Is(err, ErrObservationsNotSet) {
		t.Errorf("weights without observations: %v", err)
	}

	n := m.NumVariables()
	m.ResetDiscretization()
	if m.Discretized() {
		t.Fatal("still discretized after ResetDiscretization")
	}
	if err := m.Discretize(DiscretizationOptions{Method: FiniteDifference, TimeElements: 4, AxialElements: 5}); err != nil {
		t.Fatal(err)
	}
	if m.NumVariables() >= n {
		t.Errorf("coarser grid has %d variables, want fewer than %d", m.NumVariables(), n)
	}
}

func TestInvalidInput(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.SetConstBC("NH3", testAge, testTemp, -1); !errors.Is(err, ErrNegativeConcentration) {
		t.Errorf("negative BC: %v", err)
	}
	if err := m.SetConstBC("CO", testAge, testTemp, 1); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("unknown species: %v", err)
	}
	if err := m.SetConstBC("NH3", "A9", testTemp, 1); !IsKind(err, DomainError) {
		t.Errorf("unknown age: %v", err)
	}
	if err := m.SetIsothermalTemp(testAge, testTemp, -5); !IsKind(err, UnitError) {
		t.Errorf("negative temperature: %v", err)
	}
	if err := m.SetConstBCInPPM("NH3", testAge, testTemp, 10); !errors.Is(err, ErrTemperatureNotSet) {
		t.Errorf("ppm before temperature: %v", err)
	}
	if err := m.SetDataValuesFor("NH3", testAge, testTemp, 2.1234, []float64{1}, []float64{0}); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("observation off the grid: %v", err)
	}
	if _, err := m.Breakthrough("CO", testAge, testTemp); !errors.Is(err, ErrUnknownIdentifier) {
		t.Errorf("unknown breakthrough species: %v", err)
	}
}

func TestMissingTransport(t *testing.T) {
	m := New()
	m.Log = quietLogger()
	m.Bed = transport.Bed{Geometry: transport.Monolith, BulkPorosity: 0.3309, CellDensity: 62}
	for _, err := range []error{
		m.AddAxialDim(0, 5),
		m.AddTemporalDim(0, 4),
		m.AddAgeSet(testAge),
		m.AddTemperatureSet(testTemp),
		m.AddGasSpecies("NH3"),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := m.BuildConstraints(); !errors.Is(err, ErrMissingTransportParameter) {
		t.Errorf("BuildConstraints without transport properties: %v", err)
	}
}

// Without reactions the outlet flux equals the inlet flux at steady state.
func TestSteadyFluxBalance(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.SetParameter("r1", kinetics.A, 0); err != nil {
		t.Fatal(err)
	}
	nh3Conditions(t, m)
	simulate(t, m)
	v, err := m.Velocity(testAge, testTemp, testT)
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range []string{"NH3", "H2O"} {
		in, err := m.Location(g, testAge, testTemp, 0)
		if err != nil {
			t.Fatal(err)
		}
		out, err := m.Breakthrough(g, testAge, testTemp)
		if err != nil {
			t.Fatal(err)
		}
		last := len(out.Values) - 1
		fin, fout := v*in.Values[last], v*out.Values[last]
		if different(fin, fout, 1e-6) {
			t.Errorf("%s: inlet flux %g, outlet flux %g", g, fin, fout)
		}
	}
}

// Pure NH3 adsorption at 523.15 K with a step feed at t = 4 min.
func TestNH3AdsorptionStep(t *testing.T) {
	const (
		T    = 523.15
		dH   = -54547.9
		dS   = -29.9943
		smax = 0.1152619
		cin  = 6.9762939977887e-6
	)
	m := nh3Declared(t, []string{testAge}, []string{testTemp}, smax, 16)
	for name, v := range map[string]float64{kinetics.DH: dH, kinetics.DS: dS} {
		if err := m.SetParameter("r1", name, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Discretize(DiscretizationOptions{TimeElements: 32, AxialElements: 5}); err != nil {
		t.Fatal(err)
	}
	for _, f := range []func() error{
		func() error { return m.SetIsothermalTempAll(T) },
		func() error {
			return m.SetTimeDependentBC("NH3", testAge, testTemp, []tabular.Point{{Time: 4, Value: cin}}, 0)
		},
		func() error { return m.SetConstBC("H2O", testAge, testTemp, 0) },
		func() error { return m.SetConstIC("NH3", testAge, testTemp, 0) },
		func() error { return m.SetConstIC("H2O", testAge, testTemp, 0) },
		func() error { return m.SetConstIC("q1", testAge, testTemp, 0) },
	} {
		if err := f(); err != nil {
			t.Fatal(err)
		}
	}
	simulate(t, m)

	out, err := m.Breakthrough("NH3", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Values {
		if out.Times[i] < 4 && absDifferent(v, 0, 1e-12) {
			t.Errorf("outlet NH3 at t=%g = %g before the step", out.Times[i], v)
		}
		if i > 0 && v < out.Values[i-1]-1e-3*cin {
			t.Errorf("outlet NH3 decreases at t=%g: %g < %g", out.Times[i], v, out.Values[i-1])
		}
	}
	if final := out.Values[len(out.Values)-1]; different(final, cin, 0.01) {
		t.Errorf("final outlet NH3 %g, want the inlet %g", final, cin)
	}

	// The storage capacity at the inlet concentration, which tends to Smax
	// as K·Cin grows.
	kc := kinetics.EquilibriumConstant(dH, dS, T) * cin
	qeq := smax * kc / (1 + kc)
	q, err := m.IntegralAverage("q1", testAge, testTemp)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(q.Values); i++ {
		if q.Values[i] < q.Values[i-1]-1e-6*qeq {
			t.Errorf("average q1 decreases at t=%g", q.Times[i])
		}
	}
	if final := q.Values[len(q.Values)-1]; different(final, qeq, 0.01) || final > smax {
		t.Errorf("final average q1 %g, want %g (Smax %g)", final, qeq, smax)
	}
}

func TestReactionZoneInactive(t *testing.T) {
	m := nh3Model(t, FiniteDifference)
	if err := m.SetReactionZoneInactive("r1", 0, 1.5); err != nil {
		t.Fatal(err)
	}
	if err := m.SetReactionZoneInactive("r1", 3, 4); err != nil {
		t.Fatal(err)
	}
	for z, want := range map[float64]float64{1: 0, 2: -1, 3.5: 0, 4.5: -1} {
		u, err := m.MolarContribution("r1", "NH3", z)
		if err != nil {
			t.Fatal(err)
		}
		if u != want || math.Signbit(u) != math.Signbit(want) {
			t.Errorf("NH3 contribution at z=%g = %g, want %g", z, u, want)
		}
		if q, _ := m.MolarContribution("r1", "q1", z); q != -want {
			t.Errorf("q1 contribution at z=%g = %g, want %g", z, q, -want)
		}
	}
}

// Every collocation point receives the value of the step it falls in.
func TestStepBCCollocation(t *testing.T) {
	m := nh3Model(t, OrthogonalCollocation)
	if err := m.SetIsothermalTempAll(testT); err != nil {
		t.Fatal(err)
	}
	points := []tabular.Point{{Time: 2, Value: 1e-5}, {Time: 1.2, Value: 2e-5}}
	if err := m.SetTimeDependentBC("NH3", testAge, testTemp, points, 3e-6); err != nil {
		t.Fatal(err)
	}
	d := m.disc
	var interior int
	for it, tt := range d.t {
		want := 3e-6
		switch {
		case tt >= 2:
			want = 1e-5
		case tt >= 1.2:
			want = 2e-5
		}
		if _, boundary := indexOf(d.tb, tt); !boundary {
			interior++
		}
		if v := m.p.X[d.vi(famCb, 0, 0, 0, it)]; v != want {
			t.Errorf("inlet NH3 at t=%g = %g, want %g", tt, v, want)
		}
	}
	if interior == 0 {
		t.Error("no interior collocation points")
	}
}

// warningSolver reports a warning on its first solve.
type warningSolver struct {
	nlp.Solver
	calls, tightened int
}

func (w *warningSolver) Solve(p *nlp.Problem) (nlp.Status, error) {
	w.calls++
	st, err := w.Solver.Solve(p)
	if err == nil && w.calls == 1 {
		st.Solver, st.Termination = nlp.Warning, nlp.Feasible
	}
	return st, err
}

func (w *warningSolver) Tighten() { w.tightened++ }

func TestRestartOnWarning(t *testing.T) {
	for _, restart := range []bool{false, true} {
		m := nh3Model(t, FiniteDifference)
		nh3Conditions(t, m)
		n := nlp.NewNewton()
		n.Log = quietLogger()
		s := &warningSolver{Solver: n}
		m.Solver = s
		m.RestartOnWarning = restart
		simulate(t, m)

		wantCalls, wantStatus, wantMsg := 1, nlp.Warning, "solver finished with"
		if restart {
			wantCalls, wantStatus, wantMsg = 2, nlp.OK, "retrying with tighter tolerances"
		}
		if s.calls != wantCalls || s.tightened != wantCalls-1 {
			t.Errorf("restart=%v: %d solves and %d tightenings", restart, s.calls, s.tightened)
		}
		if m.Status.Solver != wantStatus {
			t.Errorf("restart=%v: status %v", restart, m.Status)
		}
		if len(m.Warnings) == 0 || !strings.Contains(strings.Join(m.Warnings, "\n"), wantMsg) {
			t.Errorf("restart=%v: warnings %q", restart, m.Warnings)
		}
	}
}

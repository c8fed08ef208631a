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
	"math"
	"sort"

	"github.com/aladshaw3/cats-sub001/nlp"
)

// Observation is a measured outlet or sensor concentration series of a
// gas species.
type Observation struct {
	Species string `json:"species"`
	Age     string `json:"age"`
	Temp    string `json:"temperature"`

	// Z is the sensor position [cm]. It must be a node of the axial grid.
	Z float64 `json:"z"`

	Times  []float64 `json:"times"`  // [min]
	Values []float64 `json:"values"` // [mol/L]
}

func (o *Observation) key() speciesScenario {
	return speciesScenario{o.Species, o.Age, o.Temp}
}

// SetDataValuesFor sets the observed concentrations [mol/L] of a gas
// species at axial position z, replacing any earlier series for the same
// species, scenario and position.
func (m *Model) SetDataValuesFor(spec, age, temp string, z float64, times, values []float64) error {
	const op = "SetDataValuesFor"
	if _, _, err := m.gasTarget(op, spec, age, temp); err != nil {
		return err
	}
	if len(times) != len(values) {
		return newError(DomainError, op, ErrUnknownIdentifier, "%d times but %d values", len(times), len(values))
	}
	if err := m.checkObservationPoints(op, z, times); err != nil {
		return err
	}
	o := Observation{
		Species: spec, Age: age, Temp: temp, Z: z,
		Times:  append([]float64(nil), times...),
		Values: append([]float64(nil), values...),
	}
	for i := range m.obs {
		if m.obs[i].key() == o.key() && m.obs[i].Z == z {
			m.obs[i] = o
			return nil
		}
	}
	m.obs = append(m.obs, o)
	return nil
}

// Observations returns the observation series.
func (m *Model) Observations() []Observation {
	return append([]Observation(nil), m.obs...)
}

// SetWeightFactor sets the objective weight of a species in a scenario.
func (m *Model) SetWeightFactor(spec, age, temp string, w float64) error {
	const op = "SetWeightFactor"
	if !m.gas.has(spec) {
		return newError(DomainError, op, ErrUnknownIdentifier, "gas species %q", spec)
	}
	if _, err := m.scenarioIndex(op, age, temp); err != nil {
		return err
	}
	if w < 0 {
		return newError(UnitError, op, ErrNegativeConcentration, "weight %g", w)
	}
	m.weights[speciesScenario{spec, age, temp}] = w
	return nil
}

// WeightFactor returns the objective weight of a species in a scenario.
// The default is 1.
func (m *Model) WeightFactor(spec, age, temp string) float64 {
	if w, ok := m.weights[speciesScenario{spec, age, temp}]; ok {
		return w
	}
	return 1
}

// AutoSelectAllWeightFactors sets the weight of every observed species and
// scenario to 1/max|observation|², or to 1 when every observation is zero.
func (m *Model) AutoSelectAllWeightFactors() error {
	if len(m.obs) == 0 {
		return newError(OrderingError, "AutoSelectAllWeightFactors", ErrObservationsNotSet, "")
	}
	max := make(map[speciesScenario]float64)
	for _, o := range m.obs {
		k := o.key()
		for _, v := range o.Values {
			max[k] = math.Max(max[k], math.Abs(v))
		}
	}
	for k, v := range max {
		if v == 0 {
			m.weights[k] = 1
		} else {
			m.weights[k] = 1 / (v * v)
		}
	}
	return nil
}

// IgnoreWeightFactor gives zero weight to the observations of a species
// and scenario in the time window [t0, t1]. Windows accumulate.
func (m *Model) IgnoreWeightFactor(spec, age, temp string, t0, t1 float64) error {
	const op = "IgnoreWeightFactor"
	if !m.gas.has(spec) {
		return newError(DomainError, op, ErrUnknownIdentifier, "gas species %q", spec)
	}
	if _, err := m.scenarioIndex(op, age, temp); err != nil {
		return err
	}
	k := speciesScenario{spec, age, temp}
	m.ignore[k] = append(m.ignore[k], [2]float64{math.Min(t0, t1), math.Max(t0, t1)})
	return nil
}

func (m *Model) ignored(k speciesScenario, t float64) bool {
	for _, w := range m.ignore[k] {
		if t >= w[0] && t <= w[1] {
			return true
		}
	}
	return false
}

// obsTerm is one weighted residual: √w·(interpolated Cb − value).
type obsTerm struct {
	i0, i1 int
	f      float64
	sw     float64
	value  float64
}

// bracket returns the time nodes around t and the interpolation fraction.
func bracket(nodes []float64, t float64) (i0, i1 int, f float64, ok bool) {
	n := len(nodes)
	tol := 1e-9 * (nodes[n-1] - nodes[0])
	if t < nodes[0]-tol || t > nodes[n-1]+tol {
		return 0, 0, 0, false
	}
	i1 = sort.SearchFloat64s(nodes, t)
	if i1 >= n {
		return n - 1, n - 1, 0, true
	}
	if i1 == 0 || math.Abs(nodes[i1]-t) <= tol {
		return i1, i1, 0, true
	}
	i0 = i1 - 1
	return i0, i1, (t - nodes[i0]) / (nodes[i1] - nodes[i0]), true
}

// validateObservations checks the observations against the declared data
// sets.
func (m *Model) validateObservations(op string) error {
	if len(m.obs) == 0 {
		return newError(OrderingError, op, ErrObservationsNotSet, "")
	}
	for _, o := range m.obs {
		if m.dataGas.len() > 0 && !m.dataGas.has(o.Species) {
			return newError(DomainError, op, ErrUnknownIdentifier, "%s is not a data gas species", o.Species)
		}
		if m.dataAges.len() > 0 && !m.dataAges.has(o.Age) {
			return newError(DomainError, op, ErrUnknownIdentifier, "%s is not a data age", o.Age)
		}
		if m.dataTemps.len() > 0 && !m.dataTemps.has(o.Temp) {
			return newError(DomainError, op, ErrUnknownIdentifier, "%s is not a data temperature", o.Temp)
		}
		if err := m.checkObservationPoints(op, o.Z, o.Times); err != nil {
			return err
		}
	}
	return nil
}

// checkObservationPoints checks that z is an axial grid point in the axial
// data set and that every time lies in the time domain and in the temporal
// data set. A data set is only checked once it has been declared.
func (m *Model) checkObservationPoints(op string, z float64, times []float64) error {
	if _, ok := indexOf(m.disc.z, z); !ok {
		return newError(DomainError, op, ErrUnknownIdentifier, "z = %g is not an axial grid point", z)
	}
	if len(m.axialData) > 0 && !inPoints(m.axialData, z, m.axial.End-m.axial.Start) {
		return newError(DomainError, op, ErrUnknownIdentifier, "z = %g is not in the axial data set %v", z, m.axialData)
	}
	span := m.temporal.End - m.temporal.Start
	for _, t := range times {
		if t < m.temporal.Start-1e-9*span || t > m.temporal.End+1e-9*span {
			return newError(DomainError, op, ErrUnknownIdentifier, "t = %g is outside the time domain [%g, %g]",
				t, m.temporal.Start, m.temporal.End)
		}
		if len(m.temporalData) > 0 && !inPoints(m.temporalData, t, span) {
			return newError(DomainError, op, ErrUnknownIdentifier, "t = %g is not in the temporal data set", t)
		}
	}
	return nil
}

// inPoints reports whether v is within 1e-9·span of a point of s.
func inPoints(s []float64, v, span float64) bool {
	if len(s) == 0 {
		return false
	}
	return math.Abs(s[nearest(s, v)]-v) <= 1e-9*span
}

// objective builds the weighted least-squares objective over every
// observation.
func (m *Model) objective(op string) (*nlp.Objective, error) {
	if err := m.validateObservations(op); err != nil {
		return nil, err
	}
	d := m.disc
	var terms []obsTerm
	for _, o := range m.obs {
		k := o.key()
		s, _ := m.gas.idx(o.Species)
		sc, err := m.scenarioIndex(op, o.Age, o.Temp)
		if err != nil {
			return nil, err
		}
		iz, _ := indexOf(d.z, o.Z)
		sw := math.Sqrt(m.WeightFactor(o.Species, o.Age, o.Temp))
		for i, t := range o.Times {
			i0, i1, f, ok := bracket(d.t, t)
			if !ok {
				continue
			}
			w := sw
			if m.ignored(k, t) {
				w = 0
			}
			terms = append(terms, obsTerm{
				i0:    d.vi(famCb, s, sc, iz, i0),
				i1:    d.vi(famCb, s, sc, iz, i1),
				f:     f,
				sw:    w,
				value: o.Values[i],
			})
		}
	}
	return &nlp.Objective{
		N: len(terms),
		Residuals: func(x, dst []float64) {
			for i, t := range terms {
				sim := x[t.i0] + t.f*(x[t.i1]-x[t.i0])
				dst[i] = t.sw * (sim - t.value)
			}
		},
	}, nil
}

// ObjectiveValue returns Σ w (Cb_sim − observation)² at the current state.
func (m *Model) ObjectiveValue() (float64, error) {
	const op = "ObjectiveValue"
	if m.disc == nil {
		return 0, newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
	}
	o, err := m.objective(op)
	if err != nil {
		return 0, err
	}
	return o.Value(m.p.X), nil
}

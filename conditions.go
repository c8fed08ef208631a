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

	"github.com/aladshaw3/cats-sub001/science/transport"
	"github.com/aladshaw3/cats-sub001/tabular"
)

// target resolves the species and scenario of a condition.
func (m *Model) target(op, spec, age, temp string) (f family, s, sc int, err error) {
	if m.disc == nil {
		return 0, 0, 0, newError(OrderingError, op, ErrICBeforeDiscretization, "")
	}
	sc, err = m.scenarioIndex(op, age, temp)
	if err != nil {
		return 0, 0, 0, err
	}
	if i, ok := m.gas.idx(spec); ok {
		return famCb, i, sc, nil
	}
	if i, ok := m.surf.idx(spec); ok {
		return famQ, i, sc, nil
	}
	return 0, 0, 0, newError(DomainError, op, ErrUnknownIdentifier, "species %q", spec)
}

func (m *Model) gasTarget(op, spec, age, temp string) (s, sc int, err error) {
	f, s, sc, err := m.target(op, spec, age, temp)
	if err != nil {
		return 0, 0, err
	}
	if f != famCb {
		return 0, 0, newError(DomainError, op, ErrUnknownIdentifier, "%s is not a gas species", spec)
	}
	return s, sc, nil
}

func checkConcentration(op string, v float64) error {
	if v < 0 || math.IsNaN(v) {
		return newError(UnitError, op, ErrNegativeConcentration, "%g", v)
	}
	return nil
}

func (m *Model) checkTemperature(op string, sc int) error {
	if !m.tempSet[m.scenarioLabels(sc)] {
		l := m.scenarioLabels(sc)
		return newError(UnitError, op, ErrTemperatureNotSet, "scenario (%s, %s)", l.Age, l.Temp)
	}
	return nil
}

// setBC writes the inlet bulk concentration of gas species s at every
// time node.
func (m *Model) setBC(s, sc int, value func(it int) float64) {
	d := m.disc
	for it := 0; it < d.nt; it++ {
		m.p.X[d.vi(famCb, s, sc, 0, it)] = value(it)
	}
	l := m.scenarioLabels(sc)
	m.bcSet[speciesScenario{m.gas.names[s], l.Age, l.Temp}] = true
}

// SetConstBC fixes the inlet concentration [mol/L] of a gas species for
// all times.
func (m *Model) SetConstBC(spec, age, temp string, value float64) error {
	const op = "SetConstBC"
	s, sc, err := m.gasTarget(op, spec, age, temp)
	if err != nil {
		return err
	}
	if err := checkConcentration(op, value); err != nil {
		return err
	}
	delete(m.refresh, "bc:"+tupleKey(spec, age, temp))
	m.setBC(s, sc, func(int) float64 { return value })
	return nil
}

// SetConstBCInPPM fixes the inlet concentration of a gas species for all
// times, converting from ppm with the inlet temperature and pressure.
func (m *Model) SetConstBCInPPM(spec, age, temp string, ppm float64) error {
	return m.SetTimeDependentBCInPPM(spec, age, temp, nil, ppm)
}

// stepValue returns the value of the last point at or before t, or
// initial if there is none. points must be sorted by time.
func stepValue(points []tabular.Point, initial, t, tol float64) float64 {
	v := initial
	for _, p := range points {
		if p.Time > t+tol {
			break
		}
		v = p.Value
	}
	return v
}

func sortedPoints(op string, points []tabular.Point) ([]tabular.Point, error) {
	p := append([]tabular.Point(nil), points...)
	sort.SliceStable(p, func(i, j int) bool { return p[i].Time < p[j].Time })
	for _, v := range p {
		if err := checkConcentration(op, v.Value); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (m *Model) timeTolerance() float64 {
	return 1e-9 * (m.temporal.End - m.temporal.Start)
}

// SetTimeDependentBC sets the inlet concentration [mol/L] of a gas
// species to a step function: at each time node it takes the value of the
// last point at or before that time, or initial before the first point.
func (m *Model) SetTimeDependentBC(spec, age, temp string, points []tabular.Point, initial float64) error {
	const op = "SetTimeDependentBC"
	s, sc, err := m.gasTarget(op, spec, age, temp)
	if err != nil {
		return err
	}
	if err := checkConcentration(op, initial); err != nil {
		return err
	}
	p, err := sortedPoints(op, points)
	if err != nil {
		return err
	}
	delete(m.refresh, "bc:"+tupleKey(spec, age, temp))
	d, tol := m.disc, m.timeTolerance()
	m.setBC(s, sc, func(it int) float64 { return stepValue(p, initial, d.t[it], tol) })
	return nil
}

// SetTimeDependentBCInPPM is SetTimeDependentBC with values in ppm. The
// conversion uses the inlet temperature at each time node and is repeated
// before every solve.
func (m *Model) SetTimeDependentBCInPPM(spec, age, temp string, points []tabular.Point, initial float64) error {
	const op = "SetTimeDependentBCInPPM"
	s, sc, err := m.gasTarget(op, spec, age, temp)
	if err != nil {
		return err
	}
	if err := m.checkTemperature(op, sc); err != nil {
		return err
	}
	if err := checkConcentration(op, initial); err != nil {
		return err
	}
	p, err := sortedPoints(op, points)
	if err != nil {
		return err
	}
	d, tol := m.disc, m.timeTolerance()
	apply := func() {
		P := d.scen[sc].P
		m.setBC(s, sc, func(it int) float64 {
			T := m.p.X[d.vi(famT, 0, sc, 0, it)]
			return transport.PPMToMolar(stepValue(p, initial, d.t[it], tol), P, T)
		})
	}
	m.refreshScenarios()
	apply()
	m.refresh["bc:"+tupleKey(spec, age, temp)] = apply
	return nil
}

// setIC writes the initial value of a species at every axial node. The
// value also becomes the starting guess at later times. The inlet bulk
// concentration is left alone when a boundary condition has been set.
func (m *Model) setIC(f family, s, sc int, value func(iz int) float64) {
	d := m.disc
	l := m.scenarioLabels(sc)
	bc := f == famCb && m.bcSet[speciesScenario{m.gas.names[s], l.Age, l.Temp}]
	fams := []family{f}
	if f == famCb {
		fams = append(fams, famC)
	}
	for _, f := range fams {
		for iz := 0; iz < d.nz; iz++ {
			if f == famCb && iz == 0 && bc {
				continue
			}
			v := value(iz)
			for it := 0; it < d.nt; it++ {
				i := d.vi(f, s, sc, iz, it)
				if it == 0 || !m.p.Fixed[i] {
					m.p.X[i] = v
				}
			}
		}
	}
}

// SetConstIC sets the initial concentration [mol/L] of a gas or surface
// species at every axial position. For gas species both the bulk and pore
// concentrations are set.
func (m *Model) SetConstIC(spec, age, temp string, value float64) error {
	const op = "SetConstIC"
	f, s, sc, err := m.target(op, spec, age, temp)
	if err != nil {
		return err
	}
	if err := checkConcentration(op, value); err != nil {
		return err
	}
	delete(m.refresh, "ic:"+tupleKey(spec, age, temp))
	m.setIC(f, s, sc, func(int) float64 { return value })
	return nil
}

// SetConstICInPPM sets the initial concentration of a gas species in ppm,
// converted with the initial temperature at each axial position.
func (m *Model) SetConstICInPPM(spec, age, temp string, ppm float64) error {
	const op = "SetConstICInPPM"
	s, sc, err := m.gasTarget(op, spec, age, temp)
	if err != nil {
		return err
	}
	if err := m.checkTemperature(op, sc); err != nil {
		return err
	}
	if err := checkConcentration(op, ppm); err != nil {
		return err
	}
	d := m.disc
	apply := func() {
		P := d.scen[sc].P
		m.setIC(famCb, s, sc, func(iz int) float64 {
			return transport.PPMToMolar(ppm, P, m.p.X[d.vi(famT, 0, sc, iz, 0)])
		})
	}
	m.refreshScenarios()
	apply()
	m.refresh["ic:"+tupleKey(spec, age, temp)] = apply
	return nil
}

func (m *Model) scenarioTarget(op, age, temp string, T float64) (int, error) {
	if m.disc == nil {
		return 0, newError(OrderingError, op, ErrICBeforeDiscretization, "")
	}
	sc, err := m.scenarioIndex(op, age, temp)
	if err != nil {
		return 0, err
	}
	if !(T > 0) || math.IsInf(T, 0) {
		return 0, newError(UnitError, op, ErrTemperatureNotSet, "temperature must be positive, got %g", T)
	}
	return sc, nil
}

// setGasTemperature sets the gas temperature imposed at time node it:
// everywhere for an isothermal model, at the inlet otherwise.
func (m *Model) setGasTemperature(sc, it int, T float64) {
	d := m.disc
	if m.energy == nil {
		for iz := 0; iz < d.nz; iz++ {
			m.p.X[d.vi(famT, 0, sc, iz, it)] = T
		}
		return
	}
	m.p.X[d.vi(famT, 0, sc, 0, it)] = T
}

// SetIsothermalTemp sets the temperature [K] of a scenario at every
// position and time. With energy balances it also sets the initial gas,
// solid and wall temperatures, which become the starting guesses at later
// times.
func (m *Model) SetIsothermalTemp(age, temp string, T float64) error {
	sc, err := m.scenarioTarget("SetIsothermalTemp", age, temp, T)
	if err != nil {
		return err
	}
	d := m.disc
	fams := []family{famT}
	if m.energy != nil {
		fams = append(fams, famTs, famTw)
	}
	for _, f := range fams {
		for iz := 0; iz < d.nz; iz++ {
			for it := 0; it < d.nt; it++ {
				m.p.X[d.vi(f, 0, sc, iz, it)] = T
			}
		}
	}
	m.tempSet[scenario{age, temp}] = true
	return nil
}

// SetIsothermalTempAll sets the temperature of every scenario.
func (m *Model) SetIsothermalTempAll(T float64) error {
	for _, a := range m.ages.names {
		for _, t := range m.temps.names {
			if err := m.SetIsothermalTemp(a, t, T); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetInletTemperature sets the inlet gas temperature of a scenario for
// all times. For an isothermal model it is the same as SetIsothermalTemp.
func (m *Model) SetInletTemperature(age, temp string, T float64) error {
	if m.energy == nil {
		return m.SetIsothermalTemp(age, temp, T)
	}
	sc, err := m.scenarioTarget("SetInletTemperature", age, temp, T)
	if err != nil {
		return err
	}
	for it := 0; it < m.disc.nt; it++ {
		m.setGasTemperature(sc, it, T)
	}
	m.tempSet[scenario{age, temp}] = true
	return nil
}

// SetTemperatureRamp changes the imposed temperature linearly from its
// value at time start to end [K] at time stop, and holds it at end
// afterwards.
func (m *Model) SetTemperatureRamp(age, temp string, start, stop, end float64) error {
	const op = "SetTemperatureRamp"
	sc, err := m.scenarioTarget(op, age, temp, end)
	if err != nil {
		return err
	}
	if err := m.checkTemperature(op, sc); err != nil {
		return err
	}
	if !(stop > start) {
		return newError(DomainError, op, ErrUnknownIdentifier, "ramp end %g must be after its start %g", stop, start)
	}
	d := m.disc
	tol := m.timeTolerance()
	T0 := m.p.X[d.vi(famT, 0, sc, 0, 0)]
	for it, t := range d.t {
		if t <= start+tol {
			T0 = m.p.X[d.vi(famT, 0, sc, 0, it)]
		}
	}
	for it, t := range d.t {
		switch {
		case t <= start+tol:
		case t >= stop-tol:
			m.setGasTemperature(sc, it, end)
		default:
			m.setGasTemperature(sc, it, T0+(end-T0)*(t-start)/(stop-start))
		}
	}
	return nil
}

// SetTemperatureFromData imposes a temperature program [K] measured at a
// few axial positions. data maps column names to time series and zmap maps
// the same names to sensor positions [cm]. At each time node the sensor
// values are interpolated linearly in time, and the profile between
// sensors is interpolated linearly in z and held constant beyond the first
// and last sensor. With energy balances only the inlet gas temperature is
// imposed after t0.
func (m *Model) SetTemperatureFromData(age, temp string, data map[string][]tabular.Point, zmap map[string]float64) error {
	const op = "SetTemperatureFromData"
	if len(zmap) == 0 {
		return newError(DomainError, op, ErrUnknownIdentifier, "no temperature sensors")
	}
	var sensors []tempSensor
	for name, z := range zmap {
		pts, ok := data[name]
		if !ok || len(pts) == 0 {
			return newError(DomainError, op, ErrUnknownIdentifier, "no temperature data for sensor %q", name)
		}
		if z < m.axial.Start || z > m.axial.End {
			return newError(DomainError, op, ErrUnknownIdentifier, "sensor %q at z = %g is outside the axial domain", name, z)
		}
		p := append([]tabular.Point(nil), pts...)
		sort.SliceStable(p, func(i, j int) bool { return p[i].Time < p[j].Time })
		for _, v := range p {
			if !(v.Value > 0) || math.IsInf(v.Value, 0) {
				return newError(UnitError, op, ErrTemperatureNotSet, "sensor %q: temperature must be positive, got %g", name, v.Value)
			}
		}
		sensors = append(sensors, tempSensor{z: z, points: p})
	}
	sort.Slice(sensors, func(i, j int) bool { return sensors[i].z < sensors[j].z })
	sc, err := m.scenarioTarget(op, age, temp, sensors[0].points[0].Value)
	if err != nil {
		return err
	}
	d := m.disc
	profile := make([]tabular.Point, len(sensors))
	for it, t := range d.t {
		for i, s := range sensors {
			profile[i] = tabular.Point{Time: s.z, Value: interpolate(s.points, t)}
		}
		for iz, z := range d.z {
			if m.energy != nil && iz > 0 && it > 0 {
				break
			}
			T := interpolate(profile, z)
			m.p.X[d.vi(famT, 0, sc, iz, it)] = T
			if m.energy != nil && it == 0 {
				m.p.X[d.vi(famTs, 0, sc, iz, it)] = T
				m.p.X[d.vi(famTw, 0, sc, iz, it)] = T
			}
		}
	}
	m.tempSet[scenario{age, temp}] = true
	return nil
}

// tempSensor is a temperature time series at axial position z.
type tempSensor struct {
	z      float64
	points []tabular.Point
}

// interpolate evaluates piecewise-linear data at t, holding the end values
// outside the data. p must be sorted by Time, which may hold any abscissa.
func interpolate(p []tabular.Point, t float64) float64 {
	if t <= p[0].Time {
		return p[0].Value
	}
	for i := 1; i < len(p); i++ {
		if t <= p[i].Time {
			a, b := p[i-1], p[i]
			if b.Time == a.Time {
				return b.Value
			}
			return a.Value + (b.Value-a.Value)*(t-a.Time)/(b.Time-a.Time)
		}
	}
	return p[len(p)-1].Value
}

// checkConditions verifies that every scenario has a temperature and that
// every gas species has an inlet condition.
func (m *Model) checkConditions(op string) error {
	for sc := 0; sc < m.disc.nsc; sc++ {
		l := m.scenarioLabels(sc)
		if !m.tempSet[l] {
			return newError(UnitError, op, ErrTemperatureNotSet, "scenario (%s, %s)", l.Age, l.Temp)
		}
		for _, g := range m.gas.names {
			if !m.bcSet[speciesScenario{g, l.Age, l.Temp}] {
				return newError(OrderingError, op, ErrBoundaryNotSet, "%s in scenario (%s, %s)", g, l.Age, l.Temp)
			}
		}
	}
	return nil
}

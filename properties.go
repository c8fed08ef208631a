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
	"github.com/aladshaw3/cats-sub001/science/transport"
)

// scenarioConstants holds the per-scenario quantities that the residuals
// read. They are refreshed by prepare before every solve so that
// operating conditions may change after discretization.
type scenarioConstants struct {
	P, sv float64

	// mbar is the mean molar mass of the inlet stream. It is not updated
	// as the composition changes.
	mbar float64

	smax []float64 // by site
}

// mixture holds the inlet composition used for mixture properties.
type mixture struct {
	x    []float64 // mole fractions; the last element is the carrier gas
	laws []transport.Sutherland
	mbar float64
}

func (m *Model) inletMixture() mixture {
	var mx mixture
	var sum float64
	for _, name := range m.gas.names {
		x := m.moleFrac[name]
		if x == 0 {
			continue
		}
		g := m.species[name]
		mx.x = append(mx.x, x)
		mx.laws = append(mx.laws, g.Viscosity)
		mx.mbar += x * g.MolarMass
		sum += x
	}
	mx.x = append(mx.x, 1-sum)
	mx.laws = append(mx.laws, m.Carrier.Viscosity)
	mx.mbar += (1 - sum) * m.Carrier.MolarMass
	return mx
}

// refreshScenarios recomputes the per-scenario constants.
func (m *Model) refreshScenarios() {
	d := m.disc
	mx := m.inletMixture()
	d.mix = mx
	d.scen = make([]scenarioConstants, d.nsc)
	for sc := range d.scen {
		l := m.scenarioLabels(sc)
		c := scenarioConstants{
			P:    m.pressureOf(l),
			sv:   m.sv[l],
			mbar: mx.mbar,
			smax: make([]float64, m.sites.len()),
		}
		for i, site := range m.sites.names {
			c.smax[i] = m.smax[[2]string{site, l.Age}]
		}
		d.scen[sc] = c
	}
}

// pointTransport holds the gas properties at one (z, t) point.
type pointTransport struct {
	T, P   float64
	v      float64 // interstitial velocity [cm/min]
	rho    float64 // density [g/cm³]
	mu     float64 // viscosity [g/cm/min]
	re, sc float64
	dm     float64 // molecular diffusivity [cm²/min]
	km     float64 // mass-transfer coefficient [cm/min]
}

// transportAt evaluates the gas properties and the mass-transfer
// coefficient of gas species s at scenario sc and temperature T.
func (m *Model) transportAt(sc, s int, T float64) pointTransport {
	d := m.disc
	c := d.scen[sc]
	o := pointTransport{T: T, P: c.P}
	o.v = m.Bed.Velocity(c.sv, T, c.P, m.RefTemperature, m.RefPressure)
	o.rho = transport.Density(c.P, T, c.mbar)
	o.mu = transport.MixtureViscosity(T, d.mix.x, d.mix.laws)
	o.re = transport.Reynolds(o.rho, o.v, m.Bed.HydraulicDiameter(), o.mu)
	o.dm = m.species[m.gas.names[s]].Diffusivity.At(T, c.P)
	o.sc = transport.Schmidt(o.mu, o.rho, o.dm)
	o.km = m.Bed.MassTransfer(m.Bed.Sherwood(o.re, o.sc), o.dm)
	return o
}

// Velocity returns the interstitial gas velocity [cm/min] of a scenario
// at temperature T.
func (m *Model) Velocity(age, temp string, T float64) (float64, error) {
	if _, err := m.scenarioIndex("Velocity", age, temp); err != nil {
		return 0, err
	}
	l := scenario{age, temp}
	return m.Bed.Velocity(m.sv[l], T, m.pressureOf(l), m.RefTemperature, m.RefPressure), nil
}

// MassTransferCoefficient returns k_m [cm/min] of a gas species in a
// scenario at temperature T. The model must be discretized.
func (m *Model) MassTransferCoefficient(species, age, temp string, T float64) (float64, error) {
	const op = "MassTransferCoefficient"
	if m.disc == nil {
		return 0, newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
	}
	sc, err := m.scenarioIndex(op, age, temp)
	if err != nil {
		return 0, err
	}
	s, ok := m.gas.idx(species)
	if !ok {
		return 0, newError(DomainError, op, ErrUnknownIdentifier, "gas species %q", species)
	}
	m.refreshScenarios()
	return m.transportAt(sc, s, T).km, nil
}

// validateTransport checks that every gas species has the parameters
// needed by the correlations and that the correlations are
// dimensionally consistent.
func (m *Model) validateTransport(op string) error {
	for _, name := range m.gas.names {
		g := m.species[name]
		if !g.Viscosity.Valid() {
			return newError(DomainError, op, ErrMissingTransportParameter, "no viscosity reference for %s", name)
		}
		if !g.Diffusivity.Valid() {
			return newError(DomainError, op, ErrMissingTransportParameter, "no diffusivity reference for %s", name)
		}
		if !(g.MolarMass > 0) {
			return newError(DomainError, op, ErrMissingTransportParameter, "no molar mass for %s", name)
		}
	}
	if !m.Carrier.Viscosity.Valid() || !(m.Carrier.MolarMass > 0) {
		return newError(DomainError, op, ErrMissingTransportParameter, "carrier gas %s is not parameterized", m.Carrier.Name)
	}
	if err := m.Bed.Validate(); err != nil {
		return newError(DomainError, op, ErrMissingTransportParameter, "%v", err)
	}
	if !(m.WashcoatPorosity > 0 && m.WashcoatPorosity <= 1) {
		return newError(DomainError, op, ErrMissingTransportParameter, "washcoat porosity must be in (0, 1], got %g", m.WashcoatPorosity)
	}
	if m.gas.len() > 0 {
		T, P := m.RefTemperature, m.RefPressure
		mx := m.inletMixture()
		rho := transport.Density(P, T, mx.mbar)
		mu := transport.MixtureViscosity(T, mx.x, mx.laws)
		dm := m.species[m.gas.names[0]].Diffusivity.At(T, P)
		v := m.Bed.Velocity(1, T, P, T, P)
		if err := transport.CheckDimensions(rho, v, m.Bed.HydraulicDiameter(), mu, dm, m.Bed.Area()); err != nil {
			return newError(UnitError, op, ErrMissingTransportParameter, "%v", err)
		}
	}
	return nil
}

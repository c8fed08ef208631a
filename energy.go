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
	"github.com/aladshaw3/cats-sub001/nlp"
	"github.com/aladshaw3/cats-sub001/science/kinetics"
	"github.com/aladshaw3/cats-sub001/science/transport"
)

// EnergyParameters holds the thermal properties of the gas, the catalyst
// solid and the reactor wall.
type EnergyParameters struct {
	// GasHeatCapacity is cp_g(T) [J/g/K].
	GasHeatCapacity transport.HeatCapacity `json:"gas_heat_capacity"`

	// GasConductivity [J/cm/min/K] and Nusselt give the gas-solid heat
	// transfer coefficient h = Nu·k_g/d_h.
	GasConductivity float64 `json:"gas_conductivity"`
	Nusselt         float64 `json:"nusselt"`

	SolidDensity      float64 `json:"solid_density"`       // [g/cm³]
	SolidHeatCapacity float64 `json:"solid_heat_capacity"` // [J/g/K]
	SolidConductivity float64 `json:"solid_conductivity"`  // [J/cm/min/K]

	WallDensity      float64 `json:"wall_density"`       // [g/cm³]
	WallHeatCapacity float64 `json:"wall_heat_capacity"` // [J/g/K]
	WallConductivity float64 `json:"wall_conductivity"`  // [J/cm/min/K]

	// WallExchange U_sw and AmbientExchange U_amb are volumetric heat
	// transfer coefficients [J/cm³/min/K].
	WallExchange    float64 `json:"wall_exchange"`
	AmbientExchange float64 `json:"ambient_exchange"`

	// ReactorVolume and WallVolume [cm³] scale the heat the wall receives
	// from the solid.
	ReactorVolume float64 `json:"reactor_volume"`
	WallVolume    float64 `json:"wall_volume"`
}

// DefaultEnergyParameters returns properties of a cordierite monolith in a
// quartz tube with an air-like gas.
func DefaultEnergyParameters() EnergyParameters {
	return EnergyParameters{
		GasHeatCapacity:   transport.HeatCapacity{0.9646, 6.8e-5},
		GasConductivity:   1.5e-2,
		Nusselt:           3.66,
		SolidDensity:      2.3,
		SolidHeatCapacity: 1.05,
		SolidConductivity: 0.15,
		WallDensity:       2.2,
		WallHeatCapacity:  0.75,
		WallConductivity:  0.84,
		WallExchange:      0.5,
		AmbientExchange:   0.05,
		ReactorVolume:     1,
		WallVolume:        0.5,
	}
}

func (e EnergyParameters) validate(op string) error {
	for _, v := range []struct {
		name string
		v    float64
	}{
		{"gas conductivity", e.GasConductivity},
		{"Nusselt number", e.Nusselt},
		{"solid density", e.SolidDensity},
		{"solid heat capacity", e.SolidHeatCapacity},
		{"wall density", e.WallDensity},
		{"wall heat capacity", e.WallHeatCapacity},
		{"reactor volume", e.ReactorVolume},
		{"wall volume", e.WallVolume},
	} {
		if !(v.v > 0) {
			return newError(UnitError, op, ErrMissingTransportParameter, "%s must be positive, got %g", v.name, v.v)
		}
	}
	if len(e.GasHeatCapacity) == 0 {
		return newError(UnitError, op, ErrMissingTransportParameter, "no gas heat capacity polynomial")
	}
	return nil
}

// EnableEnergyBalance makes the model non-isothermal by adding gas, solid
// and wall temperatures. It must be called before BuildConstraints.
func (m *Model) EnableEnergyBalance(e EnergyParameters) error {
	const op = "EnableEnergyBalance"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	if err := e.validate(op); err != nil {
		return err
	}
	m.energy = &e
	return nil
}

// Isothermal reports whether the energy balances are disabled.
func (m *Model) Isothermal() bool { return m.energy == nil }

// SetAmbientTemperature sets T∞ [K] of a scenario. By default the ambient
// temperature follows the inlet gas temperature.
func (m *Model) SetAmbientTemperature(age, temp string, T float64) error {
	const op = "SetAmbientTemperature"
	if _, err := m.scenarioIndex(op, age, temp); err != nil {
		return err
	}
	if !(T > 0) {
		return newError(UnitError, op, ErrTemperatureNotSet, "temperature must be positive, got %g", T)
	}
	m.ambient[scenario{age, temp}] = T
	return nil
}

// addEnergyBalances writes the gas, solid and wall energy balances of
// every scenario at every time node after the first.
func (m *Model) addEnergyBalances() {
	d := m.disc
	for sc := 0; sc < d.nsc; sc++ {
		for it := 1; it < d.nt; it++ {
			for iz := 0; iz < d.nz; iz++ {
				pt := point{sc: sc, iz: iz, it: it, block: d.block(sc, it)}
				if iz > 0 {
					m.p.AddConstraint(m.gasEnergy(pt))
				}
				m.p.AddConstraint(m.solidEnergy(pt))
				m.p.AddConstraint(m.wallEnergy(pt))
			}
		}
	}
}

// heatTransfer returns h·a_gs [J/cm³/min/K].
func (m *Model) heatTransfer() float64 {
	e := m.energy
	h := e.Nusselt * e.GasConductivity / m.Bed.HydraulicDiameter()
	return h * m.Bed.HeatExchangeArea()
}

// gasEnergy is ρ cp_g (∂T_g/∂t + v ∂T_g/∂z) − h a_gs (T_s − T_g) = 0.
func (m *Model) gasEnergy(pt point) nlp.Constraint {
	d := m.disc
	sc, iz, it := pt.sc, pt.iz, pt.it
	tg := d.vi(famT, 0, sc, iz, it)
	ts := d.vi(famTs, 0, sc, iz, it)
	vars := []int{tg, ts}
	vars = append(vars, d.axialVars(d.dz[iz], famT, 0, sc, it)...)
	vars = append(vars, d.timeVars(d.dt[it], famT, 0, sc, iz)...)
	ha := m.heatTransfer()
	return nlp.Constraint{
		Name:  "gas energy:" + m.name(famT, 0, pt),
		Vars:  unique(vars),
		Block: pt.block,
		Eval: func(x []float64) float64 {
			T := x[tg]
			c := d.scen[sc]
			rho := transport.Density(c.P, T, c.mbar)
			v := m.Bed.Velocity(c.sv, T, c.P, m.RefTemperature, m.RefPressure)
			cp := m.energy.GasHeatCapacity.At(T)
			return rho*cp*(d.ddt(x, false, famT, 0, sc, iz, it)+v*d.ddz(x, famT, 0, sc, iz, it)) -
				ha*(x[ts]-T)
		},
	}
}

// reactionHeat returns (1−ε_b)·10⁻³ Σ (−ΔH) r·mask [J/cm³/min].
func (m *Model) reactionHeat(x []float64, sc, iz, it int) float64 {
	d := m.disc
	var q float64
	for i := range d.rxns {
		cr := &d.rxns[i]
		mask := cr.r.mask(d.z[iz])
		if mask == 0 {
			continue
		}
		dh := x[cr.r.param[kinetics.DH]]
		q += -dh * m.rate(cr, x, sc, iz, it) * mask
	}
	return (1 - m.Bed.BulkPorosity) * 1e-3 * q
}

// endpoint reports whether iz is the first or last axial node.
func (d *discretization) endpoint(iz int) bool {
	return iz == 0 || iz == d.nz-1
}

// solidEnergy is
//
//	(1−ε_b) ρ_s cp_s ∂T_s/∂t − (1−ε_b) k_s ∂²T_s/∂z² + ε_b h a_gs (T_s − T_g)
//	  + U_sw (T_s − T_w) − reaction heat = 0
//
// in the interior and ∂T_s/∂z = 0 at both ends.
func (m *Model) solidEnergy(pt point) nlp.Constraint {
	d := m.disc
	sc, iz, it := pt.sc, pt.iz, pt.it
	ts := d.vi(famTs, 0, sc, iz, it)
	name := "solid energy:" + m.name(famTs, 0, pt)
	if d.endpoint(iz) {
		return nlp.Constraint{
			Name:  name,
			Vars:  unique(d.axialVars(d.dz[iz], famTs, 0, sc, it)),
			Block: pt.block,
			Eval: func(x []float64) float64 {
				return d.ddz(x, famTs, 0, sc, iz, it)
			},
		}
	}
	tg := d.vi(famT, 0, sc, iz, it)
	tw := d.vi(famTw, 0, sc, iz, it)
	vars := []int{ts, tg, tw}
	vars = append(vars, d.axialVars(d.dz2[iz], famTs, 0, sc, it)...)
	vars = append(vars, d.timeVars(d.dt[it], famTs, 0, sc, iz)...)
	vars = append(vars, m.rateVars("", sc, iz, it)...)
	for _, cr := range d.rxns {
		vars = append(vars, cr.r.param[kinetics.DH])
	}
	e := m.energy
	eb := m.Bed.BulkPorosity
	ha := m.heatTransfer()
	return nlp.Constraint{
		Name:  name,
		Vars:  unique(vars),
		Block: pt.block,
		Eval: func(x []float64) float64 {
			return (1-eb)*e.SolidDensity*e.SolidHeatCapacity*d.ddt(x, false, famTs, 0, sc, iz, it) -
				(1-eb)*e.SolidConductivity*d.d2dz2(x, famTs, 0, sc, iz, it) +
				eb*ha*(x[ts]-x[tg]) +
				e.WallExchange*(x[ts]-x[tw]) -
				m.reactionHeat(x, sc, iz, it)
		},
	}
}

// wallEnergy is
//
//	ρ_w cp_w ∂T_w/∂t − k_w ∂²T_w/∂z² − U_sw (V_r/V_w)(T_s − T_w) + U_amb (T_w − T∞) = 0
//
// in the interior and ∂T_w/∂z = 0 at both ends.
func (m *Model) wallEnergy(pt point) nlp.Constraint {
	d := m.disc
	sc, iz, it := pt.sc, pt.iz, pt.it
	tw := d.vi(famTw, 0, sc, iz, it)
	name := "wall energy:" + m.name(famTw, 0, pt)
	if d.endpoint(iz) {
		return nlp.Constraint{
			Name:  name,
			Vars:  unique(d.axialVars(d.dz[iz], famTw, 0, sc, it)),
			Block: pt.block,
			Eval: func(x []float64) float64 {
				return d.ddz(x, famTw, 0, sc, iz, it)
			},
		}
	}
	ts := d.vi(famTs, 0, sc, iz, it)
	inlet := d.vi(famT, 0, sc, 0, it)
	vars := []int{tw, ts, inlet}
	vars = append(vars, d.axialVars(d.dz2[iz], famTw, 0, sc, it)...)
	vars = append(vars, d.timeVars(d.dt[it], famTw, 0, sc, iz)...)
	e := m.energy
	l := m.scenarioLabels(sc)
	return nlp.Constraint{
		Name:  name,
		Vars:  unique(vars),
		Block: pt.block,
		Eval: func(x []float64) float64 {
			tinf, ok := m.ambient[l]
			if !ok {
				tinf = x[inlet]
			}
			return e.WallDensity*e.WallHeatCapacity*d.ddt(x, false, famTw, 0, sc, iz, it) -
				e.WallConductivity*d.d2dz2(x, famTw, 0, sc, iz, it) -
				e.WallExchange*(e.ReactorVolume/e.WallVolume)*(x[ts]-x[tw]) +
				e.AmbientExchange*(x[tw]-tinf)
		},
	}
}

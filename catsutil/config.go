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

package catsutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	cats "github.com/aladshaw3/cats-sub001"
	"github.com/aladshaw3/cats-sub001/science/kinetics"
	"github.com/aladshaw3/cats-sub001/science/transport"
	"github.com/aladshaw3/cats-sub001/tabular"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// ReactorConfig describes the catalyst bed and the simulated domain.
type ReactorConfig struct {
	// Geometry is "monolith" or "packed_bed".
	Geometry         string
	Length           float64 // [cm]
	Duration         float64 // [min]
	BulkPorosity     float64
	WashcoatPorosity float64
	CellDensity      float64 // [cells/cm²]
	ParticleDiameter float64 // [cm]
	SpecificArea     float64 // [1/cm]

	// SensorPositions [cm] are added to the axial grid. The positions of
	// scenario data are added to them.
	SensorPositions []float64
}

// SpeciesConfig holds the properties of a gas species.
type SpeciesConfig struct {
	Name         string
	MolarMass    float64 // [g/mol]
	MoleFraction float64 // inlet mole fraction

	// Sutherland viscosity law.
	ViscosityRef, ViscosityTRef, SutherlandS float64

	// Diffusivity [cm²/s] at the reference state.
	DiffusivityRef, DiffusivityTRef, DiffusivityPRef float64
}

func (s SpeciesConfig) gasSpecies() cats.GasSpecies {
	return cats.GasSpecies{
		Name:      s.Name,
		MolarMass: s.MolarMass,
		Viscosity: transport.Sutherland{MuRef: s.ViscosityRef, TRef: s.ViscosityTRef, S: s.SutherlandS},
		Diffusivity: transport.Diffusivity{
			DRef: s.DiffusivityRef, TRef: s.DiffusivityTRef, PRef: s.DiffusivityPRef,
		},
	}
}

// SiteConfig describes a surface site.
type SiteConfig struct {
	Name string

	// Density maps catalyst ages to the site density [mol/L].
	Density map[string]float64

	// Terms maps surface species to their site occupancy.
	Terms map[string]float64
}

// ReactionConfig describes a reaction.
type ReactionConfig struct {
	ID string

	// Family is "Arrhenius" or "EquilibriumArrhenius".
	Family string

	Parameters, Reactants, Products, Orders map[string]float64

	// Contributions overrides the molar contribution of species.
	Contributions map[string]float64

	// Zone, when given as [a, b], restricts the reaction to that
	// axial interval.
	Zone []float64

	// Free lists the parameters to estimate. Every other parameter is
	// held fixed.
	Free []string

	// Bounds maps parameters to [lower, upper].
	Bounds map[string][]float64
}

// ScenarioConfig describes the operating conditions and data of one
// (age, temperature) pair.
type ScenarioConfig struct {
	Age, Temperature string

	Pressure      float64 // [kPa]
	SpaceVelocity float64 // [1/min]

	// T is the initial (or constant) temperature [K].
	T float64

	// A temperature ramp to RampEnd [K] between RampStart and RampStop
	// [min] is applied when RampStop > RampStart.
	RampStart, RampStop, RampEnd float64

	// TemperatureFile is a table of measured temperatures imposing the
	// temperature program. TemperatureZ maps its columns to sensor
	// positions [cm]. Without TemperatureZ its "T" column applies to the
	// whole bed.
	TemperatureFile string
	TemperatureZ    map[string]float64

	// InletPPM and InitialPPM map gas species to constant inlet and
	// initial concentrations [ppm].
	InletPPM, InitialPPM map[string]float64

	// InletFile is a table of inlet step changes [ppm] by species.
	InletFile string

	// SurfaceIC maps surface species to initial values [mol/L].
	SurfaceIC map[string]float64

	// DataFile is a table of observed concentrations [ppm] by species at
	// axial position DataZ (the outlet when zero). DataFactor keeps
	// every n-th row.
	DataFile   string
	DataZ      float64
	DataFactor int
}

// Config is a reactor model description.
type Config struct {
	Reactor        ReactorConfig
	Carrier        SpeciesConfig
	Species        []SpeciesConfig
	SurfaceSpecies []string
	Sites          []SiteConfig
	Reactions      []ReactionConfig
	Scenarios      []ScenarioConfig

	// Energy enables the energy balances when Enabled is true.
	Energy EnergyConfig
}

// EnergyConfig holds the thermal properties. Zero values take the
// defaults of cats.DefaultEnergyParameters.
type EnergyConfig struct {
	Enabled bool
	cats.EnergyParameters `mapstructure:",squash"`
}

// ReadConfig reads the model description from cfg.
func ReadConfig(cfg *viper.Viper) (*Config, error) {
	c := new(Config)
	for name, v := range map[string]interface{}{
		"Reactor":        &c.Reactor,
		"Carrier":        &c.Carrier,
		"Species":        &c.Species,
		"SurfaceSpecies": &c.SurfaceSpecies,
		"Sites":          &c.Sites,
		"Reactions":      &c.Reactions,
		"Scenarios":      &c.Scenarios,
		"Energy":         &c.Energy,
	} {
		if !cfg.IsSet(name) {
			continue
		}
		if err := cfg.UnmarshalKey(name, v); err != nil {
			return nil, fmt.Errorf("catsutil: reading configuration %s: %v", name, err)
		}
	}
	if len(c.Species) == 0 {
		return nil, fmt.Errorf("catsutil: the configuration has no Species")
	}
	if len(c.Scenarios) == 0 {
		return nil, fmt.Errorf("catsutil: the configuration has no Scenarios")
	}
	return c, nil
}

// energyParameters fills unset values with defaults.
func (e EnergyConfig) energyParameters() cats.EnergyParameters {
	d := cats.DefaultEnergyParameters()
	p := e.EnergyParameters
	if len(p.GasHeatCapacity) == 0 {
		p.GasHeatCapacity = d.GasHeatCapacity
	}
	for _, f := range []struct{ v, d *float64 }{
		{&p.GasConductivity, &d.GasConductivity},
		{&p.Nusselt, &d.Nusselt},
		{&p.SolidDensity, &d.SolidDensity},
		{&p.SolidHeatCapacity, &d.SolidHeatCapacity},
		{&p.SolidConductivity, &d.SolidConductivity},
		{&p.WallDensity, &d.WallDensity},
		{&p.WallHeatCapacity, &d.WallHeatCapacity},
		{&p.WallConductivity, &d.WallConductivity},
		{&p.WallExchange, &d.WallExchange},
		{&p.AmbientExchange, &d.AmbientExchange},
		{&p.ReactorVolume, &d.ReactorVolume},
		{&p.WallVolume, &d.WallVolume},
	} {
		if *f.v == 0 {
			*f.v = *f.d
		}
	}
	return p
}

func (c *Config) ages() []string {
	var o []string
	seen := make(map[string]bool)
	for _, s := range c.Scenarios {
		if !seen[s.Age] {
			o = append(o, s.Age)
			seen[s.Age] = true
		}
	}
	return o
}

func (c *Config) temperatures() []string {
	var o []string
	seen := make(map[string]bool)
	for _, s := range c.Scenarios {
		if !seen[s.Temperature] {
			o = append(o, s.Temperature)
			seen[s.Temperature] = true
		}
	}
	return o
}

// sensors returns the sensor positions and the positions of the scenario
// data.
func (c *Config) sensors() []float64 {
	o := append([]float64(nil), c.Reactor.SensorPositions...)
	for _, s := range c.Scenarios {
		if s.DataFile != "" {
			o = append(o, c.dataZ(s))
		}
	}
	return o
}

// dataZ returns the axial position of the data of s.
func (c *Config) dataZ(s ScenarioConfig) float64 {
	if s.DataZ == 0 {
		return c.Reactor.Length
	}
	return s.DataZ
}

// Model declares, builds and discretizes a model from the configuration
// and sets its conditions and observations.
func (c *Config) Model(opts cats.DiscretizationOptions, log logrus.FieldLogger) (*cats.Model, error) {
	m := cats.New()
	if log != nil {
		m.Log = log
	}
	if err := c.declare(m); err != nil {
		return nil, err
	}
	if err := m.BuildConstraints(); err != nil {
		return nil, err
	}
	if err := m.Discretize(opts); err != nil {
		return nil, err
	}
	if err := c.conditions(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *Config) declare(m *cats.Model) error {
	r := c.Reactor
	geom, err := transport.ParseGeometry(r.Geometry)
	if err != nil {
		return err
	}
	m.Bed = transport.Bed{
		Geometry:         geom,
		BulkPorosity:     r.BulkPorosity,
		CellDensity:      r.CellDensity,
		ParticleDiameter: r.ParticleDiameter,
		SpecificArea:     r.SpecificArea,
	}
	if r.WashcoatPorosity > 0 {
		m.WashcoatPorosity = r.WashcoatPorosity
	}
	if c.Carrier.Name != "" {
		m.Carrier = c.Carrier.gasSpecies()
	}
	if c.Energy.Enabled {
		if err := m.EnableEnergyBalance(c.Energy.energyParameters()); err != nil {
			return err
		}
	}
	x := make(map[string]float64)
	var names []string
	for _, s := range c.Species {
		names = append(names, s.Name)
		if s.MoleFraction > 0 {
			x[s.Name] = s.MoleFraction
		}
	}
	var sites []string
	for _, s := range c.Sites {
		sites = append(sites, s.Name)
	}
	for _, f := range []func() error{
		func() error { return m.AddAxialDim(0, r.Length) },
		func() error { return m.AddTemporalDim(0, r.Duration) },
		func() error { return m.AddAxialDataset(c.sensors()...) },
		func() error { return m.AddAgeSet(c.ages()...) },
		func() error { return m.AddTemperatureSet(c.temperatures()...) },
		func() error { return m.AddGasSpecies(names...) },
		func() error { return m.AddSurfaceSpecies(c.SurfaceSpecies...) },
		func() error { return m.AddSurfaceSites(sites...) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	for _, s := range c.Species {
		if err := m.SetSpeciesProperties(s.gasSpecies()); err != nil {
			return err
		}
	}
	if err := m.SetInletMoleFractions(x); err != nil {
		return err
	}
	for _, s := range c.Sites {
		for age, v := range s.Density {
			if err := m.SetSiteDensity(s.Name, age, v); err != nil {
				return err
			}
		}
		if err := m.SetSiteBalanceTerms(s.Name, s.Terms); err != nil {
			return err
		}
	}
	for _, rc := range c.Reactions {
		if err := declareReaction(m, rc); err != nil {
			return err
		}
	}
	for _, s := range c.Scenarios {
		if s.Pressure > 0 {
			if err := m.SetPressure(s.Age, s.Temperature, s.Pressure); err != nil {
				return err
			}
		}
		if err := m.SetSpaceVelocity(s.Age, s.Temperature, s.SpaceVelocity); err != nil {
			return err
		}
	}
	return nil
}

func declareReaction(m *cats.Model, rc ReactionConfig) error {
	f, err := kinetics.ParseFamily(rc.Family)
	if err != nil {
		return err
	}
	if err := m.AddReaction(rc.ID, f); err != nil {
		return err
	}
	if err := m.SetReactionInfo(rc.ID, cats.ReactionInfo{
		Parameters: rc.Parameters,
		Reactants:  rc.Reactants,
		Products:   rc.Products,
		Orders:     rc.Orders,
	}); err != nil {
		return err
	}
	for s, v := range rc.Contributions {
		if err := m.SetMolarContribution(rc.ID, s, v); err != nil {
			return err
		}
	}
	if len(rc.Zone) == 2 {
		if err := m.SetReactionZone(rc.ID, rc.Zone[0], rc.Zone[1]); err != nil {
			return err
		}
	} else if len(rc.Zone) != 0 {
		return fmt.Errorf("catsutil: reaction %s zone needs 2 values, got %d", rc.ID, len(rc.Zone))
	}
	for p, b := range rc.Bounds {
		if len(b) != 2 {
			return fmt.Errorf("catsutil: reaction %s bounds of %s need 2 values, got %d", rc.ID, p, len(b))
		}
		if err := m.SetParameterBounds(rc.ID, p, b[0], b[1]); err != nil {
			return err
		}
	}
	for _, p := range f.Parameters() {
		if err := m.FixParameter(rc.ID, p); err != nil {
			return err
		}
	}
	for _, p := range rc.Free {
		if err := m.UnfixParameter(rc.ID, p); err != nil {
			return err
		}
	}
	return nil
}

// conditions sets temperatures, boundary and initial conditions and
// observations. Temperatures come first because conversions from ppm
// depend on them.
func (c *Config) conditions(m *cats.Model) error {
	for _, s := range c.Scenarios {
		if err := c.scenarioConditions(m, s); err != nil {
			return fmt.Errorf("catsutil: scenario (%s, %s): %v", s.Age, s.Temperature, err)
		}
	}
	return nil
}

func (c *Config) scenarioConditions(m *cats.Model, s ScenarioConfig) error {
	a, t := s.Age, s.Temperature
	if s.T > 0 {
		if err := m.SetIsothermalTemp(a, t, s.T); err != nil {
			return err
		}
	}
	if s.TemperatureFile != "" {
		tbl, err := tabular.ReadFile(s.TemperatureFile, 1)
		if err != nil {
			return err
		}
		zmap := s.TemperatureZ
		if len(zmap) == 0 {
			zmap = map[string]float64{"T": 0}
		}
		if err := m.SetTemperatureFromData(a, t, tbl.DictOfTuples(), zmap); err != nil {
			return err
		}
	}
	if s.RampStop > s.RampStart {
		if err := m.SetTemperatureRamp(a, t, s.RampStart, s.RampStop, s.RampEnd); err != nil {
			return err
		}
	}
	var steps map[string][]tabular.Point
	if s.InletFile != "" {
		tbl, err := tabular.ReadFile(s.InletFile, 1)
		if err != nil {
			return err
		}
		steps = tbl.DictOfTuples()
	}
	for _, g := range m.GasSpeciesNames() {
		if pts, ok := steps[g]; ok {
			if err := m.SetTimeDependentBCInPPM(g, a, t, pts, s.InletPPM[g]); err != nil {
				return err
			}
		} else if err := m.SetConstBCInPPM(g, a, t, s.InletPPM[g]); err != nil {
			return err
		}
		if err := m.SetConstICInPPM(g, a, t, s.InitialPPM[g]); err != nil {
			return err
		}
	}
	for q, v := range s.SurfaceIC {
		if err := m.SetConstIC(q, a, t, v); err != nil {
			return err
		}
	}
	if s.DataFile == "" {
		return nil
	}
	tbl, err := tabular.ReadFile(s.DataFile, s.DataFactor)
	if err != nil {
		return err
	}
	z := c.dataZ(s)
	P := s.Pressure
	if P == 0 {
		P = m.RefPressure
	}
	for g, pts := range tbl.DictOfTuples() {
		times := make([]float64, len(pts))
		values := make([]float64, len(pts))
		for i, p := range pts {
			times[i] = p.Time
			values[i] = transport.PPMToMolar(p.Value, P, dataTemperature(m, s, p.Time))
		}
		if err := m.SetDataValuesFor(g, a, t, z, times, values); err != nil {
			return err
		}
	}
	return nil
}

// dataTemperature returns the imposed temperature at the time node
// nearest to t.
func dataTemperature(m *cats.Model, s ScenarioConfig, t float64) float64 {
	ts, err := m.Location("T", s.Age, s.Temperature, 0)
	if err != nil {
		return s.T
	}
	best := 0
	for i, v := range ts.Times {
		if math.Abs(v-t) < math.Abs(ts.Times[best]-t) {
			best = i
		}
	}
	return ts.Values[best]
}

// checkOutputVars removes end lines and expands environment variables in
// the output variables.
func checkOutputVars(vars map[string]string) map[string]string {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapString(v), nil
	case string:
		o := make(map[string]string)
		if v == "" {
			return o, nil
		}
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("catsutil: reading %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("catsutil: invalid type for %s: %#v", varName, i)
	}
}

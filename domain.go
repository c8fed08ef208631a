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

// Package cats builds, discretizes and solves the reactive-transport
// equations of catalytic monoliths and packed beds, either to simulate
// breakthrough curves or to estimate kinetic parameters from them.
//
// Units: length cm, time min, concentration mol/L, pressure kPa,
// temperature K, energy J.
package cats

import (
	"fmt"
	"sort"

	"github.com/aladshaw3/cats-sub001/nlp"
	"github.com/aladshaw3/cats-sub001/science/kinetics"
	"github.com/aladshaw3/cats-sub001/science/transport"
	"github.com/sirupsen/logrus"
)

// Version gives the version number.
const Version = "0.1.0"

// DomainManipulator is a function that operates on a Model.
type DomainManipulator func(m *Model) error

// orderedSet is a set of identifiers that remembers insertion order.
type orderedSet struct {
	names []string
	index map[string]int
}

func (s *orderedSet) add(names ...string) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	for _, n := range names {
		if _, ok := s.index[n]; ok {
			continue
		}
		s.index[n] = len(s.names)
		s.names = append(s.names, n)
	}
}

func (s *orderedSet) idx(n string) (int, bool) {
	i, ok := s.index[n]
	return i, ok
}

func (s *orderedSet) has(n string) bool {
	_, ok := s.index[n]
	return ok
}

func (s *orderedSet) len() int { return len(s.names) }

// list returns a copy of the identifiers in insertion order.
func (s *orderedSet) list() []string {
	return append([]string(nil), s.names...)
}

// continuous is a continuous set with optional user-supplied points.
type continuous struct {
	Start, End float64
	Points     []float64
	set        bool
}

// GasSpecies holds the properties of a gas-phase species.
type GasSpecies struct {
	Name        string
	MolarMass   float64 // [g/mol]
	Viscosity   transport.Sutherland
	Diffusivity transport.Diffusivity
}

// scenario identifies an (age, temperature) pair.
type scenario struct {
	Age, Temp string
}

// speciesScenario identifies a (species, age, temperature) triple.
type speciesScenario struct {
	Species, Age, Temp string
}

func (k speciesScenario) String() string {
	return tupleKey(k.Species, k.Age, k.Temp)
}

// Model holds the declaration, the discretized equations and the state of
// a catalytic reactor model.
type Model struct {
	// InitFuncs are run by Init and RunFuncs are run by Run.
	InitFuncs, RunFuncs []DomainManipulator

	Log logrus.FieldLogger

	// Solver solves the discretized problem. By default it is an
	// nlp.LeastSquares with a Newton inner solver.
	Solver nlp.Solver

	// RestartOnError and RestartOnWarning enable a single automatic
	// re-solve after a solver failure or warning.
	RestartOnError, RestartOnWarning bool

	// Bed holds the reactor geometry. Its length is set from the axial
	// domain by BuildConstraints.
	Bed transport.Bed

	// WashcoatPorosity is ε_w [-].
	WashcoatPorosity float64

	// RefTemperature [K] and RefPressure [kPa] are the reference state of
	// the space velocity.
	RefTemperature, RefPressure float64

	// Carrier is the balance gas that makes up the inlet stream not
	// accounted for by the inlet mole fractions.
	Carrier GasSpecies

	energy *EnergyParameters

	axial, temporal continuous
	axialData       []float64
	temporalData    []float64

	ages, temps, gas, surf, sites orderedSet
	dataAges, dataTemps, dataGas  orderedSet

	species map[string]*GasSpecies

	reactions []*Reaction
	rxnIndex  map[string]int

	smax      map[[2]string]float64
	siteTerms map[string]map[string]float64
	moleFrac  map[string]float64
	pressure  map[scenario]float64
	sv        map[scenario]float64
	ambient   map[scenario]float64

	built bool
	disc  *discretization

	p       nlp.Problem
	nParams int

	bcSet   map[speciesScenario]bool
	tempSet map[scenario]bool

	// refresh re-evaluates conditions given in ppm, which depend on the
	// temperature program. Keys order the updates.
	refresh map[string]func()

	obs     []Observation
	weights map[speciesScenario]float64
	ignore  map[speciesScenario][][2]float64

	seed []float64

	// Warnings holds non-fatal messages recorded during initialization
	// and solving.
	Warnings []string

	// Status is the status of the last solve.
	Status nlp.Status
}

// New returns a new isothermal model with default settings.
func New() *Model {
	return &Model{
		Log:              logrus.StandardLogger(),
		Solver:           nlp.NewLeastSquares(),
		WashcoatPorosity: 0.4,
		RefTemperature:   273.15,
		RefPressure:      101.35,
		Carrier: GasSpecies{
			Name:      "N2",
			MolarMass: 28.0134,
			Viscosity: transport.Sutherland{MuRef: 1.663e-5, TRef: 273.15, S: 107},
		},
		species:   make(map[string]*GasSpecies),
		rxnIndex:  make(map[string]int),
		smax:      make(map[[2]string]float64),
		siteTerms: make(map[string]map[string]float64),
		moleFrac:  make(map[string]float64),
		pressure:  make(map[scenario]float64),
		sv:        make(map[scenario]float64),
		ambient:   make(map[scenario]float64),
		bcSet:     make(map[speciesScenario]bool),
		tempSet:   make(map[scenario]bool),
		refresh:   make(map[string]func()),
		weights:   make(map[speciesScenario]float64),
		ignore:    make(map[speciesScenario][][2]float64),
	}
}

// Init runs the InitFuncs of m.
func (m *Model) Init() error {
	for _, f := range m.InitFuncs {
		if err := f(m); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the RunFuncs of m.
func (m *Model) Run() error {
	for _, f := range m.RunFuncs {
		if err := f(m); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) logger() logrus.FieldLogger {
	if m.Log == nil {
		return logrus.StandardLogger()
	}
	return m.Log
}

func (m *Model) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	m.Warnings = append(m.Warnings, msg)
	m.logger().Warn(msg)
}

func (m *Model) checkOpen(op string) error {
	if m.built {
		return newError(DomainError, op, ErrDomainAlreadyFixed, "")
	}
	return nil
}

// AddAxialDim declares the axial domain [start, end] [cm].
func (m *Model) AddAxialDim(start, end float64) error {
	const op = "AddAxialDim"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	if !(end > start) {
		return newError(DomainError, op, ErrUnknownIdentifier, "axial end %g must be greater than start %g", end, start)
	}
	m.axial = continuous{Start: start, End: end, set: true}
	return nil
}

// AddAxialDimPoints declares the axial domain by a list of points, which
// become element boundaries of the discretization.
func (m *Model) AddAxialDimPoints(points []float64) error {
	const op = "AddAxialDimPoints"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	c, err := pointsDomain(op, points)
	if err != nil {
		return err
	}
	m.axial = c
	return nil
}

// AddTemporalDim declares the time domain [start, end] [min].
func (m *Model) AddTemporalDim(start, end float64) error {
	const op = "AddTemporalDim"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	if !(end > start) {
		return newError(DomainError, op, ErrUnknownIdentifier, "time end %g must be greater than start %g", end, start)
	}
	m.temporal = continuous{Start: start, End: end, set: true}
	return nil
}

// AddTemporalDimPoints declares the time domain by a list of points,
// which become element boundaries of the discretization.
func (m *Model) AddTemporalDimPoints(points []float64) error {
	const op = "AddTemporalDimPoints"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	c, err := pointsDomain(op, points)
	if err != nil {
		return err
	}
	m.temporal = c
	return nil
}

func pointsDomain(op string, points []float64) (continuous, error) {
	if len(points) < 2 {
		return continuous{}, newError(DomainError, op, ErrUnknownIdentifier, "need at least 2 points, got %d", len(points))
	}
	p := append([]float64(nil), points...)
	sort.Float64s(p)
	if !(p[len(p)-1] > p[0]) {
		return continuous{}, newError(DomainError, op, ErrUnknownIdentifier, "points span an empty interval")
	}
	return continuous{Start: p[0], End: p[len(p)-1], Points: p, set: true}, nil
}

// AddAgeSet declares catalyst age labels.
func (m *Model) AddAgeSet(ages ...string) error {
	if err := m.checkOpen("AddAgeSet"); err != nil {
		return err
	}
	m.ages.add(ages...)
	return nil
}

// AddTemperatureSet declares temperature scenario labels.
func (m *Model) AddTemperatureSet(temps ...string) error {
	if err := m.checkOpen("AddTemperatureSet"); err != nil {
		return err
	}
	m.temps.add(temps...)
	return nil
}

// AddGasSpecies declares gas-phase species. Their transport properties
// must be given with SetSpeciesProperties before BuildConstraints.
func (m *Model) AddGasSpecies(species ...string) error {
	const op = "AddGasSpecies"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	for _, s := range species {
		if m.surf.has(s) || m.sites.has(s) {
			return newError(DomainError, op, ErrUnknownIdentifier, "%s is already a surface species or site", s)
		}
		if _, ok := m.species[s]; !ok {
			m.species[s] = &GasSpecies{Name: s}
		}
	}
	m.gas.add(species...)
	return nil
}

// SetSpeciesProperties sets the molar mass and transport parameters of a
// declared gas species.
func (m *Model) SetSpeciesProperties(g GasSpecies) error {
	s, ok := m.species[g.Name]
	if !ok {
		return newError(DomainError, "SetSpeciesProperties", ErrUnknownIdentifier, "gas species %s", g.Name)
	}
	*s = g
	return nil
}

// AddSurfaceSpecies declares adsorbed species.
func (m *Model) AddSurfaceSpecies(species ...string) error {
	const op = "AddSurfaceSpecies"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	for _, s := range species {
		if m.gas.has(s) || m.sites.has(s) {
			return newError(DomainError, op, ErrUnknownIdentifier, "%s is already a gas species or site", s)
		}
	}
	m.surf.add(species...)
	return nil
}

// AddSurfaceSites declares surface site types.
func (m *Model) AddSurfaceSites(sites ...string) error {
	const op = "AddSurfaceSites"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	for _, s := range sites {
		if m.gas.has(s) || m.surf.has(s) {
			return newError(DomainError, op, ErrUnknownIdentifier, "%s is already a gas or surface species", s)
		}
	}
	m.sites.add(sites...)
	return nil
}

// AddReactions declares reactions by kinetic family. Reactions are added
// in sorted identifier order.
func (m *Model) AddReactions(rxns map[string]kinetics.Family) error {
	ids := make([]string, 0, len(rxns))
	for id := range rxns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := m.AddReaction(id, rxns[id]); err != nil {
			return err
		}
	}
	return nil
}

// AddReaction declares a single reaction and creates its kinetic
// parameters.
func (m *Model) AddReaction(id string, f kinetics.Family) error {
	const op = "AddReaction"
	if err := m.checkOpen(op); err != nil {
		return err
	}
	if _, ok := m.rxnIndex[id]; ok {
		return newError(DomainError, op, ErrUnknownIdentifier, "reaction %s is already declared", id)
	}
	r := newReaction(id, f)
	m.rxnIndex[id] = len(m.reactions)
	m.reactions = append(m.reactions, r)
	m.addParameterVars(r)
	return nil
}

// AddAxialDataset declares the axial positions of observation sensors.
// They are added to the axial discretization.
func (m *Model) AddAxialDataset(z ...float64) error {
	if err := m.checkOpen("AddAxialDataset"); err != nil {
		return err
	}
	m.axialData = mergePoints(m.axialData, z)
	return nil
}

// AddTemporalDataset declares the observation times. They may be denser
// than the simulation grid.
func (m *Model) AddTemporalDataset(t ...float64) error {
	if err := m.checkOpen("AddTemporalDataset"); err != nil {
		return err
	}
	m.temporalData = mergePoints(m.temporalData, t)
	return nil
}

// AddDataAgeSet declares the ages for which observations exist.
func (m *Model) AddDataAgeSet(ages ...string) error {
	if err := m.checkOpen("AddDataAgeSet"); err != nil {
		return err
	}
	m.dataAges.add(ages...)
	return nil
}

// AddDataTemperatureSet declares the temperatures for which observations
// exist.
func (m *Model) AddDataTemperatureSet(temps ...string) error {
	if err := m.checkOpen("AddDataTemperatureSet"); err != nil {
		return err
	}
	m.dataTemps.add(temps...)
	return nil
}

// AddDataGasSpecies declares the gas species for which observations
// exist.
func (m *Model) AddDataGasSpecies(species ...string) error {
	if err := m.checkOpen("AddDataGasSpecies"); err != nil {
		return err
	}
	m.dataGas.add(species...)
	return nil
}

// Ages returns the age labels in declaration order.
func (m *Model) Ages() []string { return m.ages.list() }

// Temperatures returns the temperature labels in declaration order.
func (m *Model) Temperatures() []string { return m.temps.list() }

// GasSpeciesNames returns the gas species in declaration order.
func (m *Model) GasSpeciesNames() []string { return m.gas.list() }

// SurfaceSpeciesNames returns the surface species in declaration order.
func (m *Model) SurfaceSpeciesNames() []string { return m.surf.list() }

// SurfaceSiteNames returns the surface sites in declaration order.
func (m *Model) SurfaceSiteNames() []string { return m.sites.list() }

// Reactions returns the declared reactions in declaration order.
func (m *Model) Reactions() []*Reaction {
	return append([]*Reaction(nil), m.reactions...)
}

// scenarioIndex returns the index of the (age, temp) scenario.
func (m *Model) scenarioIndex(op, age, temp string) (int, error) {
	a, ok := m.ages.idx(age)
	if !ok {
		return 0, newError(DomainError, op, ErrUnknownIdentifier, "age %q", age)
	}
	t, ok := m.temps.idx(temp)
	if !ok {
		return 0, newError(DomainError, op, ErrUnknownIdentifier, "temperature %q", temp)
	}
	return a*m.temps.len() + t, nil
}

// scenarioLabels is the inverse of scenarioIndex.
func (m *Model) scenarioLabels(sc int) scenario {
	nt := m.temps.len()
	return scenario{Age: m.ages.names[sc/nt], Temp: m.temps.names[sc%nt]}
}

func (m *Model) numScenarios() int {
	return m.ages.len() * m.temps.len()
}

// SetSiteDensity sets Smax for a site and age [mol/L].
func (m *Model) SetSiteDensity(site, age string, value float64) error {
	const op = "SetSiteDensity"
	if !m.sites.has(site) {
		return newError(DomainError, op, ErrUnknownIdentifier, "site %q", site)
	}
	if !m.ages.has(age) {
		return newError(DomainError, op, ErrUnknownIdentifier, "age %q", age)
	}
	if value < 0 {
		return newError(UnitError, op, ErrNegativeConcentration, "site density %g", value)
	}
	m.smax[[2]string{site, age}] = value
	return nil
}

// SetSiteBalanceTerms sets the occupancy coefficients u_S of surface
// species on a site, so that Σ u_S·q + S = Smax.
func (m *Model) SetSiteBalanceTerms(site string, terms map[string]float64) error {
	const op = "SetSiteBalanceTerms"
	if !m.sites.has(site) {
		return newError(DomainError, op, ErrUnknownIdentifier, "site %q", site)
	}
	t := make(map[string]float64, len(terms))
	for s, v := range terms {
		if !m.surf.has(s) {
			return newError(DomainError, op, ErrUnknownIdentifier, "surface species %q", s)
		}
		t[s] = v
	}
	m.siteTerms[site] = t
	return nil
}

// SetInletMoleFractions sets the inlet mole fractions used to compute the
// mean molar mass and the mixture viscosity. The carrier gas makes up
// the remainder.
func (m *Model) SetInletMoleFractions(x map[string]float64) error {
	const op = "SetInletMoleFractions"
	var sum float64
	for s, v := range x {
		if !m.gas.has(s) {
			return newError(DomainError, op, ErrUnknownIdentifier, "gas species %q", s)
		}
		if v < 0 {
			return newError(UnitError, op, ErrNegativeConcentration, "mole fraction of %s is %g", s, v)
		}
		sum += v
	}
	if sum > 1 {
		return newError(UnitError, op, ErrNegativeConcentration, "mole fractions sum to %g", sum)
	}
	m.moleFrac = make(map[string]float64, len(x))
	for s, v := range x {
		m.moleFrac[s] = v
	}
	return nil
}

// SetPressure sets the pressure of a scenario [kPa].
func (m *Model) SetPressure(age, temp string, P float64) error {
	const op = "SetPressure"
	if _, err := m.scenarioIndex(op, age, temp); err != nil {
		return err
	}
	if !(P > 0) {
		return newError(UnitError, op, ErrMissingTransportParameter, "pressure must be positive, got %g", P)
	}
	m.pressure[scenario{age, temp}] = P
	return nil
}

// SetSpaceVelocity sets the space velocity of a scenario [1/min] at the
// reference conditions.
func (m *Model) SetSpaceVelocity(age, temp string, sv float64) error {
	const op = "SetSpaceVelocity"
	if _, err := m.scenarioIndex(op, age, temp); err != nil {
		return err
	}
	if !(sv > 0) {
		return newError(UnitError, op, ErrMissingTransportParameter, "space velocity must be positive, got %g", sv)
	}
	m.sv[scenario{age, temp}] = sv
	return nil
}

// SetSpaceVelocityAll sets the space velocity of every scenario.
func (m *Model) SetSpaceVelocityAll(sv float64) error {
	for _, a := range m.ages.names {
		for _, t := range m.temps.names {
			if err := m.SetSpaceVelocity(a, t, sv); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) pressureOf(sc scenario) float64 {
	if p, ok := m.pressure[sc]; ok {
		return p
	}
	return m.RefPressure
}

// Built reports whether BuildConstraints has been called.
func (m *Model) Built() bool { return m.built }

// Discretized reports whether Discretize has been called.
func (m *Model) Discretized() bool { return m.disc != nil }

// mergePoints returns the sorted union of a and b.
func mergePoints(a, b []float64) []float64 {
	o := append(append([]float64(nil), a...), b...)
	sort.Float64s(o)
	return dedup(o, 1e-9)
}

// dedup removes values of a sorted slice that are within tol (relative
// to the span of the slice) of their predecessor.
func dedup(s []float64, tol float64) []float64 {
	if len(s) == 0 {
		return s
	}
	span := s[len(s)-1] - s[0]
	if span == 0 {
		span = 1
	}
	o := s[:1]
	for _, v := range s[1:] {
		if v-o[len(o)-1] > tol*span {
			o = append(o, v)
		}
	}
	return o
}

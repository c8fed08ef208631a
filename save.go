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
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aladshaw3/cats-sub001/science/kinetics"
	"github.com/aladshaw3/cats-sub001/science/transport"
	jsoniter "github.com/json-iterator/go"
)

// DocumentVersion is the version of the model state document written by
// Save.
const DocumentVersion = 1

// The standard-library-compatible configuration sorts map keys.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// keyEscaper escapes the separators of tuple keys in labels.
var keyEscaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`, `[`, `\[`, `]`, `\]`)

// tupleKey formats an index tuple as "[a,b,...]". Backslashes, commas and
// brackets in labels are escaped with a backslash.
func tupleKey(parts ...interface{}) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(',')
		}
		switch v := p.(type) {
		case string:
			keyEscaper.WriteString(&b, v)
		case float64:
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		default:
			fmt.Fprint(&b, v)
		}
	}
	b.WriteByte(']')
	return b.String()
}

type document struct {
	Version      int                           `json:"version"`
	Sets         docSets                       `json:"sets"`
	Parameters   map[string]docParameter       `json:"parameters"`
	Variables    map[string]map[string]float64 `json:"variables"`
	Weights      map[string]float64            `json:"weights"`
	Observations []Observation                 `json:"observations"`
	Model        docModel                      `json:"model"`
}

type docSets struct {
	Ages           []string  `json:"ages"`
	Temperatures   []string  `json:"temperatures"`
	GasSpecies     []string  `json:"gas_species"`
	SurfaceSpecies []string  `json:"surface_species"`
	SurfaceSites   []string  `json:"surface_sites"`
	Reactions      []string  `json:"reactions"`
	Z              []float64 `json:"z"`
	T              []float64 `json:"t"`
	DataAges       []string  `json:"data_ages"`
	DataTemps      []string  `json:"data_temperatures"`
	DataGas        []string  `json:"data_gas_species"`
}

// docParameter holds a kinetic parameter. Infinite bounds are null.
type docParameter struct {
	Value float64  `json:"value"`
	Lower *float64 `json:"lb"`
	Upper *float64 `json:"ub"`
	Fixed bool     `json:"fixed"`
}

func bound(v float64) *float64 {
	if math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func unbound(v *float64, inf float64) float64 {
	if v == nil {
		return inf
	}
	return *v
}

type docSpecies struct {
	Name       string  `json:"name"`
	MolarMass  float64 `json:"molar_mass"`
	MuRef      float64 `json:"mu_ref"`
	MuTRef     float64 `json:"mu_tref"`
	Sutherland float64 `json:"sutherland"`
	DRef       float64 `json:"d_ref"`
	DTRef      float64 `json:"d_tref"`
	DPRef      float64 `json:"d_pref"`
}

func toDocSpecies(g GasSpecies) docSpecies {
	return docSpecies{
		Name: g.Name, MolarMass: g.MolarMass,
		MuRef: g.Viscosity.MuRef, MuTRef: g.Viscosity.TRef, Sutherland: g.Viscosity.S,
		DRef: g.Diffusivity.DRef, DTRef: g.Diffusivity.TRef, DPRef: g.Diffusivity.PRef,
	}
}

func (s docSpecies) gasSpecies() GasSpecies {
	return GasSpecies{
		Name:        s.Name,
		MolarMass:   s.MolarMass,
		Viscosity:   transport.Sutherland{MuRef: s.MuRef, TRef: s.MuTRef, S: s.Sutherland},
		Diffusivity: transport.Diffusivity{DRef: s.DRef, TRef: s.DTRef, PRef: s.DPRef},
	}
}

type docReaction struct {
	ID        string             `json:"id"`
	Family    string             `json:"family"`
	Reactants map[string]float64 `json:"reactants"`
	Products  map[string]float64 `json:"products"`
	Orders    map[string]float64 `json:"orders"`
	Override  map[string]float64 `json:"molar_contributions"`
	Active    [][2]float64       `json:"zones"`
	Inactive  [][2]float64       `json:"inactive_zones"`
}

type docDomain struct {
	Start  float64   `json:"start"`
	End    float64   `json:"end"`
	Points []float64 `json:"points"`
}

type docDiscretization struct {
	Method            string `json:"method"`
	TimeElements      int    `json:"time_elements"`
	AxialElements     int    `json:"axial_elements"`
	CollocationPoints int    `json:"collocation_points"`
}

type docModel struct {
	Geometry         string  `json:"geometry"`
	BulkPorosity     float64 `json:"bulk_porosity"`
	CellDensity      float64 `json:"cell_density"`
	ParticleDiameter float64 `json:"particle_diameter"`
	SpecificArea     float64 `json:"specific_area"`
	WashcoatPorosity float64 `json:"washcoat_porosity"`
	RefTemperature   float64 `json:"ref_temperature"`
	RefPressure      float64 `json:"ref_pressure"`

	Carrier docSpecies   `json:"carrier"`
	Species []docSpecies `json:"species"`

	Reactions []docReaction `json:"reactions"`

	SiteDensity   map[string]float64            `json:"site_density"`
	SiteTerms     map[string]map[string]float64 `json:"site_terms"`
	MoleFractions map[string]float64            `json:"mole_fractions"`
	Pressure      map[string]float64            `json:"pressure"`
	SpaceVelocity map[string]float64            `json:"space_velocity"`
	Ambient       map[string]float64            `json:"ambient_temperature"`

	Energy *EnergyParameters `json:"energy"`

	Axial        docDomain `json:"axial"`
	Temporal     docDomain `json:"temporal"`
	AxialData    []float64 `json:"axial_data"`
	TemporalData []float64 `json:"temporal_data"`

	Discretization docDiscretization `json:"discretization"`

	BCSet          []string                `json:"bc_set"`
	TemperatureSet []string                `json:"temperature_set"`
	Ignore         map[string][][2]float64 `json:"ignore_windows"`
}

func scenarioMap(in map[scenario]float64) map[string]float64 {
	o := make(map[string]float64, len(in))
	for k, v := range in {
		o[tupleKey(k.Age, k.Temp)] = v
	}
	return o
}

// varKey returns the document key of a state variable.
func (m *Model) varKey(f family, s, sc, iz, it int) string {
	d := m.disc
	l := m.scenarioLabels(sc)
	if f >= famT {
		return tupleKey(l.Age, l.Temp, d.z[iz], d.t[it])
	}
	return tupleKey(m.memberName(f, s), l.Age, l.Temp, d.z[iz], d.t[it])
}

func (m *Model) document() *document {
	d := m.disc
	doc := &document{
		Version: DocumentVersion,
		Sets: docSets{
			Ages:           m.ages.list(),
			Temperatures:   m.temps.list(),
			GasSpecies:     m.gas.list(),
			SurfaceSpecies: m.surf.list(),
			SurfaceSites:   m.sites.list(),
			Z:              append([]float64(nil), d.z...),
			T:              append([]float64(nil), d.t...),
			DataAges:       m.dataAges.list(),
			DataTemps:      m.dataTemps.list(),
			DataGas:        m.dataGas.list(),
		},
		Parameters:   make(map[string]docParameter),
		Variables:    make(map[string]map[string]float64),
		Weights:      make(map[string]float64),
		Observations: m.Observations(),
	}
	for _, r := range m.reactions {
		doc.Sets.Reactions = append(doc.Sets.Reactions, r.ID)
		for name, i := range r.param {
			doc.Parameters[tupleKey(r.ID, name)] = docParameter{
				Value: m.p.X[i],
				Lower: bound(m.p.Lower[i]),
				Upper: bound(m.p.Upper[i]),
				Fixed: m.p.Fixed[i],
			}
		}
		doc.Model.Reactions = append(doc.Model.Reactions, docReaction{
			ID:        r.ID,
			Family:    r.Family.String(),
			Reactants: r.Reactants,
			Products:  r.Products,
			Orders:    r.Orders,
			Override:  r.override,
			Active:    r.active,
			Inactive:  r.inactive,
		})
	}
	for f := family(0); f < nFamilies; f++ {
		if d.count[f] == 0 {
			continue
		}
		vars := make(map[string]float64)
		for s := 0; s < d.count[f]; s++ {
			for sc := 0; sc < d.nsc; sc++ {
				for iz := 0; iz < d.nz; iz++ {
					for it := 0; it < d.nt; it++ {
						vars[m.varKey(f, s, sc, iz, it)] = m.p.X[d.vi(f, s, sc, iz, it)]
					}
				}
			}
		}
		doc.Variables[f.String()] = vars
	}
	for k, w := range m.weights {
		doc.Weights[k.String()] = w
	}

	md := &doc.Model
	md.Geometry = m.Bed.Geometry.String()
	md.BulkPorosity = m.Bed.BulkPorosity
	md.CellDensity = m.Bed.CellDensity
	md.ParticleDiameter = m.Bed.ParticleDiameter
	md.SpecificArea = m.Bed.SpecificArea
	md.WashcoatPorosity = m.WashcoatPorosity
	md.RefTemperature = m.RefTemperature
	md.RefPressure = m.RefPressure
	md.Carrier = toDocSpecies(m.Carrier)
	for _, g := range m.gas.names {
		md.Species = append(md.Species, toDocSpecies(*m.species[g]))
	}
	md.SiteDensity = make(map[string]float64)
	for k, v := range m.smax {
		md.SiteDensity[tupleKey(k[0], k[1])] = v
	}
	md.SiteTerms = m.siteTerms
	md.MoleFractions = m.moleFrac
	md.Pressure = scenarioMap(m.pressure)
	md.SpaceVelocity = scenarioMap(m.sv)
	md.Ambient = scenarioMap(m.ambient)
	md.Energy = m.energy
	md.Axial = docDomain{m.axial.Start, m.axial.End, m.axial.Points}
	md.Temporal = docDomain{m.temporal.Start, m.temporal.End, m.temporal.Points}
	md.AxialData = m.axialData
	md.TemporalData = m.temporalData
	md.Discretization = docDiscretization{
		Method:            d.opts.Method.String(),
		TimeElements:      d.opts.TimeElements,
		AxialElements:     d.opts.AxialElements,
		CollocationPoints: d.opts.CollocationPoints,
	}
	for k, ok := range m.bcSet {
		if ok {
			md.BCSet = append(md.BCSet, k.String())
		}
	}
	sort.Strings(md.BCSet)
	for k, ok := range m.tempSet {
		if ok {
			md.TemperatureSet = append(md.TemperatureSet, tupleKey(k.Age, k.Temp))
		}
	}
	sort.Strings(md.TemperatureSet)
	md.Ignore = make(map[string][][2]float64)
	for k, w := range m.ignore {
		md.Ignore[k.String()] = w
	}
	return doc
}

// Save writes the complete model state as a JSON document to w.
func (m *Model) Save(w io.Writer) error {
	const op = "Save"
	if m.disc == nil {
		return newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
	}
	b, err := json.MarshalIndent(m.document(), "", "  ")
	if err != nil {
		return newError(PersistenceError, op, err, "")
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return newError(PersistenceError, op, err, "")
	}
	return nil
}

func readDocument(op string, r io.Reader) (*document, error) {
	doc := new(document)
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, newError(PersistenceError, op, err, "")
	}
	if doc.Version != DocumentVersion {
		return nil, newError(PersistenceError, op, ErrVersionMismatch, "document version %d, expected %d", doc.Version, DocumentVersion)
	}
	return doc, nil
}

// build declares, builds and discretizes a model from a document. The
// time domain and number of time elements may be replaced.
func build(op string, doc *document, temporal *docDomain, timeElements int) (*Model, error) {
	md := doc.Model
	m := New()
	geom, err := transport.ParseGeometry(md.Geometry)
	if err != nil {
		return nil, newError(PersistenceError, op, err, "")
	}
	m.Bed = transport.Bed{
		Geometry:         geom,
		BulkPorosity:     md.BulkPorosity,
		CellDensity:      md.CellDensity,
		ParticleDiameter: md.ParticleDiameter,
		SpecificArea:     md.SpecificArea,
	}
	m.WashcoatPorosity = md.WashcoatPorosity
	m.RefTemperature = md.RefTemperature
	m.RefPressure = md.RefPressure
	m.Carrier = md.Carrier.gasSpecies()

	td := md.Temporal
	if temporal != nil {
		td = *temporal
	}
	steps := []error{
		m.setDomain(true, md.Axial),
		m.setDomain(false, td),
		m.AddAgeSet(doc.Sets.Ages...),
		m.AddTemperatureSet(doc.Sets.Temperatures...),
		m.AddGasSpecies(doc.Sets.GasSpecies...),
		m.AddSurfaceSpecies(doc.Sets.SurfaceSpecies...),
		m.AddSurfaceSites(doc.Sets.SurfaceSites...),
		m.AddAxialDataset(md.AxialData...),
		m.AddTemporalDataset(md.TemporalData...),
		m.AddDataAgeSet(doc.Sets.DataAges...),
		m.AddDataTemperatureSet(doc.Sets.DataTemps...),
		m.AddDataGasSpecies(doc.Sets.DataGas...),
	}
	for _, s := range md.Species {
		steps = append(steps, m.SetSpeciesProperties(s.gasSpecies()))
	}
	for _, err := range steps {
		if err != nil {
			return nil, err
		}
	}
	if md.Energy != nil {
		if err := m.EnableEnergyBalance(*md.Energy); err != nil {
			return nil, err
		}
	}
	for _, dr := range md.Reactions {
		f, err := kinetics.ParseFamily(dr.Family)
		if err != nil {
			return nil, newError(PersistenceError, op, err, "")
		}
		if err := m.AddReaction(dr.ID, f); err != nil {
			return nil, err
		}
		r := m.reactions[m.rxnIndex[dr.ID]]
		r.Reactants = copyMap(dr.Reactants)
		r.Products = copyMap(dr.Products)
		r.Orders = copyMap(dr.Orders)
		r.override = copyMap(dr.Override)
		r.active = dr.Active
		r.inactive = dr.Inactive
	}
	for k, v := range md.SiteDensity {
		site, age, err := splitKey2(k)
		if err != nil {
			return nil, newError(PersistenceError, op, err, "")
		}
		m.smax[[2]string{site, age}] = v
	}
	for site, t := range md.SiteTerms {
		m.siteTerms[site] = copyMap(t)
	}
	m.moleFrac = copyMap(md.MoleFractions)
	for _, c := range []struct {
		dst map[scenario]float64
		src map[string]float64
	}{{m.pressure, md.Pressure}, {m.sv, md.SpaceVelocity}, {m.ambient, md.Ambient}} {
		for k, v := range c.src {
			a, t, err := splitKey2(k)
			if err != nil {
				return nil, newError(PersistenceError, op, err, "")
			}
			c.dst[scenario{a, t}] = v
		}
	}
	if err := m.BuildConstraints(); err != nil {
		return nil, err
	}
	method, err := ParseMethod(md.Discretization.Method)
	if err != nil {
		return nil, newError(PersistenceError, op, err, "")
	}
	opts := DiscretizationOptions{
		Method:            method,
		TimeElements:      md.Discretization.TimeElements,
		AxialElements:     md.Discretization.AxialElements,
		CollocationPoints: md.Discretization.CollocationPoints,
	}
	if timeElements > 0 {
		opts.TimeElements = timeElements
	}
	if err := m.Discretize(opts); err != nil {
		return nil, err
	}
	if !sameGrid(m.disc.z, doc.Sets.Z) {
		return nil, newError(PersistenceError, op, ErrVersionMismatch, "the axial grid does not match the document")
	}

	for _, r := range m.reactions {
		for name, i := range r.param {
			p, ok := doc.Parameters[tupleKey(r.ID, name)]
			if !ok {
				continue
			}
			m.p.X[i] = p.Value
			m.p.Lower[i] = unbound(p.Lower, math.Inf(-1))
			m.p.Upper[i] = unbound(p.Upper, math.Inf(1))
			m.p.Fixed[i] = p.Fixed
		}
	}
	for k, w := range doc.Weights {
		m.weights[parseSpeciesScenario(k)] = w
	}
	for k, w := range md.Ignore {
		m.ignore[parseSpeciesScenario(k)] = w
	}
	m.obs = doc.Observations
	return m, nil
}

func (m *Model) setDomain(axial bool, d docDomain) error {
	switch {
	case axial && len(d.Points) > 0:
		return m.AddAxialDimPoints(d.Points)
	case axial:
		return m.AddAxialDim(d.Start, d.End)
	case len(d.Points) > 0:
		return m.AddTemporalDimPoints(d.Points)
	default:
		return m.AddTemporalDim(d.Start, d.End)
	}
}

// splitKey is the inverse of tupleKey for string parts.
func splitKey(k string) []string {
	k = strings.TrimSuffix(strings.TrimPrefix(k, "["), "]")
	var o []string
	var b strings.Builder
	for i := 0; i < len(k); i++ {
		switch c := k[i]; {
		case c == '\\' && i+1 < len(k):
			i++
			b.WriteByte(k[i])
		case c == ',':
			o = append(o, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	return append(o, b.String())
}

func splitKey2(k string) (string, string, error) {
	p := splitKey(k)
	if len(p) != 2 {
		return "", "", fmt.Errorf("invalid key %q", k)
	}
	return p[0], p[1], nil
}

func parseSpeciesScenario(k string) speciesScenario {
	p := splitKey(k)
	for len(p) < 3 {
		p = append(p, "")
	}
	return speciesScenario{p[0], p[1], p[2]}
}

func sameGrid(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9*math.Max(1, math.Abs(b[i])) {
			return false
		}
	}
	return true
}

// LoadModelFull reads a document written by Save and rebuilds the model
// with its complete state. With resetParamBounds every free kinetic
// parameter receives bounds of ±20% of its value.
func LoadModelFull(r io.Reader, resetParamBounds bool) (*Model, error) {
	const op = "LoadModelFull"
	doc, err := readDocument(op, r)
	if err != nil {
		return nil, err
	}
	m, err := build(op, doc, nil, 0)
	if err != nil {
		return nil, err
	}
	if !sameGrid(m.disc.t, doc.Sets.T) {
		return nil, newError(PersistenceError, op, ErrVersionMismatch, "the time grid does not match the document")
	}
	d := m.disc
	for f := family(0); f < nFamilies; f++ {
		vars := doc.Variables[f.String()]
		for s := 0; s < d.count[f]; s++ {
			for sc := 0; sc < d.nsc; sc++ {
				for iz := 0; iz < d.nz; iz++ {
					for it := 0; it < d.nt; it++ {
						if v, ok := vars[m.varKey(f, s, sc, iz, it)]; ok {
							m.p.X[d.vi(f, s, sc, iz, it)] = v
						}
					}
				}
			}
		}
	}
	for _, k := range doc.Model.BCSet {
		m.bcSet[parseSpeciesScenario(k)] = true
	}
	for _, k := range doc.Model.TemperatureSet {
		a, t, err := splitKey2(k)
		if err != nil {
			return nil, newError(PersistenceError, op, err, "")
		}
		m.tempSet[scenario{a, t}] = true
	}
	if resetParamBounds {
		for i := 0; i < m.nParams; i++ {
			if !m.p.Fixed[i] {
				m.p.Lower[i], m.p.Upper[i] = defaultBounds(m.p.X[i])
			}
		}
	}
	m.refreshScenarios()
	return m, nil
}

// LoadModelStateAsIC reads a document written by Save and rebuilds the
// model on the time window [window[0], window[1]] with tstep time
// elements (the document's number when tstep ≤ 0). The state at document
// time *state (the final time when state is nil) becomes the initial
// condition. Boundary conditions and temperatures are left unset.
func LoadModelStateAsIC(r io.Reader, window [2]float64, state *float64, tstep int) (*Model, error) {
	const op = "LoadModelStateAsIC"
	doc, err := readDocument(op, r)
	if err != nil {
		return nil, err
	}
	if len(doc.Sets.T) == 0 {
		return nil, newError(PersistenceError, op, ErrStateNotInDocument, "the document has no time points")
	}
	ts := doc.Sets.T[len(doc.Sets.T)-1]
	if state != nil {
		i, ok := indexOf(doc.Sets.T, *state)
		if !ok {
			return nil, newError(PersistenceError, op, ErrStateNotInDocument, "t = %g", *state)
		}
		ts = doc.Sets.T[i]
	}
	m, err := build(op, doc, &docDomain{Start: window[0], End: window[1]}, tstep)
	if err != nil {
		return nil, err
	}
	d := m.disc
	for f := family(0); f < nFamilies; f++ {
		vars := doc.Variables[f.String()]
		for s := 0; s < d.count[f]; s++ {
			for sc := 0; sc < d.nsc; sc++ {
				l := m.scenarioLabels(sc)
				for iz := 0; iz < d.nz; iz++ {
					var key string
					if f >= famT {
						key = tupleKey(l.Age, l.Temp, d.z[iz], ts)
					} else {
						key = tupleKey(m.memberName(f, s), l.Age, l.Temp, d.z[iz], ts)
					}
					v, ok := vars[key]
					if !ok {
						return nil, newError(PersistenceError, op, ErrStateNotInDocument, "%s%s", f, key)
					}
					for it := 0; it < d.nt; it++ {
						if i := d.vi(f, s, sc, iz, it); it == 0 || !m.p.Fixed[i] {
							m.p.X[i] = v
						}
					}
				}
			}
		}
	}
	m.keepObservationsIn(window[0], window[1])
	m.refreshScenarios()
	return m, nil
}

// keepObservationsIn drops observation times outside [t0, t1] and the
// series left empty.
func (m *Model) keepObservationsIn(t0, t1 float64) {
	tol := 1e-9 * (t1 - t0)
	var kept []Observation
	for _, o := range m.obs {
		var times, values []float64
		for i, t := range o.Times {
			if t >= t0-tol && t <= t1+tol {
				times = append(times, t)
				values = append(values, o.Values[i])
			}
		}
		if len(times) > 0 {
			o.Times, o.Values = times, values
			kept = append(kept, o)
		}
	}
	m.obs = kept
}

// SolveTrivialStep imposes the initial inlet concentrations and
// temperatures for the whole time window wherever no boundary condition or
// temperature has been set, and then simulates the window. It is meant
// for models created by LoadModelStateAsIC.
func (m *Model) SolveTrivialStep() error {
	const op = "SolveTrivialStep"
	if m.disc == nil {
		return newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
	}
	d := m.disc
	for sc := 0; sc < d.nsc; sc++ {
		l := m.scenarioLabels(sc)
		for s, g := range m.gas.names {
			if m.bcSet[speciesScenario{g, l.Age, l.Temp}] {
				continue
			}
			v := m.p.X[d.vi(famCb, s, sc, 0, 0)]
			m.setBC(s, sc, func(int) float64 { return v })
		}
		if m.tempSet[l] {
			continue
		}
		for iz := 0; iz < d.nz; iz++ {
			if m.energy != nil && iz > 0 {
				break
			}
			v := m.p.X[d.vi(famT, 0, sc, iz, 0)]
			for it := 1; it < d.nt; it++ {
				m.p.X[d.vi(famT, 0, sc, iz, it)] = v
			}
		}
		m.tempSet[l] = true
	}
	if err := m.initialize(); err != nil {
		return err
	}
	return m.InitializeSimulator()
}

// Load returns a function that replaces the state of a model with the
// document read from r. The logger, solver and manipulators of the model
// are kept.
func Load(r io.Reader, resetParamBounds bool) DomainManipulator {
	return func(m *Model) error {
		l, err := LoadModelFull(r, resetParamBounds)
		if err != nil {
			return err
		}
		l.InitFuncs, l.RunFuncs = m.InitFuncs, m.RunFuncs
		l.Log, l.Solver = m.Log, m.Solver
		l.RestartOnError, l.RestartOnWarning = m.RestartOnError, m.RestartOnWarning
		*m = *l
		return nil
	}
}

// Save returns a function that writes the model state to w.
func Save(w io.Writer) DomainManipulator {
	return func(m *Model) error {
		return m.Save(w)
	}
}

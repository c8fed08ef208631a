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
	"github.com/aladshaw3/cats-sub001/science/kinetics"
)

// Reaction is a heterogeneous reaction in the washcoat.
type Reaction struct {
	ID     string
	Family kinetics.Family

	// Reactants and Products map species (gas, surface species or
	// sites) to stoichiometric coefficients.
	Reactants, Products map[string]float64

	// Orders maps species to rate-law exponents. Species without an
	// entry use their stoichiometric coefficient.
	Orders map[string]float64

	override map[string]float64

	active, inactive [][2]float64

	param map[string]int
}

func newReaction(id string, f kinetics.Family) *Reaction {
	return &Reaction{
		ID:        id,
		Family:    f,
		Reactants: make(map[string]float64),
		Products:  make(map[string]float64),
		Orders:    make(map[string]float64),
		override:  make(map[string]float64),
		param:     make(map[string]int),
	}
}

// coefficient returns the molar contribution of the reaction to species s
// before zoning.
func (r *Reaction) coefficient(s string) float64 {
	if v, ok := r.override[s]; ok {
		return v
	}
	return r.Products[s] - r.Reactants[s]
}

// species returns every species named by the reaction, sorted.
func (r *Reaction) species() []string {
	m := make(map[string]struct{})
	for _, t := range []map[string]float64{r.Reactants, r.Products, r.Orders, r.override} {
		for s := range t {
			m[s] = struct{}{}
		}
	}
	o := make([]string, 0, len(m))
	for s := range m {
		o = append(o, s)
	}
	sort.Strings(o)
	return o
}

// mask returns 1 if the reaction is active at axial position z and 0
// otherwise.
func (r *Reaction) mask(z float64) float64 {
	const tol = 1e-12
	in := func(iv [2]float64) bool {
		return z >= iv[0]-tol && z <= iv[1]+tol
	}
	active := len(r.active) == 0
	for _, iv := range r.active {
		if in(iv) {
			active = true
			break
		}
	}
	if !active {
		return 0
	}
	for _, iv := range r.inactive {
		if in(iv) {
			return 0
		}
	}
	return 1
}

// Parameter is the state of a kinetic parameter.
type Parameter struct {
	Value, Lower, Upper float64
	Fixed               bool
}

// ReactionInfo describes the kinetics and stoichiometry of a reaction.
type ReactionInfo struct {
	// Parameters maps parameter names (A, E, dH, dS) to values.
	Parameters map[string]float64

	Reactants, Products map[string]float64

	// Orders overrides the default rate-law exponents.
	Orders map[string]float64
}

func (m *Model) addParameterVars(r *Reaction) {
	for _, name := range r.Family.Parameters() {
		i := m.p.AddVar(r.ID+"."+name, 0, 0, 0, nlp.GlobalBlock)
		r.param[name] = i
		if name == kinetics.DH && r.Family == kinetics.Arrhenius {
			// Only used in energy balances.
			m.p.Fixed[i] = true
		}
	}
	m.nParams = len(m.p.X)
}

func (m *Model) reaction(op, id string) (*Reaction, error) {
	i, ok := m.rxnIndex[id]
	if !ok {
		return nil, newError(DomainError, op, ErrUnknownIdentifier, "reaction %q", id)
	}
	return m.reactions[i], nil
}

func (m *Model) param(op, rxn, name string) (int, error) {
	r, err := m.reaction(op, rxn)
	if err != nil {
		return 0, err
	}
	i, ok := r.param[name]
	if !ok {
		return 0, newError(DomainError, op, ErrUnknownIdentifier, "parameter %q of %s reaction %s", name, r.Family, rxn)
	}
	return i, nil
}

// defaultBounds returns ±20% of v.
func defaultBounds(v float64) (lo, hi float64) {
	a, b := 0.8*v, 1.2*v
	return math.Min(a, b), math.Max(a, b)
}

// SetReactionInfo sets the parameters and stoichiometry of a reaction.
// Every given parameter receives bounds of ±20% of its value.
func (m *Model) SetReactionInfo(id string, info ReactionInfo) error {
	const op = "SetReactionInfo"
	r, err := m.reaction(op, id)
	if err != nil {
		return err
	}
	for name, v := range info.Parameters {
		i, ok := r.param[name]
		if !ok {
			return newError(DomainError, op, ErrUnknownIdentifier, "parameter %q of %s reaction %s", name, r.Family, id)
		}
		m.p.X[i] = v
		m.p.Lower[i], m.p.Upper[i] = defaultBounds(v)
	}
	if info.Reactants != nil {
		r.Reactants = copyMap(info.Reactants)
	}
	if info.Products != nil {
		r.Products = copyMap(info.Products)
	}
	if info.Orders != nil {
		r.Orders = copyMap(info.Orders)
	}
	return nil
}

func copyMap(in map[string]float64) map[string]float64 {
	o := make(map[string]float64, len(in))
	for k, v := range in {
		o[k] = v
	}
	return o
}

// SetParameter sets the value of a kinetic parameter. If the value lies
// outside the current bounds, the bounds are reset to ±20% of it.
func (m *Model) SetParameter(rxn, name string, v float64) error {
	i, err := m.param("SetParameter", rxn, name)
	if err != nil {
		return err
	}
	m.p.X[i] = v
	if v < m.p.Lower[i] || v > m.p.Upper[i] {
		m.p.Lower[i], m.p.Upper[i] = defaultBounds(v)
	}
	return nil
}

// SetParameterBounds sets the bounds of a kinetic parameter.
func (m *Model) SetParameterBounds(rxn, name string, lower, upper float64) error {
	const op = "SetParameterBounds"
	i, err := m.param(op, rxn, name)
	if err != nil {
		return err
	}
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return newError(DomainError, op, ErrUnknownIdentifier, "invalid bounds [%g, %g] for %s.%s", lower, upper, rxn, name)
	}
	m.p.Lower[i], m.p.Upper[i] = lower, upper
	return nil
}

// FixParameter holds a kinetic parameter at its current value.
func (m *Model) FixParameter(rxn, name string) error {
	i, err := m.param("FixParameter", rxn, name)
	if err != nil {
		return err
	}
	m.p.Fixed[i] = true
	return nil
}

// UnfixParameter makes a kinetic parameter a decision variable.
func (m *Model) UnfixParameter(rxn, name string) error {
	i, err := m.param("UnfixParameter", rxn, name)
	if err != nil {
		return err
	}
	m.p.Fixed[i] = false
	return nil
}

// Parameter returns the state of a kinetic parameter.
func (m *Model) Parameter(rxn, name string) (Parameter, error) {
	i, err := m.param("Parameter", rxn, name)
	if err != nil {
		return Parameter{}, err
	}
	return Parameter{Value: m.p.X[i], Lower: m.p.Lower[i], Upper: m.p.Upper[i], Fixed: m.p.Fixed[i]}, nil
}

// rateParameters returns the parameters that enter the rate law.
func rateParameters(r *Reaction) []string {
	if r.Family == kinetics.EquilibriumArrhenius {
		return []string{kinetics.A, kinetics.E, kinetics.DH, kinetics.DS}
	}
	return []string{kinetics.A, kinetics.E}
}

// FixAllReactions fixes every kinetic parameter.
func (m *Model) FixAllReactions() {
	for _, r := range m.reactions {
		for _, i := range r.param {
			m.p.Fixed[i] = true
		}
	}
}

// UnfixAllReactions frees every parameter that enters a rate law.
func (m *Model) UnfixAllReactions() {
	for _, r := range m.reactions {
		for _, name := range rateParameters(r) {
			m.p.Fixed[r.param[name]] = false
		}
	}
}

// FixAllEquilibriumThermodynamics fixes ΔH and ΔS of every
// EquilibriumArrhenius reaction.
func (m *Model) FixAllEquilibriumThermodynamics() {
	for _, r := range m.reactions {
		if r.Family != kinetics.EquilibriumArrhenius {
			continue
		}
		m.p.Fixed[r.param[kinetics.DH]] = true
		m.p.Fixed[r.param[kinetics.DS]] = true
	}
}

// SetMolarContribution overrides the molar contribution u of the reaction
// to a species, which otherwise is product − reactant stoichiometry.
func (m *Model) SetMolarContribution(rxn, species string, value float64) error {
	const op = "SetMolarContribution"
	r, err := m.reaction(op, rxn)
	if err != nil {
		return err
	}
	if !m.gas.has(species) && !m.surf.has(species) && !m.sites.has(species) {
		return newError(DomainError, op, ErrUnknownIdentifier, "species %q", species)
	}
	r.override[species] = value
	return nil
}

// SetReactionZone restricts the reaction to the axial interval [a, b],
// replacing every previous zone declaration.
func (m *Model) SetReactionZone(rxn string, a, b float64) error {
	r, err := m.reaction("SetReactionZone", rxn)
	if err != nil {
		return err
	}
	r.active = [][2]float64{{math.Min(a, b), math.Max(a, b)}}
	r.inactive = nil
	return nil
}

// SetReactionZoneInactive deactivates the reaction on the axial interval
// [a, b]. Inactive intervals accumulate.
func (m *Model) SetReactionZoneInactive(rxn string, a, b float64) error {
	r, err := m.reaction("SetReactionZoneInactive", rxn)
	if err != nil {
		return err
	}
	r.inactive = append(r.inactive, [2]float64{math.Min(a, b), math.Max(a, b)})
	return nil
}

// MolarContribution returns the zoned molar contribution u of reaction rxn
// to species at axial position z.
func (m *Model) MolarContribution(rxn, species string, z float64) (float64, error) {
	r, err := m.reaction("MolarContribution", rxn)
	if err != nil {
		return 0, err
	}
	v := r.coefficient(species) * r.mask(z)
	if v == 0 {
		// Masked reactant terms would otherwise give -0.
		v = 0
	}
	return v, nil
}

// params returns the current parameter values of r.
func (m *Model) params(r *Reaction, x []float64) kinetics.Params {
	p := kinetics.Params{
		A:  x[r.param[kinetics.A]],
		E:  x[r.param[kinetics.E]],
		DH: x[r.param[kinetics.DH]],
	}
	if i, ok := r.param[kinetics.DS]; ok {
		p.DS = x[i]
	}
	return p
}

// validateReactions checks that every species named by a reaction has
// been declared.
func (m *Model) validateReactions(op string) error {
	for _, r := range m.reactions {
		if len(r.Reactants) == 0 {
			return newError(DomainError, op, ErrUnknownIdentifier, "reaction %s has no reactants", r.ID)
		}
		for _, s := range r.species() {
			if !m.gas.has(s) && !m.surf.has(s) && !m.sites.has(s) {
				return newError(DomainError, op, ErrUnknownIdentifier, "species %q in reaction %s", s, r.ID)
			}
		}
	}
	return nil
}

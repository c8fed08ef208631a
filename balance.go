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
	"sort"

	"github.com/aladshaw3/cats-sub001/nlp"
	"github.com/aladshaw3/cats-sub001/science/kinetics"
)

// BuildConstraints freezes the sets of the model and checks that the
// reactions and transport properties are complete. The balance equations
// themselves are generated by Discretize.
func (m *Model) BuildConstraints() error {
	const op = "BuildConstraints"
	if m.built {
		return newError(OrderingError, op, ErrDiscretizationOutOfOrder, "BuildConstraints has already been called")
	}
	if !m.axial.set || !m.temporal.set {
		return newError(DomainError, op, ErrUnknownIdentifier, "the axial and time domains must be declared")
	}
	if m.ages.len() == 0 || m.temps.len() == 0 {
		return newError(DomainError, op, ErrUnknownIdentifier, "at least one age and one temperature must be declared")
	}
	if m.gas.len() == 0 {
		return newError(DomainError, op, ErrUnknownIdentifier, "no gas species declared")
	}
	m.Bed.Length = m.axial.End - m.axial.Start
	if err := m.validateReactions(op); err != nil {
		return err
	}
	if err := m.validateTransport(op); err != nil {
		return err
	}
	for _, s := range m.dataGas.names {
		if !m.gas.has(s) {
			return newError(DomainError, op, ErrUnknownIdentifier, "data gas species %q", s)
		}
	}
	for _, a := range m.dataAges.names {
		if !m.ages.has(a) {
			return newError(DomainError, op, ErrUnknownIdentifier, "data age %q", a)
		}
	}
	for _, t := range m.dataTemps.names {
		if !m.temps.has(t) {
			return newError(DomainError, op, ErrUnknownIdentifier, "data temperature %q", t)
		}
	}
	m.built = true
	return nil
}

// speciesRef locates a species among the state variable families.
type speciesRef struct {
	name string
	f    family
	s    int
}

// compiledReaction is a reaction with its species resolved to state
// variables.
type compiledReaction struct {
	r    *Reaction
	refs []speciesRef
}

// ref resolves a species name. Gas species react in the washcoat pores.
func (m *Model) ref(name string) speciesRef {
	if i, ok := m.gas.idx(name); ok {
		return speciesRef{name, famC, i}
	}
	if i, ok := m.surf.idx(name); ok {
		return speciesRef{name, famQ, i}
	}
	i, _ := m.sites.idx(name)
	return speciesRef{name, famS, i}
}

// compileReactions resolves the species of every reaction. The species
// named by each reaction are fixed from here on; coefficients, orders,
// overrides and zones are read when the residuals are evaluated.
func (m *Model) compileReactions() {
	d := m.disc
	d.rxns = make([]compiledReaction, len(m.reactions))
	for i, r := range m.reactions {
		cr := compiledReaction{r: r}
		for _, s := range r.species() {
			cr.refs = append(cr.refs, m.ref(s))
		}
		d.rxns[i] = cr
	}
}

// exponent returns the rate-law exponent of species s with stoichiometric
// coefficient v.
func (r *Reaction) exponent(s string, v float64) float64 {
	if o, ok := r.Orders[s]; ok {
		return o
	}
	return v
}

// rate evaluates reaction cr at a grid point.
func (m *Model) rate(cr *compiledReaction, x []float64, sc, iz, it int) float64 {
	d := m.disc
	reac, prod := 1., 1.
	for _, ref := range cr.refs {
		c := x[d.vi(ref.f, ref.s, sc, iz, it)]
		if v, ok := cr.r.Reactants[ref.name]; ok {
			reac *= kinetics.Power(c, cr.r.exponent(ref.name, v))
		}
		if v, ok := cr.r.Products[ref.name]; ok {
			prod *= kinetics.Power(c, cr.r.exponent(ref.name, v))
		}
	}
	return cr.r.Family.Rate(m.params(cr.r, x), m.reactionTemperature(x, sc, iz, it), reac, prod)
}

// reactionTemperature is the solid temperature when the energy balance is
// enabled and the gas temperature otherwise.
func (m *Model) reactionTemperature(x []float64, sc, iz, it int) float64 {
	if m.energy != nil {
		return x[m.disc.vi(famTs, 0, sc, iz, it)]
	}
	return x[m.disc.vi(famT, 0, sc, iz, it)]
}

// source returns Σ u·r for species name at a grid point.
func (m *Model) source(name string, x []float64, sc, iz, it int) float64 {
	d := m.disc
	z := d.z[iz]
	var v float64
	for i := range d.rxns {
		cr := &d.rxns[i]
		u := cr.r.coefficient(name)
		if u == 0 {
			continue
		}
		mask := cr.r.mask(z)
		if mask == 0 {
			continue
		}
		v += u * mask * m.rate(cr, x, sc, iz, it)
	}
	return v
}

// reacts reports whether any reaction names species s.
func (m *Model) reacts(s string) bool {
	for _, cr := range m.disc.rxns {
		for _, ref := range cr.refs {
			if ref.name == s {
				return true
			}
		}
	}
	return false
}

// rateVars returns the variables that the rates of the reactions naming
// species s depend on at a grid point. An empty s selects every reaction.
func (m *Model) rateVars(s string, sc, iz, it int) []int {
	d := m.disc
	var o []int
	for _, cr := range d.rxns {
		named := s == ""
		for _, ref := range cr.refs {
			if ref.name == s {
				named = true
			}
		}
		if !named {
			continue
		}
		for _, ref := range cr.refs {
			o = append(o, d.vi(ref.f, ref.s, sc, iz, it))
		}
		for _, p := range cr.r.param {
			o = append(o, p)
		}
		if m.energy != nil {
			o = append(o, d.vi(famTs, 0, sc, iz, it))
		} else {
			o = append(o, d.vi(famT, 0, sc, iz, it))
		}
	}
	return o
}

// unique sorts and deduplicates variable indices.
func unique(v []int) []int {
	sort.Ints(v)
	o := v[:0]
	for i, x := range v {
		if i == 0 || x != v[i-1] {
			o = append(o, x)
		}
	}
	return o
}

// timeVars returns the variables of family f selected by a stencil over
// time nodes.
func (d *discretization) timeVars(st stencil, f family, s, sc, iz int) []int {
	o := make([]int, len(st.nodes))
	for k, n := range st.nodes {
		o[k] = d.vi(f, s, sc, iz, n)
	}
	return o
}

// axialVars returns the variables of family f selected by a stencil over
// axial nodes.
func (d *discretization) axialVars(st stencil, f family, s, sc, it int) []int {
	o := make([]int, len(st.nodes))
	for k, n := range st.nodes {
		o[k] = d.vi(f, s, sc, n, it)
	}
	return o
}

// ddt evaluates the time derivative of family f at a grid point. It is
// zero in steady mode.
func (d *discretization) ddt(x []float64, steady bool, f family, s, sc, iz, it int) float64 {
	if steady {
		return 0
	}
	return d.dt[it].eval(x, func(n int) int { return d.vi(f, s, sc, iz, n) })
}

// ddz evaluates the first axial derivative of family f at a grid point.
func (d *discretization) ddz(x []float64, f family, s, sc, iz, it int) float64 {
	return d.dz[iz].eval(x, func(n int) int { return d.vi(f, s, sc, n, it) })
}

// d2dz2 evaluates the second axial derivative of family f at a grid point.
func (d *discretization) d2dz2(x []float64, f family, s, sc, iz, it int) float64 {
	return d.dz2[iz].eval(x, func(n int) int { return d.vi(f, s, sc, n, it) })
}

// point identifies where an equation is written and which problem block
// it belongs to.
type point struct {
	sc, iz, it int
	block      int
	steady     bool
}

// addBalances writes the mass balances of every scenario at every time
// node after the first.
func (m *Model) addBalances() {
	d := m.disc
	for sc := 0; sc < d.nsc; sc++ {
		for it := 1; it < d.nt; it++ {
			for iz := 0; iz < d.nz; iz++ {
				m.pointBalances(&m.p, point{sc: sc, iz: iz, it: it, block: d.block(sc, it)})
			}
		}
	}
}

// pointBalances appends the mass balances at one grid point to p.
func (m *Model) pointBalances(p *nlp.Problem, pt point) {
	for s := range m.gas.names {
		if pt.iz > 0 {
			p.AddConstraint(m.bulkBalance(s, pt))
		}
		p.AddConstraint(m.poreBalance(s, pt))
	}
	for s := range m.surf.names {
		p.AddConstraint(m.surfaceBalance(s, pt))
	}
	for s := range m.sites.names {
		p.AddConstraint(m.siteBalance(s, pt))
	}
}

func (m *Model) name(f family, s int, pt point) string {
	l := m.scenarioLabels(pt.sc)
	d := m.disc
	return fmt.Sprintf("%s[%s,%s,%s,%g,%g]", f, m.memberName(f, s), l.Age, l.Temp, d.z[pt.iz], d.t[pt.it])
}

// bulkBalance is ∂Cb/∂t + v ∂Cb/∂z + (k_m G_a/ε_b)(Cb − C) = 0.
func (m *Model) bulkBalance(s int, pt point) nlp.Constraint {
	d := m.disc
	sc, iz, it := pt.sc, pt.iz, pt.it
	cb := d.vi(famCb, s, sc, iz, it)
	c := d.vi(famC, s, sc, iz, it)
	tg := d.vi(famT, 0, sc, iz, it)
	vars := []int{c, tg}
	vars = append(vars, d.axialVars(d.dz[iz], famCb, s, sc, it)...)
	if !pt.steady {
		vars = append(vars, d.timeVars(d.dt[it], famCb, s, sc, iz)...)
	}
	ga, eb := m.Bed.Area(), m.Bed.BulkPorosity
	return nlp.Constraint{
		Name:  "bulk:" + m.name(famCb, s, pt),
		Vars:  unique(vars),
		Block: pt.block,
		Eval: func(x []float64) float64 {
			tp := m.transportAt(sc, s, x[tg])
			return d.ddt(x, pt.steady, famCb, s, sc, iz, it) +
				tp.v*d.ddz(x, famCb, s, sc, iz, it) +
				tp.km*ga/eb*(x[cb]-x[c])
		},
	}
}

// poreBalance is ε_w ∂C/∂t − (k_m G_a/(1−ε_b))(Cb − C) − Σ u_C r = 0.
func (m *Model) poreBalance(s int, pt point) nlp.Constraint {
	d := m.disc
	sc, iz, it := pt.sc, pt.iz, pt.it
	name := m.gas.names[s]
	cb := d.vi(famCb, s, sc, iz, it)
	c := d.vi(famC, s, sc, iz, it)
	tg := d.vi(famT, 0, sc, iz, it)
	vars := []int{cb, c, tg}
	vars = append(vars, m.rateVars(name, sc, iz, it)...)
	if !pt.steady {
		vars = append(vars, d.timeVars(d.dt[it], famC, s, sc, iz)...)
	}
	ga, eb := m.Bed.Area(), m.Bed.BulkPorosity
	return nlp.Constraint{
		Name:  "pore:" + m.name(famC, s, pt),
		Vars:  unique(vars),
		Block: pt.block,
		Eval: func(x []float64) float64 {
			tp := m.transportAt(sc, s, x[tg])
			return m.WashcoatPorosity*d.ddt(x, pt.steady, famC, s, sc, iz, it) -
				tp.km*ga/(1-eb)*(x[cb]-x[c]) -
				m.source(name, x, sc, iz, it)
		},
	}
}

// surfaceBalance is ∂q/∂t − Σ u_q r = 0. In steady mode a species that
// takes part in no reaction keeps its current value.
func (m *Model) surfaceBalance(s int, pt point) nlp.Constraint {
	d := m.disc
	sc, iz, it := pt.sc, pt.iz, pt.it
	name := m.surf.names[s]
	q := d.vi(famQ, s, sc, iz, it)
	vars := []int{q}
	vars = append(vars, m.rateVars(name, sc, iz, it)...)
	if !pt.steady {
		vars = append(vars, d.timeVars(d.dt[it], famQ, s, sc, iz)...)
	}
	c := nlp.Constraint{
		Name:  "surface:" + m.name(famQ, s, pt),
		Vars:  unique(vars),
		Block: pt.block,
		Eval: func(x []float64) float64 {
			return d.ddt(x, pt.steady, famQ, s, sc, iz, it) - m.source(name, x, sc, iz, it)
		},
	}
	if pt.steady && !m.reacts(name) {
		q0 := m.p.X[q]
		c.Vars = []int{q}
		c.Eval = func(x []float64) float64 { return x[q] - q0 }
	}
	return c
}

// siteBalance is S + Σ u_S q − Smax = 0.
func (m *Model) siteBalance(s int, pt point) nlp.Constraint {
	d := m.disc
	sc, iz, it := pt.sc, pt.iz, pt.it
	site := m.sites.names[s]
	sv := d.vi(famS, s, sc, iz, it)
	vars := []int{sv}
	type term struct {
		i int
		u float64
	}
	var terms []term
	for _, q := range sortedKeys(m.siteTerms[site]) {
		i, _ := m.surf.idx(q)
		terms = append(terms, term{d.vi(famQ, i, sc, iz, it), m.siteTerms[site][q]})
		vars = append(vars, d.vi(famQ, i, sc, iz, it))
	}
	return nlp.Constraint{
		Name:  "site:" + m.name(famS, s, pt),
		Vars:  unique(vars),
		Block: pt.block,
		Eval: func(x []float64) float64 {
			v := x[sv] - d.scen[sc].smax[s]
			for _, t := range terms {
				v += t.u * x[t.i]
			}
			return v
		},
	}
}

// openSites returns Smax − Σ u_S q of site s at a grid point.
func (m *Model) openSites(s int, x []float64, sc, iz, it int) float64 {
	d := m.disc
	site := m.sites.names[s]
	v := d.scen[sc].smax[s]
	for _, q := range sortedKeys(m.siteTerms[site]) {
		i, _ := m.surf.idx(q)
		v -= m.siteTerms[site][q] * x[d.vi(famQ, i, sc, iz, it)]
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	o := make([]string, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

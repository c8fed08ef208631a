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
	"math"

	"github.com/aladshaw3/cats-sub001/internal/collocation"
	"github.com/aladshaw3/cats-sub001/nlp"
	"github.com/sirupsen/logrus"
)

// Method is a discretization scheme.
type Method int

const (
	// FiniteDifference uses backward (upwind) differences for first
	// derivatives and central differences for second derivatives.
	FiniteDifference Method = iota

	// OrthogonalCollocation uses Lagrange–Radau collocation on finite
	// elements.
	OrthogonalCollocation
)

func (m Method) String() string {
	switch m {
	case FiniteDifference:
		return "FiniteDifference"
	case OrthogonalCollocation:
		return "OrthogonalCollocation"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod converts a method name into a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "FiniteDifference", "finite_difference", "fd", "FD":
		return FiniteDifference, nil
	case "OrthogonalCollocation", "orthogonal_collocation", "collocation", "OC":
		return OrthogonalCollocation, nil
	}
	return 0, fmt.Errorf("cats: invalid discretization method %q", s)
}

// DiscretizationOptions configures Discretize.
type DiscretizationOptions struct {
	Method Method

	// TimeElements and AxialElements are the numbers of uniform finite
	// elements. User and sensor points are added to them.
	TimeElements, AxialElements int

	// CollocationPoints is the number of Radau points per element for
	// OrthogonalCollocation.
	CollocationPoints int
}

// family is a family of discretized variables.
type family int

const (
	famCb family = iota // bulk gas concentration
	famC                // washcoat pore concentration
	famQ                // surface species concentration
	famS                // open site concentration
	famT                // gas temperature
	famTs               // solid temperature
	famTw               // wall temperature
	nFamilies
)

var familyNames = [nFamilies]string{"Cb", "C", "q", "S", "T", "Ts", "Tw"}

func (f family) String() string { return familyNames[f] }

func parseFamily(s string) (family, bool) {
	for i, n := range familyNames {
		if n == s {
			return family(i), true
		}
	}
	return 0, false
}

// stencil is a linear combination of grid nodes.
type stencil struct {
	nodes []int
	w     []float64
}

// eval applies the stencil to x, where idx maps a node to a variable.
func (s stencil) eval(x []float64, idx func(int) int) float64 {
	var v float64
	for k, n := range s.nodes {
		v += s.w[k] * x[idx(n)]
	}
	return v
}

type discretization struct {
	opts DiscretizationOptions

	z, t   []float64
	zb, tb []float64 // element boundaries

	dz, dz2 []stencil // by axial node
	dt      []stencil // by time node
	tblock  []int     // time block of each time node

	nz, nt, nsc int
	count       [nFamilies]int // number of members of each family
	base        [nFamilies]int

	scen []scenarioConstants
	mix  mixture

	rxns []compiledReaction
}

// vi returns the index of a state variable.
func (d *discretization) vi(f family, s, sc, iz, it int) int {
	return d.base[f] + ((s*d.nsc+sc)*d.nz+iz)*d.nt + it
}

// block returns the solve block of scenario sc at time node it.
func (d *discretization) block(sc, it int) int {
	return d.tblock[it]*d.nsc + sc
}

// predict sets the free state of solve block b to the state at the time
// node preceding it, so a time element can be restarted from the end of
// the previous one.
func (m *Model) predict(x []float64, b int) {
	d := m.disc
	tb, sc := b/d.nsc, b%d.nsc
	first := -1
	for it, k := range d.tblock {
		if k == tb {
			first = it
			break
		}
	}
	if first < 1 {
		return
	}
	for f := family(0); f < nFamilies; f++ {
		for s := 0; s < d.count[f]; s++ {
			for iz := 0; iz < d.nz; iz++ {
				prev := x[d.vi(f, s, sc, iz, first-1)]
				for it := first; it < d.nt && d.tblock[it] == tb; it++ {
					if i := d.vi(f, s, sc, iz, it); !m.p.Fixed[i] {
						x[i] = prev
					}
				}
			}
		}
	}
}

// uniform returns n+1 evenly spaced points on [a, b].
func uniform(a, b float64, n int) []float64 {
	o := make([]float64, n+1)
	for i := range o {
		o[i] = a + (b-a)*float64(i)/float64(n)
	}
	o[n] = b
	return o
}

// boundaries returns the element boundaries of a continuous set.
func boundaries(c continuous, n int, extra []float64) []float64 {
	pts := uniform(c.Start, c.End, n)
	pts = mergePoints(pts, c.Points)
	for _, v := range extra {
		if v >= c.Start && v <= c.End {
			pts = mergePoints(pts, []float64{v})
		}
	}
	return pts
}

// grid builds the nodes and first- and second-derivative stencils over
// element boundaries b.
func grid(b []float64, method Method, k int) (nodes []float64, d1, d2 []stencil, elem []int, err error) {
	ne := len(b) - 1
	if method == FiniteDifference {
		nodes = append([]float64(nil), b...)
		n := len(nodes)
		d1 = make([]stencil, n)
		d2 = make([]stencil, n)
		elem = make([]int, n)
		for i := range nodes {
			elem[i] = i
		}
		h := nodes[1] - nodes[0]
		d1[0] = stencil{nodes: []int{0, 1}, w: []float64{-1 / h, 1 / h}}
		for i := 1; i < n; i++ {
			h := nodes[i] - nodes[i-1]
			d1[i] = stencil{nodes: []int{i - 1, i}, w: []float64{-1 / h, 1 / h}}
			if i < n-1 {
				h1, h2 := nodes[i]-nodes[i-1], nodes[i+1]-nodes[i]
				d2[i] = stencil{
					nodes: []int{i - 1, i, i + 1},
					w:     []float64{2 / (h1 * (h1 + h2)), -2 / (h1 * h2), 2 / (h2 * (h1 + h2))},
				}
			}
		}
		return nodes, d1, d2, elem, nil
	}
	e, err := collocation.NewElement(k)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	n := ne*k + 1
	nodes = make([]float64, n)
	d1 = make([]stencil, n)
	d2 = make([]stencil, n)
	elem = make([]int, n)
	nodes[0] = b[0]
	for el := 0; el < ne; el++ {
		h := b[el+1] - b[el]
		first := el * k
		local := make([]int, k+1)
		for j := range local {
			local[j] = first + j
		}
		for i := 1; i <= k; i++ {
			nodes[first+i] = b[el] + h*e.Nodes[i]
			elem[first+i] = el + 1
		}
		nodes[first+k] = b[el+1]
		rows := []int{}
		for i := 1; i <= k; i++ {
			rows = append(rows, i)
		}
		if el == 0 {
			rows = append([]int{0}, rows...)
		}
		for _, i := range rows {
			s1 := stencil{nodes: local, w: make([]float64, k+1)}
			s2 := stencil{nodes: local, w: make([]float64, k+1)}
			for j := 0; j <= k; j++ {
				s1.w[j] = e.D.At(i, j) / h
				s2.w[j] = e.D2.At(i, j) / (h * h)
			}
			d1[first+i] = s1
			if first+i > 0 && first+i < n-1 {
				d2[first+i] = s2
			}
		}
	}
	return nodes, d1, d2, elem, nil
}

// Discretize transforms the continuous model into algebraic equations
// on a grid. It clears every boundary and initial condition.
func (m *Model) Discretize(opts DiscretizationOptions) error {
	const op = "Discretize"
	if !m.built {
		return newError(OrderingError, op, ErrDiscretizationOutOfOrder, "BuildConstraints has not been called")
	}
	if m.disc != nil {
		return newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model is already discretized; call ResetDiscretization first")
	}
	if opts.TimeElements < 1 || opts.AxialElements < 1 {
		return newError(DomainError, op, ErrUnknownIdentifier, "need at least one time and axial element, got %d and %d", opts.TimeElements, opts.AxialElements)
	}
	k := opts.CollocationPoints
	if opts.Method == OrthogonalCollocation && k < 1 {
		return newError(DomainError, op, ErrUnknownIdentifier, "need at least one collocation point, got %d", k)
	}
	for _, z := range m.axialData {
		if z < m.axial.Start || z > m.axial.End {
			return newError(DomainError, op, ErrUnknownIdentifier, "axial sensor position %g is outside [%g, %g]", z, m.axial.Start, m.axial.End)
		}
	}

	d := &discretization{opts: opts, nsc: m.numScenarios()}
	d.zb = boundaries(m.axial, opts.AxialElements, m.axialData)
	d.tb = boundaries(m.temporal, opts.TimeElements, nil)
	var err error
	d.z, d.dz, d.dz2, _, err = grid(d.zb, opts.Method, k)
	if err != nil {
		return newError(DomainError, op, ErrUnknownIdentifier, "%v", err)
	}
	d.t, d.dt, _, d.tblock, err = grid(d.tb, opts.Method, k)
	if err != nil {
		return newError(DomainError, op, ErrUnknownIdentifier, "%v", err)
	}
	d.dt[0] = stencil{}
	d.nz, d.nt = len(d.z), len(d.t)

	d.count[famCb] = m.gas.len()
	d.count[famC] = m.gas.len()
	d.count[famQ] = m.surf.len()
	d.count[famS] = m.sites.len()
	d.count[famT] = 1
	if m.energy != nil {
		d.count[famTs] = 1
		d.count[famTw] = 1
	}
	m.disc = d
	m.createVariables()
	m.compileReactions()
	m.addBalances()
	if m.energy != nil {
		m.addEnergyBalances()
	}
	m.clearConditions()

	m.p.Predict = m.predict
	m.logger().WithFields(logrus.Fields{
		"method":      opts.Method,
		"axial":       d.nz,
		"time":        d.nt,
		"variables":   len(m.p.X),
		"constraints": len(m.p.Constraints),
	}).Info("cats: discretized model")
	return nil
}

// ResetDiscretization removes the discretized equations and variables so
// that Discretize may be called again.
func (m *Model) ResetDiscretization() {
	n := m.nParams
	m.p.Names = m.p.Names[:n]
	m.p.X = m.p.X[:n]
	m.p.Lower = m.p.Lower[:n]
	m.p.Upper = m.p.Upper[:n]
	m.p.Fixed = m.p.Fixed[:n]
	m.p.Scale = m.p.Scale[:n]
	m.p.Block = m.p.Block[:n]
	m.p.Constraints = nil
	m.p.Objective = nil
	m.p.Predict = nil
	m.disc = nil
	m.seed = nil
	m.clearConditions()
}

func (m *Model) clearConditions() {
	m.bcSet = make(map[speciesScenario]bool)
	m.tempSet = make(map[scenario]bool)
	m.refresh = make(map[string]func())
}

// memberName returns the identifier of member s of family f.
func (m *Model) memberName(f family, s int) string {
	switch f {
	case famCb, famC:
		return m.gas.names[s]
	case famQ:
		return m.surf.names[s]
	case famS:
		return m.sites.names[s]
	}
	return f.String()
}

// createVariables appends the state variables to the problem.
func (m *Model) createVariables() {
	d := m.disc
	for f := family(0); f < nFamilies; f++ {
		d.base[f] = len(m.p.X)
		for s := 0; s < d.count[f]; s++ {
			for sc := 0; sc < d.nsc; sc++ {
				for iz := 0; iz < d.nz; iz++ {
					for it := 0; it < d.nt; it++ {
						lo, hi, v := 0., math.Inf(1), 0.
						if f >= famT {
							lo, hi, v = 1, 1e4, m.RefTemperature
						}
						i := m.p.AddVar(f.String(), v, lo, hi, d.block(sc, it))
						m.p.Fixed[i] = it == 0 ||
							(f == famCb && iz == 0) ||
							(f == famT && (m.energy == nil || iz == 0))
					}
				}
			}
		}
	}
}

// AxialPoints returns the axial grid.
func (m *Model) AxialPoints() []float64 {
	if m.disc == nil {
		return nil
	}
	return append([]float64(nil), m.disc.z...)
}

// TimePoints returns the time grid.
func (m *Model) TimePoints() []float64 {
	if m.disc == nil {
		return nil
	}
	return append([]float64(nil), m.disc.t...)
}

// NumVariables returns the number of variables and NumConstraints the
// number of equality constraints of the discretized problem.
func (m *Model) NumVariables() int { return len(m.p.X) }

// NumConstraints returns the number of equality constraints.
func (m *Model) NumConstraints() int { return len(m.p.Constraints) }

// Problem returns the underlying NLP. It is shared with the model.
func (m *Model) Problem() *nlp.Problem { return &m.p }

// nearest returns the index of the value in s closest to v.
func nearest(s []float64, v float64) int {
	best, bi := math.Inf(1), 0
	for i, x := range s {
		if d := math.Abs(x - v); d < best {
			best, bi = d, i
		}
	}
	return bi
}

// indexOf returns the index of v in s within a relative tolerance of the
// span of s.
func indexOf(s []float64, v float64) (int, bool) {
	if len(s) == 0 {
		return 0, false
	}
	i := nearest(s, v)
	span := s[len(s)-1] - s[0]
	if span == 0 {
		span = 1
	}
	return i, math.Abs(s[i]-v) <= 1e-9*span
}

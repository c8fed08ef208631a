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
	"strings"
	"text/tabwriter"

	"github.com/aladshaw3/cats-sub001/science/kinetics"
	"github.com/ctessum/sparse"
	"github.com/tealeg/xlsx"
)

// Series is a time series of one quantity.
type Series struct {
	Times  []float64
	Values []float64
}

// quantity resolves a species, site or temperature name ("T", "Ts",
// "Tw") to a variable family.
func (m *Model) quantity(op, name, age, temp string) (f family, s, sc int, err error) {
	if m.disc == nil {
		return 0, 0, 0, newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
	}
	sc, err = m.scenarioIndex(op, age, temp)
	if err != nil {
		return 0, 0, 0, err
	}
	if i, ok := m.gas.idx(name); ok {
		return famCb, i, sc, nil
	}
	if i, ok := m.surf.idx(name); ok {
		return famQ, i, sc, nil
	}
	if i, ok := m.sites.idx(name); ok {
		return famS, i, sc, nil
	}
	if f, ok := parseFamily(name); ok && f >= famT && m.disc.count[f] > 0 {
		return f, 0, sc, nil
	}
	return 0, 0, 0, newError(DomainError, op, ErrUnknownIdentifier, "%q", name)
}

func (m *Model) seriesAt(f family, s, sc, iz int) Series {
	d := m.disc
	o := Series{Times: append([]float64(nil), d.t...), Values: make([]float64, d.nt)}
	for it := range o.Values {
		o.Values[it] = m.p.X[d.vi(f, s, sc, iz, it)]
	}
	return o
}

// Breakthrough returns the outlet time series of a gas species (bulk
// concentration), surface species, site or temperature.
func (m *Model) Breakthrough(name, age, temp string) (Series, error) {
	f, s, sc, err := m.quantity("Breakthrough", name, age, temp)
	if err != nil {
		return Series{}, err
	}
	return m.seriesAt(f, s, sc, m.disc.nz-1), nil
}

// Location returns the time series at the axial node nearest to z.
func (m *Model) Location(name, age, temp string, z float64) (Series, error) {
	f, s, sc, err := m.quantity("Location", name, age, temp)
	if err != nil {
		return Series{}, err
	}
	return m.seriesAt(f, s, sc, nearest(m.disc.z, z)), nil
}

// AllLocations returns the values at every axial and time node as an
// array of shape [z, t].
func (m *Model) AllLocations(name, age, temp string) (*sparse.DenseArray, error) {
	f, s, sc, err := m.quantity("AllLocations", name, age, temp)
	if err != nil {
		return nil, err
	}
	d := m.disc
	o := sparse.ZerosDense(d.nz, d.nt)
	for iz := 0; iz < d.nz; iz++ {
		for it := 0; it < d.nt; it++ {
			o.Set(m.p.X[d.vi(f, s, sc, iz, it)], iz, it)
		}
	}
	return o, nil
}

// IntegralAverage returns the time series of the axial average
// (1/L)∫ x dz, integrated with the trapezoid rule over the axial nodes.
func (m *Model) IntegralAverage(name, age, temp string) (Series, error) {
	f, s, sc, err := m.quantity("IntegralAverage", name, age, temp)
	if err != nil {
		return Series{}, err
	}
	return m.integralAverage(f, s, sc), nil
}

func (m *Model) integralAverage(f family, s, sc int) Series {
	d := m.disc
	o := Series{Times: append([]float64(nil), d.t...), Values: make([]float64, d.nt)}
	L := d.z[d.nz-1] - d.z[0]
	for it := range o.Values {
		var sum float64
		for iz := 1; iz < d.nz; iz++ {
			a := m.p.X[d.vi(f, s, sc, iz-1, it)]
			b := m.p.X[d.vi(f, s, sc, iz, it)]
			sum += (a + b) / 2 * (d.z[iz] - d.z[iz-1])
		}
		o.Values[it] = sum / L
	}
	return o
}

// ParameterReport is one row of the kinetic parameter report.
type ParameterReport struct {
	Reaction string
	Family   kinetics.Family

	// Values, Lower, Upper and Fixed are keyed by parameter name.
	Values, Lower, Upper map[string]float64
	Fixed                map[string]bool
}

// KineticParameterReport returns the state of every kinetic parameter in
// reaction declaration order. The heat of reaction of an Arrhenius
// reaction is only reported with energy balances.
func (m *Model) KineticParameterReport() []ParameterReport {
	o := make([]ParameterReport, len(m.reactions))
	for i, r := range m.reactions {
		p := ParameterReport{
			Reaction: r.ID,
			Family:   r.Family,
			Values:   make(map[string]float64),
			Lower:    make(map[string]float64),
			Upper:    make(map[string]float64),
			Fixed:    make(map[string]bool),
		}
		for name, j := range r.param {
			if !reported(r, name, m.energy != nil) {
				continue
			}
			p.Values[name] = m.p.X[j]
			p.Lower[name] = m.p.Lower[j]
			p.Upper[name] = m.p.Upper[j]
			p.Fixed[name] = m.p.Fixed[j]
		}
		o[i] = p
	}
	return o
}

// reported reports whether parameter name of r applies to the model.
func reported(r *Reaction, name string, energy bool) bool {
	if name == kinetics.DH && energy {
		return true
	}
	for _, n := range rateParameters(r) {
		if n == name {
			return true
		}
	}
	return false
}

var reportParams = []string{kinetics.A, kinetics.E, kinetics.DH, kinetics.DS}

func reportHeaders() []string {
	h := []string{"rxn_id", "family"}
	h = append(h, reportParams...)
	for _, p := range []string{kinetics.A, kinetics.E} {
		h = append(h, p+"_lb", p+"_ub")
	}
	return append(h, "fixed")
}

// cells returns the report row as text. Parameters the family does not
// have are "-".
func (p ParameterReport) cells() []string {
	o := []string{p.Reaction, p.Family.String()}
	format := func(v float64, ok bool) string {
		if !ok {
			return "-"
		}
		return fmt.Sprintf("%.6g", v)
	}
	for _, name := range reportParams {
		v, ok := p.Values[name]
		o = append(o, format(v, ok))
	}
	for _, name := range []string{kinetics.A, kinetics.E} {
		o = append(o, format(p.Lower[name], true), format(p.Upper[name], true))
	}
	var fixed []string
	for _, name := range reportParams {
		if p.Fixed[name] {
			fixed = append(fixed, name)
		}
	}
	if len(fixed) == 0 {
		fixed = []string{"-"}
	}
	return append(o, strings.Join(fixed, ","))
}

// WriteKineticReport writes the kinetic parameter report as
// whitespace-aligned text.
func (m *Model) WriteKineticReport(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(reportHeaders(), "\t"))
	for _, p := range m.KineticParameterReport() {
		fmt.Fprintln(tw, strings.Join(p.cells(), "\t"))
	}
	return tw.Flush()
}

// WriteKineticReportXLSX writes the kinetic parameter report as a
// spreadsheet.
func (m *Model) WriteKineticReportXLSX(w io.Writer) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("kinetics")
	if err != nil {
		return fmt.Errorf("cats: writing kinetic report: %v", err)
	}
	row := sheet.AddRow()
	for _, h := range reportHeaders() {
		row.AddCell().SetString(h)
	}
	for _, p := range m.KineticParameterReport() {
		row := sheet.AddRow()
		for i, c := range p.cells() {
			cell := row.AddCell()
			var v float64
			if i >= 2 && c != "-" {
				if _, err := fmt.Sscan(c, &v); err == nil && !math.IsNaN(v) {
					cell.SetFloat(v)
					continue
				}
			}
			cell.SetString(c)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("cats: writing kinetic report: %v", err)
	}
	return nil
}

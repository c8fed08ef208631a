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
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/aladshaw3/cats-sub001/science/transport"
	"github.com/aladshaw3/cats-sub001/tabular"
)

// Outputter writes model results to a directory.
//
// outputVariables maps the names of derived quantities to expressions
// that define how they are calculated from the model variables at each
// time node. Expressions may refer to other derived quantities.
//
// modelVariables is generated from the model variables that are required
// to calculate the requested derived quantities.
type Outputter struct {
	dir             string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

// NewOutputter initializes a new Outputter and adds a set of default
// output functions:
//
// 'exp(x)' and 'log(x)', the exponential and natural logarithm.
//
// 'pow(x, y)' which returns x^y.
//
// 'ppm(c, T, P)' which converts a concentration c [mol/L] at temperature
// T [K] and pressure P [kPa] to ppm.
func NewOutputter(dir string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("cats: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return math.Exp(arg[0].(float64)), nil
		},
		"log": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("cats: got %d arguments for function 'log', but needs 1", len(arg))
			}
			return math.Log(arg[0].(float64)), nil
		},
		"pow": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 2 {
				return nil, fmt.Errorf("cats: got %d arguments for function 'pow', but needs 2", len(arg))
			}
			return math.Pow(arg[0].(float64), arg[1].(float64)), nil
		},
		"ppm": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 3 {
				return nil, fmt.Errorf("cats: got %d arguments for function 'ppm', but needs 3", len(arg))
			}
			return transport.MolarToPPM(arg[0].(float64), arg[2].(float64), arg[1].(float64)), nil
		},
	}
	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}
	vars := make(map[string]string, len(outputVariables))
	for k, v := range outputVariables {
		vars[k] = v
	}
	o := &Outputter{
		dir:             dir,
		outputVariables: vars,
		outputFunctions: defaultOutputFuncs,
	}
	if err := checkOutputNames(o.outputVariables); err != nil {
		return nil, err
	}
	if err := o.checkForDerivatives(); err != nil {
		return nil, err
	}
	return o, nil
}

// removeDuplicates removes all duplicated strings from a slice, returning a
// slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]bool)
	for _, val := range s {
		if !seen[val] {
			result = append(result, val)
			seen[val] = true
		}
	}
	return result
}

// checkForDerivatives replaces every derived quantity referenced by another
// expression with its own expression, and collects the model variables the
// expressions need.
func (o *Outputter) checkForDerivatives() error {
	for depth := 0; ; depth++ {
		if depth > len(o.outputVariables) {
			return fmt.Errorf("cats: output variables refer to each other in a cycle")
		}
		replaced := false
		o.modelVariables = o.modelVariables[:0]
		keys := sortedKeys(o.outputVariables)
		for _, key := range keys {
			expression, err := govaluate.NewEvaluableExpressionWithFunctions(o.outputVariables[key], o.outputFunctions)
			if err != nil {
				return fmt.Errorf("cats: output variable %s: %v", key, err)
			}
			for _, v := range removeDuplicates(expression.Vars()) {
				def, ok := o.outputVariables[v]
				if !ok {
					o.modelVariables = append(o.modelVariables, v)
					continue
				}
				if v == key {
					return fmt.Errorf("cats: output variable %s refers to itself", key)
				}
				re := regexp.MustCompile(`\b` + regexp.QuoteMeta(v) + `\b`)
				o.outputVariables[key] = re.ReplaceAllString(o.outputVariables[key], "("+def+")")
				replaced = true
			}
		}
		if !replaced {
			break
		}
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	sort.Strings(o.modelVariables)
	return nil
}

var outputNameRE = regexp.MustCompile(`^[A-Za-z]\w*$`)

// checkOutputNames checks that the derived quantity names can be used as
// column headers and expression variables.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		if !outputNameRE.MatchString(key) {
			return fmt.Errorf("cats: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// modelVariableNames returns the names expressions may use: the outlet
// concentration of each gas species, its inlet concentration with an "_in"
// suffix, the axial average of each surface species and site, the outlet
// temperatures, the pressure "P" and the time "time".
func (m *Model) modelVariableNames() []string {
	var o []string
	for _, g := range m.gas.names {
		o = append(o, g, g+"_in")
	}
	o = append(o, m.surf.names...)
	o = append(o, m.sites.names...)
	o = append(o, "T", "P", "time")
	if !m.Isothermal() {
		o = append(o, "Ts", "Tw")
	}
	return o
}

// checkModelVars checks whether the variables required to calculate the
// derived quantities are available in the model.
func (m *Model) checkModelVars(g ...string) error {
	have := make(map[string]bool)
	for _, n := range m.modelVariableNames() {
		have[n] = true
	}
	for _, v := range g {
		if !have[v] {
			return newError(DomainError, "CheckOutputVars", ErrUnknownIdentifier, "undefined variable name '%s'", v)
		}
	}
	return nil
}

// CheckOutputVars ensures the output variables can be calculated.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(m *Model) error {
		return m.checkModelVars(o.modelVariables...)
	}
}

// parameters returns the value of every model variable at each time node
// of a scenario.
func (m *Model) parameters(sc int) []map[string]interface{} {
	d := m.disc
	out := d.nz - 1
	avg := make(map[string][]float64)
	for s, name := range m.surf.names {
		avg[name] = m.integralAverage(famQ, s, sc).Values
	}
	for s, name := range m.sites.names {
		avg[name] = m.integralAverage(famS, s, sc).Values
	}
	o := make([]map[string]interface{}, d.nt)
	for it := range o {
		p := map[string]interface{}{
			"T":    m.p.X[d.vi(famT, 0, sc, out, it)],
			"P":    d.scen[sc].P,
			"time": d.t[it],
		}
		for s, g := range m.gas.names {
			p[g] = m.p.X[d.vi(famCb, s, sc, out, it)]
			p[g+"_in"] = m.p.X[d.vi(famCb, s, sc, 0, it)]
		}
		for name, v := range avg {
			p[name] = v[it]
		}
		if !m.Isothermal() {
			p["Ts"] = m.p.X[d.vi(famTs, 0, sc, out, it)]
			p["Tw"] = m.p.X[d.vi(famTw, 0, sc, out, it)]
		}
		o[it] = p
	}
	return o
}

// Results returns the time series of every derived quantity in a scenario.
func (o *Outputter) Results(m *Model, age, temp string) (map[string]Series, error) {
	const op = "Results"
	if m.disc == nil {
		return nil, newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
	}
	sc, err := m.scenarioIndex(op, age, temp)
	if err != nil {
		return nil, err
	}
	if err := m.checkModelVars(o.modelVariables...); err != nil {
		return nil, err
	}
	params := m.parameters(sc)
	r := make(map[string]Series, len(o.outputVariables))
	for name, expr := range o.outputVariables {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("cats: output variable %s: %v", name, err)
		}
		s := Series{Times: append([]float64(nil), m.disc.t...), Values: make([]float64, len(params))}
		for it, p := range params {
			v, err := e.Evaluate(p)
			if err != nil {
				return nil, fmt.Errorf("cats: evaluating %s at t = %g: %v", name, m.disc.t[it], err)
			}
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("cats: output variable %s is not numeric", name)
			}
			s.Values[it] = f
		}
		r[name] = s
	}
	return r, nil
}

// DerivedSeries evaluates a single expression of the model variables at
// every time node of a scenario.
func (m *Model) DerivedSeries(expr, age, temp string) (Series, error) {
	o, err := NewOutputter("", map[string]string{"value": expr}, nil)
	if err != nil {
		return Series{}, err
	}
	r, err := o.Results(m, age, temp)
	if err != nil {
		return Series{}, err
	}
	return r["value"], nil
}

// stateColumns returns the column names and series of every state
// quantity of a scenario, either at the outlet or averaged over the axis.
func (m *Model) stateColumns(sc int, average bool) ([]string, []Series) {
	d := m.disc
	var names []string
	var series []Series
	add := func(name string, f family, s int) {
		names = append(names, name)
		if average {
			series = append(series, m.integralAverage(f, s, sc))
		} else {
			series = append(series, m.seriesAt(f, s, sc, d.nz-1))
		}
	}
	for s, g := range m.gas.names {
		add(g, famCb, s)
	}
	for s, n := range m.surf.names {
		add(n, famQ, s)
	}
	for s, n := range m.sites.names {
		add(n, famS, s)
	}
	for _, f := range []family{famT, famTs, famTw} {
		if d.count[f] > 0 {
			add(familyNames[f], f, 0)
		}
	}
	return names, series
}

func writeSeries(path string, names []string, series []Series) error {
	headers := append([]string{tabular.TimeColumn}, names...)
	if len(series) == 0 {
		return tabular.WriteFile(path, headers, nil)
	}
	rows := make([][]float64, len(series[0].Times))
	for it, t := range series[0].Times {
		row := make([]float64, len(headers))
		row[0] = t
		for j, s := range series {
			row[j+1] = s.Values[it]
		}
		rows[it] = row
	}
	return tabular.WriteFile(path, headers, rows)
}

// Output writes, for each scenario, the outlet breakthrough curves, the
// axial averages and any derived quantities, and then the kinetic
// parameter report as text and as a spreadsheet.
func (o *Outputter) Output() DomainManipulator {
	return func(m *Model) error {
		const op = "Output"
		if m.disc == nil {
			return newError(OrderingError, op, ErrDiscretizationOutOfOrder, "the model has not been discretized")
		}
		if err := os.MkdirAll(o.dir, 0755); err != nil {
			return fmt.Errorf("cats: creating output directory: %v", err)
		}
		for sc := 0; sc < m.disc.nsc; sc++ {
			l := m.scenarioLabels(sc)
			suffix := fmt.Sprintf("_%s_%s.txt", l.Age, l.Temp)
			names, series := m.stateColumns(sc, false)
			if err := writeSeries(filepath.Join(o.dir, "breakthrough"+suffix), names, series); err != nil {
				return err
			}
			names, series = m.stateColumns(sc, true)
			if err := writeSeries(filepath.Join(o.dir, "average"+suffix), names, series); err != nil {
				return err
			}
			if len(o.outputVariables) == 0 {
				continue
			}
			r, err := o.Results(m, l.Age, l.Temp)
			if err != nil {
				return err
			}
			names = sortedKeys(o.outputVariables)
			series = series[:0]
			for _, n := range names {
				series = append(series, r[n])
			}
			if err := writeSeries(filepath.Join(o.dir, "derived"+suffix), names, series); err != nil {
				return err
			}
		}
		if err := o.writeReport("parameters.txt", m.WriteKineticReport); err != nil {
			return err
		}
		if err := o.writeReport("parameters.xlsx", m.WriteKineticReportXLSX); err != nil {
			return err
		}
		m.logger().WithField("dir", o.dir).Info("cats: wrote results")
		return nil
	}
}

func (o *Outputter) writeReport(name string, write func(w io.Writer) error) error {
	f, err := os.Create(filepath.Join(o.dir, name))
	if err != nil {
		return fmt.Errorf("cats: creating %s: %v", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Directory returns the output directory.
func (o *Outputter) Directory() string { return o.dir }

// Variables returns the derived quantity names in sorted order.
func (o *Outputter) Variables() []string {
	return sortedKeys(o.outputVariables)
}

// Expression returns the expanded expression of a derived quantity.
func (o *Outputter) Expression(name string) string {
	return strings.TrimSpace(o.outputVariables[name])
}

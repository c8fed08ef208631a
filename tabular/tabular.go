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

// Package tabular reads and writes whitespace-separated numeric tables
// whose first line holds the column names and whose first column is
// time.
package tabular

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TimeColumn is the required name of the first column.
const TimeColumn = "time"

// Table is a numeric table with named columns.
type Table struct {
	Headers []string
	Rows    [][]float64
}

// Point is a (time, value) pair.
type Point struct {
	Time, Value float64
}

// Read parses a table from r. If factor > 1, only every factor-th data
// row (starting with the first) is kept.
func Read(r io.Reader, factor int) (*Table, error) {
	if factor < 1 {
		factor = 1
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	t := new(Table)
	line := 0
	row := 0
	for s.Scan() {
		line++
		fields := strings.Fields(s.Text())
		if len(fields) == 0 {
			continue
		}
		if t.Headers == nil {
			if fields[0] != TimeColumn {
				return nil, fmt.Errorf("tabular: first column must be %q, got %q", TimeColumn, fields[0])
			}
			t.Headers = fields
			continue
		}
		if len(fields) != len(t.Headers) {
			return nil, fmt.Errorf("tabular: line %d has %d columns, header has %d", line, len(fields), len(t.Headers))
		}
		keep := row%factor == 0
		row++
		if !keep {
			continue
		}
		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("tabular: line %d column %s: %v", line, t.Headers[i], err)
			}
			vals[i] = v
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("tabular: %v", err)
	}
	if t.Headers == nil {
		return nil, fmt.Errorf("tabular: missing header line")
	}
	return t, nil
}

// ReadFile reads the table in the named file. Environment variables in
// the path are expanded.
func ReadFile(path string, factor int) (*Table, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("tabular: %v", err)
	}
	defer f.Close()
	return Read(f, factor)
}

// Times returns the time column.
func (t *Table) Times() []float64 {
	o := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		o[i] = r[0]
	}
	return o
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	for j, h := range t.Headers {
		if h == name {
			o := make([]float64, len(t.Rows))
			for i, r := range t.Rows {
				o[i] = r[j]
			}
			return o, nil
		}
	}
	return nil, fmt.Errorf("tabular: no column named %q", name)
}

// DictOfTuples returns, for every column other than time, the list of
// (time, value) pairs in row order.
func (t *Table) DictOfTuples() map[string][]Point {
	o := make(map[string][]Point, len(t.Headers)-1)
	for j, h := range t.Headers[1:] {
		pts := make([]Point, len(t.Rows))
		for i, r := range t.Rows {
			pts[i] = Point{Time: r[0], Value: r[j+1]}
		}
		o[h] = pts
	}
	return o
}

// Write writes a table with the given column names to w. Every row must
// have one value per column.
func Write(w io.Writer, headers []string, rows [][]float64) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, strings.Join(headers, "\t")); err != nil {
		return fmt.Errorf("tabular: %v", err)
	}
	buf := make([]string, len(headers))
	for i, r := range rows {
		if len(r) != len(headers) {
			return fmt.Errorf("tabular: row %d has %d values for %d columns", i, len(r), len(headers))
		}
		for j, v := range r {
			buf[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if _, err := fmt.Fprintln(bw, strings.Join(buf, "\t")); err != nil {
			return fmt.Errorf("tabular: %v", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("tabular: %v", err)
	}
	return nil
}

// WriteFile writes a table to the named file.
func WriteFile(path string, headers []string, rows [][]float64) error {
	f, err := os.Create(os.ExpandEnv(path))
	if err != nil {
		return fmt.Errorf("tabular: %v", err)
	}
	if err := Write(f, headers, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

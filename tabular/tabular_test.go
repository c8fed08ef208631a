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

package tabular

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kr/pretty"
)

const data = `time   NH3    H2O
0      0      0.001
2.5    1e-6   0.001

5      2e-6   0.002
7.5    3e-6   0.002
`

func TestRead(t *testing.T) {
	tbl, err := Read(strings.NewReader(data), 1)
	if err != nil {
		t.Fatal(err)
	}
	want := &Table{
		Headers: []string{"time", "NH3", "H2O"},
		Rows: [][]float64{
			{0, 0, 0.001},
			{2.5, 1e-6, 0.001},
			{5, 2e-6, 0.002},
			{7.5, 3e-6, 0.002},
		},
	}
	if diff := pretty.Diff(tbl, want); len(diff) != 0 {
		t.Error(diff)
	}
}

func TestReadFactor(t *testing.T) {
	tbl, err := Read(strings.NewReader(data), 2)
	if err != nil {
		t.Fatal(err)
	}
	times := tbl.Times()
	if diff := pretty.Diff(times, []float64{0, 5}); len(diff) != 0 {
		t.Error(diff)
	}
}

func TestDictOfTuples(t *testing.T) {
	tbl, err := Read(strings.NewReader(data), 1)
	if err != nil {
		t.Fatal(err)
	}
	d := tbl.DictOfTuples()
	want := []Point{{0, 0.001}, {2.5, 0.001}, {5, 0.002}, {7.5, 0.002}}
	if diff := pretty.Diff(d["H2O"], want); len(diff) != 0 {
		t.Error(diff)
	}
	if _, ok := d["time"]; ok {
		t.Error("time should not be a tuple column")
	}
}

func TestReadErrors(t *testing.T) {
	for _, in := range []string{
		"t a\n1 2\n",
		"time a\n1\n",
		"time a\n1 x\n",
		"",
	} {
		if _, err := Read(strings.NewReader(in), 1); err == nil {
			t.Errorf("expected an error for %q", in)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	var b bytes.Buffer
	rows := [][]float64{{0, 1.5}, {1, 6.9762939977887e-06}}
	if err := Write(&b, []string{"time", "NH3"}, rows); err != nil {
		t.Fatal(err)
	}
	tbl, err := Read(&b, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(tbl.Rows, rows); len(diff) != 0 {
		t.Error(diff)
	}
	if err := Write(&b, []string{"time"}, rows); err == nil {
		t.Error("expected a column count error")
	}
}

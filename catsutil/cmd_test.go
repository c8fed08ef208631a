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
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	cats "github.com/aladshaw3/cats-sub001"
	"github.com/aladshaw3/cats-sub001/tabular"
	"github.com/kr/pretty"
	"github.com/lnashier/viper"
)

func writeTemplate(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "cats.toml")
	Cfg.Set("Template.File", path)
	Root.SetArgs([]string{"template"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "CATS v" + cats.Version + "\n"; buf.String() != want {
		t.Errorf("%q != %q", buf.String(), want)
	}
}

func TestReadConfig(t *testing.T) {
	dir, err := os.MkdirTemp("", "catsutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := writeTemplate(t, dir)

	cfg := viper.New()
	cfg.SetConfigFile(path)
	if err := cfg.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	c, err := ReadConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	for _, v := range []struct {
		name      string
		have, want interface{}
	}{
		{"Reactor", c.Reactor, want.Reactor},
		{"Carrier", c.Carrier, want.Carrier},
		{"Species", c.Species, want.Species},
		{"Sites", c.Sites, want.Sites},
		{"Reactions", c.Reactions, want.Reactions},
		{"Scenarios", c.Scenarios, want.Scenarios},
	} {
		if diff := pretty.Diff(v.have, v.want); len(diff) > 0 {
			t.Errorf("%s differs after a round trip: %v", v.name, diff)
		}
	}

	if _, err := ReadConfig(viper.New()); err == nil {
		t.Error("empty configuration accepted")
	}
}

func TestConfigModel(t *testing.T) {
	c := DefaultConfig()
	c.Reactor.SensorPositions = []float64{2.5}
	c.Reactions[0].Free = []string{"A"}
	c.Reactions[0].Zone = []float64{0, 5}
	m, err := c.Model(cats.DiscretizationOptions{TimeElements: 4, AxialElements: 4}, newLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}
	if z := m.AxialPoints(); !reflect.DeepEqual(z, []float64{0, 1.25, 2.5, 3.75, 5}) {
		t.Errorf("axial points = %v", z)
	}
	for _, name := range []string{"A", "E", "dH", "dS"} {
		p, err := m.Parameter("r1", name)
		if err != nil {
			t.Fatal(err)
		}
		if p.Fixed != (name != "A") {
			t.Errorf("%s fixed = %v", name, p.Fixed)
		}
	}
	if p, _ := m.Parameter("r1", "A"); p.Lower != 1e4 || p.Upper != 1e7 {
		t.Errorf("bounds of A = [%g, %g]", p.Lower, p.Upper)
	}

	c.Reactions[0].Zone = []float64{1}
	if _, err := c.Model(cats.DiscretizationOptions{TimeElements: 4, AxialElements: 4}, nil); err == nil {
		t.Error("invalid zone accepted")
	}
}

func TestScenarioFiles(t *testing.T) {
	dir, err := os.MkdirTemp("", "catsutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	inlet := filepath.Join(dir, "inlet.txt")
	if err := tabular.WriteFile(inlet, []string{"time", "NH3"}, [][]float64{{0, 0}, {2, 500}}); err != nil {
		t.Fatal(err)
	}
	temps := filepath.Join(dir, "temps.txt")
	if err := tabular.WriteFile(temps, []string{"time", "T"}, [][]float64{{0, 423.15}, {4, 473.15}}); err != nil {
		t.Fatal(err)
	}
	data := filepath.Join(dir, "data.txt")
	if err := tabular.WriteFile(data, []string{"time", "NH3"}, [][]float64{{1, 0}, {2, 100}, {3, 400}}); err != nil {
		t.Fatal(err)
	}

	c := DefaultConfig()
	s := &c.Scenarios[0]
	s.InletFile, s.TemperatureFile, s.DataFile = inlet, temps, data
	m, err := c.Model(cats.DiscretizationOptions{TimeElements: 4, AxialElements: 4}, newLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}
	T, err := m.Breakthrough("T", s.Age, s.Temperature)
	if err != nil {
		t.Fatal(err)
	}
	if T.Values[0] != 423.15 || T.Values[len(T.Values)-1] != 473.15 {
		t.Errorf("temperature program = %v", T.Values)
	}
	obs := m.Observations()
	if len(obs) != 1 || len(obs[0].Times) != 3 || obs[0].Z != c.Reactor.Length {
		t.Errorf("observations = %+v", obs)
	}
	in, err := m.Location("NH3", s.Age, s.Temperature, 0)
	if err != nil {
		t.Fatal(err)
	}
	if in.Values[0] != 0 || !(in.Values[len(in.Values)-1] > 0) {
		t.Errorf("inlet NH3 = %v", in.Values)
	}
}

func TestTemperatureSensors(t *testing.T) {
	dir, err := os.MkdirTemp("", "catsutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	temps := filepath.Join(dir, "temps.txt")
	if err := tabular.WriteFile(temps, []string{"time", "T_in", "T_out"},
		[][]float64{{0, 423.15, 443.15}, {4, 473.15, 493.15}}); err != nil {
		t.Fatal(err)
	}
	c := DefaultConfig()
	s := &c.Scenarios[0]
	s.TemperatureFile = temps
	s.TemperatureZ = map[string]float64{"T_in": 0, "T_out": c.Reactor.Length}
	m, err := c.Model(cats.DiscretizationOptions{TimeElements: 4, AxialElements: 4}, newLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}
	for z, want := range map[float64][2]float64{0: {423.15, 473.15}, 2.5: {433.15, 483.15}, 5: {443.15, 493.15}} {
		T, err := m.Location("T", s.Age, s.Temperature, z)
		if err != nil {
			t.Fatal(err)
		}
		if have := [2]float64{T.Values[0], T.Values[len(T.Values)-1]}; math.Abs(have[0]-want[0]) > 1e-9 || math.Abs(have[1]-want[1]) > 1e-9 {
			t.Errorf("T(z=%g) from %g to %g, want %v", z, have[0], have[1], want)
		}
	}

	s.TemperatureZ = map[string]float64{"T_mid": 2.5}
	if _, err := c.Model(cats.DiscretizationOptions{TimeElements: 4, AxialElements: 4}, nil); err == nil {
		t.Error("missing temperature column accepted")
	}
}

func TestRunContinue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping simulation in short mode")
	}
	dir, err := os.MkdirTemp("", "catsutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := writeTemplate(t, dir)

	var buf bytes.Buffer
	Root.SetOutput(&buf)
	defer Root.SetOutput(nil)

	out := filepath.Join(dir, "run")
	Cfg.Set("config", path)
	Cfg.Set("OutputDir", out)
	Cfg.Set("OutputVariables", map[string]string{"conversion": "1 - NH3 / NH3_in"})
	Cfg.Set("Discretization.TimeElements", 8)
	Cfg.Set("Discretization.AxialElements", 5)
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"cats.log", "state.json", "parameters.txt", "parameters.xlsx",
		"breakthrough_A0_T150.txt", "average_A0_T150.txt", "derived_A0_T150.txt"} {
		if _, err := os.Stat(filepath.Join(out, f)); err != nil {
			t.Error(err)
		}
	}
	if !strings.Contains(buf.String(), "CATS completed successfully") {
		t.Errorf("log:\n%s", buf.String())
	}

	next := filepath.Join(dir, "continue")
	Cfg.Set("OutputDir", next)
	Cfg.Set("Continue.InputState", filepath.Join(out, "state.json"))
	Cfg.Set("Continue.Start", 4.0)
	Cfg.Set("Continue.End", 8.0)
	Cfg.Set("Continue.TimeElements", 4)
	Root.SetArgs([]string{"continue"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	tbl, err := tabular.ReadFile(filepath.Join(next, "breakthrough_A0_T150.txt"), 1)
	if err != nil {
		t.Fatal(err)
	}
	if times := tbl.Times(); times[0] != 4 || times[len(times)-1] != 8 {
		t.Errorf("continued times = %v", times)
	}
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()
	cfg.Set("vars", `{"a": "NH3 * 2"}`)
	v, err := GetStringMapString("vars", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v, map[string]string{"a": "NH3 * 2"}) {
		t.Errorf("vars = %v", v)
	}
	cfg.Set("vars", map[string]interface{}{"b": "T"})
	if v, _ := GetStringMapString("vars", cfg); v["b"] != "T" {
		t.Errorf("vars = %v", v)
	}
	cfg.Set("vars", 3)
	if _, err := GetStringMapString("vars", cfg); err == nil {
		t.Error("invalid type accepted")
	}
	os.Setenv("CATS_TEST_UNIT", "ppm")
	defer os.Unsetenv("CATS_TEST_UNIT")
	if v := checkOutputVars(map[string]string{"x": "a\nb $CATS_TEST_UNIT"}); v["x"] != "a b ppm" {
		t.Errorf("checked vars = %v", v)
	}
}

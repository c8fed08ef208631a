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
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/aladshaw3/cats-sub001/science/kinetics"
)

// DefaultConfig returns an example configuration: ammonia adsorption on a
// single site of a fresh monolith at 150 °C, with water as an inert
// tracer.
func DefaultConfig() *Config {
	return &Config{
		Reactor: ReactorConfig{
			Geometry:         "monolith",
			Length:           5,
			Duration:         4,
			BulkPorosity:     0.3309,
			WashcoatPorosity: 0.4,
			CellDensity:      62,
		},
		Carrier: SpeciesConfig{
			Name:            "N2",
			MolarMass:       28.014,
			ViscosityRef:    1.663e-5,
			ViscosityTRef:   273.15,
			SutherlandS:     107,
			DiffusivityRef:  0.2,
			DiffusivityTRef: 273.15,
			DiffusivityPRef: 101.35,
		},
		Species: []SpeciesConfig{
			{
				Name:            "NH3",
				MolarMass:       17.031,
				MoleFraction:    0.001,
				ViscosityRef:    0.92e-5,
				ViscosityTRef:   273.15,
				SutherlandS:     370,
				DiffusivityRef:  0.221,
				DiffusivityTRef: 273.15,
				DiffusivityPRef: 101.35,
			},
			{
				Name:            "H2O",
				MolarMass:       18.015,
				MoleFraction:    0.05,
				ViscosityRef:    1.12e-5,
				ViscosityTRef:   350,
				SutherlandS:     1064,
				DiffusivityRef:  0.214,
				DiffusivityTRef: 273.15,
				DiffusivityPRef: 101.35,
			},
		},
		SurfaceSpecies: []string{"q1"},
		Sites: []SiteConfig{
			{
				Name:    "Z1",
				Density: map[string]float64{"A0": 0.05},
				Terms:   map[string]float64{"q1": 1},
			},
		},
		Reactions: []ReactionConfig{
			{
				ID:     "r1",
				Family: "EquilibriumArrhenius",
				Parameters: map[string]float64{
					kinetics.A: 250000, kinetics.E: 0, kinetics.DH: -54000, kinetics.DS: 30,
				},
				Reactants: map[string]float64{"NH3": 1, "Z1": 1},
				Products:  map[string]float64{"q1": 1},
				Bounds:    map[string][]float64{kinetics.A: {1e4, 1e7}},
			},
		},
		Scenarios: []ScenarioConfig{
			{
				Age:           "A0",
				Temperature:   "T150",
				Pressure:      101.35,
				SpaceVelocity: 1000,
				T:             423.15,
				InletPPM:      map[string]float64{"NH3": 1000, "H2O": 50000},
				InitialPPM:    map[string]float64{"NH3": 0, "H2O": 0},
				SurfaceIC:     map[string]float64{"q1": 0},
			},
		},
	}
}

// WriteTemplate writes the example configuration to w in TOML format.
func WriteTemplate(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "# CATS example configuration: NH3 storage on a monolith."); err != nil {
		return err
	}
	if err := toml.NewEncoder(w).Encode(DefaultConfig()); err != nil {
		return fmt.Errorf("catsutil: writing template: %v", err)
	}
	return nil
}

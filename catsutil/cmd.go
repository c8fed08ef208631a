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
	"encoding/json"
	"fmt"
	"os"

	cats "github.com/aladshaw3/cats-sub001"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to CATS.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory where breakthrough curves, derived
              outputs, the kinetic parameter report and the model state are
              written. It can include environment variables.`,
			shorthand:  "o",
			defaultVal: "cats_output",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), continueCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be
              saved in OutputDir as cats.log.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), continueCmd.Flags()},
		},
		{
			name: "StateFile",
			usage: `
              StateFile is the path where the solved model state is saved. If
              it is left blank, the state is saved in OutputDir as state.json.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), continueCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies derived quantities to write for each
              scenario as a map of {name: expression}. Expressions can use the
              gas species (outlet concentration), the gas species with an "_in"
              suffix (inlet concentration), the surface species and sites
              (axial averages), T, P and time, as well as the functions
              exp(x), log(x), pow(x, y) and ppm(c, T, P).`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), continueCmd.Flags()},
		},
		{
			name: "Discretization.Method",
			usage: `
              Discretization.Method is the discretization scheme: either
              "FiniteDifference" or "OrthogonalCollocation".`,
			defaultVal: "FiniteDifference",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Discretization.TimeElements",
			usage: `
              Discretization.TimeElements is the number of uniform time
              elements.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Discretization.AxialElements",
			usage: `
              Discretization.AxialElements is the number of uniform axial
              elements. Sensor positions are added to them.`,
			defaultVal: 5,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Discretization.CollocationPoints",
			usage: `
              Discretization.CollocationPoints is the number of collocation
              points per element for OrthogonalCollocation.`,
			defaultVal: 2,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Solver.RestartOnError",
			usage: `
              Solver.RestartOnError specifies whether to re-solve once from the
              last solution after a solver failure.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), continueCmd.Flags()},
		},
		{
			name: "Solver.RestartOnWarning",
			usage: `
              Solver.RestartOnWarning specifies whether to re-solve once from the
              last solution after a solver warning.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), continueCmd.Flags()},
		},
		{
			name: "Solver.ConservationTolerance",
			usage: `
              Solver.ConservationTolerance is the relative tolerance of the
              non-negativity and site balance checks run after solving.
              Checks are skipped when it is not positive.`,
			defaultVal: 1.0e-6,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), continueCmd.Flags()},
		},
		{
			name: "Continue.InputState",
			usage: `
              Continue.InputState is the path of a saved model state whose
              final time slice becomes the initial condition of a new run.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{continueCmd.Flags()},
		},
		{
			name: "Continue.Start",
			usage: `
              Continue.Start is the start of the new time window [min].`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{continueCmd.Flags()},
		},
		{
			name: "Continue.End",
			usage: `
              Continue.End is the end of the new time window [min].`,
			defaultVal: 1.0,
			flagsets:   []*pflag.FlagSet{continueCmd.Flags()},
		},
		{
			name: "Continue.TimeElements",
			usage: `
              Continue.TimeElements is the number of time elements in the new
              window.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{continueCmd.Flags()},
		},
		{
			name: "Template.File",
			usage: `
              Template.File is the path where the example configuration is
              written.`,
			defaultVal: "cats.toml",
			flagsets:   []*pflag.FlagSet{templateCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CATS")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(continueCmd)
	Root.AddCommand(templateCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("catsutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "cats",
	Short: "A catalytic after-treatment simulator.",
	Long: `CATS simulates gas-phase transport and surface reactions in catalytic
monoliths and packed beds, and estimates kinetic parameters from breakthrough
data. Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CATS_var' where 'var' is the
name of the variable to be set. Output paths are additionally allowed to
contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of CATS.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("CATS v%s\n", cats.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run builds the reactor model described in the configuration file and
solves it. When any kinetic parameter is listed as free and observations are
given, the parameters are estimated; otherwise the model is simulated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ReadConfig(Cfg)
		if err != nil {
			return err
		}
		opts, err := discretizationOptions(Cfg)
		if err != nil {
			return err
		}
		vars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, c, opts, runSettings(Cfg, vars))
	},
	DisableAutoGenTag: true,
}

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "Continue a simulation from a saved state.",
	Long: `continue reads a saved model state, uses its final time slice as the
initial condition of a new time window, and holds the inlet concentrations and
temperatures at their initial values for the whole window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		vars, err := GetStringMapString("OutputVariables", Cfg)
		if err != nil {
			return err
		}
		return Continue(cmd, os.ExpandEnv(Cfg.GetString("Continue.InputState")),
			[2]float64{Cfg.GetFloat64("Continue.Start"), Cfg.GetFloat64("Continue.End")},
			Cfg.GetInt("Continue.TimeElements"), runSettings(Cfg, vars))
	},
	DisableAutoGenTag: true,
}

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write an example configuration file.",
	Long: `template writes an example configuration file describing NH3 storage
on a monolith to the location given by Template.File.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := os.ExpandEnv(Cfg.GetString("Template.File"))
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("catsutil: creating template: %v", err)
		}
		if err := WriteTemplate(f); err != nil {
			f.Close()
			return err
		}
		cmd.Printf("wrote example configuration to %s\n", path)
		return f.Close()
	},
	DisableAutoGenTag: true,
}

func discretizationOptions(cfg *viper.Viper) (cats.DiscretizationOptions, error) {
	method, err := cats.ParseMethod(cfg.GetString("Discretization.Method"))
	if err != nil {
		return cats.DiscretizationOptions{}, err
	}
	return cats.DiscretizationOptions{
		Method:            method,
		TimeElements:      cfg.GetInt("Discretization.TimeElements"),
		AxialElements:     cfg.GetInt("Discretization.AxialElements"),
		CollocationPoints: cfg.GetInt("Discretization.CollocationPoints"),
	}, nil
}

func runSettings(cfg *viper.Viper, vars map[string]string) Settings {
	return Settings{
		OutputDir:             os.ExpandEnv(cfg.GetString("OutputDir")),
		LogFile:               os.ExpandEnv(cfg.GetString("LogFile")),
		StateFile:             os.ExpandEnv(cfg.GetString("StateFile")),
		OutputVariables:       checkOutputVars(vars),
		RestartOnError:        cfg.GetBool("Solver.RestartOnError"),
		RestartOnWarning:      cfg.GetBool("Solver.RestartOnWarning"),
		ConservationTolerance: cfg.GetFloat64("Solver.ConservationTolerance"),
	}
}

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
	"os"
	"path/filepath"
	"time"

	cats "github.com/aladshaw3/cats-sub001"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Settings holds the run options that do not describe the reactor.
type Settings struct {
	// OutputDir is the directory where results are written.
	OutputDir string

	// LogFile is the path to the log file. It defaults to
	// OutputDir/cats.log.
	LogFile string

	// StateFile is the path where the model state is saved. It defaults
	// to OutputDir/state.json.
	StateFile string

	// OutputVariables are derived output expressions.
	OutputVariables map[string]string

	RestartOnError, RestartOnWarning bool

	// ConservationTolerance is the relative tolerance of the checks run
	// after solving. Checks are skipped when it is not positive.
	ConservationTolerance float64
}

func (s Settings) logFile() string {
	if s.LogFile == "" {
		return filepath.Join(s.OutputDir, "cats.log")
	}
	return s.LogFile
}

func (s Settings) stateFile() string {
	if s.StateFile == "" {
		return filepath.Join(s.OutputDir, "state.json")
	}
	return s.StateFile
}

// newLogger returns a logger writing to w.
func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	return l
}

// Run builds the model described by c, solves it, and writes the results.
//
// CobraCommand is the cobra.Command instance where Run is called from.
// Log messages go to its output and to the log file.
func Run(CobraCommand *cobra.Command, c *Config, opts cats.DiscretizationOptions, s Settings) error {
	return run(CobraCommand, s, func(log logrus.FieldLogger) (*cats.Model, error) {
		return c.Model(opts, log)
	})
}

// Continue loads the state saved in stateFile, uses its final time slice as
// the initial condition of the time window, and simulates the window with
// the inlet conditions held at their initial values.
func Continue(CobraCommand *cobra.Command, stateFile string, window [2]float64, timeElements int, s Settings) error {
	return run(CobraCommand, s, func(log logrus.FieldLogger) (*cats.Model, error) {
		f, err := os.Open(stateFile)
		if err != nil {
			return nil, fmt.Errorf("catsutil: opening model state: %v", err)
		}
		defer f.Close()
		m, err := cats.LoadModelStateAsIC(f, window, nil, timeElements)
		if err != nil {
			return nil, err
		}
		m.Log = log
		return m, nil
	}, func(m *cats.Model) error {
		return m.SolveTrivialStep()
	})
}

func run(CobraCommand *cobra.Command, s Settings, build func(logrus.FieldLogger) (*cats.Model, error), initFuncs ...cats.DomainManipulator) error {
	startTime := time.Now()

	if err := os.MkdirAll(s.OutputDir, os.ModePerm); err != nil {
		return fmt.Errorf("catsutil: creating output directory: %v", err)
	}
	logfile, err := os.Create(s.logFile())
	if err != nil {
		return fmt.Errorf("catsutil: problem creating log file: %v", err)
	}
	defer logfile.Close()
	mw := io.MultiWriter(CobraCommand.OutOrStdout(), logfile)
	log := newLogger(mw)

	log.Info("Parsing output variable expressions...")
	o, err := cats.NewOutputter(s.OutputDir, s.OutputVariables, nil)
	if err != nil {
		return err
	}

	log.Info("Building the model...")
	m, err := build(log)
	if err != nil {
		return err
	}
	m.RestartOnError = s.RestartOnError
	m.RestartOnWarning = s.RestartOnWarning
	log.WithFields(logrus.Fields{
		"variables":   m.NumVariables(),
		"constraints": m.NumConstraints(),
	}).Info("model built")

	if len(initFuncs) == 0 {
		initFuncs = []cats.DomainManipulator{cats.InitializeAutoScaling(), cats.InitializeSimulator()}
	}
	m.InitFuncs = append([]cats.DomainManipulator{o.CheckOutputVars()}, initFuncs...)
	m.RunFuncs = []cats.DomainManipulator{cats.RunModel(), cats.Log(mw), cats.FinalizeAutoScaling()}
	if s.ConservationTolerance > 0 {
		m.RunFuncs = append(m.RunFuncs, cats.ConservationCheck(s.ConservationTolerance))
	}
	m.RunFuncs = append(m.RunFuncs, o.Output(), saveState(s.stateFile()))

	if err := m.Init(); err != nil {
		return err
	}
	log.Info("Running the model...")
	if err := m.Run(); err != nil {
		return err
	}
	if n := len(m.Warnings); n > 0 {
		log.Warnf("%d warnings were recorded; see the log above.", n)
	}
	log.Infof("CATS completed successfully in %v.", time.Since(startTime))
	return nil
}

// saveState returns a function that writes the model state to path.
func saveState(path string) cats.DomainManipulator {
	return func(m *cats.Model) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("catsutil: creating state file: %v", err)
		}
		if err := cats.Save(f)(m); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
}

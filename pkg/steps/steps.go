// Package steps parses and runs YAML step files: ordered lists of external
// commands that make up a CI job.
package steps

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"

	"github.com/polysquare/ci-scripts/pkg/executil"
)

// DefaultFileName is the step file searched for when none is given.
const DefaultFileName = "ci-steps.yml"

// Step is one external command in a CI job.
type Step struct {
	Name string `yaml:"name,omitempty"`

	// Run is the command line, split with shell quoting rules (but not
	// evaluated by a shell).
	Run string `yaml:"run"`

	// Output selects the strategy: suppressed (default), stream or
	// heartbeat.
	Output string `yaml:"output,omitempty"`

	// DotTimeout overrides the heartbeat interval, in seconds.
	DotTimeout int `yaml:"dotTimeout,omitempty"`

	Env          map[string]string `yaml:"env,omitempty"`
	AllowFailure bool              `yaml:"allowFailure,omitempty"`
	InstantFail  bool              `yaml:"instantFail,omitempty"`

	// OnlyIfMissing skips the step when this executable is already
	// available in PATH.
	OnlyIfMissing string `yaml:"onlyIfMissing,omitempty"`
}

// File is a parsed step file.
type File struct {
	Steps []Step `yaml:"steps"`
}

// Parse reads a step file from data and validates it.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "failed to parse step file")
	}

	if len(file.Steps) == 0 {
		return nil, eris.New("step file contains no steps")
	}

	for i := range file.Steps {
		step := &file.Steps[i]
		if step.Run == "" {
			return nil, eris.Errorf("step %d has no run command", i+1)
		}
		if step.Name == "" {
			step.Name = step.Run
		}

		if _, err := step.argv(); err != nil {
			return nil, eris.Wrapf(err, "step %s has an invalid run command", step.Name)
		}
		if _, err := step.strategy(0); err != nil {
			return nil, eris.Wrapf(err, "step %s is invalid", step.Name)
		}
	}

	return &file, nil
}

// Load parses the step file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read step file %s", path)
	}

	return Parse(data)
}

// FindFile searches for name in startDir and each of its parents,
// returning the first match.
func FindFile(startDir, name string) (string, error) {
	path, err := filepath.Abs(startDir)
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve %s", startDir)
	}

	for {
		candidate := filepath.Join(path, name)
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "failed to check %s", candidate)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", eris.Errorf("no %s file found", name)
		}
		path = parent
	}
}

func (s *Step) argv() ([]string, error) {
	argv, err := shell.Fields(s.Run, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to split command %q", s.Run)
	}
	if len(argv) == 0 {
		return nil, eris.Errorf("command %q is empty after splitting", s.Run)
	}

	return argv, nil
}

func (s *Step) strategy(defaultDotTimeout time.Duration) (executil.Strategy, error) {
	dotTimeout := defaultDotTimeout
	if s.DotTimeout > 0 {
		dotTimeout = time.Duration(s.DotTimeout) * time.Second
	}

	return executil.StrategyFor(s.Output, dotTimeout)
}

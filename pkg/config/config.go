// Package config loads the runtime options for ci-scripts from the
// environment (CISCRIPTS_* variables) and an optional TOML file.
package config

import (
	"os"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Options describes all configuration options.
type Options struct {
	ContainerDir string `env:"CONTAINER_DIR" usage:"Directory that holds the CI container and its caches (default ~/.ciscripts)"`
	DotTimeout   int    `env:"DOT_TIMEOUT" default:"10" usage:"Seconds between heartbeat dots for long-running commands"`

	// AlwaysPrintProcessOutput streams every command's output instead of
	// capturing it, mirroring what the shell-side scripts honour.
	AlwaysPrintProcessOutput bool `env:"ALWAYS_PRINT_PROCESS_OUTPUT" usage:"Stream all process output instead of capturing it"`

	Log struct {
		Level string `default:"info"`
	}
}

var logLevels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Load reads the options. An empty file skips file loading entirely.
func Load(file string) (*Options, error) {
	opts := Options{}

	var files []string
	if file != "" {
		files = []string{file}
	}

	loader := aconfig.LoaderFor(&opts, aconfig.Config{
		EnvPrefix: "CISCRIPTS",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load configuration")
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if opts.ContainerDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, eris.Wrap(err, "failed to determine the home directory")
		}
		opts.ContainerDir = filepath.Join(home, ".ciscripts")
	}

	return &opts, nil
}

// Validate verifies that all option fields have valid values.
func (opts *Options) Validate() error {
	if _, ok := logLevels[opts.Log.Level]; !ok {
		return eris.Errorf("invalid value for log.level: %s", opts.Log.Level)
	}

	if opts.DotTimeout <= 0 {
		return eris.Errorf("invalid value for dottimeout: %d (must be positive)", opts.DotTimeout)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level.
func (opts *Options) LogLevel() zerolog.Level {
	return logLevels[opts.Log.Level]
}

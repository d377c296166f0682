// Package executil runs external commands for CI steps, routing their
// output through one of several strategies and reporting failures to the
// enclosing container.
package executil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/polysquare/ci-scripts/pkg"
	"github.com/polysquare/ci-scripts/pkg/output"
)

// FailureSink receives failure notifications for commands that exit with a
// nonzero status. Whether a notification aborts the run or is merely
// recorded is up to the implementation.
type FailureSink interface {
	NoteFailure(instantFail bool)
}

// SpawnError reports that a command could not be launched at all, for
// example because the executable is missing.
type SpawnError struct {
	Cmd string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to execute %s - %s", e.Cmd, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Options holds the optional configuration for Execute.
type Options struct {
	// Env is merged over the current process environment.
	Env map[string]string

	// InstantFail is forwarded to the failure sink on nonzero exit.
	InstantFail bool

	// AllowFailure suppresses the failure notification (the banner is
	// still printed and the status still returned).
	AllowFailure bool

	// ForceStream promotes any strategy to live streaming. The CLI sets
	// this from CISCRIPTS_ALWAYS_PRINT_PROCESS_OUTPUT.
	ForceStream bool
}

// Execute runs argv to completion. The strategy decides what happens to the
// command's output while it runs; the exit status is returned either way.
// A nonzero status is not an error: it is logged, reported to the sink
// (unless opts.AllowFailure) and returned. Errors are reserved for spawn
// and stream I/O failures. Both output pipes are closed when Execute
// returns, even if the strategy fails.
func Execute(ctx context.Context, l *output.Logger, sink FailureSink, strategy Strategy, argv []string, opts *Options) (int, error) {
	if opts == nil {
		opts = &Options{}
	}
	if len(argv) == 0 {
		return 0, eris.New("no command given")
	}

	cmdLine := strings.Join(argv, " ")
	cmd, err := pkg.ProcessShebang(argv)
	if err != nil {
		return 0, &SpawnError{Cmd: cmdLine, Err: err}
	}

	proc := exec.Command(cmd[0], cmd[1:]...)
	proc.Env = mergedEnv(opts.Env)

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return 0, eris.Wrap(err, "failed to open stdout pipe")
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		stdout.Close()
		return 0, eris.Wrap(err, "failed to open stderr pipe")
	}

	if err := proc.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return 0, &SpawnError{Cmd: cmdLine, Err: err}
	}

	if opts.ForceStream {
		strategy = Streaming()
	}

	runID := uuid.New().String()
	output.DebugLogger(ctx).Debug().
		Str("run_id", runID).
		Strs("argv", cmd).
		Msg("spawned process")

	status, err := func() (int, error) {
		defer stdout.Close()
		defer stderr.Close()
		return strategy.consume(l, proc, stdout, stderr)
	}()
	if err != nil {
		return status, err
	}

	if status != 0 {
		l.Message(fmt.Sprintf("!!! Process %s failed with %d\n", cmdLine, status))
		if !opts.AllowFailure {
			sink.NoteFailure(opts.InstantFail)
		}
	}

	output.DebugLogger(ctx).Debug().
		Str("run_id", runID).
		Int("status", status).
		Msg("process finished")

	return status, nil
}

func mergedEnv(overrides map[string]string) []string {
	env := os.Environ()
	for name, value := range overrides {
		env = append(env, fmt.Sprintf("%s=%s", name, value))
	}

	return env
}

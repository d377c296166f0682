package steps

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/polysquare/ci-scripts/pkg"
	"github.com/polysquare/ci-scripts/pkg/executil"
	"github.com/polysquare/ci-scripts/pkg/output"
)

// Runner executes the steps of a file in order, each inside its own task
// scope.
type Runner struct {
	Logger *output.Logger
	Sink   executil.FailureSink

	// DefaultDotTimeout applies to heartbeat steps without their own
	// dotTimeout.
	DefaultDotTimeout time.Duration

	// ForceStream promotes every step to live output.
	ForceStream bool
}

// Run executes all steps. Steps that exit nonzero are reported to the
// failure sink but don't stop the run unless the sink aborts; only spawn
// and I/O errors do.
func (r *Runner) Run(ctx context.Context, file *File) error {
	for i := range file.Steps {
		if err := r.runStep(ctx, &file.Steps[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) runStep(ctx context.Context, step *Step) error {
	if step.OnlyIfMissing != "" {
		if path := pkg.Which(step.OnlyIfMissing); path != "" {
			output.DebugLogger(ctx).Debug().
				Str("step", step.Name).
				Str("executable", path).
				Msg("skipped, executable already available")
			return nil
		}
	}

	argv, err := step.argv()
	if err != nil {
		return err
	}

	strategy, err := step.strategy(r.DefaultDotTimeout)
	if err != nil {
		return err
	}

	task := r.Logger.Task(step.Name)
	defer task.Done()

	_, err = executil.Execute(ctx, r.Logger, r.Sink, strategy, argv, &executil.Options{
		Env:          step.Env,
		InstantFail:  step.InstantFail,
		AllowFailure: step.AllowFailure,
		ForceStream:  r.ForceStream,
	})
	if err != nil {
		return eris.Wrapf(err, "step %s failed", step.Name)
	}

	return nil
}

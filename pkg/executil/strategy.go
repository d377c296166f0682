package executil

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/polysquare/ci-scripts/pkg/output"
)

// DefaultDotTimeout is the heartbeat interval used when none is given.
const DefaultDotTimeout = 10 * time.Second

// Strategy decides what happens to a spawned command's output while the
// command runs. The set of strategies is closed: Suppressed, Streaming and
// Heartbeat.
type Strategy interface {
	consume(l *output.Logger, proc *exec.Cmd, stdout, stderr io.ReadCloser) (int, error)
}

// Suppressed captures all output in memory and only surfaces it when the
// command fails.
func Suppressed() Strategy {
	return suppressed{}
}

// Streaming forwards output to the logger as it arrives.
func Streaming() Strategy {
	return streaming{}
}

// Heartbeat behaves like Suppressed but emits a dot every dotTimeout while
// the command runs, so long silent commands still show liveness. A
// non-positive timeout selects DefaultDotTimeout.
func Heartbeat(dotTimeout time.Duration) Strategy {
	if dotTimeout <= 0 {
		dotTimeout = DefaultDotTimeout
	}

	return heartbeat{dotTimeout: dotTimeout}
}

// StrategyFor maps a mode name from a step file or CLI flag to a strategy.
// Valid modes are "suppressed" (also the default for an empty mode),
// "stream" and "heartbeat".
func StrategyFor(mode string, dotTimeout time.Duration) (Strategy, error) {
	switch mode {
	case "", "suppressed":
		return Suppressed(), nil
	case "stream":
		return Streaming(), nil
	case "heartbeat":
		return Heartbeat(dotTimeout), nil
	default:
		return nil, eris.Errorf("unknown output mode %s (expected suppressed, stream or heartbeat)", mode)
	}
}

func waitStatus(proc *exec.Cmd) (int, error) {
	err := proc.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return 0, eris.Wrap(err, "failed to wait for process")
}

type suppressed struct{}

func (suppressed) consume(l *output.Logger, proc *exec.Cmd, stdout, stderr io.ReadCloser) (int, error) {
	var (
		wg             sync.WaitGroup
		outBuf, errBuf []byte
		outErr, errErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outBuf, outErr = io.ReadAll(stdout)
	}()
	go func() {
		defer wg.Done()
		errBuf, errErr = io.ReadAll(stderr)
	}()

	// The pipes have to be drained before Wait closes them.
	wg.Wait()

	status, err := waitStatus(proc)
	if err != nil {
		return status, err
	}
	if outErr != nil {
		return status, eris.Wrap(outErr, "failed to read process stdout")
	}
	if errErr != nil {
		return status, eris.Wrap(errErr, "failed to read process stderr")
	}

	if status != 0 {
		l.Message("\n")
		l.Message(string(outBuf))
		l.Message(string(errBuf))
	}

	return status, nil
}

type streaming struct{}

func (streaming) consume(l *output.Logger, proc *exec.Cmd, stdout, stderr io.ReadCloser) (int, error) {
	var (
		printed        atomic.Bool
		wg             sync.WaitGroup
		outErr, errErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outErr = forwardBytes(l, stdout, &printed, true)
	}()
	go func() {
		defer wg.Done()
		errErr = forwardBytes(l, stderr, &printed, false)
	}()

	wg.Wait()

	status, err := waitStatus(proc)
	if err != nil {
		return status, err
	}
	if outErr != nil {
		return status, eris.Wrap(outErr, "failed to read process stdout")
	}
	if errErr != nil {
		return status, eris.Wrap(errErr, "failed to read process stderr")
	}

	if printed.Load() {
		l.Print("\n")
	}

	return status, nil
}

// forwardBytes reads r one byte at a time and forwards complete UTF-8
// sequences through the logger. When separateHeader is set, the first byte
// that isn't a newline emits a blank line first so the process output
// doesn't run into the task header.
func forwardBytes(l *output.Logger, r io.Reader, printed *atomic.Bool, separateHeader bool) error {
	var (
		buf       [1]byte
		pending   []byte
		readFirst bool
	)

	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			if separateHeader && !readFirst {
				readFirst = true
				if buf[0] != '\n' {
					l.Message("\n")
				}
			}

			pending = append(pending, buf[0])
			if utf8.FullRune(pending) || len(pending) >= utf8.UTFMax {
				l.Message(string(pending))
				printed.Store(true)
				pending = pending[:0]
			}
		}

		if err != nil {
			if len(pending) > 0 {
				l.Message(string(pending))
				printed.Store(true)
			}
			if eris.Is(err, io.EOF) || eris.Is(err, io.ErrClosedPipe) || eris.Is(err, os.ErrClosed) {
				return nil
			}

			return eris.Wrap(err, "failed to read process output")
		}
	}
}

type heartbeat struct {
	dotTimeout time.Duration
}

func (h heartbeat) consume(l *output.Logger, proc *exec.Cmd, stdout, stderr io.ReadCloser) (int, error) {
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		timer := time.NewTimer(h.dotTimeout)
		defer timer.Stop()
		for {
			select {
			case <-done:
				return
			case <-timer.C:
				l.Dot()
				timer.Reset(h.dotTimeout)
			}
		}
	}()

	// Wake the ticker immediately once the status is captured; no dot may
	// be printed after that.
	defer func() {
		close(done)
		wg.Wait()
	}()

	return suppressed{}.consume(l, proc, stdout, stderr)
}

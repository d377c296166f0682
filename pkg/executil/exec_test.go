package executil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/polysquare/ci-scripts/pkg/output"
)

type recordingSink struct {
	calls   int
	instant []bool
}

func (s *recordingSink) NoteFailure(instantFail bool) {
	s.calls++
	s.instant = append(s.instant, instantFail)
}

func run(t *testing.T, strategy Strategy, argv []string, opts *Options) (int, *bytes.Buffer, *recordingSink) {
	t.Helper()

	buf := &bytes.Buffer{}
	sink := &recordingSink{}
	status, err := Execute(context.Background(), output.New(buf), sink, strategy, argv, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return status, buf, sink
}

func TestExecuteSuccessUnderEveryStrategy(t *testing.T) {
	strategies := map[string]Strategy{
		"suppressed": Suppressed(),
		"stream":     Streaming(),
		"heartbeat":  Heartbeat(time.Second),
	}

	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			status, buf, sink := run(t, strategy, []string{"true"}, nil)
			if status != 0 {
				t.Errorf("status = %d, want 0", status)
			}
			if sink.calls != 0 {
				t.Errorf("NoteFailure called %d times, want 0", sink.calls)
			}
			if strings.Contains(buf.String(), "!!!") {
				t.Errorf("output = %q, want no failure banner", buf.String())
			}
		})
	}
}

func TestExecuteFailureUnderEveryStrategy(t *testing.T) {
	strategies := map[string]Strategy{
		"suppressed": Suppressed(),
		"stream":     Streaming(),
		"heartbeat":  Heartbeat(time.Second),
	}

	for name, strategy := range strategies {
		t.Run(name, func(t *testing.T) {
			status, buf, sink := run(t, strategy, []string{"false"}, nil)
			if status != 1 {
				t.Errorf("status = %d, want 1", status)
			}
			if sink.calls != 1 {
				t.Errorf("NoteFailure called %d times, want exactly 1", sink.calls)
			}
			if !strings.Contains(buf.String(), "!!! Process false failed with 1") {
				t.Errorf("output = %q, want failure banner", buf.String())
			}
		})
	}
}

func TestFailureBannerJoinsArguments(t *testing.T) {
	_, buf, _ := run(t, Suppressed(), []string{"sh", "-c", "exit 7"}, nil)
	if !strings.Contains(buf.String(), "!!! Process sh -c exit 7 failed with 7") {
		t.Errorf("output = %q, want joined command in banner", buf.String())
	}
}

func TestInstantFailForwarded(t *testing.T) {
	_, _, sink := run(t, Suppressed(), []string{"false"}, &Options{InstantFail: true})
	if len(sink.instant) != 1 || !sink.instant[0] {
		t.Errorf("instant flags = %v, want [true]", sink.instant)
	}
}

func TestAllowFailureSkipsSink(t *testing.T) {
	status, buf, sink := run(t, Suppressed(), []string{"false"}, &Options{AllowFailure: true})
	if status != 1 {
		t.Errorf("status = %d, want 1", status)
	}
	if sink.calls != 0 {
		t.Errorf("NoteFailure called %d times, want 0", sink.calls)
	}
	if !strings.Contains(buf.String(), "!!! Process false failed with 1") {
		t.Errorf("output = %q, banner should be printed even with AllowFailure", buf.String())
	}
}

func TestSuppressedShowsOutputOnFailure(t *testing.T) {
	script := "echo visible-out; echo visible-err >&2; exit 3"
	status, buf, _ := run(t, Suppressed(), []string{"sh", "-c", script}, nil)
	if status != 3 {
		t.Errorf("status = %d, want 3", status)
	}
	if !strings.Contains(buf.String(), "visible-out") {
		t.Errorf("output = %q, want captured stdout", buf.String())
	}
	if !strings.Contains(buf.String(), "visible-err") {
		t.Errorf("output = %q, want captured stderr", buf.String())
	}
}

func TestSuppressedHidesOutputOnSuccess(t *testing.T) {
	_, buf, _ := run(t, Suppressed(), []string{"sh", "-c", "echo hidden"}, nil)
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("output = %q, successful command output must stay hidden", buf.String())
	}
}

func TestStreamingEmitsLeadingBlankLine(t *testing.T) {
	_, buf, _ := run(t, Streaming(), []string{"sh", "-c", "printf hello"}, nil)
	got := buf.String()
	if !strings.HasPrefix(got, "\n") {
		t.Errorf("output = %q, want leading blank line before content", got)
	}
	if !strings.Contains(got, "hello") {
		t.Errorf("output = %q, want streamed content", got)
	}
}

func TestStreamingNoBlankLineWhenOutputStartsWithNewline(t *testing.T) {
	_, buf, _ := run(t, Streaming(), []string{"sh", "-c", `printf '\nhello'`}, nil)
	if strings.HasPrefix(buf.String(), "\n\n") {
		t.Errorf("output = %q, want no doubled leading newline", buf.String())
	}
}

func TestStreamingPreservesPerStreamOrder(t *testing.T) {
	_, buf, _ := run(t, Streaming(), []string{"sh", "-c", "echo one; echo two; echo three"}, nil)
	got := buf.String()
	one := strings.Index(got, "one")
	two := strings.Index(got, "two")
	three := strings.Index(got, "three")
	if one == -1 || two == -1 || three == -1 || !(one < two && two < three) {
		t.Errorf("output = %q, want one < two < three", got)
	}
}

func TestHeartbeatDotCount(t *testing.T) {
	status, buf, _ := run(t, Heartbeat(time.Second), []string{"sleep", "3"}, nil)
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}

	dots := strings.Count(buf.String(), ".")
	if dots < 1 || dots > 3 {
		t.Errorf("emitted %d dots, want 1-3", dots)
	}
}

func TestHeartbeatNoDotsForFastCommand(t *testing.T) {
	_, buf, _ := run(t, Heartbeat(time.Second), []string{"true"}, nil)
	if strings.Contains(buf.String(), ".") {
		t.Errorf("output = %q, want no dots for a fast command", buf.String())
	}
}

func TestSpawnErrorForMissingBinary(t *testing.T) {
	buf := &bytes.Buffer{}
	sink := &recordingSink{}
	_, err := Execute(context.Background(), output.New(buf), sink, Suppressed(),
		[]string{"definitely-not-a-binary-xyz", "--flag"}, nil)
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}

	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("error = %v, want *SpawnError", err)
	}
	if !strings.Contains(spawnErr.Cmd, "definitely-not-a-binary-xyz --flag") {
		t.Errorf("Cmd = %q, want the attempted command line", spawnErr.Cmd)
	}
	if sink.calls != 0 {
		t.Errorf("NoteFailure called %d times, want 0", sink.calls)
	}
}

func TestEnvOverridesMerged(t *testing.T) {
	script := "echo $CI_SCRIPTS_TEST_VAR; exit 1"
	_, buf, _ := run(t, Suppressed(), []string{"sh", "-c", script},
		&Options{Env: map[string]string{"CI_SCRIPTS_TEST_VAR": "merged-value"}, AllowFailure: true})
	if !strings.Contains(buf.String(), "merged-value") {
		t.Errorf("output = %q, want merged environment variable", buf.String())
	}
}

func TestForceStreamPromotesStrategy(t *testing.T) {
	_, buf, _ := run(t, Suppressed(), []string{"sh", "-c", "echo promoted"},
		&Options{ForceStream: true})
	if !strings.Contains(buf.String(), "promoted") {
		t.Errorf("output = %q, ForceStream should surface successful output", buf.String())
	}
}

// keepPipes records the stream handles so the test can verify that Execute
// closed them.
type keepPipes struct {
	stdout, stderr io.ReadCloser
	fail           bool
}

func (s *keepPipes) consume(l *output.Logger, proc *exec.Cmd, stdout, stderr io.ReadCloser) (int, error) {
	s.stdout = stdout
	s.stderr = stderr
	if s.fail {
		// Reap the child so the failure injection doesn't leak it.
		proc.Wait()
		return 0, errors.New("strategy exploded")
	}

	return suppressed{}.consume(l, proc, stdout, stderr)
}

func TestExecuteClosesPipes(t *testing.T) {
	strategy := &keepPipes{}
	buf := &bytes.Buffer{}
	_, err := Execute(context.Background(), output.New(buf), &recordingSink{}, strategy, []string{"true"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var scratch [1]byte
	if _, err := strategy.stdout.Read(scratch[:]); err == nil {
		t.Error("stdout pipe still readable after Execute returned")
	}
	if _, err := strategy.stderr.Read(scratch[:]); err == nil {
		t.Error("stderr pipe still readable after Execute returned")
	}
}

func TestExecuteClosesPipesWhenStrategyFails(t *testing.T) {
	strategy := &keepPipes{fail: true}
	buf := &bytes.Buffer{}
	_, err := Execute(context.Background(), output.New(buf), &recordingSink{}, strategy, []string{"true"}, nil)
	if err == nil {
		t.Fatal("expected the injected strategy error")
	}

	var scratch [1]byte
	if _, err := strategy.stdout.Read(scratch[:]); err == nil {
		t.Error("stdout pipe still readable after strategy failure")
	}
	if _, err := strategy.stderr.Read(scratch[:]); err == nil {
		t.Error("stderr pipe still readable after strategy failure")
	}
}

func TestStrategyFor(t *testing.T) {
	for _, mode := range []string{"", "suppressed", "stream", "heartbeat"} {
		if _, err := StrategyFor(mode, time.Second); err != nil {
			t.Errorf("StrategyFor(%q) unexpected error: %v", mode, err)
		}
	}

	if _, err := StrategyFor("shouty", time.Second); err == nil {
		t.Error("StrategyFor(shouty) should fail")
	}
}

// Package output implements the nested status logger that all ci-scripts
// diagnostics are rendered through.
//
// A single Logger is shared by everything that participates in one CI run.
// Task scopes must be strictly call-stack shaped on one logical flow of
// control; only Message, Print and Dot may be called from other goroutines
// (the per-process output readers do this).
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const indentStep = "    "

// Logger writes indented diagnostics to a single destination, usually
// stderr. The zero value is not usable; construct one with New or Stderr.
type Logger struct {
	mu      sync.Mutex
	w       io.Writer
	stripCR bool

	indentLevel   int
	printedNested bool
	taskLevel     int
}

// New returns a Logger writing to w. Carriage returns are dropped unless w
// is a terminal, so log files don't end up with partial-line updates.
func New(w io.Writer) *Logger {
	return &Logger{w: w, stripCR: !isTerminal(w)}
}

// Stderr returns a Logger writing to the process's stderr stream.
func Stderr() *Logger {
	return New(os.Stderr)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Message writes text at the current indent level. Every carriage return
// and newline in text re-emits the indent so that continuation lines stay
// aligned. No trailing newline is added; callers control terminators.
func (l *Logger) Message(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indentLevel > 0 {
		l.printedNested = true
	}

	indent := strings.Repeat(indentStep, l.indentLevel)
	text = strings.ReplaceAll(text, "\r", "\r"+indent)
	text = strings.ReplaceAll(text, "\n", "\n"+indent)
	l.write(text)
}

// Print writes text verbatim, without any indent processing.
func (l *Logger) Print(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(text)
}

// Dot writes a single dot, used as a heartbeat tick for long-running
// commands that produce no visible output.
func (l *Logger) Dot() {
	l.Print(".")
}

// Enter increases the indent level for subsequent messages.
func (l *Logger) Enter() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.indentLevel++
}

// Exit decreases the indent level. Returning to the top level after nested
// output was printed emits one separating newline.
func (l *Logger) Exit() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.indentLevel--
	if l.indentLevel == 0 && l.printedNested {
		l.write("\n")
		l.printedNested = false
	}
}

func (l *Logger) write(text string) {
	if l.stripCR {
		text = strings.ReplaceAll(text, "\r", "")
	}
	io.WriteString(l.w, text)
}

// Task announces a named unit of work and opens a nested scope for it.
// Top-level tasks are announced with "==>", nested ones with "...". Call
// Done on the returned handle (usually via defer) to close the scope.
func (l *Logger) Task(description string) *Task {
	l.mu.Lock()
	level := l.taskLevel
	l.mu.Unlock()

	indicator := "==>"
	if level > 0 {
		indicator = "..."
	}
	l.Message(fmt.Sprintf("\n%s %s", indicator, description))

	l.mu.Lock()
	l.taskLevel++
	l.mu.Unlock()
	l.Enter()

	return &Task{l: l}
}

// Task is an open nested scope created by Logger.Task.
type Task struct {
	l    *Logger
	done bool
}

// Done closes the scope. It is safe to call on every exit path; repeated
// calls are ignored.
func (t *Task) Done() {
	if t.done {
		return
	}
	t.done = true

	t.l.Exit()
	t.l.mu.Lock()
	t.l.taskLevel--
	t.l.mu.Unlock()
}

// Package pkg provides general helpers shared by all ci-scripts commands.
package pkg

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

func PrintTask(msg string) {
	colorstring.Fprintf(os.Stderr, "[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Fprintf(os.Stderr, "[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Fprintf(os.Stderr, "[red][bold]  ->[reset] %s\n", msg)
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}

	return fi.Mode()&0111 != 0
}

func pathextList() []string {
	exts := os.Getenv("PATHEXT")
	if exts == "" {
		return nil
	}

	return strings.Split(exts, string(os.PathListSeparator))
}

// Which returns the full path to executable, searching PATH (and PATHEXT
// extensions where the platform defines them). It returns an empty string
// if the executable can't be found. Names containing a path separator are
// checked directly instead of searched.
func Which(executable string) string {
	if strings.ContainsRune(executable, os.PathSeparator) {
		if isExecutable(executable) {
			return executable
		}
		return ""
	}

	pathList := os.Getenv("PATH")
	exts := append([]string{""}, pathextList()...)

	seen := make(map[string]bool)
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true

		for _, ext := range exts {
			full := filepath.Join(dir, executable) + ext
			if isExecutable(full) {
				return full
			}
		}
	}

	return ""
}

// ProcessShebang resolves argv[0] through PATH and, if it points at a
// script starting with a shebang line, rewrites argv to invoke the
// interpreter directly. Some platforms don't honour shebangs natively, so
// this can't be left to the operating system.
func ProcessShebang(argv []string) ([]string, error) {
	path := Which(argv[0])
	if path == "" {
		return nil, eris.Errorf("can't find binary %s in PATH", argv[0])
	}

	// Executables whose extension is listed in PATHEXT can be handed to
	// the operating system as-is.
	for _, ext := range pathextList() {
		if filepath.Ext(argv[0]) == ext {
			return argv, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	prefix := make([]byte, 2)
	if _, err := io.ReadFull(reader, prefix); err != nil || string(prefix) != "#!" {
		return argv, nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && !eris.Is(err, io.EOF) {
		return argv, nil
	}

	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return argv, nil
	}

	cmd := append([]string{filepath.Base(fields[0])}, fields[1:]...)
	cmd = append(cmd, path)
	return append(cmd, argv[1:]...), nil
}

// WhereUnavailable calls fn if executable is not available in PATH. A
// non-empty path constrains the search to that directory list only.
func WhereUnavailable(executable, path string, fn func() error) error {
	if path != "" {
		saved := os.Getenv("PATH")
		os.Setenv("PATH", path)
		found := Which(executable) != ""
		os.Setenv("PATH", saved)

		if found {
			return nil
		}
	} else if Which(executable) != "" {
		return nil
	}

	return fn()
}

// InDir runs fn with path as the working directory, restoring the previous
// one afterwards.
func InDir(path string, fn func() error) error {
	cwd, err := os.Getwd()
	if err != nil {
		return eris.Wrap(err, "failed to retrieve the current working directory")
	}

	if err := os.Chdir(path); err != nil {
		return eris.Wrapf(err, "failed to change into %s", path)
	}
	defer os.Chdir(cwd)

	return fn()
}

// MakeExecutable adds the executable bits to the file at path.
func MakeExecutable(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return eris.Wrapf(err, "failed to read permissions for %s", path)
	}

	err = os.Chmod(path, fi.Mode()|0111)
	if err != nil {
		return eris.Wrapf(err, "failed to mark %s as executable", path)
	}
	return nil
}

// CompareContents reports whether both files exist and have identical
// contents.
func CompareContents(lhs, rhs string) (bool, error) {
	lhsData, err := os.ReadFile(lhs)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrapf(err, "failed to read %s", lhs)
	}

	rhsData, err := os.ReadFile(rhs)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrapf(err, "failed to read %s", rhs)
	}

	return bytes.Equal(lhsData, rhsData), nil
}

// ForceMkdir creates directory (and any parents) if necessary and returns
// its path.
func ForceMkdir(directory string) (string, error) {
	err := os.MkdirAll(directory, os.FileMode(0755))
	if err != nil {
		return "", eris.Wrapf(err, "failed to create directory %s", directory)
	}

	return directory, nil
}

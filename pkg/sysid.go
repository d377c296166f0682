package pkg

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/polysquare/ci-scripts/pkg/container"
	"github.com/polysquare/ci-scripts/pkg/remote"
)

const configGuessURL = "http://public-travis-autoconf-scripts.polysquare.org/cgit/config.git/plain/config.guess"

// GetSystemIdentifier returns an identifier describing the ABI of the
// current system, as reported by autoconf's config.guess. The script is
// fetched once and kept in the container cache.
func GetSystemIdentifier(cont *container.Container) (string, error) {
	cacheDir, err := cont.NamedCacheDir("system-id")
	if err != nil {
		return "", err
	}

	guess := filepath.Join(cacheDir, "config.guess")
	if _, err := os.Stat(guess); err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "failed to check %s", guess)
		}

		PrintSubtask("config.guess:  " + configGuessURL)
		client := remote.NewClient()
		if _, err := client.Download(guess, configGuessURL, "config.guess"); err != nil {
			return "", err
		}
	}

	if err := MakeExecutable(guess); err != nil {
		return "", err
	}

	out, err := exec.Command("sh", guess).CombinedOutput()
	if err != nil {
		return "", eris.Wrapf(err, "failed to run %s", guess)
	}

	return strings.TrimSpace(string(out)), nil
}

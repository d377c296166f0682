package container

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Modification-time stamps are kept in the cache instead of trusting the
// filesystem because filesystem mtimes don't survive tar round-trips.

func (c *Container) stampPath(filename string) (string, error) {
	dir, err := c.NamedCacheDir("mtimes")
	if err != nil {
		return "", err
	}

	digest := md5.Sum([]byte(filename))
	return filepath.Join(dir, hex.EncodeToString(digest[:])), nil
}

// StampMTime records filename's current modification time in the cache.
func (c *Container) StampMTime(filename string) error {
	fi, err := os.Stat(filename)
	if err != nil {
		return eris.Wrapf(err, "failed to check %s", filename)
	}

	path, err := c.stampPath(filename)
	if err != nil {
		return err
	}

	data := strconv.FormatInt(fi.ModTime().UnixNano(), 10)
	err = os.WriteFile(path, []byte(data), os.FileMode(0644))
	if err != nil {
		return eris.Wrapf(err, "failed to write mtime stamp for %s", filename)
	}
	return nil
}

func (c *Container) stampedMTime(filename string) time.Time {
	path, err := c.stampPath(filename)
	if err != nil {
		return time.Time{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}
	}

	nanos, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}
	}

	return time.Unix(0, nanos)
}

// ExistsAndIsMoreRecent reports whether filename exists and was modified
// after since, consulting the stamp cache first. Files without a stamp get
// one recorded from the filesystem mtime for later calls.
func (c *Container) ExistsAndIsMoreRecent(filename string, since time.Time) (bool, error) {
	fi, err := os.Stat(filename)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrapf(err, "failed to check %s", filename)
	}

	stamped := c.stampedMTime(filename)
	if !stamped.IsZero() {
		return stamped.After(since), nil
	}

	if err := c.StampMTime(filename); err != nil {
		return false, err
	}
	return fi.ModTime().After(since), nil
}

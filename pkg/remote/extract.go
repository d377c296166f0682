package remote

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"
	"github.com/ulikunitz/xz"
)

// Extract unpacks the archive at path into dest, stripping strip leading
// path components from every entry. The format is picked from the file
// name: .zip, .tar.gz, .tar.bz2, .tar.xz or .tar.br.
func Extract(path, dest string, strip int) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "failed to open archive %s", path)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(path, ".zip"):
		return extractZip(f, dest, strip)
	case strings.HasSuffix(path, ".tar.gz"):
		reader, err := gzip.NewReader(f)
		if err != nil {
			return eris.Wrapf(err, "failed to read gzip header of %s", path)
		}
		defer reader.Close()

		return extractTar(reader, dest, strip)
	case strings.HasSuffix(path, ".tar.bz2"):
		return extractTar(bzip2.NewReader(f), dest, strip)
	case strings.HasSuffix(path, ".tar.xz"):
		reader, err := xz.NewReader(f)
		if err != nil {
			return eris.Wrapf(err, "failed to read xz header of %s", path)
		}

		return extractTar(reader, dest, strip)
	case strings.HasSuffix(path, ".tar.br"):
		return extractTar(brotli.NewReader(f), dest, strip)
	default:
		return eris.Errorf("archive format of %s not supported", path)
	}
}

// stripPath normalizes item and removes strip leading components. An empty
// result means the entry collapses onto the destination root and should be
// skipped.
func stripPath(item string, strip int) string {
	parts := strings.Split(filepath.Clean(filepath.FromSlash(item)), string(filepath.Separator))
	if len(parts) <= strip {
		return ""
	}

	return filepath.Join(parts[strip:]...)
}

func createDest(dest, item string, strip int) (*os.File, string, error) {
	rel := stripPath(item, strip)
	if rel == "" || rel == "." {
		return nil, "", nil
	}

	path := filepath.Join(dest, rel)
	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0755)); err != nil {
		return nil, "", eris.Wrapf(err, "failed to create directory %s", filepath.Dir(path))
	}

	handle, err := os.Create(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "failed to create file %s", path)
	}

	return handle, path, nil
}

func extractZip(f *os.File, dest string, strip int) error {
	stat, err := f.Stat()
	if err != nil {
		return eris.Wrap(err, "failed to stat archive")
	}

	archive, err := zip.NewReader(f, stat.Size())
	if err != nil {
		return eris.Wrap(err, "failed to read zip archive")
	}

	for _, item := range archive.File {
		if strings.HasSuffix(item.Name, "/") {
			continue
		}

		handle, _, err := createDest(dest, item.Name, strip)
		if err != nil {
			return err
		}
		if handle == nil {
			continue
		}

		itemHandle, err := item.Open()
		if err != nil {
			handle.Close()
			return eris.Wrapf(err, "failed to open archive entry %s", item.Name)
		}

		_, err = io.Copy(handle, itemHandle)
		itemHandle.Close()
		handle.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to extract %s", item.Name)
		}
	}

	return nil
}

func extractTar(r io.Reader, dest string, strip int) error {
	archive := tar.NewReader(r)

	for {
		item, err := archive.Next()
		if err != nil {
			if eris.Is(err, io.EOF) {
				return nil
			}

			return eris.Wrap(err, "failed to read archive entry")
		}

		fi := item.FileInfo()
		if fi.IsDir() {
			continue
		}

		if item.Typeflag == tar.TypeSymlink {
			rel := stripPath(item.Name, strip)
			if rel == "" {
				continue
			}

			path := filepath.Join(dest, rel)
			if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0755)); err != nil {
				return eris.Wrapf(err, "failed to create directory %s", filepath.Dir(path))
			}
			if err := os.Symlink(item.Linkname, path); err != nil {
				return eris.Wrapf(err, "failed to create symlink %s pointing to %s", path, item.Linkname)
			}
			continue
		}

		handle, path, err := createDest(dest, item.Name, strip)
		if err != nil {
			return err
		}
		if handle == nil {
			continue
		}

		_, err = io.Copy(handle, archive)
		handle.Close()
		if err != nil {
			return eris.Wrapf(err, "failed to extract %s", item.Name)
		}

		os.Chmod(path, fi.Mode())
	}
}

// Package remote downloads support files (setup scripts, config.guess and
// friends) into the container cache, with retries and checksums.
package remote

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
)

// DefaultRetries is how often a download is attempted before giving up.
// CI networks drop connections frequently enough that a high count pays
// off.
const DefaultRetries = 100

// Client fetches URLs with bounded retries.
type Client struct {
	HTTP    *http.Client
	Retries int
}

// NewClient returns a Client with a 30 second request timeout and
// DefaultRetries attempts.
func NewClient() *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Retries: DefaultRetries,
	}
}

// Fetch performs a GET request, retrying transport errors and non-OK
// responses. The caller must close the returned body.
func (c *Client) Fetch(url string) (io.ReadCloser, int64, error) {
	retries := c.Retries
	if retries <= 0 {
		retries = 1
	}

	var errors []string
	for attempt := 0; attempt < retries; attempt++ {
		resp, err := c.HTTP.Get(url)
		if err != nil {
			errors = append(errors, err.Error())
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			errors = append(errors, fmt.Sprintf("unexpected status %s", resp.Status))
			continue
		}

		return resp.Body, resp.ContentLength, nil
	}

	return nil, 0, eris.Errorf("failed to open URL %s, exceeded max retries %d, errors: [%s]",
		url, retries, strings.Join(errors, ", "))
}

// Download streams url into the file at dest, showing a progress bar, and
// returns the SHA-256 digest of the downloaded data.
func (c *Client) Download(dest, url, desc string) (string, error) {
	body, length, err := c.Fetch(url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	handle, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "failed to create %s", dest)
	}
	defer handle.Close()

	hash := sha256.New()
	bar := getProgressBar(length, desc)
	defer bar.Finish()

	_, err = io.Copy(io.MultiWriter(handle, hash, bar), body)
	if err != nil {
		return "", eris.Wrapf(err, "failed during download of %s", url)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		// Progress bars just litter CI logs with partial lines.
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

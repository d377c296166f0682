package remote

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testClient(retries int) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Retries: retries,
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "payload")
	}))
	defer srv.Close()

	body, _, err := testClient(3).Fetch(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil || string(data) != "payload" {
		t.Errorf("body = %q, %v; want payload", data, err)
	}
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "not yet", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "finally")
	}))
	defer srv.Close()

	body, _, err := testClient(5).Fetch(srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "finally" {
		t.Errorf("body = %q, want finally", data)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := testClient(2).Fetch(srv.URL)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "exceeded max retries 2") {
		t.Errorf("error = %v, want retry count in message", err)
	}
}

func TestDownloadReturnsChecksum(t *testing.T) {
	payload := []byte("download me")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "file")
	t.Setenv("CI", "true")

	digest, err := testClient(1).Download(dest, srv.URL, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil || string(data) != string(payload) {
		t.Errorf("file contents = %q, %v", data, err)
	}

	want := sha256.Sum256(payload)
	if digest != hex.EncodeToString(want[:]) {
		t.Errorf("digest = %q, want %q", digest, hex.EncodeToString(want[:]))
	}
}

// Package source opens the members documents from a base URL or directory and
// caches their parsed form.
package source

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"oamembers/internal/config"
)

// ErrSourceUnavailable is returned when a document cannot be fetched or opened.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrUnexpectedStatusCode indicates an HTTP response other than 200.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// Opener opens a named document.
type Opener interface {
	Open(name string) (io.ReadCloser, error)
}

// Reader opens documents relative to a base location. A base containing "://"
// is fetched over HTTP; anything else is a directory on disk. Every fetch is a
// single attempt.
type Reader struct {
	client *http.Client
	base   string
}

// NewReader creates a reader for base with no HTTP timeout.
func NewReader(base string) *Reader {
	return &Reader{
		client: &http.Client{},
		base:   base,
	}
}

// NewReaderWithConfig creates a reader from the source section of the config.
func NewReaderWithConfig(cfg *config.SourceConfig) *Reader {
	return NewReaderWithClient(cfg.Base, &http.Client{Timeout: cfg.GetTimeout()})
}

// NewReaderWithClient creates a reader using the given HTTP client.
func NewReaderWithClient(base string, client *http.Client) *Reader {
	return &Reader{
		client: client,
		base:   base,
	}
}

// Base returns the configured base location.
func (r *Reader) Base() string {
	return r.base
}

// IsRemote reports whether documents are fetched over the network.
func (r *Reader) IsRemote() bool {
	return strings.Contains(r.base, "://")
}

// Open returns the raw bytes of the named document. The caller closes it.
func (r *Reader) Open(name string) (io.ReadCloser, error) {
	if r.IsRemote() {
		return r.fetch(strings.TrimSuffix(r.base, "/") + "/" + name)
	}

	path := filepath.Join(r.base, name)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, path, err)
	}

	return f, nil
}

// OpenWithMetrics opens and fully reads name through o, returning (content, size, duration, error).
func OpenWithMetrics(o Opener, name string) ([]byte, int64, time.Duration, error) {
	startTime := time.Now()

	rc, err := o.Open(name)
	if err != nil {
		return nil, 0, time.Since(startTime), err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	duration := time.Since(startTime)

	if err != nil {
		return nil, 0, duration, fmt.Errorf("%w: reading %s: %w", ErrSourceUnavailable, name, err)
	}

	return content, int64(len(content)), duration, nil
}

func (r *Reader) fetch(url string) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrSourceUnavailable, err)
	}

	req.Header.Set("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("%w: %s: %w: %d", ErrSourceUnavailable, url, ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return resp.Body, nil
}

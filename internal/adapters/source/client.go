// Package source downloads published leaderboard workbooks.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 16 << 20
	userAgent       = "sailtrack/1.0"
)

// zipMagic opens every xlsx file.
var zipMagic = []byte("PK\x03\x04") //nolint:gochecknoglobals // constant byte signature

// Fetcher retrieves the raw bytes behind a snapshot URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client fetches over HTTP(S), or from disk for file:// URLs and bare paths.
type Client struct {
	http     *http.Client
	maxBytes int64
}

// NewClient builds a client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the workbook at url. Any failure, including a non-2xx status
// or a body that is not a zip container, wraps ErrTransport.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		data, err = c.get(ctx, url)
	default:
		data, err = os.ReadFile(strings.TrimPrefix(url, "file://"))
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTransport, url, err)
		}
	}
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(data, zipMagic) {
		return nil, fmt.Errorf("%w: %s: payload is not an xlsx workbook", ErrTransport, url)
	}
	return data, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, url, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransport, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", ErrTransport, url, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrTransport, url, c.maxBytes)
	}
	return data, nil
}

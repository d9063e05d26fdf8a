package httpds

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrStatus is returned when the server answers with a non-2xx status.
var ErrStatus = errors.New("httpds: unexpected status")

// URLSource is a datasource for one HTTP(S) document.
type URLSource struct {
	client *Client
	url    string
	name   string
}

// NewURLSource binds a URL to a client. A nil client gets NewClient(Config{}).
func NewURLSource(c *Client, rawURL string) *URLSource {
	if c == nil {
		c = NewClient(Config{})
	}
	return &URLSource{client: c, url: rawURL, name: FilenameFromURL(rawURL, "")}
}

// Name returns the document name. After Open it reflects the response
// Content-Type when the URL path carries no extension.
func (s *URLSource) Name() string { return s.name }

// Open performs the GET and returns the response body.
func (s *URLSource) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpds: get %s: %w", s.url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, s.url)
	}
	s.name = FilenameFromURL(s.url, resp.Header.Get("Content-Type"))
	return resp.Body, nil
}

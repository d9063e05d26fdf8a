// Package datasource defines where ingested bytes come from. A Source yields
// one named document; the name carries the extension that selects the
// normalizer's format.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"dynetl/internal/datasource/file"
	"dynetl/internal/datasource/httpds"
)

// ErrTooLarge is returned by ReadAll when a document exceeds the limit.
var ErrTooLarge = errors.New("datasource: document exceeds size limit")

// Source opens one document.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name is the document's file name. For HTTP sources it is final only
	// after Open, when the response headers are known.
	Name() string
}

// For returns an HTTP source for http(s) URLs and a local file source
// otherwise.
func For(arg string, client *httpds.Client) Source {
	lower := strings.ToLower(arg)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return httpds.NewURLSource(client, arg)
	}
	return file.NewLocal(arg)
}

// ReadAll opens src and reads the whole document. A positive limit caps the
// number of bytes accepted.
func ReadAll(ctx context.Context, src Source, limit int64) (name string, data []byte, err error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	r := io.Reader(rc)
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err = io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("datasource: read %s: %w", src.Name(), err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrTooLarge, src.Name(), limit)
	}
	return src.Name(), data, nil
}

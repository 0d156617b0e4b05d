// Package source provides the byte streams a download reads from.
//
// A Source is resolved lazily: nothing touches the network or the bucket
// until Open is called from the download goroutine.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gocloud.dev/blob"

	"github.com/tomefetch/tomefetch/internal/engine/types"
)

// Stream is an opened source together with the metadata known about it.
type Stream struct {
	Body        io.ReadCloser
	Size        int64  // 0 when unknown
	Filename    string // Suggested file name, may be empty
	ContentType string
}

// Source opens a byte stream.
type Source interface {
	Open(ctx context.Context) (*Stream, error)
	// Describe returns a human readable location (usually the URL).
	Describe() string
}

// ErrUnsupportedScheme is returned by Resolve for URLs no source can open.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Resolve picks the source implementation for rawURL: http and https go
// through HTTPSource, schemes with a registered gocloud bucket driver through
// BlobSource. mem:// is refused because every Open would see a new, empty
// bucket; in-memory buckets are read with NewBlobSource instead.
func Resolve(rawURL string, headers map[string]string, runtime *types.RuntimeConfig) (Source, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "http", "https":
		return NewHTTPSource(rawURL, headers, runtime), nil
	case "":
		return nil, fmt.Errorf("%w: %q has no scheme", ErrUnsupportedScheme, rawURL)
	case "mem":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	if !blob.DefaultURLMux().ValidBucketScheme(scheme) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
	return ParseBlobURL(rawURL)
}

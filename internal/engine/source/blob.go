package source

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/tomefetch/tomefetch/internal/utils"
)

// BlobSource reads a single object from a gocloud.dev bucket.
//
// When Bucket is nil the bucket is opened from BucketURL on every Open and
// closed together with the returned stream.
type BlobSource struct {
	BucketURL string
	Key       string
	Bucket    *blob.Bucket
}

// NewBlobSource reads key from an already opened bucket. The caller keeps
// ownership of the bucket.
func NewBlobSource(bucket *blob.Bucket, key string) *BlobSource {
	return &BlobSource{Bucket: bucket, Key: key}
}

// ParseBlobURL splits a blob URL into bucket URL and object key.
//
// For file:// URLs the bucket is the containing directory and the key the
// base name. For every other scheme the host names the bucket and the path
// is the key, e.g. s3://books/scans/a.pdf?region=eu-west-1.
func ParseBlobURL(rawURL string) (*BlobSource, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid blob url: %w", err)
	}

	if parsed.Scheme == "file" {
		p := filepath.FromSlash(parsed.Path)
		dir, key := filepath.Split(p)
		if key == "" {
			return nil, fmt.Errorf("blob url %q has no object key", rawURL)
		}
		bucketURL := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(dir)), RawQuery: parsed.RawQuery}
		return &BlobSource{BucketURL: bucketURL.String(), Key: key}, nil
	}

	key := strings.TrimPrefix(parsed.Path, "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("blob url %q has no object key", rawURL)
	}
	bucketURL := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, RawQuery: parsed.RawQuery}
	return &BlobSource{BucketURL: bucketURL.String(), Key: key}, nil
}

// Open opens a reader on the object.
func (s *BlobSource) Open(ctx context.Context) (*Stream, error) {
	bucket := s.Bucket
	owned := false
	if bucket == nil {
		var err error
		bucket, err = blob.OpenBucket(ctx, s.BucketURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open bucket %s: %w", s.BucketURL, err)
		}
		owned = true
	}

	reader, err := bucket.NewReader(ctx, s.Key, nil)
	if err != nil {
		if owned {
			_ = bucket.Close()
		}
		return nil, fmt.Errorf("failed to open %s: %w", s.Key, err)
	}

	utils.Debug("Blob source opened %s: size %d", s.Describe(), reader.Size())

	stream := &Stream{
		Body:        reader,
		Size:        reader.Size(),
		Filename:    utils.SanitizeFilename(path.Base(s.Key)),
		ContentType: reader.ContentType(),
	}
	if owned {
		stream.Body = &bucketReader{Reader: reader, bucket: bucket}
	}
	return stream, nil
}

// Describe returns the bucket URL joined with the key.
func (s *BlobSource) Describe() string {
	if s.BucketURL == "" {
		return s.Key
	}
	return s.BucketURL + "#" + s.Key
}

// bucketReader closes the bucket it was opened from.
type bucketReader struct {
	*blob.Reader
	bucket *blob.Bucket
}

func (r *bucketReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.bucket.Close(); err == nil {
		err = cerr
	}
	return err
}

package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// BytesSource serves an in-memory byte slice.
type BytesSource struct {
	Name        string
	Data        []byte
	ContentType string
}

// Open returns a fresh reader over Data.
func (s *BytesSource) Open(context.Context) (*Stream, error) {
	return &Stream{
		Body:        io.NopCloser(bytes.NewReader(s.Data)),
		Size:        int64(len(s.Data)),
		Filename:    s.Name,
		ContentType: s.ContentType,
	}, nil
}

func (s *BytesSource) Describe() string {
	return "memory:" + s.Name
}

// ErrAlreadyOpened is returned when a ReaderSource is opened twice.
var ErrAlreadyOpened = errors.New("reader source already opened")

// ReaderSource wraps a caller-supplied reader. It can be opened once.
type ReaderSource struct {
	Reader   io.Reader
	Size     int64
	Filename string

	mu     sync.Mutex
	opened bool
}

// Open hands out the wrapped reader. When it implements io.Closer the
// download closes it once done.
func (s *ReaderSource) Open(context.Context) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil, ErrAlreadyOpened
	}
	s.opened = true

	body, ok := s.Reader.(io.ReadCloser)
	if !ok {
		body = io.NopCloser(s.Reader)
	}
	return &Stream{Body: body, Size: s.Size, Filename: s.Filename}, nil
}

func (s *ReaderSource) Describe() string {
	return "reader:" + s.Filename
}

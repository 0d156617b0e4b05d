package utils

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"github.com/vfaronov/httpheader"
)

// DefaultFilename is used when neither headers nor URL yield a usable name.
const DefaultFilename = "download.bin"

// sniffLen is the number of leading bytes filetype needs to match all kinds.
const sniffLen = 262

// DetermineFilename picks the destination name for a response: the
// Content-Disposition filename (RFC 8187 filename* wins), then the last URL
// path segment, then DefaultFilename.
func DetermineFilename(rawurl string, resp *http.Response) string {
	if resp != nil {
		if _, name, _ := httpheader.ContentDisposition(resp.Header); name != "" {
			if clean := SanitizeFilename(name); clean != "" {
				return clean
			}
		}
	}

	if name := FilenameFromURL(rawurl); name != "" {
		return name
	}
	return DefaultFilename
}

// FilenameFromURL returns the sanitized last path segment of rawurl, or "".
func FilenameFromURL(rawurl string) string {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	p := parsed.Path
	if p == "" {
		p = parsed.Opaque
	}
	if strings.HasSuffix(p, "/") {
		return ""
	}
	return SanitizeFilename(path.Base(p))
}

// SanitizeFilename strips directory components and characters that are
// invalid in file names on common platforms. It returns "" when nothing
// usable is left.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}

// DetectContentType sniffs the MIME type of the file at path from its magic
// bytes. The fallback (typically the server's Content-Type) is returned when
// the type cannot be recognised.
func DetectContentType(filePath string, fallback string) string {
	f, err := os.Open(filePath)
	if err != nil {
		return fallback
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fallback
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return fallback
	}
	return kind.MIME.Value
}

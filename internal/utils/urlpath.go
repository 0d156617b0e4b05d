package utils

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ExtractURLPath maps a URL to a relative directory made of its host and
// the directories above the file, so mirrored downloads keep the remote
// layout. Example: https://example.com/a/b/file.zip -> example.com/a/b
func ExtractURLPath(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	dir := path.Dir(strings.TrimPrefix(parsed.Path, "/"))
	if dir == "." || dir == "/" {
		return parsed.Host, nil
	}

	segments := []string{parsed.Host}
	for _, seg := range strings.Split(dir, "/") {
		// Never let the remote path climb out of the download directory.
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segments = append(segments, seg)
	}
	return filepath.Join(segments...), nil
}

// ResolveOutputDir returns the directory a download should land in,
// appending the URL layout when preserve is set. Non-URL sources and
// unparsable URLs keep base unchanged.
func ResolveOutputDir(base, rawURL string, preserve bool) string {
	if !preserve {
		return base
	}
	sub, err := ExtractURLPath(rawURL)
	if err != nil {
		return base
	}
	return filepath.Join(base, sub)
}

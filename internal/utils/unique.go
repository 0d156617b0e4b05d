package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var numberedName = regexp.MustCompile(`^(.*)\((\d+)\)$`)

// UniqueFilePath returns p if nothing exists there, otherwise the first free
// "name(N).ext" sibling. A name that already ends in "(N)" continues counting
// from N.
func UniqueFilePath(p string) string {
	for {
		if _, err := os.Lstat(p); os.IsNotExist(err) {
			return p
		}
		p = NextFilePath(p)
	}
}

// NextFilePath returns the "name(N).ext" sibling that follows p without
// looking at the filesystem: "a.txt" gives "a(1).txt" and "a(1).txt" gives
// "a(2).txt".
func NextFilePath(p string) string {
	dir := filepath.Dir(p)
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	n := 1
	if m := numberedName.FindStringSubmatch(name); m != nil {
		if start, err := strconv.Atoi(m[2]); err == nil {
			name = m[1]
			n = start + 1
		}
	}
	return filepath.Join(dir, fmt.Sprintf("%s(%d)%s", name, n, ext))
}

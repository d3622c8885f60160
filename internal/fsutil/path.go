// Package fsutil confines user supplied paths to a zone root.
package fsutil

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/fruitsalade/vaultbox/internal/fault"
)

// Sanitize turns a user path like "", "/", "../../a", "a//b/../c" into a
// slash-separated relative path with no ".." segments and no leading slash.
// The empty string means the zone root. It never fails.
func Sanitize(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	for strings.HasPrefix(p, "../") {
		p = p[len("../"):]
	}
	if p == ".." || p == "." {
		return ""
	}
	p = strings.TrimPrefix(p, "/")
	return p
}

// JoinWithinRoot sanitizes rel and joins it under rootAbs. It rejects anything
// that would still resolve outside the root.
func JoinWithinRoot(rootAbs string, rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", fault.Invalid("join", rel, "invalid path")
	}
	rel = Sanitize(rel)
	rootClean := filepath.Clean(rootAbs)
	if rel == "" {
		return rootClean, nil
	}
	abs := filepath.Clean(filepath.Join(rootClean, filepath.FromSlash(rel)))
	if !Within(rootClean, abs) {
		return "", fault.Invalid("join", rel, "path escapes root")
	}
	return abs, nil
}

// RelToRoot converts an absolute path under rootAbs back to the slash form
// used in entries.
func RelToRoot(rootAbs, abs string) string {
	rel, err := filepath.Rel(filepath.Clean(rootAbs), abs)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Within reports whether child is rootAbs or lies under it.
func Within(rootAbs, child string) bool {
	r := filepath.Clean(rootAbs)
	c := filepath.Clean(child)
	return c == r || strings.HasPrefix(c, r+string(filepath.Separator))
}

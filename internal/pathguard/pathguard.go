// Package pathguard validates and normalizes vault-relative paths.
//
// Every path that reaches the file system passes through Normalize first.
// Traversal is rejected on the literal input, before any cleaning, so that
// "a/../b" is refused even though it would resolve inside the root.
//
// Normalized paths:
//   - use forward slashes
//   - have no leading or trailing slash
//   - contain no "." or ".." segments and no empty segments
package pathguard

import (
	"path"
	"strings"

	"github.com/starford/quire/internal/apperr"
)

// Reasons attached to invalid path errors.
const (
	ReasonPresence  = "presence"
	ReasonTraversal = "traversal"
)

// Normalize validates raw and returns its normalized form.
func Normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", apperr.Newf(apperr.KindInvalidPath, "normalize", raw, ReasonPresence)
	}
	if hasTraversal(raw) || isAbsolute(raw) || strings.ContainsRune(raw, 0) {
		return "", apperr.Newf(apperr.KindInvalidPath, "normalize", raw, ReasonTraversal)
	}

	p := strings.ReplaceAll(raw, `\`, "/")
	p = path.Clean(p)
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return "", apperr.Newf(apperr.KindInvalidPath, "normalize", raw, ReasonPresence)
	}
	return p, nil
}

// Valid reports whether raw normalizes without error.
func Valid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}

// Join normalizes parent/name. An empty parent means the vault root.
func Join(parent, name string) (string, error) {
	if parent == "" {
		return Normalize(name)
	}
	return Normalize(parent + "/" + name)
}

// Parent returns the parent of a normalized path, or "" for root-level paths.
func Parent(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Base returns the last segment of a normalized path.
func Base(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

// IsWithin reports whether p equals ancestor or lies beneath it.
// Both arguments must be normalized.
func IsWithin(p, ancestor string) bool {
	return p == ancestor || strings.HasPrefix(p, ancestor+"/")
}

func hasTraversal(raw string) bool {
	for _, seg := range strings.FieldsFunc(raw, isSeparator) {
		if strings.TrimSpace(seg) == ".." {
			return true
		}
	}
	return false
}

func isAbsolute(raw string) bool {
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, `\`) {
		return true
	}
	// Windows volume names such as C: or C:\.
	if len(raw) < 2 || raw[1] != ':' || !isLetter(raw[0]) {
		return false
	}
	return len(raw) == 2 || raw[2] == '/' || raw[2] == '\\'
}

func isSeparator(r rune) bool { return r == '/' || r == '\\' }

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

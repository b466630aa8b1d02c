// Package checksum computes the content hashes used as conflict hints.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag renders sum as a strong HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether tag names the digest of data. tag may be a bare
// digest or an entity tag (optionally weak); "*" matches anything.
func Matches(data []byte, tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "*" {
		return true
	}
	tag = strings.TrimPrefix(tag, "W/")
	tag = strings.Trim(tag, `"`)
	return strings.EqualFold(tag, Sum(data))
}

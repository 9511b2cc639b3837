// Package digest computes the fixed-length fingerprints used as lookup keys
// by the map and queue tables.
//
// A digest is the lower-case hex MD5 of the UTF-8 bytes of a text. Nil and
// blank texts (empty or only white space) all digest to the empty string, so
// they form a single equivalence class: an empty value and a NULL value are
// indistinguishable by digest. Digests index rows for equality lookups and
// deduplication only; they are never used for security.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
)

// Size is the length of a non-empty digest in hex characters.
const Size = md5.Size * 2

// String returns the digest of s, or "" if s is blank.
func String(s string) string {
	if IsBlank(s) {
		return ""
	}
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Of returns the digest of *s, or "" if s is nil or blank.
func Of(s *string) string {
	if s == nil {
		return ""
	}
	return String(*s)
}

// IsBlank reports whether s is empty or contains only white space.
func IsBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}

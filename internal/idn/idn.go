// Package idn provides normalization and validation for IDNs, the
// human-chosen identifiers that name tenants, projects, agents, flows,
// skills, and personas. IDNs double as path segments in the local mirror
// tree and as map keys in the identity map, so they must be path-safe and
// compared in one canonical form.
//
// This is a leaf package; everything that touches an externally supplied
// name routes it through Normalize before storing or comparing it.
package idn

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxLength bounds an IDN's byte length. Remote identifiers are short; the
// cap mostly guards against pathological file names entering the mirror tree.
const maxLength = 128

// Normalize returns the canonical form of a raw identifier: Unicode NFC,
// lowercased, surrounding whitespace removed. Two IDNs are the same entity
// iff their normalized forms are equal.
func Normalize(raw string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(raw)))
}

// Validate checks that s (already normalized or not — it is normalized
// internally) can serve as a single path segment in the mirror tree and as
// an identity map key. It rejects empty names, path separators, dot
// segments, control characters, and over-long names.
func Validate(s string) error {
	n := Normalize(s)

	switch {
	case n == "":
		return fmt.Errorf("idn is empty")
	case len(n) > maxLength:
		return fmt.Errorf("idn %q exceeds %d bytes", n, maxLength)
	case n == "." || n == "..":
		return fmt.Errorf("idn %q is a reserved path segment", n)
	case strings.ContainsAny(n, `/\`):
		return fmt.Errorf("idn %q contains a path separator", n)
	case strings.HasPrefix(n, "."):
		return fmt.Errorf("idn %q starts with a dot", n)
	}

	for _, r := range n {
		if unicode.IsControl(r) {
			return fmt.Errorf("idn %q contains a control character", n)
		}
	}

	return nil
}

// Equal reports whether two raw identifiers normalize to the same IDN.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

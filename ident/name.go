// Package ident provides the cased-symbol-name wrapper used as the key
// type throughout the assembler. A Name is normalized once, at
// construction, and never changes afterward.
package ident

import "strings"

// Name is a normalized symbol identity. Two Names constructed from the
// same raw string by the same Normalizer compare equal.
type Name struct {
	original string
	key      string
}

// String returns the original spelling, for diagnostics.
func (n Name) String() string {
	return n.original
}

// Key returns the normalized form used for equality and map lookups.
func (n Name) Key() string {
	return n.key
}

// Normalizer constructs Names under a fixed case-sensitivity policy.
// The policy is read once, at NewName time; changing it later has no
// effect on Names already constructed. Create one Normalizer per
// assembler instance and thread it by reference so that multiple
// assemblers with different policies can coexist in one process.
type Normalizer struct {
	caseSensitive bool
}

// NewNormalizer creates a Normalizer with the given case-sensitivity
// policy. MASM-compatible behavior is case-insensitive (caseSensitive
// == false).
func NewNormalizer(caseSensitive bool) *Normalizer {
	return &Normalizer{caseSensitive: caseSensitive}
}

// CaseSensitive reports the policy this Normalizer was constructed with.
func (n *Normalizer) CaseSensitive() bool {
	return n.caseSensitive
}

// NewName wraps raw into a cased Name under this Normalizer's policy.
func (n *Normalizer) NewName(raw string) Name {
	key := raw
	if !n.caseSensitive {
		key = strings.ToUpper(raw)
	}
	return Name{original: raw, key: key}
}

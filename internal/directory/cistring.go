package directory

import "strings"

// CIString is a string compared, hashed and ordered on its ASCII-folded
// form while keeping the original casing around for display.
type CIString struct {
	orig   string
	folded string
}

// NewCIString wraps s, preserving its case for display.
func NewCIString(s string) CIString {
	return CIString{orig: s, folded: foldASCII(s)}
}

func (c CIString) String() string { return c.orig }

// Folded returns the case-folded form used for comparisons.
func (c CIString) Folded() string { return c.folded }

func (c CIString) Equal(o CIString) bool { return c.folded == o.folded }

func (c CIString) Less(o CIString) bool { return c.folded < o.folded }

func (c CIString) IsZero() bool { return c.orig == "" }

// foldASCII lowercases only the ASCII letters in s, matching the folding
// LDAP attribute names and DN attribute types actually need; value bytes
// that are not attribute names are never folded.
func foldASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

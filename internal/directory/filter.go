package directory

import (
	"log/slog"
	"regexp"
	"strings"
)

type FilterKind int

const (
	FilterAnd FilterKind = iota
	FilterOr
	FilterNot
	FilterEquality
	FilterPresent
	FilterSubstring
	FilterUnsupported
)

// Substrings holds the three possible pieces of a substring filter.
// Initial and Final are nil when absent; Any may be empty.
type Substrings struct {
	Initial *string
	Any     []string
	Final   *string
}

// Filter is a tagged filter-tree node. Unsupported wire filter kinds
// (greater-or-equal, less-or-equal, approximate match, extensible
// match) are represented as FilterUnsupported and always evaluate
// false, matching the teacher's documented "not implemented" stance
// but without silently degrading to equality.
type Filter struct {
	Kind       FilterKind
	Attribute  string
	Value      string
	Substrings Substrings
	Children   []*Filter
}

func And(children ...*Filter) *Filter { return &Filter{Kind: FilterAnd, Children: children} }
func Or(children ...*Filter) *Filter  { return &Filter{Kind: FilterOr, Children: children} }
func Not(child *Filter) *Filter       { return &Filter{Kind: FilterNot, Children: []*Filter{child}} }
func Equals(attr, value string) *Filter {
	return &Filter{Kind: FilterEquality, Attribute: attr, Value: value}
}
func Present(attr string) *Filter { return &Filter{Kind: FilterPresent, Attribute: attr} }
func SubstringFilter(attr string, s Substrings) *Filter {
	return &Filter{Kind: FilterSubstring, Attribute: attr, Substrings: s}
}

// Matches evaluates the filter against a single entry's attributes.
func (f *Filter) Matches(e *Entry) bool {
	if f == nil {
		return true
	}
	switch f.Kind {
	case FilterAnd:
		for _, c := range f.Children {
			if !c.Matches(e) {
				return false
			}
		}
		return true

	case FilterOr:
		for _, c := range f.Children {
			if c.Matches(e) {
				return true
			}
		}
		return false

	case FilterNot:
		if len(f.Children) == 0 {
			return true
		}
		return !f.Children[0].Matches(e)

	case FilterPresent:
		return e.Attributes.Has(f.Attribute)

	case FilterEquality:
		return e.Attributes.HasValue(f.Attribute, f.Value)

	case FilterSubstring:
		re := f.Substrings.regexp()
		for _, v := range e.Attributes.Get(f.Attribute) {
			if re.MatchString(v) {
				return true
			}
		}
		return false

	default:
		slog.Warn("unsupported filter kind evaluated as false", "attribute", f.Attribute)
		return false
	}
}

// regexp builds the matching expression. Initial and Final are spliced
// in unescaped; only the Any fragments are regexp-escaped. This
// reproduces a known quirk rather than hardening it: a client-supplied
// initial/final fragment containing regex metacharacters changes the
// match semantics instead of being treated literally. There is no
// implicit anchoring or padding beyond what Initial/Final themselves
// contribute: an absent Initial does not anchor the start, and an
// absent Final does not anchor the end.
func (s Substrings) regexp() *regexp.Regexp {
	var segments []string
	if s.Initial != nil {
		segments = append(segments, "^"+*s.Initial)
	}
	for _, a := range s.Any {
		segments = append(segments, ".*"+regexp.QuoteMeta(a)+".*")
	}
	if s.Final != nil {
		segments = append(segments, *s.Final+"$")
	}

	re, err := regexp.Compile(strings.Join(segments, ""))
	if err != nil {
		// A client can supply a fragment that breaks the regex syntax via
		// the unescaped initial/final splice; treat it as matching nothing
		// rather than panicking the connection.
		return regexp.MustCompile(`$^`)
	}
	return re
}

package protocol

import (
	"fmt"
	"log/slog"

	"github.com/lor00x/goldap/message"

	"github.com/femtoldap/femtoldap/internal/directory"
)

// convertFilter turns a decoded wire filter into the in-memory filter
// tree the indexed snapshot evaluates against. Filter kinds with no
// directory-side support (ordering and approximate matches, extensible
// match) become FilterUnsupported rather than panicking or silently
// degrading to equality.
func convertFilter(f message.Filter) *directory.Filter {
	if f == nil {
		return &directory.Filter{Kind: directory.FilterUnsupported}
	}

	switch v := f.(type) {
	case message.FilterAnd:
		children := make([]*directory.Filter, 0, len(v))
		for _, c := range v {
			children = append(children, convertFilter(c))
		}
		return directory.And(children...)

	case message.FilterOr:
		children := make([]*directory.Filter, 0, len(v))
		for _, c := range v {
			children = append(children, convertFilter(c))
		}
		return directory.Or(children...)

	case message.FilterNot:
		return directory.Not(convertFilter(v.Filter))

	case message.FilterEqualityMatch:
		return directory.Equals(string(v.AttributeDesc()), string(v.AssertionValue()))

	case message.FilterPresent:
		return directory.Present(string(v))

	case message.FilterSubstrings:
		subs := directory.Substrings{}
		for _, part := range v.Substrings() {
			switch p := part.(type) {
			case message.SubstringInitial:
				s := string(p)
				subs.Initial = &s
			case message.SubstringAny:
				subs.Any = append(subs.Any, string(p))
			case message.SubstringFinal:
				s := string(p)
				subs.Final = &s
			}
		}
		return directory.SubstringFilter(string(v.Type_()), subs)

	default:
		slog.Warn("unsupported LDAP filter kind, evaluating false", "kind", fmt.Sprintf("%T", v))
		return &directory.Filter{Kind: directory.FilterUnsupported}
	}
}

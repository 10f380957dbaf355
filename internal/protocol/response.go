package protocol

import (
	"github.com/lor00x/goldap/message"

	"github.com/femtoldap/femtoldap/internal/directory"
)

func bindResponse(code int, diagnostic string) message.BindResponse {
	r := message.BindResponse{}
	r.SetResultCode(code)
	if diagnostic != "" {
		r.SetDiagnosticMessage(diagnostic)
	}
	return r
}

func searchResultDone(code int, matchedDN string) message.SearchResultDone {
	r := message.SearchResultDone{}
	r.SetResultCode(code)
	if matchedDN != "" {
		r.SetMatchedDN(matchedDN)
	}
	return r
}

// searchResultEntry renders e as a wire entry, restricted to requested
// attribute names when requested is non-empty. Attribute name matching
// is byte-exact, per protocol.
func searchResultEntry(e *directory.Entry, requested []string) message.SearchResultEntry {
	r := message.SearchResultEntry{}
	r.SetObjectName(e.DN.String())
	for _, attr := range e.Attributes.All() {
		name := attr.Name.String()
		if len(requested) > 0 && !containsExact(requested, name) {
			continue
		}
		vals := make([]message.AttributeValue, len(attr.Values))
		for i, v := range attr.Values {
			vals[i] = message.AttributeValue(v)
		}
		r.AddAttribute(message.AttributeDescription(name), vals...)
	}
	return r
}

func containsExact(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func attributeNames(sel message.AttributeSelection) []string {
	out := make([]string, 0, len(sel))
	for _, a := range sel {
		out = append(out, string(a))
	}
	return out
}

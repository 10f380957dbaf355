package directory

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RDNComponent is one attribute-type/attribute-value pair of a DN, ordered
// most-specific first.
type RDNComponent struct {
	Type  CIString
	Value string
}

// DN is an ordered sequence of RDN components. The zero value is the
// empty DN, i.e. the Root DSE.
type DN struct {
	components []RDNComponent
}

// ParseDN splits s on unescaped commas; each non-empty segment must
// contain exactly one "type=value" pair.
func ParseDN(s string) (DN, error) {
	if s == "" {
		return DN{}, nil
	}

	var components []RDNComponent
	for _, part := range splitUnescaped(s, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.IndexByte(part, '=')
		if idx <= 0 || idx == len(part)-1 {
			return DN{}, fmt.Errorf("malformed DN component %q in %q", part, s)
		}
		components = append(components, RDNComponent{
			Type:  NewCIString(strings.TrimSpace(part[:idx])),
			Value: strings.TrimSpace(part[idx+1:]),
		})
	}
	return DN{components: components}, nil
}

// MustParseDN is ParseDN for configuration-time literals known to be valid.
func MustParseDN(s string) DN {
	dn, err := ParseDN(s)
	if err != nil {
		panic(err)
	}
	return dn
}

func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep && (i == 0 || s[i-1] != '\\') {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func (d DN) IsEmpty() bool { return len(d.components) == 0 }

func (d DN) Components() []RDNComponent { return d.components }

// String renders the wire/canonical form; the empty DN renders as "".
func (d DN) String() string {
	if len(d.components) == 0 {
		return ""
	}
	parts := make([]string, len(d.components))
	for i, c := range d.components {
		parts[i] = c.Type.String() + "=" + c.Value
	}
	return strings.Join(parts, ",")
}

// Display renders the Root DSE with a human label for logging.
func (d DN) Display() string {
	if d.IsEmpty() {
		return "<root DSE>"
	}
	return d.String()
}

// Child prepends a new most-specific component, returning a new DN.
func (d DN) Child(attrType, value string) DN {
	out := make([]RDNComponent, 0, len(d.components)+1)
	out = append(out, RDNComponent{Type: NewCIString(attrType), Value: value})
	out = append(out, d.components...)
	return DN{components: out}
}

// HasSuffix reports whether suffix's components equal the trailing
// components of d, in order. The empty DN is a suffix of every DN.
func (d DN) HasSuffix(suffix DN) bool {
	if len(suffix.components) > len(d.components) {
		return false
	}
	offset := len(d.components) - len(suffix.components)
	for i, c := range suffix.components {
		dc := d.components[offset+i]
		if !dc.Type.Equal(c.Type) || !strings.EqualFold(dc.Value, c.Value) {
			return false
		}
	}
	return true
}

// ProperSuffixes returns every suffix of d strictly shorter than d itself,
// from the empty DN up to (but excluding) d.
func (d DN) ProperSuffixes() []DN {
	out := make([]DN, 0, len(d.components))
	for i := 1; i <= len(d.components); i++ {
		out = append(out, DN{components: d.components[i:]})
	}
	return out
}

func (d DN) Equal(o DN) bool {
	return len(d.components) == len(o.components) && d.HasSuffix(o)
}

// UUID derives a stable v5 UUID from the DN's canonical string form, used
// as the entryUUID operational attribute.
func (d DN) UUID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceX500, []byte(d.String()))
}

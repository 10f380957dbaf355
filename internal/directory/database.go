package directory

import "fmt"

// indexedAttributeNames is the fixed set of attributes the snapshot
// maintains equality and presence indexes for.
var indexedAttributeNames = []string{
	"cn", "mail", "mailAlias", "memberOf", "objectClass", "uid", "uniqueMember",
}

type eqKey struct {
	name  string
	value string
}

// Snapshot is an immutable, fully indexed view of the directory. It is
// built once from a flat list of entries and never mutated afterwards;
// a reload builds a new Snapshot and replaces the published one.
type Snapshot struct {
	entries       map[string]*Entry
	loginEntries  map[string]*Entry
	indexedAttrs  map[string]bool
	eqIndex       map[eqKey]map[string]*Entry
	presenceIndex map[string]map[string]*Entry
	suffixIndex   map[string]map[string]*Entry
}

// NewSnapshot tidies and indexes entries into a new Snapshot. A
// duplicate DN is a construction-time bug and panics; callers that
// build snapshots from user-editable config (the reload path) should
// recover around this call.
func NewSnapshot(entries []*Entry) *Snapshot {
	s := &Snapshot{
		entries:       make(map[string]*Entry, len(entries)),
		loginEntries:  make(map[string]*Entry),
		indexedAttrs:  make(map[string]bool, len(indexedAttributeNames)),
		eqIndex:       make(map[eqKey]map[string]*Entry),
		presenceIndex: make(map[string]map[string]*Entry),
		suffixIndex:   make(map[string]map[string]*Entry),
	}
	for _, n := range indexedAttributeNames {
		s.indexedAttrs[foldASCII(n)] = true
	}
	for _, e := range entries {
		e.Attributes.Tidy()
		key := e.DN.String()
		if _, dup := s.entries[key]; dup {
			panic(fmt.Sprintf("duplicate DN at snapshot construction: %s", e.DN.Display()))
		}
		s.entries[key] = e
		if e.IsBindCapable() {
			s.loginEntries[key] = e
		}
		s.index(e)
	}
	return s
}

func (s *Snapshot) index(e *Entry) {
	key := e.DN.String()
	for _, suffix := range e.DN.ProperSuffixes() {
		sk := suffix.String()
		set, ok := s.suffixIndex[sk]
		if !ok {
			set = make(map[string]*Entry)
			s.suffixIndex[sk] = set
		}
		set[key] = e
	}
	for name, attr := range e.Attributes.All() {
		if !s.indexedAttrs[name] {
			continue
		}
		pset, ok := s.presenceIndex[name]
		if !ok {
			pset = make(map[string]*Entry)
			s.presenceIndex[name] = pset
		}
		pset[key] = e
		for _, v := range attr.Values {
			ek := eqKey{name: name, value: string(v)}
			eset, ok := s.eqIndex[ek]
			if !ok {
				eset = make(map[string]*Entry)
				s.eqIndex[ek] = eset
			}
			eset[key] = e
		}
	}
}

// Lookup returns the entry at dn, if any.
func (s *Snapshot) Lookup(dn DN) (*Entry, bool) {
	e, ok := s.entries[dn.String()]
	return e, ok
}

// Bind authenticates dn/password against login-capable entries, CLEAR
// scheme only, byte-exact comparison.
func (s *Snapshot) Bind(dn DN, password string) (*Entry, bool) {
	e, ok := s.loginEntries[dn.String()]
	if !ok {
		return nil, false
	}
	if !e.CheckPassword(password) {
		return nil, false
	}
	return e, true
}

// Search returns the entries under base that match f. When base names
// an entry exactly, this is an implicit base-object scope; otherwise
// every entry under base (the suffix-index subtree) is considered.
func (s *Snapshot) Search(base DN, f *Filter) []*Entry {
	if e, ok := s.entries[base.String()]; ok {
		if f.Matches(e) {
			return []*Entry{e}
		}
		return nil
	}
	scope, ok := s.suffixIndex[base.String()]
	if !ok {
		return nil
	}
	result := s.evalFilter(scope, f)
	out := make([]*Entry, 0, len(result))
	for _, e := range result {
		out = append(out, e)
	}
	return out
}

func (s *Snapshot) evalFilter(scope map[string]*Entry, f *Filter) map[string]*Entry {
	if f == nil {
		out := make(map[string]*Entry, len(scope))
		for k, e := range scope {
			out[k] = e
		}
		return out
	}

	switch f.Kind {
	case FilterNot:
		var child map[string]*Entry
		if len(f.Children) > 0 {
			child = s.evalFilter(scope, f.Children[0])
		} else {
			child = map[string]*Entry{}
		}
		out := make(map[string]*Entry, len(scope))
		for k, e := range scope {
			if _, excluded := child[k]; !excluded {
				out[k] = e
			}
		}
		return out

	case FilterAnd:
		if len(f.Children) == 0 {
			return map[string]*Entry{}
		}
		result := scope
		for _, c := range f.Children {
			result = intersectEntries(result, s.evalFilter(scope, c))
			if len(result) == 0 {
				break
			}
		}
		return result

	case FilterOr:
		result := map[string]*Entry{}
		for _, c := range f.Children {
			unionEntries(result, s.evalFilter(scope, c))
		}
		return result

	case FilterEquality:
		folded := foldASCII(f.Attribute)
		if s.indexedAttrs[folded] {
			return intersectEntries(scope, s.eqIndex[eqKey{name: folded, value: f.Value}])
		}
		return scanEntries(scope, f)

	case FilterPresent:
		folded := foldASCII(f.Attribute)
		if s.indexedAttrs[folded] {
			return intersectEntries(scope, s.presenceIndex[folded])
		}
		return scanEntries(scope, f)

	case FilterSubstring:
		return scanEntries(scope, f)

	default:
		return map[string]*Entry{}
	}
}

func scanEntries(scope map[string]*Entry, f *Filter) map[string]*Entry {
	out := map[string]*Entry{}
	for k, e := range scope {
		if f.Matches(e) {
			out[k] = e
		}
	}
	return out
}

func intersectEntries(a, b map[string]*Entry) map[string]*Entry {
	out := map[string]*Entry{}
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	for k, e := range small {
		if _, ok := big[k]; ok {
			out[k] = e
		}
	}
	return out
}

func unionEntries(dst, src map[string]*Entry) {
	for k, e := range src {
		dst[k] = e
	}
}

package directory

// Attribute holds one attribute's values. Values are opaque byte
// strings; comparisons against them are byte-exact.
type Attribute struct {
	Name   CIString
	Values [][]byte
}

// AttributeSet maps a folded attribute name to its Attribute.
type AttributeSet struct {
	m map[string]*Attribute
}

func NewAttributeSet() *AttributeSet {
	return &AttributeSet{m: make(map[string]*Attribute)}
}

// Add appends a value, creating the attribute if absent.
func (s *AttributeSet) Add(name string, value string) {
	s.AddBytes(name, []byte(value))
}

func (s *AttributeSet) AddBytes(name string, value []byte) {
	ci := NewCIString(name)
	a, ok := s.m[ci.Folded()]
	if !ok {
		a = &Attribute{Name: ci}
		s.m[ci.Folded()] = a
	}
	a.Values = append(a.Values, value)
}

// Get returns the string-decoded values for name (case-insensitive),
// or nil if the attribute is absent.
func (s *AttributeSet) Get(name string) []string {
	a, ok := s.m[foldASCII(name)]
	if !ok {
		return nil
	}
	out := make([]string, len(a.Values))
	for i, v := range a.Values {
		out[i] = string(v)
	}
	return out
}

func (s *AttributeSet) GetFirst(name string) (string, bool) {
	vals := s.Get(name)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

func (s *AttributeSet) Has(name string) bool {
	_, ok := s.m[foldASCII(name)]
	return ok
}

// HasValue reports whether name has exactly value among its values.
func (s *AttributeSet) HasValue(name, value string) bool {
	a, ok := s.m[foldASCII(name)]
	if !ok {
		return false
	}
	for _, v := range a.Values {
		if string(v) == value {
			return true
		}
	}
	return false
}

// Names returns the set of attribute names present, in unspecified order.
func (s *AttributeSet) Names() []CIString {
	out := make([]CIString, 0, len(s.m))
	for _, a := range s.m {
		out = append(out, a.Name)
	}
	return out
}

func (s *AttributeSet) All() map[string]*Attribute { return s.m }

// Tidy drops attributes left with zero values after assembly.
func (s *AttributeSet) Tidy() {
	for k, a := range s.m {
		if len(a.Values) == 0 {
			delete(s.m, k)
		}
	}
}

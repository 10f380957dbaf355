package directory

// ACL is a per-entry access policy: a principal holding this ACL may
// reach a target DN via self-access or an allowed-minus-denied suffix
// grant. There is no per-attribute policy.
type ACL struct {
	CanAccessSelf      bool
	CanAccessSuffixes  []DN
	CantAccessSuffixes []DN
}

// CanAccessDN reports whether a principal whose own DN is ownDN and
// whose ACL is a may read the entry named target.
func (a ACL) CanAccessDN(ownDN, target DN) bool {
	if a.CanAccessSelf && ownDN.Equal(target) {
		return true
	}
	allowed := false
	for _, s := range a.CanAccessSuffixes {
		if target.HasSuffix(s) {
			allowed = true
			break
		}
	}
	if !allowed {
		return false
	}
	for _, s := range a.CantAccessSuffixes {
		if target.HasSuffix(s) {
			return false
		}
	}
	return true
}

// HasAnyScope reports whether this ACL grants access to anything at all,
// which is one of the two conditions for an entry being bind-capable.
func (a ACL) HasAnyScope() bool {
	return a.CanAccessSelf || len(a.CanAccessSuffixes) > 0
}

package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDNRoundTrip(t *testing.T) {
	inputs := []string{
		"uid=alice,ou=users,dc=example,dc=com",
		"dc=example,dc=com",
		"cn=staff,ou=groups,dc=example,dc=com",
	}
	for _, s := range inputs {
		dn, err := ParseDN(s)
		assert.NoError(t, err)
		assert.Equal(t, s, dn.String())
	}
}

func TestDNEmpty(t *testing.T) {
	dn, err := ParseDN("")
	assert.NoError(t, err)
	assert.True(t, dn.IsEmpty())
	assert.Equal(t, "", dn.String())
}

func TestDNMalformed(t *testing.T) {
	_, err := ParseDN("uid,ou=users")
	assert.Error(t, err)

	_, err = ParseDN("uid=,ou=users")
	assert.Error(t, err)
}

func TestDNSuffixReflexiveAndTransitive(t *testing.T) {
	a := MustParseDN("uid=alice,ou=users,dc=example,dc=com")
	b := MustParseDN("ou=users,dc=example,dc=com")
	c := MustParseDN("dc=example,dc=com")

	assert.True(t, a.HasSuffix(a))
	assert.True(t, a.HasSuffix(b))
	assert.True(t, b.HasSuffix(c))
	assert.True(t, a.HasSuffix(c))

	var empty DN
	assert.True(t, a.HasSuffix(empty))
	assert.True(t, empty.HasSuffix(empty))
}

func TestDNSuffixNegative(t *testing.T) {
	a := MustParseDN("uid=alice,ou=users,dc=example,dc=com")
	other := MustParseDN("ou=groups,dc=example,dc=com")
	assert.False(t, a.HasSuffix(other))
}

func TestDNUUIDStable(t *testing.T) {
	dn := MustParseDN("uid=alice,ou=users,dc=example,dc=com")
	u1 := dn.UUID()
	u2 := MustParseDN("uid=alice,ou=users,dc=example,dc=com").UUID()
	assert.Equal(t, u1, u2)
}

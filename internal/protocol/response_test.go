package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/femtoldap/femtoldap/internal/directory"
)

func TestContainsExactIsByteExact(t *testing.T) {
	list := []string{"cn", "mail"}
	assert.True(t, containsExact(list, "cn"))
	assert.False(t, containsExact(list, "CN"))
	assert.False(t, containsExact(list, "sn"))
}

func TestSearchResultEntryWithAndWithoutRequestedAttributesDoesNotPanic(t *testing.T) {
	e := directory.NewEntry(directory.MustParseDN("uid=alice,ou=users,dc=example,dc=com"))
	e.Attributes.Add("cn", "Alice")
	e.Attributes.Add("mail", "alice@example.com")

	assert.NotPanics(t, func() {
		searchResultEntry(e, []string{"cn"})
		searchResultEntry(e, nil)
	})
}

func TestBindResponseAndSearchResultDoneDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		bindResponse(0, "")
		bindResponse(49, "Bind failed")
		searchResultDone(0, "")
		searchResultDone(32, "dc=example,dc=com")
	})
}

package assemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/femtoldap/femtoldap/internal/directory"
	"github.com/femtoldap/femtoldap/pkg/config"
)

func findEntry(t *testing.T, entries []*directory.Entry, dn string) *directory.Entry {
	t.Helper()
	for _, e := range entries {
		if e.DN.String() == dn {
			return e
		}
	}
	t.Fatalf("no entry with DN %q", dn)
	return nil
}

func TestAssembleRootDSE(t *testing.T) {
	dir := &config.Directory{BaseDN: "dc=example,dc=com"}
	entries, err := Assemble(dir, "1.0.0")
	require.NoError(t, err)

	root := findEntry(t, entries, "")
	assert.Contains(t, root.Attributes.Get("namingContexts"), "dc=example,dc=com")
	assert.Contains(t, root.Attributes.Get("objectClass"), "femtoLDAPRoot")
	assert.NotContains(t, root.Attributes.Get("objectClass"), "top")
	assert.Equal(t, []string{""}, root.Attributes.Get("entryDN"))
	assert.True(t, root.Attributes.Has("entryUUID"))
	assert.Equal(t, []string{"femtoLDAP"}, root.Attributes.Get("dsaName"))
}

func TestAssembleUserAndGroup(t *testing.T) {
	dir := &config.Directory{
		BaseDN: "dc=example,dc=com",
		Groups: []config.Group{{Name: "admins"}},
		Users: []config.User{
			{UID: "alice", Name: []string{"Alice"}, Surname: []string{"Anderson"}, Mail: "alice@example.com", GroupNames: []string{"admins"}},
		},
	}
	entries, err := Assemble(dir, "1.0.0")
	require.NoError(t, err)

	user := findEntry(t, entries, "uid=alice,ou=users,dc=example,dc=com")
	assert.Equal(t, []string{"Alice Anderson"}, user.Attributes.Get("displayName"))
	assert.Contains(t, user.Attributes.Get("objectClass"), "posixAccount")
	assert.Equal(t, []string{"/home/alice"}, user.Attributes.Get("homeDirectory"))
	assert.Equal(t, []string{"cn=admins,ou=groups,dc=example,dc=com"}, user.Attributes.Get("memberOf"))

	group := findEntry(t, entries, "cn=admins,ou=groups,dc=example,dc=com")
	assert.Equal(t, []string{"uid=alice,ou=users,dc=example,dc=com"}, group.Attributes.Get("uniqueMember"))
}

func TestAssembleGroupWithNoMembersIsDropped(t *testing.T) {
	dir := &config.Directory{
		BaseDN: "dc=example,dc=com",
		Groups: []config.Group{{Name: "empty"}},
	}
	entries, err := Assemble(dir, "1.0.0")
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotEqual(t, "cn=empty,ou=groups,dc=example,dc=com", e.DN.String())
	}
}

func TestAssembleUserReferencingUnknownGroupIsSkippedNotFatal(t *testing.T) {
	dir := &config.Directory{
		BaseDN: "dc=example,dc=com",
		Users:  []config.User{{UID: "bob", GroupNames: []string{"ghosts"}}},
	}
	entries, err := Assemble(dir, "1.0.0")
	require.NoError(t, err)

	user := findEntry(t, entries, "uid=bob,ou=users,dc=example,dc=com")
	assert.Empty(t, user.Attributes.Get("memberOf"))
}

func TestAssembleMailAliasMembership(t *testing.T) {
	dir := &config.Directory{
		BaseDN:      "dc=example,dc=com",
		MailAliases: []config.MailAlias{{Mail: "team@example.com", Members: []string{"outside@example.org"}}},
		Users: []config.User{
			{UID: "carol", Mail: "carol@example.com", MailAliases: []string{"team@example.com"}},
		},
	}
	entries, err := Assemble(dir, "1.0.0")
	require.NoError(t, err)

	alias := findEntry(t, entries, "cn=team@example.com,ou=aliases,ou=mail,dc=example,dc=com")
	members := alias.Attributes.Get("rfc822MailMember")
	assert.Contains(t, members, "outside@example.org")
	assert.Contains(t, members, "carol@example.com")
}

func TestAssembleExtraAttributesMarkExtensible(t *testing.T) {
	dir := &config.Directory{
		BaseDN: "dc=example,dc=com",
		Users: []config.User{
			{UID: "dave", Extra: map[string][]string{"carLicense": {"XYZ-1"}}},
		},
	}
	entries, err := Assemble(dir, "1.0.0")
	require.NoError(t, err)

	user := findEntry(t, entries, "uid=dave,ou=users,dc=example,dc=com")
	assert.Equal(t, []string{"XYZ-1"}, user.Attributes.Get("carLicense"))
	assert.Contains(t, user.Attributes.Get("objectClass"), "extensibleObject")
}

func TestAssembleConfiguredUUIDOverridesDerived(t *testing.T) {
	dir := &config.Directory{
		BaseDN: "dc=example,dc=com",
		Users:  []config.User{{UID: "erin", UUID: "11111111-1111-1111-1111-111111111111"}},
	}
	entries, err := Assemble(dir, "1.0.0")
	require.NoError(t, err)

	user := findEntry(t, entries, "uid=erin,ou=users,dc=example,dc=com")
	assert.Equal(t, []string{"11111111-1111-1111-1111-111111111111"}, user.Attributes.Get("entryUUID"))
}

func TestAssembleInvalidBaseDN(t *testing.T) {
	dir := &config.Directory{BaseDN: "not-a-dn"}
	_, err := Assemble(dir, "1.0.0")
	assert.Error(t, err)
}

func TestAssembleAppAccountCannotReachOtherApps(t *testing.T) {
	dir := &config.Directory{
		BaseDN: "dc=example,dc=com",
		Apps:   []config.AppAccount{{UID: "ci-bot"}},
	}
	entries, err := Assemble(dir, "1.0.0")
	require.NoError(t, err)

	app := findEntry(t, entries, "uid=ci-bot,ou=apps,dc=example,dc=com")
	other, _ := directory.ParseDN("uid=ci-bot,ou=apps,dc=example,dc=com")
	assert.True(t, app.ACL.CanAccessDN(app.DN, other))

	sibling, _ := directory.ParseDN("uid=someone-else,ou=apps,dc=example,dc=com")
	assert.False(t, app.ACL.CanAccessDN(app.DN, sibling))
}

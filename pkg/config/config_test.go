package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSinglePrimaryFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTOML(t, dir, "base.toml", `
base_dn = "dc=example,dc=com"

[[users]]
uid = "alice"
name = "Alice"
surname = "Anderson"
mail = "alice@example.com"
group_names = "admins"

[[groups]]
name = "admins"
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "dc=example,dc=com", cfg.BaseDN)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "alice", cfg.Users[0].UID)
	assert.Equal(t, []string{"admins"}, cfg.Users[0].GroupNames)
	require.Len(t, cfg.Groups, 1)
	assert.Equal(t, "admins", cfg.Groups[0].Name)
}

func TestScalarOrListFieldsAreEquivalent(t *testing.T) {
	dir := t.TempDir()
	scalarPath := writeTOML(t, dir, "scalar.toml", `
base_dn = "dc=example,dc=com"

[[users]]
uid = "bob"
ssh_public_key = "ssh-ed25519 AAAA"
mail_aliases = "team"
`)
	listPath := writeTOML(t, dir, "list.toml", `
base_dn = "dc=example,dc=com"

[[users]]
uid = "bob"
ssh_public_key = ["ssh-ed25519 AAAA"]
mail_aliases = ["team"]
`)

	scalar, err := Load(scalarPath, "")
	require.NoError(t, err)
	list, err := Load(listPath, "")
	require.NoError(t, err)

	assert.Equal(t, scalar.Users[0].SSHPublicKeys, list.Users[0].SSHPublicKeys)
	assert.Equal(t, scalar.Users[0].MailAliases, list.Users[0].MailAliases)
}

func TestEntityMissingIdentifierIsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := writeTOML(t, dir, "base.toml", `
base_dn = "dc=example,dc=com"

[[users]]
name = "No UID"

[[users]]
uid = "carol"
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "carol", cfg.Users[0].UID)
}

func TestLoadMergesConfigDirInListingOrder(t *testing.T) {
	dir := t.TempDir()
	primary := writeTOML(t, dir, "00-base.toml", `
base_dn = "dc=example,dc=com"

[[users]]
uid = "dave"
description = "from primary"
group_names = ["eng"]
`)
	writeTOML(t, dir, "10-extra.toml", `
[[users]]
uid = "dave"
description = "from extra, should not override"
group_names = ["ops"]

[[users]]
uid = "erin"
`)

	cfg, err := Load(primary, dir)
	require.NoError(t, err)
	require.Len(t, cfg.Users, 2)

	dave := cfg.Users[0]
	assert.Equal(t, "dave", dave.UID)
	assert.Equal(t, "from primary", dave.Description)
	assert.Equal(t, []string{"eng", "ops"}, dave.GroupNames)

	assert.Equal(t, "erin", cfg.Users[1].UID)
}

func TestLoadSkipsPrimaryFileWhenAlsoInConfigDir(t *testing.T) {
	dir := t.TempDir()
	primary := writeTOML(t, dir, "00-base.toml", `
base_dn = "dc=example,dc=com"

[[users]]
uid = "frank"
`)

	cfg, err := Load(primary, dir)
	require.NoError(t, err)
	require.Len(t, cfg.Users, 1)
}

func TestArbitraryAttributesAreFlattenedIntoExtra(t *testing.T) {
	dir := t.TempDir()
	path := writeTOML(t, dir, "base.toml", `
base_dn = "dc=example,dc=com"

[[users]]
uid = "gina"
carLicense = "XYZ-123"
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, []string{"XYZ-123"}, cfg.Users[0].Extra["carLicense"])
}

func TestDirectoryMergeBaseDNKeepsExisting(t *testing.T) {
	d := &Directory{BaseDN: "dc=existing,dc=com"}
	d.Merge(&Directory{BaseDN: "dc=other,dc=com"})
	assert.Equal(t, "dc=existing,dc=com", d.BaseDN)
}

func TestMergeStringSliceUniquePreservesOrder(t *testing.T) {
	got := mergeStringSliceUnique([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMergeExtraUnionsOnCollision(t *testing.T) {
	existing := map[string][]string{"carLicense": {"AAA"}}
	other := map[string][]string{"carLicense": {"BBB"}, "room": {"101"}}
	got := mergeExtra(existing, other)
	assert.Equal(t, []string{"AAA", "BBB"}, got["carLicense"])
	assert.Equal(t, []string{"101"}, got["room"])
}

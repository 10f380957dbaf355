// Package assemble turns declarative directory contents into the flat
// list of entries an indexed snapshot is built from.
package assemble

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/femtoldap/femtoldap/internal/directory"
	"github.com/femtoldap/femtoldap/pkg/config"
)

const extensibleObjectClass = "extensibleObject"

// Assemble builds every entry the directory serves, in a fixed order:
// Root DSE, apps, groups, mail aliases, users, then a final pass that
// fills in entryDN/entryUUID on every non-root entry still missing
// them. The order matters for determinism, not correctness: group and
// user cross-references are resolved against config-level lookups
// (derived DNs are a pure function of uid/name and the base), not
// against already-built entries.
func Assemble(dir *config.Directory, vendorVersion string) ([]*directory.Entry, error) {
	base, err := directory.ParseDN(dir.BaseDN)
	if err != nil {
		return nil, fmt.Errorf("parsing base_dn %q: %w", dir.BaseDN, err)
	}

	appsOU := base.Child("ou", "apps")
	groupsOU := base.Child("ou", "groups")
	mailOU := base.Child("ou", "mail")
	aliasesOU := mailOU.Child("ou", "aliases")
	usersOU := base.Child("ou", "users")

	var entries []*directory.Entry
	entries = append(entries, rootDSE(base, vendorVersion))
	entries = append(entries, assembleApps(dir.Apps, appsOU, base)...)

	groupDNs := make(map[string]directory.DN, len(dir.Groups))
	groupEntries, groups := assembleGroups(dir.Groups, dir.Users, groupsOU, usersOU)
	entries = append(entries, groupEntries...)
	for name, dn := range groups {
		groupDNs[name] = dn
	}

	entries = append(entries, assembleMailAliases(dir.MailAliases, dir.Users, aliasesOU)...)
	entries = append(entries, assembleUsers(dir.Users, usersOU, groupDNs)...)

	fillOperationalAttributes(entries)
	return entries, nil
}

func rootDSE(base directory.DN, vendorVersion string) *directory.Entry {
	e := directory.NewEntry(directory.DN{})
	e.Attributes.Add("entryDN", "")
	e.Attributes.Add("entryUUID", e.DN.UUID().String())
	e.Attributes.Add("objectClass", "femtoLDAPRoot")
	e.Attributes.Add("objectClass", extensibleObjectClass)
	e.Attributes.Add("dsaName", "femtoLDAP")
	e.Attributes.Add("namingContexts", base.String())
	e.Attributes.Add("supportedLDAPVersion", "3")
	e.Attributes.Add("supportedAuthPasswordSchemes", "CLEAR")
	e.Attributes.Add("vendorName", "femtoldap")
	e.Attributes.Add("vendorVersion", vendorVersion)
	return e
}

func assembleApps(apps []config.AppAccount, appsOU, base directory.DN) []*directory.Entry {
	out := make([]*directory.Entry, 0, len(apps))
	for _, a := range apps {
		dn := appsOU.Child("uid", a.UID)
		e := directory.NewEntry(dn)
		e.Attributes.Add("objectClass", "account")
		e.Attributes.Add("objectClass", "simpleSecurityObject")
		e.Attributes.Add("uid", a.UID)
		if a.Description != "" {
			e.Attributes.Add("description", a.Description)
		}
		if a.Password != "" {
			e.Attributes.Add("userPassword", a.Password)
		}
		for _, oc := range a.ExtraObjectClasses {
			e.Attributes.Add("objectClass", oc)
		}
		addExtra(e.Attributes, a.Extra)
		setConfiguredUUID(e, a.UUID)

		e.ACL = directory.ACL{
			CanAccessSelf:      true,
			CanAccessSuffixes:  []directory.DN{base},
			CantAccessSuffixes: []directory.DN{appsOU},
		}
		out = append(out, e)
	}
	return out
}

func assembleGroups(groups []config.Group, users []config.User, groupsOU, usersOU directory.DN) ([]*directory.Entry, map[string]directory.DN) {
	dns := make(map[string]directory.DN, len(groups))
	out := make([]*directory.Entry, 0, len(groups))
	for _, g := range groups {
		dn := groupsOU.Child("cn", g.Name)
		e := directory.NewEntry(dn)
		e.Attributes.Add("objectClass", "groupOfUniqueNames")
		e.Attributes.Add("cn", g.Name)
		if g.Description != "" {
			e.Attributes.Add("description", g.Description)
		}
		for _, oc := range g.ExtraObjectClasses {
			e.Attributes.Add("objectClass", oc)
		}
		addExtra(e.Attributes, g.Extra)

		for _, u := range users {
			if u.UID == "" || !containsFold(u.GroupNames, g.Name) {
				continue
			}
			e.Attributes.Add("uniqueMember", usersOU.Child("uid", u.UID).String())
		}

		if !e.Attributes.Has("uniqueMember") {
			slog.Warn("group has no members, dropping", "name", g.Name)
			continue
		}

		setConfiguredUUID(e, g.UUID)
		dns[strings.ToLower(g.Name)] = dn
		out = append(out, e)
	}
	return out, dns
}

func assembleMailAliases(aliases []config.MailAlias, users []config.User, aliasesOU directory.DN) []*directory.Entry {
	out := make([]*directory.Entry, 0, len(aliases))
	for _, al := range aliases {
		dn := aliasesOU.Child("cn", al.Mail)
		e := directory.NewEntry(dn)
		e.Attributes.Add("objectClass", "nisMailAlias")
		e.Attributes.Add("cn", al.Mail)
		for _, m := range al.Members {
			e.Attributes.Add("rfc822MailMember", m)
		}
		if al.Description != "" {
			e.Attributes.Add("description", al.Description)
		}
		for _, oc := range al.ExtraObjectClasses {
			e.Attributes.Add("objectClass", oc)
		}
		addExtra(e.Attributes, al.Extra)

		for _, u := range users {
			if u.Mail == "" || !containsFold(u.MailAliases, al.Mail) {
				continue
			}
			e.Attributes.Add("rfc822MailMember", u.Mail)
		}

		setConfiguredUUID(e, al.UUID)
		out = append(out, e)
	}
	return out
}

func assembleUsers(users []config.User, usersOU directory.DN, groupDNs map[string]directory.DN) []*directory.Entry {
	out := make([]*directory.Entry, 0, len(users))
	for _, u := range users {
		dn := usersOU.Child("uid", u.UID)
		e := directory.NewEntry(dn)
		e.Attributes.Add("objectClass", "inetOrgPerson")
		e.Attributes.Add("objectClass", "simpleSecurityObject")
		e.Attributes.Add("uid", u.UID)

		for _, name := range u.Name {
			e.Attributes.Add("givenName", name)
		}
		for _, surname := range u.Surname {
			e.Attributes.Add("sn", surname)
		}
		display := u.DisplayName
		if display == "" && len(u.Name) > 0 && len(u.Surname) > 0 {
			display = strings.TrimSpace(strings.Join(u.Name, " ") + " " + strings.Join(u.Surname, " "))
		}
		if display != "" {
			e.Attributes.Add("displayName", display)
		}
		if u.PreferredLanguage != "" {
			e.Attributes.Add("preferredLanguage", u.PreferredLanguage)
		}
		for _, mobile := range u.MobileNumber {
			e.Attributes.Add("mobile", mobile)
		}
		for _, phone := range u.TelephoneNumber {
			e.Attributes.Add("telephoneNumber", phone)
		}
		if u.Mail != "" {
			e.Attributes.Add("mail", u.Mail)
		}
		for _, alias := range u.MailAliases {
			e.Attributes.Add("mailAlias", alias)
		}
		for _, key := range u.SSHPublicKeys {
			if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
				slog.Warn("sshPublicKey failed to parse, storing verbatim", "uid", u.UID, "error", err)
			}
			e.Attributes.Add("sshPublicKey", key)
		}
		if u.Password != "" {
			e.Attributes.Add("userPassword", u.Password)
		}

		home := u.HomeDirectory
		if home == "" {
			home = "/home/" + u.UID
		}
		e.Attributes.Add("homeDirectory", home)
		if u.LoginShell != "" {
			e.Attributes.Add("loginShell", u.LoginShell)
		}
		if u.UIDNumber != nil {
			e.Attributes.Add("uidNumber", strconv.Itoa(*u.UIDNumber))
		}
		if u.GIDNumber != nil {
			e.Attributes.Add("gidNumber", strconv.Itoa(*u.GIDNumber))
		}
		// homeDirectory is always present, supplied or inferred from uid,
		// and that presence alone is one of the posixAccount triggers, so
		// this objectClass ends up on every user entry.
		e.Attributes.Add("objectClass", "posixAccount")

		for _, gname := range u.GroupNames {
			gdn, ok := groupDNs[strings.ToLower(gname)]
			if !ok {
				slog.Warn("user references unknown or memberless group", "uid", u.UID, "group", gname)
				continue
			}
			e.Attributes.Add("memberOf", gdn.String())
		}

		for _, oc := range u.ExtraObjectClasses {
			e.Attributes.Add("objectClass", oc)
		}
		addExtra(e.Attributes, u.Extra)
		setConfiguredUUID(e, u.UUID)

		e.ACL = directory.ACL{CanAccessSelf: true}
		out = append(out, e)
	}
	return out
}

func fillOperationalAttributes(entries []*directory.Entry) {
	for _, e := range entries {
		if e.DN.IsEmpty() {
			continue
		}
		if !e.Attributes.Has("entryDN") {
			e.Attributes.Add("entryDN", e.DN.String())
		}
		if !e.Attributes.Has("entryUUID") {
			e.Attributes.Add("entryUUID", e.DN.UUID().String())
		}
	}
}

func setConfiguredUUID(e *directory.Entry, uuidValue string) {
	if uuidValue != "" {
		e.Attributes.Add("entryUUID", uuidValue)
	}
}

// addExtra writes arbitrary additional attributes in sorted key order
// for deterministic output, and marks the entry extensible if any were
// present.
func addExtra(attrs *directory.AttributeSet, extra map[string][]string) {
	if len(extra) == 0 {
		return
	}
	names := make([]string, 0, len(extra))
	for k := range extra {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range extra[name] {
			attrs.Add(name, v)
		}
	}
	attrs.Add("objectClass", extensibleObjectClass)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

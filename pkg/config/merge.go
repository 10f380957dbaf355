package config

import "log/slog"

// Merge folds other into d in place: a base DN already set wins, and
// the four entity collections are merged by derived identity (the
// same uid/name/mail an assembled entry's DN would be derived from).
func (d *Directory) Merge(other *Directory) {
	d.BaseDN = mergeString(d.BaseDN, other.BaseDN)
	d.Apps = mergeApps(d.Apps, other.Apps)
	d.Groups = mergeGroups(d.Groups, other.Groups)
	d.MailAliases = mergeMailAliases(d.MailAliases, other.MailAliases)
	d.Users = mergeUsers(d.Users, other.Users)
}

func mergeApps(existing, other []AppAccount) []AppAccount {
	index := make(map[string]int, len(existing))
	for i, a := range existing {
		index[appIdentity(a)] = i
	}
	for _, o := range other {
		if o.UID == "" {
			slog.Warn("app account missing required uid, skipping merge")
			continue
		}
		id := appIdentity(o)
		if i, ok := index[id]; ok {
			existing[i].mergeFrom(o)
			continue
		}
		index[id] = len(existing)
		existing = append(existing, o)
	}
	return existing
}

func appIdentity(a AppAccount) string { return "uid=" + foldKey(a.UID) }

func (a *AppAccount) mergeFrom(o AppAccount) {
	a.Password = mergeString(a.Password, o.Password)
	a.Description = mergeString(a.Description, o.Description)
	a.UUID = mergeString(a.UUID, o.UUID)
	a.ExtraObjectClasses = mergeStringSliceUnique(a.ExtraObjectClasses, o.ExtraObjectClasses)
	a.Extra = mergeExtra(a.Extra, o.Extra)
}

func mergeGroups(existing, other []Group) []Group {
	index := make(map[string]int, len(existing))
	for i, g := range existing {
		index[groupIdentity(g)] = i
	}
	for _, o := range other {
		if o.Name == "" {
			slog.Warn("group missing required name, skipping merge")
			continue
		}
		id := groupIdentity(o)
		if i, ok := index[id]; ok {
			existing[i].mergeFrom(o)
			continue
		}
		index[id] = len(existing)
		existing = append(existing, o)
	}
	return existing
}

func groupIdentity(g Group) string { return "cn=" + foldKey(g.Name) }

func (g *Group) mergeFrom(o Group) {
	g.Description = mergeString(g.Description, o.Description)
	g.UUID = mergeString(g.UUID, o.UUID)
	g.ExtraObjectClasses = mergeStringSliceUnique(g.ExtraObjectClasses, o.ExtraObjectClasses)
	g.Extra = mergeExtra(g.Extra, o.Extra)
}

func mergeMailAliases(existing, other []MailAlias) []MailAlias {
	index := make(map[string]int, len(existing))
	for i, m := range existing {
		index[mailAliasIdentity(m)] = i
	}
	for _, o := range other {
		if o.Mail == "" {
			slog.Warn("mail alias missing required mail, skipping merge")
			continue
		}
		id := mailAliasIdentity(o)
		if i, ok := index[id]; ok {
			existing[i].mergeFrom(o)
			continue
		}
		index[id] = len(existing)
		existing = append(existing, o)
	}
	return existing
}

func mailAliasIdentity(m MailAlias) string { return "cn=" + foldKey(m.Mail) }

func (m *MailAlias) mergeFrom(o MailAlias) {
	m.Members = mergeStringSliceUnique(m.Members, o.Members)
	m.Description = mergeString(m.Description, o.Description)
	m.UUID = mergeString(m.UUID, o.UUID)
	m.ExtraObjectClasses = mergeStringSliceUnique(m.ExtraObjectClasses, o.ExtraObjectClasses)
	m.Extra = mergeExtra(m.Extra, o.Extra)
}

func mergeUsers(existing, other []User) []User {
	index := make(map[string]int, len(existing))
	for i, u := range existing {
		index[userIdentity(u)] = i
	}
	for _, o := range other {
		if o.UID == "" {
			slog.Warn("user missing required uid, skipping merge")
			continue
		}
		id := userIdentity(o)
		if i, ok := index[id]; ok {
			existing[i].mergeFrom(o)
			continue
		}
		index[id] = len(existing)
		existing = append(existing, o)
	}
	return existing
}

func userIdentity(u User) string { return "uid=" + foldKey(u.UID) }

func (u *User) mergeFrom(o User) {
	u.Password = mergeString(u.Password, o.Password)
	u.Description = mergeString(u.Description, o.Description)
	u.UUID = mergeString(u.UUID, o.UUID)
	u.ExtraObjectClasses = mergeStringSliceUnique(u.ExtraObjectClasses, o.ExtraObjectClasses)
	u.Name = mergeStringSliceUnique(u.Name, o.Name)
	u.Surname = mergeStringSliceUnique(u.Surname, o.Surname)
	u.DisplayName = mergeString(u.DisplayName, o.DisplayName)
	u.Initials = mergeString(u.Initials, o.Initials)
	u.PreferredLanguage = mergeString(u.PreferredLanguage, o.PreferredLanguage)
	u.MobileNumber = mergeStringSliceUnique(u.MobileNumber, o.MobileNumber)
	u.TelephoneNumber = mergeStringSliceUnique(u.TelephoneNumber, o.TelephoneNumber)
	u.Mail = mergeString(u.Mail, o.Mail)
	u.SSHPublicKeys = mergeStringSliceUnique(u.SSHPublicKeys, o.SSHPublicKeys)
	u.LoginShell = mergeString(u.LoginShell, o.LoginShell)
	u.HomeDirectory = mergeString(u.HomeDirectory, o.HomeDirectory)
	if u.UIDNumber == nil {
		u.UIDNumber = o.UIDNumber
	}
	if u.GIDNumber == nil {
		u.GIDNumber = o.GIDNumber
	}
	u.GroupNames = mergeStringSliceUnique(u.GroupNames, o.GroupNames)
	u.MailAliases = mergeStringSliceUnique(u.MailAliases, o.MailAliases)
	u.Extra = mergeExtra(u.Extra, o.Extra)
}

func foldKey(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// mergeString keeps an already-present value; an other value only
// fills in where existing is empty.
func mergeString(existing, other string) string {
	if existing != "" {
		return existing
	}
	return other
}

// mergeStringSliceUnique appends items from other not already present
// in existing, preserving the order they're encountered in.
func mergeStringSliceUnique(existing, other []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	for _, v := range other {
		if seen[v] {
			continue
		}
		seen[v] = true
		existing = append(existing, v)
	}
	return existing
}

// mergeExtra unions two attribute maps; on key collision it merges the
// value lists with the same append-unique rule as a vector field.
func mergeExtra(existing, other map[string][]string) map[string][]string {
	if len(other) == 0 {
		return existing
	}
	if existing == nil {
		existing = make(map[string][]string, len(other))
	}
	for k, v := range other {
		existing[k] = mergeStringSliceUnique(existing[k], v)
	}
	return existing
}

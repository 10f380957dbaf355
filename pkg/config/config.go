// Package config loads the declarative directory contents: a base DN
// plus app accounts, groups, mail aliases and users, expressed as TOML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Directory is the full set of declarative directory contents, after
// decoding and merging every config source.
type Directory struct {
	BaseDN      string
	Apps        []AppAccount
	Groups      []Group
	MailAliases []MailAlias
	Users       []User
}

// AppAccount is a non-person bind principal, e.g. a service account.
type AppAccount struct {
	UID                string
	Password           string
	Description        string
	UUID               string
	ExtraObjectClasses []string
	Extra              map[string][]string
}

// Group is a named collection whose membership is derived from the
// users that list it in their GroupNames.
type Group struct {
	Name               string
	Description        string
	UUID               string
	ExtraObjectClasses []string
	Extra              map[string][]string
}

// MailAlias is a mail forwarding target. Members is its own declared
// membership; users may additionally join it via their MailAliases.
type MailAlias struct {
	Mail               string
	Members            []string
	Description        string
	UUID               string
	ExtraObjectClasses []string
	Extra              map[string][]string
}

// User is a person account.
type User struct {
	UID                string
	Password           string
	Description        string
	UUID               string
	ExtraObjectClasses []string
	Name               []string
	Surname            []string
	DisplayName        string
	Initials           string
	PreferredLanguage  string
	MobileNumber       []string
	TelephoneNumber    []string
	Mail               string
	SSHPublicKeys      []string
	LoginShell         string
	HomeDirectory      string
	UIDNumber          *int
	GIDNumber          *int
	GroupNames         []string
	MailAliases        []string
	Extra              map[string][]string
}

// Load decodes configFile, then every *.toml file in configDir (other
// than configFile itself) in directory-listing order, merging each in
// turn into the result.
func Load(configFile, configDir string) (*Directory, error) {
	dir, err := decodeFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", configFile, err)
	}

	if configDir == "" {
		return dir, nil
	}

	entries, err := os.ReadDir(configDir)
	if err != nil {
		return nil, fmt.Errorf("reading config dir %s: %w", configDir, err)
	}
	primary, _ := filepath.Abs(configFile)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(configDir, name)
		if abs, err := filepath.Abs(path); err == nil && abs == primary {
			continue
		}
		extra, err := decodeFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		dir.Merge(extra)
	}
	return dir, nil
}

func decodeFile(path string) (*Directory, error) {
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, err
	}
	return buildDirectory(raw), nil
}

func buildDirectory(raw map[string]interface{}) *Directory {
	dir := &Directory{
		BaseDN: stringField(raw, "base_dn"),
	}
	for _, t := range tableList(raw, "apps") {
		if a, ok := buildApp(t); ok {
			dir.Apps = append(dir.Apps, a)
		}
	}
	for _, t := range tableList(raw, "groups") {
		if g, ok := buildGroup(t); ok {
			dir.Groups = append(dir.Groups, g)
		}
	}
	for _, t := range tableList(raw, "mail_aliases") {
		if m, ok := buildMailAlias(t); ok {
			dir.MailAliases = append(dir.MailAliases, m)
		}
	}
	for _, t := range tableList(raw, "users") {
		if u, ok := buildUser(t); ok {
			dir.Users = append(dir.Users, u)
		}
	}
	return dir
}

var appKnownKeys = map[string]bool{
	"uid": true, "password": true, "userpassword": true, "user_password": true,
	"description": true, "uuid": true, "extra_object_classes": true,
}

func buildApp(raw map[string]interface{}) (AppAccount, bool) {
	uid := stringField(raw, "uid")
	if uid == "" {
		slog.Warn("app account missing required uid, skipping")
		return AppAccount{}, false
	}
	return AppAccount{
		UID:                uid,
		Password:           firstStringField(raw, "password", "userPassword", "user_password"),
		Description:        stringField(raw, "description"),
		UUID:               stringField(raw, "uuid"),
		ExtraObjectClasses: listField(raw, "extra_object_classes"),
		Extra:              extraFields(raw, appKnownKeys),
	}, true
}

var groupKnownKeys = map[string]bool{
	"name": true, "description": true, "uuid": true, "extra_object_classes": true,
}

func buildGroup(raw map[string]interface{}) (Group, bool) {
	name := stringField(raw, "name")
	if name == "" {
		slog.Warn("group missing required name, skipping")
		return Group{}, false
	}
	return Group{
		Name:               name,
		Description:        stringField(raw, "description"),
		UUID:               stringField(raw, "uuid"),
		ExtraObjectClasses: listField(raw, "extra_object_classes"),
		Extra:              extraFields(raw, groupKnownKeys),
	}, true
}

var mailAliasKnownKeys = map[string]bool{
	"mail": true, "members": true, "description": true, "uuid": true, "extra_object_classes": true,
}

func buildMailAlias(raw map[string]interface{}) (MailAlias, bool) {
	mail := stringField(raw, "mail")
	if mail == "" {
		slog.Warn("mail alias missing required mail, skipping")
		return MailAlias{}, false
	}
	return MailAlias{
		Mail:               mail,
		Members:            listField(raw, "members"),
		Description:        stringField(raw, "description"),
		UUID:               stringField(raw, "uuid"),
		ExtraObjectClasses: listField(raw, "extra_object_classes"),
		Extra:              extraFields(raw, mailAliasKnownKeys),
	}, true
}

var userKnownKeys = map[string]bool{
	"uid": true, "password": true, "userpassword": true, "user_password": true,
	"description": true, "uuid": true, "extra_object_classes": true,
	"name": true, "surname": true, "display_name": true, "initials": true,
	"preferred_language": true, "mobile_number": true, "telephone_number": true,
	"mail": true, "ssh_public_key": true, "ssh_public_keys": true,
	"login_shell": true, "home_directory": true, "uid_number": true, "gid_number": true,
	"group_names": true, "groups": true, "mail_aliases": true,
}

func buildUser(raw map[string]interface{}) (User, bool) {
	uid := stringField(raw, "uid")
	if uid == "" {
		slog.Warn("user missing required uid, skipping")
		return User{}, false
	}
	return User{
		UID:                uid,
		Password:           firstStringField(raw, "password", "userPassword", "user_password"),
		Description:        stringField(raw, "description"),
		UUID:               stringField(raw, "uuid"),
		ExtraObjectClasses: listField(raw, "extra_object_classes"),
		Name:               listField(raw, "name"),
		Surname:            listField(raw, "surname"),
		DisplayName:        stringField(raw, "display_name"),
		Initials:           stringField(raw, "initials"),
		PreferredLanguage:  stringField(raw, "preferred_language"),
		MobileNumber:       listField(raw, "mobile_number"),
		TelephoneNumber:    listField(raw, "telephone_number"),
		Mail:               stringField(raw, "mail"),
		SSHPublicKeys:      firstListField(raw, "ssh_public_key", "ssh_public_keys"),
		LoginShell:         stringField(raw, "login_shell"),
		HomeDirectory:      stringField(raw, "home_directory"),
		UIDNumber:          intField(raw, "uid_number"),
		GIDNumber:          intField(raw, "gid_number"),
		GroupNames:         firstListField(raw, "group_names", "groups"),
		MailAliases:        listField(raw, "mail_aliases"),
		Extra:              extraFields(raw, userKnownKeys),
	}, true
}

// --- raw TOML value helpers -------------------------------------------------

func stringField(raw map[string]interface{}, key string) string {
	s, _ := raw[key].(string)
	return s
}

func firstStringField(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := stringField(raw, k); s != "" {
			return s
		}
	}
	return ""
}

func listField(raw map[string]interface{}, key string) []string {
	return toStringSlice(raw[key])
}

func firstListField(raw map[string]interface{}, keys ...string) []string {
	for _, k := range keys {
		if v := toStringSlice(raw[k]); len(v) > 0 {
			return v
		}
	}
	return nil
}

func intField(raw map[string]interface{}, key string) *int {
	switch v := raw[key].(type) {
	case int64:
		n := int(v)
		return &n
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

// toStringSlice accepts a bare scalar or a TOML array and normalizes it
// to a string slice; config authors may write either.
func toStringSlice(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, e := range val {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case int64:
		return []string{strconv.FormatInt(val, 10)}
	case bool:
		return []string{strconv.FormatBool(val)}
	}
	return nil
}

// extraFields collects TOML keys not in known as arbitrary additional
// attributes, flattened to their attribute name and a value list.
func extraFields(raw map[string]interface{}, known map[string]bool) map[string][]string {
	var extra map[string][]string
	for k, v := range raw {
		if known[strings.ToLower(k)] {
			continue
		}
		vals := toStringSlice(v)
		if vals == nil {
			continue
		}
		if extra == nil {
			extra = make(map[string][]string)
		}
		extra[k] = vals
	}
	return extra
}

func tableList(raw map[string]interface{}, key string) []map[string]interface{} {
	arr, _ := raw[key].([]map[string]interface{})
	if arr != nil {
		return arr
	}
	generic, _ := raw[key].([]interface{})
	out := make([]map[string]interface{}, 0, len(generic))
	for _, e := range generic {
		if m, ok := e.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

package directory

import "strings"

// Server describes one directory or file server discovered from a path root.
type Server struct {
	DNSName            string
	NetBIOS            string
	DistinguishedName  string
	IsDomainController bool
}

// Domain holds the identifiers a trusted domain is known by. The same domain
// is cached under its SID, its NetBIOS name, and its FQDN.
type Domain struct {
	SID               string
	NetBIOS           string
	FQDN              string
	DistinguishedName string
}

// Kind classifies a directory account. The fake kinds are produced only by
// the in-memory directory used for demos and tests.
type Kind int

const (
	KindUser Kind = iota
	KindGroup
	KindComputer
	KindFakeUser
	KindFakeGroup
)

// KindOf maps a directory schema class to an account kind. The fakeUser and
// fakeGroup classes are synthetic, produced by the in-memory directory.
func KindOf(schemaClass string) Kind {
	switch strings.ToLower(schemaClass) {
	case "group":
		return KindGroup
	case "computer":
		return KindComputer
	case "fakeuser":
		return KindFakeUser
	case "fakegroup":
		return KindFakeGroup
	default:
		return KindUser
	}
}

// Account is the result of a by-SID or by-name account query.
type Account struct {
	// Caption is the HOST\name display form, which doubles as a cache key.
	Caption string
	Name    string
	Domain  string
	SID     string
	Kind    Kind
}

// Entry is a raw directory record: its path, schema class, and the sparse
// attribute set the query returned.
type Entry struct {
	Path        string
	SchemaClass string
	Attributes  map[string][]string
}

// Attr returns the first value of the named attribute, or the empty string
// when the attribute is absent.
func (e *Entry) Attr(name string) string {
	if vals := e.Attributes[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// SID returns the entry's objectSid in string form.
func (e *Entry) SID() string {
	return e.Attr("objectSid")
}

// SAMAccountName returns the entry's account logon name.
func (e *Entry) SAMAccountName() string {
	return e.Attr("sAMAccountName")
}

// IsGroup reports whether the entry describes a group.
func (e *Entry) IsGroup() bool {
	return KindOf(e.SchemaClass) == KindGroup || KindOf(e.SchemaClass) == KindFakeGroup
}

package acl

import (
	"regexp"
	"strings"
)

var sidRegex = regexp.MustCompile(`^S-1-\d+(-\d+)+$`)

// DomainSIDPrefix starts every SID issued by a domain or machine authority;
// anything else under S-1-5 is a built-in well-known identity.
const DomainSIDPrefix = "S-1-5-21-"

// Captions for the well-known SIDs that commonly appear in folder ACLs.
// Resolution consults this table before asking the directory.
var wellKnownCaptions = map[string]string{
	"S-1-1-0":      `Everyone`,
	"S-1-3-0":      `CREATOR OWNER`,
	"S-1-5-7":      `NT AUTHORITY\ANONYMOUS LOGON`,
	"S-1-5-9":      `NT AUTHORITY\ENTERPRISE DOMAIN CONTROLLERS`,
	"S-1-5-11":     `NT AUTHORITY\Authenticated Users`,
	"S-1-5-18":     `NT AUTHORITY\SYSTEM`,
	"S-1-5-19":     `NT AUTHORITY\LOCAL SERVICE`,
	"S-1-5-20":     `NT AUTHORITY\NETWORK SERVICE`,
	"S-1-5-32-544": `BUILTIN\Administrators`,
	"S-1-5-32-545": `BUILTIN\Users`,
	"S-1-5-32-546": `BUILTIN\Guests`,
	"S-1-5-32-547": `BUILTIN\Power Users`,
	"S-1-5-32-551": `BUILTIN\Backup Operators`,
}

var wellKnownSIDsByCaption = func() map[string]string {
	m := make(map[string]string, len(wellKnownCaptions))
	for sid, caption := range wellKnownCaptions {
		m[strings.ToLower(caption)] = sid
	}
	return m
}()

// IsSID reports whether ref is a string-form security identifier rather than
// a display name.
func IsSID(ref string) bool {
	return sidRegex.MatchString(ref)
}

// IsWellKnownSID reports whether sid belongs to a built-in authority rather
// than a domain or machine.
func IsWellKnownSID(sid string) bool {
	return IsSID(sid) && !strings.HasPrefix(sid, DomainSIDPrefix)
}

// WellKnownCaption returns the display caption for a well-known SID.
func WellKnownCaption(sid string) (string, bool) {
	caption, ok := wellKnownCaptions[sid]
	return caption, ok
}

// SIDForCaption is the reverse of WellKnownCaption: it recognizes captions
// like Everyone or BUILTIN\Administrators that never need a directory round
// trip.
func SIDForCaption(caption string) (string, bool) {
	sid, ok := wellKnownSIDsByCaption[strings.ToLower(caption)]
	return sid, ok
}

// SplitQualifiedName splits a DOMAIN\name caption into its domain and account
// parts. If no separator is present it returns the empty string and the
// original reference.
func SplitQualifiedName(ref string) (string, string) {
	switch i := strings.IndexByte(ref, '\\'); i {
	case -1:
		return "", ref
	case len(ref) - 1:
		return ref[0:i], ""
	default:
		return ref[0:i], ref[i+1:]
	}
}

// QualifiedName joins a domain and account name into the DOMAIN\name caption
// form. An empty domain yields the bare name.
func QualifiedName(domain, name string) string {
	if domain == "" {
		return name
	}
	return domain + `\` + name
}

// Package identity holds the resolved identity model produced by the
// pipeline: resolution outcomes, expanded security principals, and the row
// and folder shapes consumed by reporting.
package identity

import "github.com/aclscan/aclscan/pkg/acl"

// Status records how far resolution got for one raw identity reference.
type Status int

const (
	StatusResolved Status = iota
	StatusUnresolvedSID
	StatusFake
)

func (s Status) String() string {
	switch s {
	case StatusUnresolvedSID:
		return "UnresolvedSID"
	case StatusFake:
		return "Fake"
	default:
		return "Resolved"
	}
}

// Resolved maps one raw ACE identity reference to its domain-qualified name.
// At most one Resolved exists per distinct raw reference per run.
type Resolved struct {
	Raw    string
	Name   string
	SID    string
	Status Status
}

// Type classifies a security principal. The fake variants come from the
// in-memory directory used for demos and tests.
type Type int

const (
	TypeUser Type = iota
	TypeGroup
	TypeComputer
	TypeFakeUser
	TypeFakeGroup
)

func (t Type) String() string {
	switch t {
	case TypeGroup:
		return "Group"
	case TypeComputer:
		return "Computer"
	case TypeFakeUser:
		return "FakeUser"
	case TypeFakeGroup:
		return "FakeGroup"
	default:
		return "User"
	}
}

// IsGroup reports whether principals of this type carry members.
func (t Type) IsGroup() bool {
	return t == TypeGroup || t == TypeFakeGroup
}

// Principal is a fully described account or group. Members holds direct
// members only: a member that is itself a group appears in the list but its
// own members are not fetched.
type Principal struct {
	Name       string
	SID        string
	Type       Type
	Attributes map[string]string
	Members    []*Principal
	Status     Status
}

// Shell builds an attribute-less principal for an identity that could not be
// fully expanded, so downstream stages never see a missing principal.
func Shell(r Resolved) *Principal {
	return &Principal{
		Name:   r.Name,
		SID:    r.SID,
		Type:   TypeUser,
		Status: r.Status,
	}
}

// Access is one attribution of an access-control entry to an account. Via is
// empty when the account is listed on the entry itself, otherwise it names
// the group that carried the entry to the account.
type Access struct {
	Entry acl.Entry
	Via   string
}

// Direct reports whether the account is listed on the entry itself rather
// than through a group.
func (a Access) Direct() bool {
	return a.Via == ""
}

// PermissionRow ties one account to the access entries it holds. Flattening
// emits rows carrying a single Access; deduplication unions them.
type PermissionRow struct {
	Account *Principal
	Access  []Access
}

// FolderPermission groups the rows that apply to one folder. Each row's
// Access list is filtered to entries sourced from that folder.
type FolderPermission struct {
	Path string
	Rows []PermissionRow
}

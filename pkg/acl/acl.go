// Package acl contains the access-control entry model read from the target
// filesystem and helpers for Windows security identifiers.
package acl

import "strings"

// AccessType says whether an entry grants or denies its rights.
type AccessType int

const (
	Allow AccessType = iota
	Deny
)

func (t AccessType) String() string {
	if t == Deny {
		return "Deny"
	}
	return "Allow"
}

// InheritanceFlags control how an entry flows down to child containers and
// objects. The values match the Windows ACE inheritance bits.
type InheritanceFlags uint32

const (
	InheritanceNone  InheritanceFlags = 0x0
	ContainerInherit InheritanceFlags = 0x1
	ObjectInherit    InheritanceFlags = 0x2
)

func (f InheritanceFlags) String() string {
	if f == InheritanceNone {
		return "None"
	}
	var parts []string
	if f&ContainerInherit != 0 {
		parts = append(parts, "ContainerInherit")
	}
	if f&ObjectInherit != 0 {
		parts = append(parts, "ObjectInherit")
	}
	return strings.Join(parts, ", ")
}

// PropagationFlags constrain how inheritance flags propagate.
type PropagationFlags uint32

const (
	PropagationNone    PropagationFlags = 0x0
	NoPropagateInherit PropagationFlags = 0x1
	InheritOnly        PropagationFlags = 0x2
)

func (f PropagationFlags) String() string {
	if f == PropagationNone {
		return "None"
	}
	var parts []string
	if f&NoPropagateInherit != 0 {
		parts = append(parts, "NoPropagateInherit")
	}
	if f&InheritOnly != 0 {
		parts = append(parts, "InheritOnly")
	}
	return strings.Join(parts, ", ")
}

// Entry is one access-control entry read from a folder's security descriptor.
// Entries are immutable once read; the pipeline owns them for the duration of
// a run.
type Entry struct {
	// SourcePath is the folder the entry was read from.
	SourcePath string

	// IdentityReference is the raw identity as the filesystem reported it:
	// either a DOMAIN\name caption or a string-form SID.
	IdentityReference string

	Access           AccessType
	Rights           Rights
	IsInherited      bool
	InheritanceFlags InheritanceFlags
	PropagationFlags PropagationFlags
}

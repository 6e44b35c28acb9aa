// Package directory defines the directory-service boundary the pipeline
// resolves identities against, plus the server, domain, and account types
// shared through the pipeline caches.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the directory has no entry for the
	// requested name or SID.
	ErrNotFound = errors.New("directory entry not found")

	// ErrUnreachable is returned when a directory server cannot be
	// contacted. Callers downgrade affected identities instead of failing.
	ErrUnreachable = errors.New("directory server unreachable")
)

// ServerDiscoverer answers the single-pass discovery stage that runs before
// any identity resolution.
type ServerDiscoverer interface {
	// DiscoverServer returns metadata for the server behind a DNS name.
	// It must return ErrUnreachable when the server cannot be contacted.
	DiscoverServer(ctx context.Context, dnsName string) (*Server, error)

	// TrustedDomains enumerates the domains trusted by the connected
	// domain, including the connected domain itself.
	TrustedDomains(ctx context.Context) ([]*Domain, error)
}

// PrincipalReader answers the resolution and expansion stages.
type PrincipalReader interface {
	// LookupPrincipal fetches the full directory entry behind a
	// domain-qualified account name. It must return ErrNotFound when no
	// such principal exists.
	LookupPrincipal(ctx context.Context, name string) (*Entry, error)

	// ListGroupMembers returns the direct members of a group. A nested
	// group appears as a member; its own members are not fetched.
	ListGroupMembers(ctx context.Context, name string) ([]*Entry, error)

	// AccountBySID resolves a SID against the given server.
	AccountBySID(ctx context.Context, server, sid string) (*Account, error)

	// AccountByName resolves a display name against the given server.
	AccountByName(ctx context.Context, server, name string) (*Account, error)
}

// Directory is the full directory-service surface the pipeline consumes.
type Directory interface {
	ServerDiscoverer
	PrincipalReader
}

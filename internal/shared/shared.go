// Package shared holds the cache set threaded through every pipeline stage.
package shared

import (
	"strings"

	"github.com/aclscan/aclscan/pkg/cache"
	"github.com/aclscan/aclscan/pkg/directory"
	"github.com/aclscan/aclscan/pkg/identity"
)

// CacheSet is the only state shared across pipeline workers: seven stores,
// each keyed by one stable identifier form. All mutation goes through
// GetOrCompute or Seed. A set lives for exactly one run.
type CacheSet struct {
	// DirectoryEntries memoizes full principal reads, keyed by the
	// domain-qualified name the expansion stage groups by.
	DirectoryEntries *cache.Store[string, *directory.Entry]

	// ResolvedIdentities memoizes ACE resolution, keyed by the raw
	// identity reference exactly as the filesystem reported it. Resolution
	// for a given reference runs at most once per run.
	ResolvedIdentities *cache.Store[string, identity.Resolved]

	// Servers is keyed by server DNS name, seeded by discovery.
	Servers *cache.Store[string, *directory.Server]

	// AccountsBySID and AccountsByCaption memoize account lookups.
	AccountsBySID     *cache.Store[string, *directory.Account]
	AccountsByCaption *cache.Store[string, *directory.Account]

	// DomainsBySID and DomainsByName hold the trust map. A domain is
	// registered in DomainsByName under both its NetBIOS and FQDN forms,
	// pointing at the same value.
	DomainsBySID  *cache.Store[string, *directory.Domain]
	DomainsByName *cache.Store[string, *directory.Domain]
}

// NewCacheSet builds an empty set. The identity and directory-entry stores
// serialize per-key computation so concurrent workers hitting the same
// missing key trigger exactly one directory query.
func NewCacheSet() *CacheSet {
	return &CacheSet{
		DirectoryEntries:   cache.NewStore[string, *directory.Entry]("directory_entries", cache.WithSingleflight()),
		ResolvedIdentities: cache.NewStore[string, identity.Resolved]("resolved_identities", cache.WithSingleflight()),
		Servers:            cache.NewStore[string, *directory.Server]("servers"),
		AccountsBySID:      cache.NewStore[string, *directory.Account]("accounts_by_sid"),
		AccountsByCaption:  cache.NewStore[string, *directory.Account]("accounts_by_caption"),
		DomainsBySID:       cache.NewStore[string, *directory.Domain]("domains_by_sid"),
		DomainsByName:      cache.NewStore[string, *directory.Domain]("domains_by_name"),
	}
}

// RegisterDomain seeds a domain under its SID, NetBIOS, and FQDN keys.
// Writes are idempotent, so rediscovering a known domain changes nothing.
func (c *CacheSet) RegisterDomain(d *directory.Domain) {
	if d.SID != "" {
		c.DomainsBySID.Seed(d.SID, d)
	}
	if d.NetBIOS != "" {
		c.DomainsByName.Seed(strings.ToUpper(d.NetBIOS), d)
	}
	if d.FQDN != "" {
		c.DomainsByName.Seed(strings.ToLower(d.FQDN), d)
	}
}

// DomainByName finds a domain under either of its name forms.
func (c *CacheSet) DomainByName(name string) (*directory.Domain, bool) {
	if d, ok := c.DomainsByName.Get(strings.ToUpper(name)); ok {
		return d, true
	}
	return c.DomainsByName.Get(strings.ToLower(name))
}

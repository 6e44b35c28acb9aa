// Package directorytest provides a deterministic in-memory directory for
// tests and demo runs. Lookups are scripted; every call is counted so tests
// can assert that the pipeline caches actually deduplicate directory I/O.
package directorytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/directory"
)

// Fake implements directory.Directory from scripted data.
type Fake struct {
	mu sync.Mutex

	servers    map[string]*directory.Server
	domains    []*directory.Domain
	principals map[string]*directory.Entry
	members    map[string][]*directory.Entry
	bySID      map[string]*directory.Account
	byCaption  map[string]*directory.Account

	errs  map[string]error
	calls map[string]int
}

var _ directory.Directory = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		servers:    map[string]*directory.Server{},
		principals: map[string]*directory.Entry{},
		members:    map[string][]*directory.Entry{},
		bySID:      map[string]*directory.Account{},
		byCaption:  map[string]*directory.Account{},
		errs:       map[string]error{},
		calls:      map[string]int{},
	}
}

// AddServer scripts a DiscoverServer result.
func (f *Fake) AddServer(s *directory.Server) *Fake {
	f.servers[strings.ToLower(s.DNSName)] = s
	return f
}

// AddDomain scripts one TrustedDomains result entry.
func (f *Fake) AddDomain(d *directory.Domain) *Fake {
	f.domains = append(f.domains, d)
	return f
}

// AddPrincipal scripts a LookupPrincipal result under both the qualified
// DOMAIN\name form and the bare sAMAccountName, so same-named accounts in two
// domains stay distinct when looked up qualified. The matching account
// lookups are registered too.
func (f *Fake) AddPrincipal(domain string, e *directory.Entry) *Fake {
	name := e.SAMAccountName()
	f.principals[strings.ToLower(acl.QualifiedName(domain, name))] = e
	if _, ok := f.principals[samKey(name)]; !ok {
		f.principals[samKey(name)] = e
	}

	account := &directory.Account{
		Caption: acl.QualifiedName(domain, name),
		Name:    name,
		Domain:  domain,
		SID:     e.SID(),
		Kind:    directory.KindOf(e.SchemaClass),
	}
	if account.SID != "" {
		f.bySID[strings.ToLower(account.SID)] = account
	}
	f.byCaption[strings.ToLower(account.Caption)] = account
	return f
}

// AddMember scripts one direct member of a group.
func (f *Fake) AddMember(group string, member *directory.Entry) *Fake {
	key := samKey(group)
	f.members[key] = append(f.members[key], member)
	return f
}

// FailWith injects an error for one operation and key. The key "*" fails
// every call of that operation.
func (f *Fake) FailWith(op, key string, err error) *Fake {
	f.errs[op+":"+strings.ToLower(key)] = err
	return f
}

// Calls returns how many times an operation ran: pass "LookupPrincipal" for
// the total, or "LookupPrincipal:admins" for one key.
func (f *Fake) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[strings.ToLower(key)]
}

func (f *Fake) DiscoverServer(ctx context.Context, dnsName string) (*directory.Server, error) {
	if err := f.observe("DiscoverServer", dnsName); err != nil {
		return nil, err
	}
	s, ok := f.servers[strings.ToLower(dnsName)]
	if !ok {
		return nil, fmt.Errorf("server %s: %w", dnsName, directory.ErrNotFound)
	}
	return s, nil
}

func (f *Fake) TrustedDomains(ctx context.Context) ([]*directory.Domain, error) {
	if err := f.observe("TrustedDomains", ""); err != nil {
		return nil, err
	}
	return f.domains, nil
}

func (f *Fake) LookupPrincipal(ctx context.Context, name string) (*directory.Entry, error) {
	if err := f.observe("LookupPrincipal", samKey(name)); err != nil {
		return nil, err
	}
	e, ok := f.principals[strings.ToLower(name)]
	if !ok {
		e, ok = f.principals[samKey(name)]
	}
	if !ok {
		return nil, fmt.Errorf("principal %s: %w", name, directory.ErrNotFound)
	}
	return e, nil
}

func (f *Fake) ListGroupMembers(ctx context.Context, name string) ([]*directory.Entry, error) {
	if err := f.observe("ListGroupMembers", samKey(name)); err != nil {
		return nil, err
	}
	if _, ok := f.principals[samKey(name)]; !ok {
		return nil, fmt.Errorf("group %s: %w", name, directory.ErrNotFound)
	}
	return f.members[samKey(name)], nil
}

func (f *Fake) AccountBySID(ctx context.Context, server, sid string) (*directory.Account, error) {
	if err := f.observe("AccountBySID", sid); err != nil {
		return nil, err
	}
	a, ok := f.bySID[strings.ToLower(sid)]
	if !ok {
		return nil, fmt.Errorf("sid %s: %w", sid, directory.ErrNotFound)
	}
	return a, nil
}

func (f *Fake) AccountByName(ctx context.Context, server, name string) (*directory.Account, error) {
	if err := f.observe("AccountByName", acl.QualifiedName(server, name)); err != nil {
		return nil, err
	}
	a, ok := f.byCaption[strings.ToLower(acl.QualifiedName(server, name))]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", acl.QualifiedName(server, name), directory.ErrNotFound)
	}
	return a, nil
}

func (f *Fake) observe(op, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[strings.ToLower(op)]++
	f.calls[strings.ToLower(op+":"+key)]++

	if err, ok := f.errs[op+":"+strings.ToLower(key)]; ok {
		return err
	}
	if err, ok := f.errs[op+":*"]; ok {
		return err
	}
	return nil
}

// samKey strips any domain qualifier and folds case, matching how a real
// directory searches by sAMAccountName.
func samKey(name string) string {
	_, sam := acl.SplitQualifiedName(name)
	return strings.ToLower(sam)
}

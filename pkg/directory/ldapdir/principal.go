package ldapdir

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/directory"
)

var principalAttrs = []string{
	"objectClass",
	"objectSid",
	"sAMAccountName",
	"displayName",
	"description",
	"member",
}

// LookupPrincipal fetches the directory entry behind a domain-qualified
// account name.
func (d *Directory) LookupPrincipal(ctx context.Context, name string) (*directory.Entry, error) {
	_, sam := acl.SplitQualifiedName(name)
	filter := fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(sam))

	entries, err := d.search(ctx, d.baseDN, ldap.ScopeWholeSubtree, filter, principalAttrs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("principal %s: %w", name, directory.ErrNotFound)
	}
	return entries[0], nil
}

// ListGroupMembers reads the group's member attribute and fetches each member
// entry. Members that cannot be read are logged and skipped; a member that is
// itself a group is returned without its own members.
func (d *Directory) ListGroupMembers(ctx context.Context, name string) ([]*directory.Entry, error) {
	group, err := d.LookupPrincipal(ctx, name)
	if err != nil {
		return nil, err
	}

	memberDNs := group.Attributes["member"]
	members := make([]*directory.Entry, 0, len(memberDNs))
	for _, dn := range memberDNs {
		entries, err := d.search(ctx, dn, ldap.ScopeBaseObject, "(objectClass=*)", principalAttrs)
		if err != nil || len(entries) == 0 {
			d.logger.Warn("skipping unreadable group member",
				zap.String("group", name),
				zap.String("member", dn),
				zap.Error(err),
			)
			continue
		}
		members = append(members, entries[0])
	}

	return members, nil
}

// AccountBySID resolves a SID to its account. AD accepts the string SID form
// directly in the filter.
func (d *Directory) AccountBySID(ctx context.Context, server, sid string) (*directory.Account, error) {
	filter := fmt.Sprintf("(objectSid=%s)", ldap.EscapeFilter(sid))

	entries, err := d.search(ctx, d.baseDN, ldap.ScopeWholeSubtree, filter, principalAttrs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("sid %s: %w", sid, directory.ErrNotFound)
	}
	return toAccount(server, entries[0]), nil
}

// AccountByName resolves a display name to its account.
func (d *Directory) AccountByName(ctx context.Context, server, name string) (*directory.Account, error) {
	filter := fmt.Sprintf(
		"(|(sAMAccountName=%s)(displayName=%s))",
		ldap.EscapeFilter(name),
		ldap.EscapeFilter(name),
	)

	entries, err := d.search(ctx, d.baseDN, ldap.ScopeWholeSubtree, filter, principalAttrs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("account %s: %w", name, directory.ErrNotFound)
	}
	return toAccount(server, entries[0]), nil
}

func toAccount(server string, e *directory.Entry) *directory.Account {
	name := e.SAMAccountName()
	if name == "" {
		name = e.Attr("displayName")
	}

	return &directory.Account{
		Caption: acl.QualifiedName(server, name),
		Name:    name,
		Domain:  server,
		SID:     e.SID(),
		Kind:    directory.KindOf(e.SchemaClass),
	}
}

package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aclscan/aclscan/internal/dispatcher"
	"github.com/aclscan/aclscan/internal/shared"
	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/directory"
	"github.com/aclscan/aclscan/pkg/identity"
)

// expand fetches full principal metadata for each distinct resolved identity
// and, for groups, the direct member list. Grouping by distinct name first
// means a principal referenced by a hundred ACEs is expanded once. The
// returned map is keyed by folded qualified name.
func (p *Pipeline) expand(ctx context.Context, caches *shared.CacheSet, resolved []ResolvedEntry) (map[string]*identity.Principal, []string, error) {
	ctx, span := tracer.Start(ctx, "expand")
	defer span.End()

	start := time.Now()
	distinct := distinctIdentities(resolved)

	expanded, err := dispatcher.Map(ctx, distinct, p.dispatchOptions("expand"),
		func(ctx context.Context, id identity.Resolved) (*identity.Principal, error) {
			return p.expandIdentity(ctx, caches, id), nil
		})

	principals := make(map[string]*identity.Principal, len(expanded))
	for _, principal := range expanded {
		principals[strings.ToLower(principal.Name)] = principal
	}

	p.logger.Debug("expansion complete",
		zap.Int("distinct_identities", len(distinct)),
		zap.Int("expanded", len(expanded)),
		zap.Duration("took", time.Since(start)),
	)

	if err != nil {
		warning, err := stageInterrupted("expand", err, len(expanded), len(distinct))
		if err != nil {
			return principals, nil, err
		}
		return principals, []string{warning}, nil
	}
	return principals, nil, nil
}

// expandIdentity never returns nil: identities that cannot be read from the
// directory come back as attribute-less shells carrying their resolution
// status, so formatting degrades instead of branching on missing principals.
func (p *Pipeline) expandIdentity(ctx context.Context, caches *shared.CacheSet, id identity.Resolved) *identity.Principal {
	if id.Status == identity.StatusUnresolvedSID {
		return identity.Shell(id)
	}

	entry, err := caches.DirectoryEntries.GetOrCompute(ctx, strings.ToLower(id.Name),
		func(ctx context.Context) (*directory.Entry, error) {
			return p.dir.LookupPrincipal(ctx, id.Name)
		})
	if err != nil {
		p.logger.Debug("principal metadata unavailable, reporting shell",
			zap.String("name", id.Name),
			zap.Error(err),
		)
		return identity.Shell(id)
	}

	principal := p.principalFrom(id, entry)

	if principal.Type.IsGroup() && p.expandGroups {
		members, err := p.dir.ListGroupMembers(ctx, id.Name)
		if err != nil {
			p.logger.Warn("member listing failed, group reported without members",
				zap.String("group", id.Name),
				zap.Error(err),
			)
			return principal
		}
		for _, m := range members {
			principal.Members = append(principal.Members, p.memberPrincipal(caches, id, m))
		}
	}

	return principal
}

func (p *Pipeline) principalFrom(id identity.Resolved, entry *directory.Entry) *identity.Principal {
	sid := entry.SID()
	if sid == "" {
		sid = id.SID
	}

	return &identity.Principal{
		Name:       id.Name,
		SID:        sid,
		Type:       typeOf(entry.SchemaClass),
		Attributes: flattenAttributes(entry),
		Status:     id.Status,
	}
}

// memberPrincipal builds the one-level member view: the member's own members
// are never fetched, so a nested group is listed but not expanded.
func (p *Pipeline) memberPrincipal(caches *shared.CacheSet, group identity.Resolved, entry *directory.Entry) *identity.Principal {
	name := entry.SAMAccountName()
	if name == "" {
		name = entry.Path
	}

	// Prefer the member's own domain from the trust map; cross-domain
	// members fall back to the group's prefix.
	prefix, _ := acl.SplitQualifiedName(group.Name)
	if sid := entry.SID(); sid != "" {
		if dom, ok := caches.DomainsBySID.Get(domainSIDOf(sid)); ok && dom.NetBIOS != "" {
			prefix = dom.NetBIOS
		}
	}

	status := identity.StatusResolved
	if kind := directory.KindOf(entry.SchemaClass); kind == directory.KindFakeUser || kind == directory.KindFakeGroup {
		status = identity.StatusFake
	}

	return &identity.Principal{
		Name:       acl.QualifiedName(prefix, name),
		SID:        entry.SID(),
		Type:       typeOf(entry.SchemaClass),
		Attributes: flattenAttributes(entry),
		Status:     status,
	}
}

func flattenAttributes(entry *directory.Entry) map[string]string {
	attrs := make(map[string]string, len(entry.Attributes))
	for name, values := range entry.Attributes {
		// Membership is modeled on the principal, not kept as a raw
		// attribute.
		if name == "member" {
			continue
		}
		if len(values) > 0 {
			attrs[name] = values[0]
		}
	}
	return attrs
}

func typeOf(schemaClass string) identity.Type {
	switch directory.KindOf(schemaClass) {
	case directory.KindGroup:
		return identity.TypeGroup
	case directory.KindComputer:
		return identity.TypeComputer
	case directory.KindFakeUser:
		return identity.TypeFakeUser
	case directory.KindFakeGroup:
		return identity.TypeFakeGroup
	default:
		return identity.TypeUser
	}
}

// distinctIdentities keeps the first occurrence of each qualified name, in
// input order.
func distinctIdentities(resolved []ResolvedEntry) []identity.Resolved {
	seen := make(map[string]struct{}, len(resolved))
	var out []identity.Resolved
	for _, re := range resolved {
		key := strings.ToLower(re.Identity.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, re.Identity)
	}
	return out
}

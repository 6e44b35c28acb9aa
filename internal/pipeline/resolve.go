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

// resolve maps every entry's raw identity reference to a domain-qualified
// identity. Resolution never errors per item: references that cannot be
// mapped come back with StatusUnresolvedSID, so each input entry yields
// exactly one ResolvedEntry.
func (p *Pipeline) resolve(ctx context.Context, caches *shared.CacheSet, entries []acl.Entry) ([]ResolvedEntry, []string, error) {
	ctx, span := tracer.Start(ctx, "resolve")
	defer span.End()

	start := time.Now()

	resolved, err := dispatcher.Map(ctx, entries, p.dispatchOptions("resolve"),
		func(ctx context.Context, e acl.Entry) (ResolvedEntry, error) {
			id, err := caches.ResolvedIdentities.GetOrCompute(ctx, e.IdentityReference,
				func(ctx context.Context) (identity.Resolved, error) {
					return p.resolveReference(ctx, caches, e), nil
				})
			if err != nil {
				return ResolvedEntry{}, err
			}
			return ResolvedEntry{Entry: e, Identity: id}, nil
		})

	p.logger.Debug("resolution complete",
		zap.Int("entries", len(entries)),
		zap.Int("resolved", len(resolved)),
		zap.Int("distinct", caches.ResolvedIdentities.Len()),
		zap.Duration("took", time.Since(start)),
	)

	if err != nil {
		warning, err := stageInterrupted("resolve", err, len(resolved), len(entries))
		if err != nil {
			return resolved, nil, err
		}
		return resolved, []string{warning}, nil
	}
	return resolved, nil, nil
}

// resolveReference is the compute function behind the resolved-identity
// cache: it runs at most once per distinct raw reference per run.
func (p *Pipeline) resolveReference(ctx context.Context, caches *shared.CacheSet, e acl.Entry) identity.Resolved {
	raw := e.IdentityReference
	server := serverOf(e.SourcePath)

	if acl.IsSID(raw) {
		return p.resolveSID(ctx, caches, server, raw)
	}
	return p.resolveCaption(ctx, caches, server, raw)
}

func (p *Pipeline) resolveSID(ctx context.Context, caches *shared.CacheSet, server, sid string) identity.Resolved {
	// Well-known SIDs translate through the static caption table without
	// touching the directory.
	if caption, ok := acl.WellKnownCaption(sid); ok {
		return identity.Resolved{Raw: sid, Name: caption, SID: sid, Status: identity.StatusResolved}
	}

	account, err := caches.AccountsBySID.GetOrCompute(ctx, sid,
		func(ctx context.Context) (*directory.Account, error) {
			return p.dir.AccountBySID(ctx, server, sid)
		})
	if err != nil {
		// A well-known pattern with no mapping is reported, not raised.
		p.logger.Debug("sid did not resolve",
			zap.String("sid", sid),
			zap.Bool("well_known", acl.IsWellKnownSID(sid)),
			zap.Error(err),
		)
		return identity.Resolved{Raw: sid, Name: sid, SID: sid, Status: identity.StatusUnresolvedSID}
	}

	return identity.Resolved{
		Raw:    sid,
		Name:   p.qualifiedName(caches, account),
		SID:    account.SID,
		Status: statusOf(account.Kind),
	}
}

func (p *Pipeline) resolveCaption(ctx context.Context, caches *shared.CacheSet, server, raw string) identity.Resolved {
	// Captions like Everyone or BUILTIN\Administrators are already their
	// own display form.
	if sid, ok := acl.SIDForCaption(raw); ok {
		return identity.Resolved{Raw: raw, Name: raw, SID: sid, Status: identity.StatusResolved}
	}

	domain, name := acl.SplitQualifiedName(raw)

	// Map the domain part through the trust map so every caption of the
	// same domain normalizes to one NetBIOS prefix.
	host := domain
	if dom, ok := caches.DomainByName(domain); ok && dom.NetBIOS != "" {
		host = dom.NetBIOS
	} else if domain == "" {
		host = server
	}
	canonical := acl.QualifiedName(host, name)

	account, err := caches.AccountsByCaption.GetOrCompute(ctx, strings.ToLower(canonical),
		func(ctx context.Context) (*directory.Account, error) {
			return p.dir.AccountByName(ctx, host, name)
		})
	if err != nil {
		p.logger.Debug("caption did not resolve",
			zap.String("caption", canonical),
			zap.Error(err),
		)
		return identity.Resolved{Raw: raw, Name: canonical, Status: identity.StatusUnresolvedSID}
	}

	return identity.Resolved{
		Raw:    raw,
		Name:   canonical,
		SID:    account.SID,
		Status: statusOf(account.Kind),
	}
}

// qualifiedName prefers the owning domain's NetBIOS name from the trust map,
// falling back to the domain the account lookup reported.
func (p *Pipeline) qualifiedName(caches *shared.CacheSet, account *directory.Account) string {
	if dom, ok := caches.DomainsBySID.Get(domainSIDOf(account.SID)); ok && dom.NetBIOS != "" {
		return acl.QualifiedName(dom.NetBIOS, account.Name)
	}
	return acl.QualifiedName(account.Domain, account.Name)
}

func statusOf(kind directory.Kind) identity.Status {
	if kind == directory.KindFakeUser || kind == directory.KindFakeGroup {
		return identity.StatusFake
	}
	return identity.StatusResolved
}

// domainSIDOf drops the final RID, leaving the SID of the issuing domain.
func domainSIDOf(sid string) string {
	i := strings.LastIndexByte(sid, '-')
	if i <= 0 {
		return ""
	}
	return sid[:i]
}

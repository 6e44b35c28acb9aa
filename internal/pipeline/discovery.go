package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aclscan/aclscan/internal/shared"
	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/directory"
)

// discover seeds the server and domain caches from the distinct path roots
// before any resolution fans out. Running it once, sequentially, keeps a herd
// of concurrent resolvers from each observing an empty trust map and
// repeating the same discovery queries.
func (p *Pipeline) discover(ctx context.Context, caches *shared.CacheSet, entries []acl.Entry) []string {
	ctx, span := tracer.Start(ctx, "discover")
	defer span.End()

	start := time.Now()
	var warnings []string

	servers := distinctServers(entries)
	for _, name := range servers {
		_, err := caches.Servers.GetOrCompute(ctx, strings.ToLower(name), func(ctx context.Context) (*directory.Server, error) {
			return p.dir.DiscoverServer(ctx, name)
		})
		if err != nil {
			// Non-fatal: identities on this server resolve as
			// unresolved SIDs instead.
			warnings = append(warnings, fmt.Sprintf("server %s not discovered: %v", name, err))
			p.logger.Warn("server discovery failed",
				zap.String("server", name),
				zap.Error(err),
			)
		}
	}

	domains, err := p.dir.TrustedDomains(ctx)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("trusted domain enumeration failed: %v", err))
		p.logger.Warn("trusted domain enumeration failed", zap.Error(err))
	}
	for _, d := range domains {
		caches.RegisterDomain(d)
	}

	p.logger.Debug("discovery complete",
		zap.Int("servers", len(servers)),
		zap.Int("domains", len(domains)),
		zap.Duration("took", time.Since(start)),
	)

	return warnings
}

// distinctServers returns each UNC server referenced by the entries once, in
// first-appearance order. Local paths contribute nothing.
func distinctServers(entries []acl.Entry) []string {
	seen := make(map[string]struct{})
	var servers []string
	for _, e := range entries {
		s := serverOf(e.SourcePath)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		servers = append(servers, s)
	}
	return servers
}

// serverOf extracts the server component of a UNC path. Anything that is not
// a UNC path yields the empty string.
func serverOf(path string) string {
	if !strings.HasPrefix(path, `\\`) {
		return ""
	}
	rest := strings.TrimPrefix(path, `\\`)
	if i := strings.IndexByte(rest, '\\'); i >= 0 {
		return rest[:i]
	}
	return rest
}

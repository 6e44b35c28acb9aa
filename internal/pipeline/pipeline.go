// Package pipeline turns raw access-control entries into resolved,
// deduplicated, folder-grouped permission rows.
//
// Stages run in a fixed order: server and domain discovery, ACE resolution,
// identity expansion, flattening, cross-domain deduplication, aggregation.
// Discovery is always a single sequential pass; resolution and expansion fan
// out across the worker pool; everything after is pure and sequential.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aclscan/aclscan/internal/config"
	"github.com/aclscan/aclscan/internal/dispatcher"
	"github.com/aclscan/aclscan/internal/shared"
	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/directory"
	"github.com/aclscan/aclscan/pkg/identity"
	"github.com/aclscan/aclscan/pkg/logger"
	"github.com/aclscan/aclscan/pkg/telemetry"
)

var tracer = otel.Tracer("internal/pipeline")

// ResolvedEntry pairs one access-control entry with its resolution outcome.
// Every input entry yields exactly one ResolvedEntry.
type ResolvedEntry struct {
	Entry    acl.Entry
	Identity identity.Resolved
}

// Result carries the tabular intermediates the report renders plus the final
// folder grouping. Warnings record non-fatal degradations such as stage
// timeouts and unreachable servers.
type Result struct {
	RawEntries      []acl.Entry
	ResolvedEntries []ResolvedEntry
	ExpandedRows    []identity.PermissionRow
	Folders         []identity.FolderPermission
	Warnings        []string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger replaces the default noop logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithThreadCount sets the worker pool size for the dispatched stages. One
// worker means strictly sequential, in-order processing.
func WithThreadCount(n int) Option {
	return func(p *Pipeline) {
		p.threadCount = n
	}
}

// WithBatchTimeout bounds each dispatched stage.
func WithBatchTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.batchTimeout = d
	}
}

// WithGroupExpansion toggles listing each group's direct members.
func WithGroupExpansion(enabled bool) Option {
	return func(p *Pipeline) {
		p.expandGroups = enabled
	}
}

// WithIgnoredDomains sets the domain prefixes stripped during deduplication.
func WithIgnoredDomains(domains []string) Option {
	return func(p *Pipeline) {
		p.ignoredDomains = domains
	}
}

// Pipeline wires the stages around one directory adapter and one cache set.
// A Pipeline is good for any number of runs; the cache set is rebuilt per
// run.
type Pipeline struct {
	dir            directory.Directory
	logger         logger.Logger
	threadCount    int
	batchTimeout   time.Duration
	expandGroups   bool
	ignoredDomains []string
}

func New(dir directory.Directory, opts ...Option) *Pipeline {
	p := &Pipeline{
		dir:          dir,
		logger:       logger.NewNoopLogger(),
		threadCount:  config.DefaultThreadCount,
		batchTimeout: config.DefaultBatchTimeout,
		expandGroups: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full pipeline over the given entries. Identity failures
// never fail a run: they surface as unresolved rows and warnings. The only
// errors Run returns are context cancellations.
func (p *Pipeline) Run(ctx context.Context, entries []acl.Entry) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Run", trace.WithAttributes(
		attribute.Int("entry_count", len(entries)),
		attribute.Int("thread_count", p.threadCount),
	))
	defer span.End()

	start := time.Now()
	caches := shared.NewCacheSet()
	result := &Result{RawEntries: entries}

	result.Warnings = append(result.Warnings, p.discover(ctx, caches, entries)...)

	resolved, warnings, err := p.resolve(ctx, caches, entries)
	result.ResolvedEntries = resolved
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		telemetry.TraceError(span, err)
		return result, err
	}

	principals, warnings, err := p.expand(ctx, caches, resolved)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		telemetry.TraceError(span, err)
		return result, err
	}

	rows := p.flatten(resolved, principals)
	deduped := p.dedupe(rows)
	result.ExpandedRows = deduped
	result.Folders = p.aggregate(deduped)

	p.logger.Info("pipeline complete",
		zap.Int("entries", len(entries)),
		zap.Int("rows", len(deduped)),
		zap.Int("folders", len(result.Folders)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("took", time.Since(start)),
	)

	return result, nil
}

func (p *Pipeline) dispatchOptions(name string) dispatcher.Options {
	return dispatcher.Options{
		Name:    name,
		Workers: p.threadCount,
		Timeout: p.batchTimeout,
		Logger:  p.logger,
	}
}

// stageInterrupted splits a dispatcher error into a recorded warning (batch
// timeout, the run continues on partial results) or a real interruption.
func stageInterrupted(name string, err error, completed, total int) (string, error) {
	if errors.Is(err, dispatcher.ErrBatchTimeout) {
		return fmt.Sprintf("%s stage timed out: %d of %d items completed", name, completed, total), nil
	}
	return "", err
}

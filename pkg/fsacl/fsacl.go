// Package fsacl reads folder access-control entries from the target
// filesystem. The pipeline only ever sees the Scanner output; the platform
// specifics stay behind the TargetResolver and EntryReader interfaces.
package fsacl

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/logger"
)

// TargetResolver maps a configured path to the physical folders behind it,
// expanding DFS namespaces and UNC referrals.
type TargetResolver interface {
	ResolveTargets(ctx context.Context, path string) ([]string, error)
}

// EntryReader lists the access-control entries of a folder and, depending on
// recurseLevels, of the folders below it: 0 reads the folder alone, a
// positive n descends n levels, -1 descends without bound.
//
// A read failure at the given folder itself is an error; unreadable folders
// further down are skipped.
type EntryReader interface {
	ListAccessEntries(ctx context.Context, folder string, recurseLevels int) ([]acl.Entry, error)
}

// Source bundles both collaborator roles.
type Source interface {
	TargetResolver
	EntryReader
}

// PassthroughResolver treats every configured path as already physical.
type PassthroughResolver struct{}

var _ TargetResolver = (*PassthroughResolver)(nil)

func (PassthroughResolver) ResolveTargets(ctx context.Context, path string) ([]string, error) {
	return []string{path}, nil
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

func WithLogger(l logger.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = l
	}
}

// WithRecurseLevels sets how deep below each target the reader descends.
func WithRecurseLevels(levels int) ScannerOption {
	return func(s *Scanner) {
		s.recurseLevels = levels
	}
}

// Scanner walks the configured roots and collects their access-control
// entries. Reading a root through its resolved form can come back empty or
// fail on some share roots, so the scanner retries the originally supplied
// path before giving up; only both reads failing makes the root fatal.
type Scanner struct {
	resolver      TargetResolver
	reader        EntryReader
	logger        logger.Logger
	recurseLevels int
}

func NewScanner(resolver TargetResolver, reader EntryReader, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		resolver: resolver,
		reader:   reader,
		logger:   logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan reads every root in order. Warnings carry the non-fatal degradations;
// the returned error is the fatal case of a root that could not be read in
// either form.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]acl.Entry, []string, error) {
	var entries []acl.Entry
	var warnings []string

	for _, root := range roots {
		read, rootWarnings, err := s.scanRoot(ctx, root)
		warnings = append(warnings, rootWarnings...)
		if err != nil {
			return nil, warnings, err
		}
		s.logger.Info("root scanned",
			zap.String("root", root),
			zap.Int("entries", len(read)),
		)
		entries = append(entries, read...)
	}

	return entries, warnings, nil
}

func (s *Scanner) scanRoot(ctx context.Context, root string) ([]acl.Entry, []string, error) {
	var warnings []string

	targets, err := s.resolver.ResolveTargets(ctx, root)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("target resolution for %s failed: %v", root, err))
		s.logger.Warn("target resolution failed, reading the configured path directly",
			zap.String("root", root),
			zap.Error(err),
		)
		targets = nil
	}
	if len(targets) == 0 {
		targets = []string{root}
	}

	var entries []acl.Entry
	for _, target := range targets {
		read, err := s.reader.ListAccessEntries(ctx, target, s.recurseLevels)

		if (err != nil || len(read) == 0) && !strings.EqualFold(target, root) {
			s.logger.Warn("resolved target yielded nothing, retrying the configured path",
				zap.String("root", root),
				zap.String("target", target),
				zap.Error(err),
			)
			read, err = s.reader.ListAccessEntries(ctx, root, s.recurseLevels)
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("access list for %s: %w", root, err)
		}

		entries = append(entries, read...)
	}

	return entries, warnings, nil
}

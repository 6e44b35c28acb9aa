package fsacl

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/testutils"
)

type stubResolver struct {
	targets map[string][]string
	err     error
}

func (r stubResolver) ResolveTargets(_ context.Context, path string) ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	if targets, ok := r.targets[path]; ok {
		return targets, nil
	}
	return []string{path}, nil
}

type stubReader struct {
	entries map[string][]acl.Entry
	errs    map[string]error
	reads   []string
}

func (r *stubReader) ListAccessEntries(_ context.Context, folder string, _ int) ([]acl.Entry, error) {
	r.reads = append(r.reads, folder)
	if err, ok := r.errs[folder]; ok {
		return nil, err
	}
	return r.entries[folder], nil
}

func readEntry(path, ref string) acl.Entry {
	return acl.Entry{
		SourcePath:        path,
		IdentityReference: ref,
		Access:            acl.Allow,
		Rights:            acl.RightsRead,
	}
}

func TestScanReadsResolvedTarget(t *testing.T) {
	resolver := stubResolver{targets: map[string][]string{
		`\\dfs\share`: {`\\fs01\share$`},
	}}
	reader := &stubReader{entries: map[string][]acl.Entry{
		`\\fs01\share$`: {readEntry(`\\fs01\share$`, `CONTOSO\alice`)},
	}}

	s := NewScanner(resolver, reader)
	entries, warnings, err := s.Scan(context.Background(), []string{`\\dfs\share`})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Len(t, entries, 1)
	require.Equal(t, []string{`\\fs01\share$`}, reader.reads)
}

func TestScanRetriesOriginalPathWhenResolvedReadFails(t *testing.T) {
	resolver := stubResolver{targets: map[string][]string{
		`\\dfs\share`: {`\\fs01\share$`},
	}}
	reader := &stubReader{
		entries: map[string][]acl.Entry{
			`\\dfs\share`: {readEntry(`\\dfs\share`, `CONTOSO\alice`)},
		},
		errs: map[string]error{
			`\\fs01\share$`: errors.New("access denied"),
		},
	}

	s := NewScanner(resolver, reader)
	entries, _, err := s.Scan(context.Background(), []string{`\\dfs\share`})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, `\\dfs\share`, entries[0].SourcePath)
	require.Equal(t, []string{`\\fs01\share$`, `\\dfs\share`}, reader.reads)
}

func TestScanRetriesOriginalPathWhenResolvedReadIsEmpty(t *testing.T) {
	resolver := stubResolver{targets: map[string][]string{
		`\\dfs\share`: {`\\fs01\share$`},
	}}
	reader := &stubReader{entries: map[string][]acl.Entry{
		`\\fs01\share$`: nil,
		`\\dfs\share`:   {readEntry(`\\dfs\share`, `CONTOSO\alice`)},
	}}

	s := NewScanner(resolver, reader)
	entries, _, err := s.Scan(context.Background(), []string{`\\dfs\share`})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{`\\fs01\share$`, `\\dfs\share`}, reader.reads)
}

func TestScanFatalWhenBothReadsFail(t *testing.T) {
	resolver := stubResolver{targets: map[string][]string{
		`\\dfs\share`: {`\\fs01\share$`},
	}}
	reader := &stubReader{errs: map[string]error{
		`\\fs01\share$`: errors.New("access denied"),
		`\\dfs\share`:   errors.New("access denied"),
	}}

	s := NewScanner(resolver, reader)
	_, _, err := s.Scan(context.Background(), []string{`\\dfs\share`})
	require.ErrorContains(t, err, `access list for \\dfs\share`)
}

func TestScanFatalWhenUnresolvedRootFails(t *testing.T) {
	reader := &stubReader{errs: map[string]error{
		`\\srv\share`: errors.New("access denied"),
	}}

	s := NewScanner(PassthroughResolver{}, reader)
	_, _, err := s.Scan(context.Background(), []string{`\\srv\share`})
	require.Error(t, err)

	// The path only has one form, so there is nothing to retry.
	require.Equal(t, []string{`\\srv\share`}, reader.reads)
}

func TestScanWarnsWhenResolutionFailsAndReadsConfiguredPath(t *testing.T) {
	resolver := stubResolver{err: errors.New("dfs referral failed")}
	reader := &stubReader{entries: map[string][]acl.Entry{
		`\\dfs\share`: {readEntry(`\\dfs\share`, `CONTOSO\alice`)},
	}}

	s := NewScanner(resolver, reader)
	entries, warnings, err := s.Scan(context.Background(), []string{`\\dfs\share`})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "dfs referral failed")
}

func TestScanCollectsAcrossRoots(t *testing.T) {
	reader := &stubReader{entries: map[string][]acl.Entry{
		`\\srv\a`: {readEntry(`\\srv\a`, `CONTOSO\alice`)},
		`\\srv\b`: {readEntry(`\\srv\b`, `CONTOSO\bob`), readEntry(`\\srv\b`, "Everyone")},
	}}

	s := NewScanner(PassthroughResolver{}, reader)
	entries, warnings, err := s.Scan(context.Background(), []string{`\\srv\a`, `\\srv\b`})
	require.NoError(t, err)
	require.Empty(t, warnings)

	want := []acl.Entry{
		readEntry(`\\srv\a`, `CONTOSO\alice`),
		readEntry(`\\srv\b`, `CONTOSO\bob`),
		readEntry(`\\srv\b`, "Everyone"),
	}
	if diff := cmp.Diff(want, entries, testutils.EntryCmpTransformer); diff != "" {
		t.Errorf("collected entries mismatch (-want +got):\n%s", diff)
	}
}

func TestPassthroughResolver(t *testing.T) {
	targets, err := PassthroughResolver{}.ResolveTargets(context.Background(), `D:\data`)
	require.NoError(t, err)
	require.Equal(t, []string{`D:\data`}, targets)
}

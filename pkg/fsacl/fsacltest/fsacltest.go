// Package fsacltest provides a scripted in-memory filesystem source. Folder
// trees live in an afero memory filesystem so recursion behaves like the real
// reader; the access entries per folder are scripted verbatim.
package fsacltest

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/fsacl"
)

// Source implements fsacl.Source from scripted data.
type Source struct {
	mu sync.Mutex

	fs      afero.Fs
	targets map[string][]string
	entries map[string][]acl.Entry
	errs    map[string]error
	calls   map[string]int
}

var _ fsacl.Source = (*Source)(nil)

func New() *Source {
	return &Source{
		fs:      afero.NewMemMapFs(),
		targets: map[string][]string{},
		entries: map[string][]acl.Entry{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

// AddFolder creates the folder (and its parents) and scripts its access
// entries. Entries without a SourcePath get the folder path.
func (s *Source) AddFolder(folder string, entries ...acl.Entry) *Source {
	key := normalize(folder)
	_ = s.fs.MkdirAll(key, 0o755)

	for _, e := range entries {
		if e.SourcePath == "" {
			e.SourcePath = folder
		}
		s.entries[key] = append(s.entries[key], e)
	}
	return s
}

// MapTarget scripts a ResolveTargets result. Unmapped paths resolve to
// themselves.
func (s *Source) MapTarget(path string, targets ...string) *Source {
	s.targets[normalize(path)] = targets
	return s
}

// FailWith injects an error for one operation and path.
func (s *Source) FailWith(op, path string, err error) *Source {
	s.errs[op+":"+normalize(path)] = err
	return s
}

// Calls returns how many times an operation ran, total per operation or per
// path ("ListAccessEntries:<path>").
func (s *Source) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, p, ok := strings.Cut(key, ":")
	if ok {
		return s.calls[op+":"+normalize(p)]
	}
	return s.calls[key]
}

func (s *Source) ResolveTargets(ctx context.Context, p string) ([]string, error) {
	if err := s.observe("ResolveTargets", normalize(p)); err != nil {
		return nil, err
	}
	if targets, ok := s.targets[normalize(p)]; ok {
		return targets, nil
	}
	return []string{p}, nil
}

func (s *Source) ListAccessEntries(ctx context.Context, folder string, recurseLevels int) ([]acl.Entry, error) {
	if err := s.observe("ListAccessEntries", normalize(folder)); err != nil {
		return nil, err
	}

	folders, err := s.foldersWithin(normalize(folder), recurseLevels)
	if err != nil {
		return nil, err
	}

	var entries []acl.Entry
	for _, f := range folders {
		entries = append(entries, s.entries[f]...)
	}
	return entries, nil
}

// foldersWithin walks the memory filesystem the way the production reader
// walks the target: the folder itself, then children in name order down to
// the requested level, -1 meaning unbounded.
func (s *Source) foldersWithin(folder string, levels int) ([]string, error) {
	exists, err := afero.DirExists(s.fs, folder)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("folder %s does not exist", folder)
	}

	folders := []string{folder}
	if levels == 0 {
		return folders, nil
	}
	next := levels - 1
	if levels < 0 {
		next = -1
	}

	infos, err := afero.ReadDir(s.fs, folder)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		below, err := s.foldersWithin(path.Join(folder, info.Name()), next)
		if err != nil {
			return nil, err
		}
		folders = append(folders, below...)
	}
	return folders, nil
}

func (s *Source) observe(op, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[op]++
	s.calls[op+":"+key]++

	if err, ok := s.errs[op+":"+key]; ok {
		return err
	}
	if err, ok := s.errs[op+":*"]; ok {
		return err
	}
	return nil
}

// normalize maps a UNC or Windows path onto the slash form the memory
// filesystem stores.
func normalize(p string) string {
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

package pipeline

import (
	"sort"
	"strings"

	"github.com/emirpasic/gods/trees/redblacktree"

	"github.com/aclscan/aclscan/pkg/identity"
)

// aggregate regroups the deduplicated rows by the folder each access entry
// was read from. Folders come back sorted by path and rows within a folder
// sorted by account name, so two runs over the same data render identical
// artifacts. Every (folder, account, entry) triple present in the input
// appears in exactly one folder group.
func (p *Pipeline) aggregate(rows []identity.PermissionRow) []identity.FolderPermission {
	folders := redblacktree.NewWithStringComparator()

	type accum struct {
		index map[string]int
		rows  []identity.PermissionRow
	}

	for _, row := range rows {
		for _, access := range row.Access {
			path := access.Entry.SourcePath

			var a *accum
			if node, ok := folders.Get(path); ok {
				a = node.(*accum)
			} else {
				a = &accum{index: make(map[string]int)}
				folders.Put(path, a)
			}

			key := strings.ToLower(row.Account.Name)
			i, ok := a.index[key]
			if !ok {
				i = len(a.rows)
				a.index[key] = i
				a.rows = append(a.rows, identity.PermissionRow{Account: row.Account})
			}
			a.rows[i].Access = append(a.rows[i].Access, access)
		}
	}

	out := make([]identity.FolderPermission, 0, folders.Size())
	for _, key := range folders.Keys() {
		node, _ := folders.Get(key)
		a := node.(*accum)

		sort.Slice(a.rows, func(i, j int) bool {
			return strings.ToLower(a.rows[i].Account.Name) < strings.ToLower(a.rows[j].Account.Name)
		})

		out = append(out, identity.FolderPermission{
			Path: key.(string),
			Rows: a.rows,
		})
	}

	return out
}

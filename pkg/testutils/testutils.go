// Package testutils contains code that is useful in tests.
package testutils

import (
	"math/rand"
	"sort"

	"github.com/google/go-cmp/cmp"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/identity"
)

const (
	AllChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	// EntryCmpTransformer sorts access control entries before comparing them,
	// so stages whose completion order is not pinned can still be checked
	// against a plain expected slice.
	EntryCmpTransformer = cmp.Transformer("Sort", func(in []acl.Entry) []acl.Entry {
		out := append([]acl.Entry(nil), in...) // Copy input to avoid mutating it

		sort.SliceStable(out, func(i, j int) bool {
			if out[i].SourcePath != out[j].SourcePath {
				return out[i].SourcePath < out[j].SourcePath
			}

			if out[i].IdentityReference != out[j].IdentityReference {
				return out[i].IdentityReference < out[j].IdentityReference
			}

			if out[i].Access != out[j].Access {
				return out[i].Access < out[j].Access
			}

			return out[i].Rights < out[j].Rights
		})

		return out
	})

	// RowCmpTransformer sorts permission rows by account before comparing them.
	RowCmpTransformer = cmp.Transformer("Sort", func(in []identity.PermissionRow) []identity.PermissionRow {
		out := append([]identity.PermissionRow(nil), in...) // Copy input to avoid mutating it

		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Account.Name != out[j].Account.Name {
				return out[i].Account.Name < out[j].Account.Name
			}

			return out[i].Account.SID < out[j].Account.SID
		})

		return out
	})

	// AccessCmpTransformer sorts access grants by source folder, raw
	// reference, and attribution before comparing them.
	AccessCmpTransformer = cmp.Transformer("Sort", func(in []identity.Access) []identity.Access {
		out := append([]identity.Access(nil), in...) // Copy input to avoid mutating it

		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Entry.SourcePath != out[j].Entry.SourcePath {
				return out[i].Entry.SourcePath < out[j].Entry.SourcePath
			}

			if out[i].Entry.IdentityReference != out[j].Entry.IdentityReference {
				return out[i].Entry.IdentityReference < out[j].Entry.IdentityReference
			}

			return out[i].Via < out[j].Via
		})

		return out
	})
)

// Shuffle returns the input but with order of elements randomized.
func Shuffle(entries []acl.Entry) []acl.Entry {
	copied := append([]acl.Entry(nil), entries...)
	rand.Shuffle(len(copied), func(i, j int) {
		copied[i], copied[j] = copied[j], copied[i]
	})
	return copied
}

func CreateRandomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = AllChars[rand.Intn(len(AllChars))]
	}
	return string(b)
}

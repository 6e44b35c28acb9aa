package pipeline

import (
	"strings"

	"github.com/aclscan/aclscan/pkg/identity"
)

// flatten re-expresses each expanded principal as one account-permission row
// per originating entry: the principal's own row always, plus one row per
// direct member when the principal is an expanded group. Pure and cheap, so
// it never fans out even when the directory-bound stages do.
func (p *Pipeline) flatten(resolved []ResolvedEntry, principals map[string]*identity.Principal) []identity.PermissionRow {
	rows := make([]identity.PermissionRow, 0, len(resolved))

	for _, re := range resolved {
		principal, ok := principals[strings.ToLower(re.Identity.Name)]
		if !ok {
			// Expansion was abandoned for this identity (stage
			// timeout); degrade to a shell rather than dropping the
			// entry.
			principal = identity.Shell(re.Identity)
		}

		rows = append(rows, identity.PermissionRow{
			Account: principal,
			Access:  []identity.Access{{Entry: re.Entry}},
		})

		if !principal.Type.IsGroup() || !p.expandGroups {
			continue
		}

		// The group row above stays in the folder view; member rows
		// carry the group name as their attribution.
		for _, member := range principal.Members {
			rows = append(rows, identity.PermissionRow{
				Account: member,
				Access:  []identity.Access{{Entry: re.Entry, Via: principal.Name}},
			})
		}
	}

	return rows
}

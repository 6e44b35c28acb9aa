package pipeline

import (
	"strings"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/identity"
)

// dedupe merges rows whose account names are identical once any ignored
// domain prefix is stripped, so the same physical identity reachable through
// several trusted domains is counted once. Access lists are unioned; the row
// whose principal carries directory attributes becomes the representative.
// Running dedupe on its own output changes nothing.
func (p *Pipeline) dedupe(rows []identity.PermissionRow) []identity.PermissionRow {
	out := make([]identity.PermissionRow, 0, len(rows))
	index := make(map[string]int, len(rows))

	for _, row := range rows {
		key := p.canonicalKey(row.Account.Name)

		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, identity.PermissionRow{
				Account: p.displayAccount(row.Account),
				Access:  append([]identity.Access(nil), row.Access...),
			})
			continue
		}

		out[i].Access = append(out[i].Access, row.Access...)
		if len(out[i].Account.Attributes) == 0 && len(row.Account.Attributes) > 0 {
			out[i].Account = p.displayAccount(row.Account)
		}
	}

	return out
}

// canonicalKey folds case and strips any ignored-domain prefix.
func (p *Pipeline) canonicalKey(name string) string {
	domain, account := acl.SplitQualifiedName(name)
	for _, ignored := range p.ignoredDomains {
		if strings.EqualFold(domain, ignored) {
			return strings.ToLower(account)
		}
	}
	return strings.ToLower(name)
}

// displayAccount rewrites the visible name the same way canonicalKey keys it:
// a merged CONTOSO1\svc and CONTOSO2\svc pair reports simply as svc. The
// principal is copied so rows sharing it elsewhere keep their name.
func (p *Pipeline) displayAccount(account *identity.Principal) *identity.Principal {
	domain, name := acl.SplitQualifiedName(account.Name)
	for _, ignored := range p.ignoredDomains {
		if strings.EqualFold(domain, ignored) {
			clone := *account
			clone.Name = name
			return &clone
		}
	}
	return account
}

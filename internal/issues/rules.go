package issues

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/identity"
)

// groupNamingRule flags group rows whose bare name fails the configured
// naming convention. The domain prefix is stripped before matching so one
// pattern covers every domain.
type groupNamingRule struct {
	pattern *regexp.Regexp
}

func newGroupNamingRule(pattern string) (groupNamingRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return groupNamingRule{}, fmt.Errorf("group name pattern: %w", err)
	}
	return groupNamingRule{pattern: re}, nil
}

func (groupNamingRule) ID() string { return "group-naming" }

func (r groupNamingRule) Apply(folder string, row identity.PermissionRow) []Issue {
	if !row.Account.Type.IsGroup() {
		return nil
	}
	_, name := acl.SplitQualifiedName(row.Account.Name)
	if r.pattern.MatchString(name) {
		return nil
	}
	return []Issue{{
		FolderPath: folder,
		Account:    row.Account.Name,
		RuleID:     r.ID(),
		Severity:   SeverityWarning,
		Message:    fmt.Sprintf("group name %q does not match naming convention %q", name, r.pattern),
	}}
}

// allowDenyConflictRule flags an account holding both an allow and a deny
// entry on the same folder.
type allowDenyConflictRule struct{}

func (allowDenyConflictRule) ID() string { return "allow-deny-conflict" }

func (r allowDenyConflictRule) Apply(folder string, row identity.PermissionRow) []Issue {
	var allow, deny bool
	for _, access := range row.Access {
		switch access.Entry.Access {
		case acl.Allow:
			allow = true
		case acl.Deny:
			deny = true
		}
	}
	if !allow || !deny {
		return nil
	}
	return []Issue{{
		FolderPath: folder,
		Account:    row.Account.Name,
		RuleID:     r.ID(),
		Severity:   SeverityError,
		Message:    "account holds both allow and deny entries on this folder",
	}}
}

// inheritanceConflictRule flags an account whose inherited and explicit
// entries on the same folder disagree on access type, which usually means a
// local override is fighting the parent folder.
type inheritanceConflictRule struct{}

func (inheritanceConflictRule) ID() string { return "inheritance-conflict" }

func (r inheritanceConflictRule) Apply(folder string, row identity.PermissionRow) []Issue {
	var inherited, explicit [2]bool
	for _, access := range row.Access {
		if access.Entry.IsInherited {
			inherited[access.Entry.Access] = true
		} else {
			explicit[access.Entry.Access] = true
		}
	}
	conflict := (inherited[acl.Allow] && explicit[acl.Deny]) ||
		(inherited[acl.Deny] && explicit[acl.Allow])
	if !conflict {
		return nil
	}
	return []Issue{{
		FolderPath: folder,
		Account:    row.Account.Name,
		RuleID:     r.ID(),
		Severity:   SeverityWarning,
		Message:    "inherited and explicit entries disagree on access type",
	}}
}

// unresolvedSIDRule flags rows whose identity never resolved to a directory
// account, so the report shows a raw SID where a name should be.
type unresolvedSIDRule struct{}

func (unresolvedSIDRule) ID() string { return "unresolved-sid" }

func (r unresolvedSIDRule) Apply(folder string, row identity.PermissionRow) []Issue {
	if row.Account.Status != identity.StatusUnresolvedSID {
		return nil
	}
	return []Issue{{
		FolderPath: folder,
		Account:    row.Account.Name,
		RuleID:     r.ID(),
		Severity:   SeverityWarning,
		Message:    fmt.Sprintf("identity %s did not resolve to a directory account", row.Account.Name),
	}}
}

// broadPrincipals are the well-known captions that grant access to
// effectively every authenticated session.
var broadPrincipals = map[string]struct{}{
	"everyone":                         {},
	`nt authority\authenticated users`: {},
	`builtin\users`:                    {},
}

// broadFullControlRule flags FullControl granted to one of the broad
// well-known principals.
type broadFullControlRule struct{}

func (broadFullControlRule) ID() string { return "broad-full-control" }

func (r broadFullControlRule) Apply(folder string, row identity.PermissionRow) []Issue {
	if _, ok := broadPrincipals[strings.ToLower(row.Account.Name)]; !ok {
		return nil
	}
	for _, access := range row.Access {
		if access.Entry.Access == acl.Allow && access.Entry.Rights.Has(acl.RightsFullControl) {
			return []Issue{{
				FolderPath: folder,
				Account:    row.Account.Name,
				RuleID:     r.ID(),
				Severity:   SeverityError,
				Message:    fmt.Sprintf("%s holds FullControl on this folder", row.Account.Name),
			}}
		}
	}
	return nil
}

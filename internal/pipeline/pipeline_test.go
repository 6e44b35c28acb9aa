package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/directory"
	"github.com/aclscan/aclscan/pkg/directory/directorytest"
	"github.com/aclscan/aclscan/pkg/identity"
	"github.com/aclscan/aclscan/pkg/testutils"
)

func allowEntry(path, ref string, rights acl.Rights) acl.Entry {
	return acl.Entry{
		SourcePath:        path,
		IdentityReference: ref,
		Access:            acl.Allow,
		Rights:            rights,
	}
}

// contosoDirectory scripts the forest behind most tests: one server, one
// domain, two users, and a group with bob as its only direct member.
func contosoDirectory() *directorytest.Fake {
	f := directorytest.New()
	f.AddServer(&directory.Server{DNSName: "srv", NetBIOS: "SRV"})
	f.AddDomain(&directory.Domain{
		SID:     "S-1-5-21-100-200-300",
		NetBIOS: "CONTOSO",
		FQDN:    "contoso.com",
	})
	f.AddPrincipal("CONTOSO", directorytest.User("alice", "S-1-5-21-100-200-300-1001"))
	f.AddPrincipal("CONTOSO", directorytest.User("bob", "S-1-5-21-100-200-300-1002"))
	f.AddPrincipal("CONTOSO", directorytest.Group("Admins", "S-1-5-21-100-200-300-512"))
	f.AddMember("Admins", directorytest.User("bob", "S-1-5-21-100-200-300-1002"))
	return f
}

func TestRunFlattensGroupMembersAlongsideGroupRow(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := contosoDirectory()
	p := New(fake, WithThreadCount(4))

	entries := []acl.Entry{
		allowEntry(`\\srv\share`, `CONTOSO\alice`, acl.RightsRead),
		allowEntry(`\\srv\share`, `CONTOSO\Admins`, acl.RightsFullControl),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)
	require.Empty(t, result.Warnings)

	require.Len(t, result.ExpandedRows, 3)

	byName := map[string]identity.PermissionRow{}
	for _, row := range result.ExpandedRows {
		byName[row.Account.Name] = row
	}

	alice := byName[`CONTOSO\alice`]
	require.Len(t, alice.Access, 1)
	require.Equal(t, acl.RightsRead, alice.Access[0].Entry.Rights)
	require.True(t, alice.Access[0].Direct())

	admins := byName[`CONTOSO\Admins`]
	require.Equal(t, identity.TypeGroup, admins.Account.Type)
	require.Len(t, admins.Access, 1)
	require.Equal(t, acl.RightsFullControl, admins.Access[0].Entry.Rights)
	require.True(t, admins.Access[0].Direct())

	bob := byName[`CONTOSO\bob`]
	require.Len(t, bob.Access, 1)
	require.Equal(t, acl.RightsFullControl, bob.Access[0].Entry.Rights)
	require.Equal(t, `CONTOSO\Admins`, bob.Access[0].Via)

	require.Len(t, result.Folders, 1)
	require.Equal(t, `\\srv\share`, result.Folders[0].Path)

	var names []string
	for _, row := range result.Folders[0].Rows {
		names = append(names, row.Account.Name)
	}
	require.Equal(t, []string{`CONTOSO\Admins`, `CONTOSO\alice`, `CONTOSO\bob`}, names)
}

func TestRunMergesSameNamedAccountsAcrossIgnoredDomains(t *testing.T) {
	fake := directorytest.New()
	fake.AddServer(&directory.Server{DNSName: "srv", NetBIOS: "SRV"})
	fake.AddDomain(&directory.Domain{SID: "S-1-5-21-1-1-1", NetBIOS: "CONTOSO1", FQDN: "contoso1.com"})
	fake.AddDomain(&directory.Domain{SID: "S-1-5-21-2-2-2", NetBIOS: "CONTOSO2", FQDN: "contoso2.com"})
	fake.AddPrincipal("CONTOSO1", directorytest.User("svc", "S-1-5-21-1-1-1-1103"))
	fake.AddPrincipal("CONTOSO2", directorytest.User("svc", "S-1-5-21-2-2-2-1103"))

	p := New(fake, WithIgnoredDomains([]string{"CONTOSO1", "CONTOSO2"}))

	entries := []acl.Entry{
		allowEntry(`\\srv\share`, `CONTOSO1\svc`, acl.RightsRead),
		allowEntry(`\\srv\share`, `CONTOSO2\svc`, acl.RightsModify),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	require.Len(t, result.ExpandedRows, 1)
	merged := result.ExpandedRows[0]
	require.Equal(t, "svc", merged.Account.Name)

	wantAccess := []identity.Access{
		{Entry: allowEntry(`\\srv\share`, `CONTOSO1\svc`, acl.RightsRead)},
		{Entry: allowEntry(`\\srv\share`, `CONTOSO2\svc`, acl.RightsModify)},
	}
	if diff := cmp.Diff(wantAccess, merged.Access, testutils.AccessCmpTransformer); diff != "" {
		t.Errorf("merged access mismatch (-want +got):\n%s", diff)
	}
}

func TestRunResolutionTotality(t *testing.T) {
	fake := contosoDirectory()
	p := New(fake)

	entries := []acl.Entry{
		allowEntry(`\\srv\share`, "S-1-5-21-999-999-999-1234", acl.RightsRead),
		allowEntry(`\\srv\share`, "S-1-5-80-956008885-3418522649", acl.RightsWrite),
		allowEntry(`\\srv\share`, `CONTOSO\alice`, acl.RightsRead),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	// Every entry yields exactly one resolution, never a dropped item.
	require.Len(t, result.ResolvedEntries, len(entries))

	statuses := map[string]identity.Status{}
	for _, re := range result.ResolvedEntries {
		statuses[re.Entry.IdentityReference] = re.Identity.Status
	}
	require.Equal(t, identity.StatusUnresolvedSID, statuses["S-1-5-21-999-999-999-1234"])
	require.Equal(t, identity.StatusUnresolvedSID, statuses["S-1-5-80-956008885-3418522649"])
	require.Equal(t, identity.StatusResolved, statuses[`CONTOSO\alice`])

	// Unresolved identities still produce report rows.
	require.Len(t, result.ExpandedRows, 3)
}

func TestRunExpandsWellKnownSIDsFromCaptionTable(t *testing.T) {
	fake := contosoDirectory()
	p := New(fake)

	entries := []acl.Entry{
		allowEntry(`\\srv\share`, "S-1-5-18", acl.RightsFullControl),
		allowEntry(`\\srv\share`, "S-1-1-0", acl.RightsRead),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	names := map[string]identity.Status{}
	for _, re := range result.ResolvedEntries {
		names[re.Identity.Name] = re.Identity.Status
	}
	require.Equal(t, identity.StatusResolved, names[`NT AUTHORITY\SYSTEM`])
	require.Equal(t, identity.StatusResolved, names["Everyone"])

	// The caption table answers without any directory account query.
	require.Zero(t, fake.Calls("AccountBySID"))
}

func TestRunGroupExpansionStopsAtOneLevel(t *testing.T) {
	fake := contosoDirectory()
	// Admins gains a nested group member.
	fake.AddPrincipal("CONTOSO", directorytest.Group("Operators", "S-1-5-21-100-200-300-513"))
	fake.AddMember("Operators", directorytest.User("alice", "S-1-5-21-100-200-300-1001"))
	fake.AddMember("Admins", directorytest.Group("Operators", "S-1-5-21-100-200-300-513"))

	p := New(fake)
	entries := []acl.Entry{
		allowEntry(`\\srv\share`, `CONTOSO\Admins`, acl.RightsFullControl),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	byName := map[string]identity.PermissionRow{}
	for _, row := range result.ExpandedRows {
		byName[row.Account.Name] = row
	}

	// The nested group is listed as a member row but its own members are
	// not pulled in: alice gets no row.
	operators, ok := byName[`CONTOSO\Operators`]
	require.True(t, ok)
	require.Equal(t, identity.TypeGroup, operators.Account.Type)
	require.Empty(t, operators.Account.Members)
	require.NotContains(t, byName, `CONTOSO\alice`)

	// Only the referenced group was expanded.
	require.Equal(t, 1, fake.Calls("ListGroupMembers"))
	require.Equal(t, 1, fake.Calls("ListGroupMembers:admins"))
}

func TestRunGroupExpansionDisabled(t *testing.T) {
	fake := contosoDirectory()
	p := New(fake, WithGroupExpansion(false))

	entries := []acl.Entry{
		allowEntry(`\\srv\share`, `CONTOSO\Admins`, acl.RightsFullControl),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	require.Len(t, result.ExpandedRows, 1)
	require.Equal(t, `CONTOSO\Admins`, result.ExpandedRows[0].Account.Name)
	require.Zero(t, fake.Calls("ListGroupMembers"))
}

func TestRunResolvesEachDistinctReferenceOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := contosoDirectory()
	p := New(fake, WithThreadCount(8))

	entries := make([]acl.Entry, 0, 60)
	for i := 0; i < 60; i++ {
		entries = append(entries, allowEntry(fmt.Sprintf(`\\srv\share\sub%d`, i), `CONTOSO\alice`, acl.RightsRead))
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, result.ResolvedEntries, 60)

	// Sixty concurrent references to the same identity hit the directory
	// once for the account and once for the principal metadata.
	require.Equal(t, 1, fake.Calls("AccountByName"))
	require.Equal(t, 1, fake.Calls("LookupPrincipal"))
}

func TestRunDegradesWhenServerDiscoveryFails(t *testing.T) {
	fake := contosoDirectory()
	fake.FailWith("DiscoverServer", "srv", directory.ErrUnreachable)

	p := New(fake)
	entries := []acl.Entry{
		allowEntry(`\\srv\share`, `CONTOSO\alice`, acl.RightsRead),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)
	require.NotEmpty(t, result.Warnings)
	require.Contains(t, result.Warnings[0], "srv")

	// The run still resolves what it can.
	require.Len(t, result.ResolvedEntries, 1)
	require.Equal(t, identity.StatusResolved, result.ResolvedEntries[0].Identity.Status)
}

func TestRunDegradesWhenTrustEnumerationFails(t *testing.T) {
	fake := contosoDirectory()
	fake.FailWith("TrustedDomains", "", directory.ErrUnreachable)

	p := New(fake)
	entries := []acl.Entry{
		allowEntry(`\\srv\share`, `CONTOSO\alice`, acl.RightsRead),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	var found bool
	for _, w := range result.Warnings {
		if w == fmt.Sprintf("trusted domain enumeration failed: %v", directory.ErrUnreachable) {
			found = true
		}
	}
	require.True(t, found)
	require.Len(t, result.ResolvedEntries, 1)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(contosoDirectory())
	_, err := p.Run(ctx, []acl.Entry{
		allowEntry(`\\srv\share`, `CONTOSO\alice`, acl.RightsRead),
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDedupeIsIdempotent(t *testing.T) {
	p := New(nil, WithIgnoredDomains([]string{"CONTOSO1", "CONTOSO2"}))

	entry := allowEntry(`\\srv\share`, `CONTOSO1\svc`, acl.RightsRead)
	rows := []identity.PermissionRow{
		{
			Account: &identity.Principal{Name: `CONTOSO1\svc`, Type: identity.TypeUser},
			Access:  []identity.Access{{Entry: entry}},
		},
		{
			Account: &identity.Principal{
				Name:       `CONTOSO2\svc`,
				Type:       identity.TypeUser,
				Attributes: map[string]string{"description": "service account"},
			},
			Access: []identity.Access{{Entry: allowEntry(`\\srv\share`, `CONTOSO2\svc`, acl.RightsModify)}},
		},
		{
			Account: &identity.Principal{Name: `FABRIKAM\svc`, Type: identity.TypeUser},
			Access:  []identity.Access{{Entry: allowEntry(`\\srv\share`, `FABRIKAM\svc`, acl.RightsRead)}},
		},
	}

	once := p.dedupe(rows)
	require.Len(t, once, 2)

	// The richer principal wins as representative, with the prefix
	// stripped for display.
	require.Equal(t, "svc", once[0].Account.Name)
	require.Equal(t, "service account", once[0].Account.Attributes["description"])
	require.Len(t, once[0].Access, 2)

	// FABRIKAM is not ignored, so its row stays qualified.
	require.Equal(t, `FABRIKAM\svc`, once[1].Account.Name)

	twice := p.dedupe(once)
	require.Equal(t, once, twice)
}

func TestFlattenAggregateInverse(t *testing.T) {
	fake := contosoDirectory()
	p := New(fake)

	entries := []acl.Entry{
		allowEntry(`\\srv\share\finance`, `CONTOSO\alice`, acl.RightsRead),
		allowEntry(`\\srv\share\finance`, `CONTOSO\Admins`, acl.RightsFullControl),
		allowEntry(`\\srv\share\hr`, `CONTOSO\Admins`, acl.RightsModify),
		allowEntry(`\\srv\share\hr`, `CONTOSO\bob`, acl.RightsWrite),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	triple := func(folder, account string, access identity.Access) string {
		return fmt.Sprintf("%s|%s|%s|%v|%s", folder, account, access.Entry.Rights, access.Entry.Access, access.Via)
	}

	var fromRows []string
	for _, row := range result.ExpandedRows {
		for _, access := range row.Access {
			fromRows = append(fromRows, triple(access.Entry.SourcePath, row.Account.Name, access))
		}
	}

	var fromFolders []string
	for _, folder := range result.Folders {
		for _, row := range folder.Rows {
			for _, access := range row.Access {
				require.Equal(t, folder.Path, access.Entry.SourcePath)
				fromFolders = append(fromFolders, triple(folder.Path, row.Account.Name, access))
			}
		}
	}

	require.ElementsMatch(t, fromRows, fromFolders)

	// Folder order is sorted by path.
	require.Equal(t, `\\srv\share\finance`, result.Folders[0].Path)
	require.Equal(t, `\\srv\share\hr`, result.Folders[1].Path)
}

func TestRunFakeDirectoryMarksPrincipals(t *testing.T) {
	fake := directorytest.SampleForest()
	p := New(fake)

	entries := []acl.Entry{
		allowEntry(`\\fs01.contoso.com\finance`, `CONTOSO\alice`, acl.RightsRead),
		allowEntry(`\\fs01.contoso.com\finance`, `CONTOSO\grp-finance-rw`, acl.RightsModify),
	}

	result, err := p.Run(context.Background(), entries)
	require.NoError(t, err)

	byName := map[string]identity.PermissionRow{}
	for _, row := range result.ExpandedRows {
		byName[row.Account.Name] = row
	}

	require.Equal(t, identity.TypeFakeUser, byName[`CONTOSO\alice`].Account.Type)
	require.Equal(t, identity.StatusFake, byName[`CONTOSO\alice`].Account.Status)
	require.Equal(t, identity.TypeFakeGroup, byName[`CONTOSO\grp-finance-rw`].Account.Type)
	require.Equal(t, identity.TypeFakeUser, byName[`CONTOSO\bob`].Account.Type)
}

package directory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := map[string]struct {
		class    string
		expected Kind
	}{
		"user":        {"user", KindUser},
		"group":       {"group", KindGroup},
		"computer":    {"computer", KindComputer},
		"fake_user":   {"fakeUser", KindFakeUser},
		"fake_group":  {"fakeGroup", KindFakeGroup},
		"case_folded": {"GROUP", KindGroup},
		"unknown":     {"inetOrgPerson", KindUser},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.expected, KindOf(test.class))
		})
	}
}

func TestEntryAccessors(t *testing.T) {
	e := &Entry{
		Path:        "CN=Admins,CN=Users,DC=contoso,DC=com",
		SchemaClass: "group",
		Attributes: map[string][]string{
			"sAMAccountName": {"Admins"},
			"objectSid":      {"S-1-5-21-100-200-300-512"},
			"member":         {"CN=alice", "CN=bob"},
		},
	}

	require.Equal(t, "Admins", e.SAMAccountName())
	require.Equal(t, "S-1-5-21-100-200-300-512", e.SID())
	require.True(t, e.IsGroup())
	require.Equal(t, "", e.Attr("description"))
}

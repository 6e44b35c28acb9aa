package ldapdir

import (
	"crypto/tls"
	"encoding/binary"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesOptions(t *testing.T) {
	tlsConfig := &tls.Config{InsecureSkipVerify: true}

	d := New("ldaps://dc01.contoso.com:636", "DC=contoso,DC=com",
		WithBind("CN=svc-scan,CN=Users,DC=contoso,DC=com", "hunter2"),
		WithTLSConfig(tlsConfig),
		WithSearchTimeout(10*time.Second),
		WithQueryCacheTTL(5*time.Minute),
	)
	defer d.Close()

	require.Equal(t, "ldaps://dc01.contoso.com:636", d.address)
	require.Equal(t, "DC=contoso,DC=com", d.baseDN)
	require.Equal(t, "CN=svc-scan,CN=Users,DC=contoso,DC=com", d.bindUser)
	require.Same(t, tlsConfig, d.tlsConfig)
	require.Equal(t, 10*time.Second, d.searchTimeout)
	require.Equal(t, 5*time.Minute, d.queryTTL)
	require.NotNil(t, d.queries)
}

func encodeSID(t *testing.T, authority uint64, subs ...uint32) []byte {
	t.Helper()

	raw := make([]byte, 8+4*len(subs))
	raw[0] = 1
	raw[1] = byte(len(subs))
	for i := 0; i < 6; i++ {
		raw[7-i] = byte(authority >> (8 * i))
	}
	for i, sub := range subs {
		binary.LittleEndian.PutUint32(raw[8+4*i:], sub)
	}
	return raw
}

func TestDecodeSID(t *testing.T) {
	tests := map[string]struct {
		raw      []byte
		expected string
		wantErr  bool
	}{
		"domain_account": {
			raw:      encodeSID(t, 5, 21, 3623811015, 3361044348, 30300820, 1013),
			expected: "S-1-5-21-3623811015-3361044348-30300820-1013",
		},
		"everyone": {
			raw:      encodeSID(t, 1, 0),
			expected: "S-1-1-0",
		},
		"builtin_admins": {
			raw:      encodeSID(t, 5, 32, 544),
			expected: "S-1-5-32-544",
		},
		"too_short": {
			raw:     []byte{1, 1, 0},
			wantErr: true,
		},
		"truncated_sub_authorities": {
			raw:     append(encodeSID(t, 5, 21), 0x01),
			wantErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeSID(test.raw)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, got)
		})
	}
}

// Appending one extra sub-authority to a valid SID changes only the count
// byte handling, so round-trip on a longer SID guards the offset math.
func TestDecodeSIDLongSubAuthorityChain(t *testing.T) {
	raw := encodeSID(t, 5, 21, 1, 2, 3, 4, 5, 6)
	got, err := DecodeSID(raw)
	require.NoError(t, err)
	require.Equal(t, "S-1-5-21-1-2-3-4-5-6", got)
}

func TestToEntryDecodesSIDAndSchemaClass(t *testing.T) {
	raw := encodeSID(t, 5, 21, 100, 200, 300, 1001)

	e := ldap.NewEntry("CN=alice,CN=Users,DC=contoso,DC=com", map[string][]string{
		"objectClass":    {"top", "person", "organizationalPerson", "user"},
		"sAMAccountName": {"alice"},
		"objectSid":      {string(raw)},
	})

	entry := toEntry(e)
	require.Equal(t, "CN=alice,CN=Users,DC=contoso,DC=com", entry.Path)
	require.Equal(t, "user", entry.SchemaClass)
	require.Equal(t, "S-1-5-21-100-200-300-1001", entry.SID())
	require.Equal(t, "alice", entry.SAMAccountName())
	require.False(t, entry.IsGroup())
}

func TestQueryKeyDistinguishesQueries(t *testing.T) {
	a := queryKey("DC=contoso,DC=com", ldap.ScopeWholeSubtree, "(sAMAccountName=alice)", principalAttrs)
	b := queryKey("DC=contoso,DC=com", ldap.ScopeWholeSubtree, "(sAMAccountName=bob)", principalAttrs)
	c := queryKey("DC=contoso,DC=com", ldap.ScopeWholeSubtree, "(sAMAccountName=alice)", principalAttrs)

	require.NotEqual(t, a, b)
	require.Equal(t, a, c)
}

func TestDNFQDN(t *testing.T) {
	require.Equal(t, "contoso.com", dnFQDN("DC=contoso,DC=com"))
	require.Equal(t, "corp.fabrikam.local", dnFQDN("DC=corp,DC=fabrikam,DC=local"))
	require.Equal(t, "", dnFQDN("CN=System"))
}

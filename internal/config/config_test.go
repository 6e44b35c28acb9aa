package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Targets = []string{`\\fs01\finance`}
	cfg.DirectoryKind = "fake"
	return cfg
}

func TestVerify(t *testing.T) {
	tests := map[string]struct {
		mutate  func(*Config)
		wantErr string
	}{
		"valid": {
			mutate: func(*Config) {},
		},
		"no_targets": {
			mutate:  func(c *Config) { c.Targets = nil },
			wantErr: "at least one target",
		},
		"zero_threads": {
			mutate:  func(c *Config) { c.ThreadCount = 0 },
			wantErr: "thread count",
		},
		"bad_recurse": {
			mutate:  func(c *Config) { c.RecurseLevels = -2 },
			wantErr: "recurse levels",
		},
		"unlimited_recurse_ok": {
			mutate: func(c *Config) { c.RecurseLevels = -1 },
		},
		"bad_group_pattern": {
			mutate:  func(c *Config) { c.GroupNamePattern = "grp-(" },
			wantErr: "group name pattern",
		},
		"ldap_without_address": {
			mutate: func(c *Config) {
				c.DirectoryKind = "ldap"
				c.LDAP.BaseDN = "DC=contoso,DC=com"
			},
			wantErr: "needs an address",
		},
		"ldap_without_base_dn": {
			mutate: func(c *Config) {
				c.DirectoryKind = "ldap"
				c.LDAP.Address = "ldap://dc01:389"
			},
			wantErr: "base DN",
		},
		"unknown_directory": {
			mutate:  func(c *Config) { c.DirectoryKind = "adsi" },
			wantErr: "unknown directory kind",
		},
		"trace_without_endpoint": {
			mutate:  func(c *Config) { c.Trace.Enabled = true },
			wantErr: "no endpoint",
		},
		"bad_sample_ratio": {
			mutate:  func(c *Config) { c.Trace.SampleRatio = 1.5 },
			wantErr: "sample ratio",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			test.mutate(cfg)

			err := cfg.Verify()
			if test.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, test.wantErr)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, DefaultThreadCount, cfg.ThreadCount)
	require.Equal(t, DefaultBatchTimeout, cfg.BatchTimeout)
	require.True(t, cfg.ExpandGroups)
	require.Equal(t, "ldap", cfg.DirectoryKind)
}

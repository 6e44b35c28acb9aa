package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/aclscan/aclscan/cmd"
	"github.com/aclscan/aclscan/cmd/util"
)

func TestScanCommandNoConfigDefaultValues(t *testing.T) {
	util.PrepareTempConfigDir(t)

	scanCmd := NewScanCommand()
	scanCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		require.Empty(t, viper.GetStringSlice("targets"))
		require.Equal(t, 0, viper.GetInt("recurseLevels"))
		require.Equal(t, 4, viper.GetInt("threadCount"))
		require.Equal(t, 5*time.Minute, viper.GetDuration("batchTimeout"))
		require.True(t, viper.GetBool("expandGroups"))
		require.Empty(t, viper.GetStringSlice("ignoredDomains"))
		require.Empty(t, viper.GetString("groupNamePattern"))
		require.Equal(t, "reports", viper.GetString("outputDir"))
		require.Empty(t, viper.GetString("monitorUrl"))
		require.Equal(t, "ldap", viper.GetString("directoryKind"))
		require.False(t, viper.GetBool("ldap.skipTlsVerify"))
		require.Equal(t, "info", viper.GetString("log.level"))
		require.Equal(t, "text", viper.GetString("log.format"))
		require.False(t, viper.GetBool("trace.enabled"))
		require.Equal(t, float64(1), viper.GetFloat64("trace.sampleRatio"))
		return nil
	}

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(scanCmd)
	rootCmd.SetArgs([]string{"scan"})
	require.NoError(t, rootCmd.Execute())
}

func TestScanCommandFakeModeWritesArtifacts(t *testing.T) {
	util.PrepareTempConfigDir(t)
	outDir := t.TempDir()

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(NewScanCommand())
	rootCmd.SetArgs([]string{
		"scan",
		"--directory", "fake",
		"--targets", `\\fs01.contoso.com\finance`,
		"--recurse-levels=-1",
		"--group-name-pattern", "^grp-",
		"--output-dir", outDir,
		"--log-level", "none",
	})
	require.NoError(t, rootCmd.Execute())

	written, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, written, 5)

	var issuesPath string
	for _, artifact := range written {
		require.False(t, artifact.IsDir())
		if strings.HasPrefix(artifact.Name(), "issues-") {
			issuesPath = filepath.Join(outDir, artifact.Name())
		}
	}
	require.NotEmpty(t, issuesPath)

	feed, err := os.ReadFile(issuesPath)
	require.NoError(t, err)
	require.Contains(t, string(feed), `scanned="3"`)
	require.Contains(t, string(feed), `severity="error"`)
	require.Contains(t, string(feed), `severity="warning"`)
}

func TestScanCommandConfigFileValuesAreParsed(t *testing.T) {
	config := `targets:
    - \\fs01\finance
    - \\fs02\users
recurseLevels: 2
batchTimeout: 90s
ldap:
    address: ldaps://dc01.contoso.com:636
    baseDn: DC=contoso,DC=com
    skipTlsVerify: true
`
	util.PrepareTempConfigFile(t, config)

	scanCmd := NewScanCommand()
	scanCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		require.Equal(t, []string{`\\fs01\finance`, `\\fs02\users`}, viper.GetStringSlice("targets"))
		require.Equal(t, 2, viper.GetInt("recurseLevels"))
		require.Equal(t, 90*time.Second, viper.GetDuration("batchTimeout"))
		require.Equal(t, "ldaps://dc01.contoso.com:636", viper.GetString("ldap.address"))
		require.Equal(t, "DC=contoso,DC=com", viper.GetString("ldap.baseDn"))
		require.True(t, viper.GetBool("ldap.skipTlsVerify"))
		return nil
	}

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(scanCmd)
	rootCmd.SetArgs([]string{"scan"})
	require.NoError(t, rootCmd.Execute())
}

func TestScanCommandConfigIsMerged(t *testing.T) {
	config := `ldap:
    address: ldap://dc01.contoso.com
    baseDn: DC=contoso,DC=com
`
	util.PrepareTempConfigFile(t, config)

	t.Setenv("ACLSCAN_THREAD_COUNT", "8")
	t.Setenv("ACLSCAN_EXPAND_GROUPS", "false")
	t.Setenv("ACLSCAN_RECURSE_LEVELS", "3")
	t.Setenv("ACLSCAN_GROUP_NAME_PATTERN", "^grp-")
	t.Setenv("ACLSCAN_IGNORED_DOMAINS", "CONTOSO1 CONTOSO2")

	scanCmd := NewScanCommand()
	scanCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		require.Equal(t, "ldap://dc01.contoso.com", viper.GetString("ldap.address"))
		require.Equal(t, 8, viper.GetInt("threadCount"))
		require.False(t, viper.GetBool("expandGroups"))
		require.Equal(t, 3, viper.GetInt("recurseLevels"))
		require.Equal(t, "^grp-", viper.GetString("groupNamePattern"))
		require.Equal(t, []string{"CONTOSO1", "CONTOSO2"}, viper.GetStringSlice("ignoredDomains"))
		require.Equal(t, "/srv/aclscan-reports", viper.GetString("outputDir"))
		return nil
	}

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(scanCmd)
	rootCmd.SetArgs([]string{"scan", "--output-dir", "/srv/aclscan-reports"})
	require.NoError(t, rootCmd.Execute())
}

func TestReadConfigUnmarshalsNestedValues(t *testing.T) {
	config := `targets:
    - \\fs01\finance
recurseLevels: 2
batchTimeout: 90s
expandGroups: false
ignoredDomains:
    - CONTOSO1
    - CONTOSO2
groupNamePattern: ^grp-
outputDir: /srv/aclscan-reports
directoryKind: fake
log:
    level: debug
    format: json
`
	util.PrepareTempConfigFile(t, config)

	scanCmd := NewScanCommand()
	scanCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return nil
	}
	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(scanCmd)
	rootCmd.SetArgs([]string{"scan"})
	require.NoError(t, rootCmd.Execute())

	cfg, err := ReadConfig()
	require.NoError(t, err)
	require.Equal(t, []string{`\\fs01\finance`}, cfg.Targets)
	require.Equal(t, 2, cfg.RecurseLevels)
	require.Equal(t, 90*time.Second, cfg.BatchTimeout)
	require.False(t, cfg.ExpandGroups)
	require.Equal(t, []string{"CONTOSO1", "CONTOSO2"}, cfg.IgnoredDomains)
	require.Equal(t, "^grp-", cfg.GroupNamePattern)
	require.Equal(t, "/srv/aclscan-reports", cfg.OutputDir)
	require.Equal(t, "fake", cfg.DirectoryKind)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)

	require.Equal(t, 4, cfg.ThreadCount)
	require.Equal(t, float64(1), cfg.Trace.SampleRatio)
	require.NoError(t, cfg.Verify())
}

func TestScanCommandRejectsUnknownDirectoryKind(t *testing.T) {
	util.PrepareTempConfigDir(t)

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(NewScanCommand())
	rootCmd.SetArgs([]string{"scan", "--targets", `\\fs01\share`, "--directory", "nope"})

	err := rootCmd.Execute()
	require.ErrorContains(t, err, "unknown directory kind")
}

package scan

import (
	"github.com/spf13/cobra"

	"github.com/aclscan/aclscan/cmd/util"
	"github.com/aclscan/aclscan/internal/config"
)

// bindScanFlags binds the cobra cmd flags to the equivalent config value being managed
// by viper. This bridges the config between cobra flags and viper flags.
func bindScanFlags(command *cobra.Command) {
	defaultConfig := config.DefaultConfig()
	flags := command.Flags()

	flags.StringSlice("targets", defaultConfig.Targets, "the folder paths whose permissions get scanned and reported")
	util.MustBindPFlag("targets", flags.Lookup("targets"))
	util.MustBindEnv("targets", "ACLSCAN_TARGETS")

	flags.Int("recurse-levels", defaultConfig.RecurseLevels, "how many folder levels below each target get scanned: 0 scans the target only, -1 removes the limit")
	util.MustBindPFlag("recurseLevels", flags.Lookup("recurse-levels"))
	util.MustBindEnv("recurseLevels", "ACLSCAN_RECURSE_LEVELS", "ACLSCAN_RECURSELEVELS")

	flags.Int("thread-count", defaultConfig.ThreadCount, "the number of workers resolving and expanding access control entries concurrently")
	util.MustBindPFlag("threadCount", flags.Lookup("thread-count"))
	util.MustBindEnv("threadCount", "ACLSCAN_THREAD_COUNT", "ACLSCAN_THREADCOUNT")

	flags.Duration("batch-timeout", defaultConfig.BatchTimeout, "the timeout duration for each concurrent pipeline stage, after which completed results are kept and the rest abandoned")
	util.MustBindPFlag("batchTimeout", flags.Lookup("batch-timeout"))
	util.MustBindEnv("batchTimeout", "ACLSCAN_BATCH_TIMEOUT", "ACLSCAN_BATCHTIMEOUT")

	flags.Bool("expand-groups", defaultConfig.ExpandGroups, "list each group's direct members alongside the group on the report")
	util.MustBindPFlag("expandGroups", flags.Lookup("expand-groups"))
	util.MustBindEnv("expandGroups", "ACLSCAN_EXPAND_GROUPS", "ACLSCAN_EXPANDGROUPS")

	flags.StringSlice("ignored-domains", defaultConfig.IgnoredDomains, "domain prefixes stripped from account names so same-named accounts across these domains merge into one row")
	util.MustBindPFlag("ignoredDomains", flags.Lookup("ignored-domains"))
	util.MustBindEnv("ignoredDomains", "ACLSCAN_IGNORED_DOMAINS", "ACLSCAN_IGNOREDDOMAINS")

	flags.String("group-name-pattern", defaultConfig.GroupNamePattern, "a regexp every group name on a report should match, empty disables the naming check")
	util.MustBindPFlag("groupNamePattern", flags.Lookup("group-name-pattern"))
	util.MustBindEnv("groupNamePattern", "ACLSCAN_GROUP_NAME_PATTERN", "ACLSCAN_GROUPNAMEPATTERN")

	flags.String("output-dir", defaultConfig.OutputDir, "the directory the report artifacts are written to")
	util.MustBindPFlag("outputDir", flags.Lookup("output-dir"))
	util.MustBindEnv("outputDir", "ACLSCAN_OUTPUT_DIR", "ACLSCAN_OUTPUTDIR")

	flags.String("monitor-url", defaultConfig.MonitorURL, "the monitoring endpoint that receives the XML issue feed, empty disables the push")
	util.MustBindPFlag("monitorUrl", flags.Lookup("monitor-url"))
	util.MustBindEnv("monitorUrl", "ACLSCAN_MONITOR_URL", "ACLSCAN_MONITORURL")

	flags.String("directory", defaultConfig.DirectoryKind, "the identity directory to resolve accounts against: ldap or fake")
	util.MustBindPFlag("directoryKind", flags.Lookup("directory"))
	util.MustBindEnv("directoryKind", "ACLSCAN_DIRECTORY", "ACLSCAN_DIRECTORYKIND")

	flags.String("ldap-address", defaultConfig.LDAP.Address, "the ldap:// or ldaps:// URL of the domain controller")
	util.MustBindPFlag("ldap.address", flags.Lookup("ldap-address"))
	util.MustBindEnv("ldap.address", "ACLSCAN_LDAP_ADDRESS")

	flags.String("ldap-base-dn", defaultConfig.LDAP.BaseDN, "the base distinguished name the directory searches start from")
	util.MustBindPFlag("ldap.baseDn", flags.Lookup("ldap-base-dn"))
	util.MustBindEnv("ldap.baseDn", "ACLSCAN_LDAP_BASE_DN", "ACLSCAN_LDAP_BASEDN")

	flags.String("ldap-bind-user", defaultConfig.LDAP.BindUser, "the user to bind to the directory as, empty binds anonymously")
	util.MustBindPFlag("ldap.bindUser", flags.Lookup("ldap-bind-user"))
	util.MustBindEnv("ldap.bindUser", "ACLSCAN_LDAP_BIND_USER", "ACLSCAN_LDAP_BINDUSER")

	flags.String("ldap-bind-password", defaultConfig.LDAP.BindPassword, "the password for the bind user")
	util.MustBindPFlag("ldap.bindPassword", flags.Lookup("ldap-bind-password"))
	util.MustBindEnv("ldap.bindPassword", "ACLSCAN_LDAP_BIND_PASSWORD", "ACLSCAN_LDAP_BINDPASSWORD")

	flags.Bool("ldap-skip-tls-verify", defaultConfig.LDAP.SkipTLSVerify, "accept the domain controller's certificate without verification on ldaps connections")
	util.MustBindPFlag("ldap.skipTlsVerify", flags.Lookup("ldap-skip-tls-verify"))
	util.MustBindEnv("ldap.skipTlsVerify", "ACLSCAN_LDAP_SKIP_TLS_VERIFY", "ACLSCAN_LDAP_SKIPTLSVERIFY")

	command.MarkFlagsRequiredTogether("ldap-bind-user", "ldap-bind-password")

	flags.String("log-level", defaultConfig.Log.Level, "the log level, one of debug, info, warn, error, none")
	util.MustBindPFlag("log.level", flags.Lookup("log-level"))
	util.MustBindEnv("log.level", "ACLSCAN_LOG_LEVEL")

	flags.String("log-format", defaultConfig.Log.Format, "the log output format, text or json")
	util.MustBindPFlag("log.format", flags.Lookup("log-format"))
	util.MustBindEnv("log.format", "ACLSCAN_LOG_FORMAT")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable exporting traces for the scan stages")
	util.MustBindPFlag("trace.enabled", flags.Lookup("trace-enabled"))
	util.MustBindEnv("trace.enabled", "ACLSCAN_TRACE_ENABLED")

	flags.String("trace-endpoint", defaultConfig.Trace.Endpoint, "the OTLP endpoint traces are exported to")
	util.MustBindPFlag("trace.endpoint", flags.Lookup("trace-endpoint"))
	util.MustBindEnv("trace.endpoint", "ACLSCAN_TRACE_ENDPOINT")

	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of scans for which traces are sampled")
	util.MustBindPFlag("trace.sampleRatio", flags.Lookup("trace-sample-ratio"))
	util.MustBindEnv("trace.sampleRatio", "ACLSCAN_TRACE_SAMPLE_RATIO", "ACLSCAN_TRACE_SAMPLERATIO")

	command.MarkFlagsRequiredTogether("trace-enabled", "trace-endpoint")
}

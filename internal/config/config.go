// Package config holds the run configuration for a scan and its defaults.
package config

import (
	"fmt"
	"regexp"
	"time"
)

const (
	// DefaultThreadCount sizes the worker pool for the dispatched stages.
	// One worker degrades to strictly sequential, in-order execution.
	DefaultThreadCount = 4

	// DefaultBatchTimeout bounds each dispatched stage. On expiry the
	// stage keeps its completed results and abandons the rest.
	DefaultBatchTimeout = 5 * time.Minute

	// DefaultRecurseLevels scans only the target folder itself.
	DefaultRecurseLevels = 0

	DefaultOutputDir     = "reports"
	DefaultDirectoryKind = "ldap"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// LogConfig selects the log output shape.
type LogConfig struct {
	// Level is one of debug, info, warn, error, none.
	Level string

	// Format is text or json.
	Format string
}

// TraceConfig wires the OTLP exporter.
type TraceConfig struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

// LDAPConfig points the directory adapter at a domain controller.
type LDAPConfig struct {
	// Address is an ldap:// or ldaps:// URL.
	Address      string
	BaseDN       string
	BindUser     string
	BindPassword string

	// SkipTLSVerify accepts the domain controller's certificate without
	// verification on ldaps connections.
	SkipTLSVerify bool
}

// Config is everything one scan run needs.
type Config struct {
	// Targets are the folder paths whose permissions get reported.
	Targets []string

	// RecurseLevels limits how deep below each target ACLs are read.
	// Zero reads the target folder only; -1 removes the limit.
	RecurseLevels int

	ThreadCount  int
	BatchTimeout time.Duration

	// ExpandGroups lists each group's direct members on its rows.
	ExpandGroups bool

	// IgnoredDomains are prefixes stripped when merging same-named
	// accounts across trusted domains.
	IgnoredDomains []string

	// GroupNamePattern is a regexp every group name should match. Empty
	// disables the naming-convention check.
	GroupNamePattern string

	OutputDir string

	// MonitorURL receives the issue feed after the run. Empty disables
	// the push.
	MonitorURL string

	// DirectoryKind picks the identity source: ldap or fake.
	DirectoryKind string

	LDAP  LDAPConfig
	Log   LogConfig
	Trace TraceConfig
}

// DefaultConfig returns the config every scan starts from.
func DefaultConfig() *Config {
	return &Config{
		RecurseLevels: DefaultRecurseLevels,
		ThreadCount:   DefaultThreadCount,
		BatchTimeout:  DefaultBatchTimeout,
		ExpandGroups:  true,
		OutputDir:     DefaultOutputDir,
		DirectoryKind: DefaultDirectoryKind,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Trace: TraceConfig{
			SampleRatio: 1,
		},
	}
}

// Verify rejects configurations that cannot produce a meaningful run.
func (c *Config) Verify() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target folder is required")
	}
	if c.ThreadCount < 1 {
		return fmt.Errorf("thread count must be at least 1, got %d", c.ThreadCount)
	}
	if c.RecurseLevels < -1 {
		return fmt.Errorf("recurse levels must be -1 (unlimited) or a non-negative depth, got %d", c.RecurseLevels)
	}
	if c.GroupNamePattern != "" {
		if _, err := regexp.Compile(c.GroupNamePattern); err != nil {
			return fmt.Errorf("group name pattern is not a valid regexp: %w", err)
		}
	}

	switch c.DirectoryKind {
	case "fake":
	case "ldap":
		if c.LDAP.Address == "" {
			return fmt.Errorf("the ldap directory needs an address")
		}
		if c.LDAP.BaseDN == "" {
			return fmt.Errorf("the ldap directory needs a base DN")
		}
	default:
		return fmt.Errorf("unknown directory kind %q, expected ldap or fake", c.DirectoryKind)
	}

	if c.Trace.Enabled && c.Trace.Endpoint == "" {
		return fmt.Errorf("tracing is enabled but no endpoint is configured")
	}
	if c.Trace.SampleRatio < 0 || c.Trace.SampleRatio > 1 {
		return fmt.Errorf("trace sample ratio must be within [0, 1], got %v", c.Trace.SampleRatio)
	}

	return nil
}

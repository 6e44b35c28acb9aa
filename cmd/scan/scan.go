// Package scan contains the command that runs one permission scan end to end.
package scan

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/aclscan/aclscan/internal/config"
	"github.com/aclscan/aclscan/internal/issues"
	"github.com/aclscan/aclscan/internal/pipeline"
	"github.com/aclscan/aclscan/pkg/directory"
	"github.com/aclscan/aclscan/pkg/directory/directorytest"
	"github.com/aclscan/aclscan/pkg/directory/ldapdir"
	"github.com/aclscan/aclscan/pkg/fsacl"
	"github.com/aclscan/aclscan/pkg/fsacl/fsacltest"
	"github.com/aclscan/aclscan/pkg/logger"
	"github.com/aclscan/aclscan/pkg/monitor"
	"github.com/aclscan/aclscan/pkg/report"
	"github.com/aclscan/aclscan/pkg/telemetry"
)

// NewScanCommand returns the command that reads the configured folders' access
// control lists, resolves every identity against the directory, and writes the
// report artifacts.
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan folder ACLs and report the effective permissions",
		Long:  "Scan folder ACLs, resolve every identity against the directory, and write the permission report, the entry dumps, and the issue feed.",
		RunE:  runE,
		Args:  cobra.NoArgs,
	}

	bindScanFlags(cmd)

	return cmd
}

// ReadConfig returns the scan configuration based on the values provided in the 'config.yaml'
// file. The 'config.yaml' file is loaded from '/etc/aclscan', '$HOME/.aclscan', or the current
// working directory. If no configuration file is present, the default values are returned.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load scan config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan config: %w", err)
	}

	return cfg, nil
}

func runE(_ *cobra.Command, _ []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Verify(); err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, log)
}

func runScan(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	tracingShutdown := telemetryConfig(cfg, log)
	defer func() {
		if err := tracingShutdown(); err != nil {
			log.Warn("failed to shut down tracing", zap.Error(err))
		}
	}()

	dir, resolver, reader, cleanup, err := buildDirectory(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	scanner := fsacl.NewScanner(resolver, reader,
		fsacl.WithLogger(log),
		fsacl.WithRecurseLevels(cfg.RecurseLevels),
	)

	entries, warnings, err := scanner.Scan(ctx, cfg.Targets)
	if err != nil {
		return err
	}

	pipe := pipeline.New(dir,
		pipeline.WithLogger(log),
		pipeline.WithThreadCount(cfg.ThreadCount),
		pipeline.WithBatchTimeout(cfg.BatchTimeout),
		pipeline.WithGroupExpansion(cfg.ExpandGroups),
		pipeline.WithIgnoredDomains(cfg.IgnoredDomains),
	)

	result, err := pipe.Run(ctx, entries)
	if err != nil {
		return err
	}
	result.Warnings = append(warnings, result.Warnings...)

	detector, err := issues.NewDetector(issues.WithGroupNamePattern(cfg.GroupNamePattern))
	if err != nil {
		return err
	}
	findings := detector.Detect(result.Folders)
	feed := report.NewIssueFeed(len(result.Folders), findings)

	writer := report.NewWriter(cfg.OutputDir, report.WithLogger(log))
	artifacts, err := writer.WriteAll(result, feed)
	if err != nil {
		return err
	}

	pusher := monitor.NewPusher(cfg.MonitorURL, monitor.WithLogger(log))
	if pusher.Enabled() {
		encoded, err := feed.Encode()
		if err != nil {
			return err
		}
		// A dead monitoring endpoint should not void a finished scan. The
		// artifacts are already on disk.
		if err := pusher.Push(ctx, encoded); err != nil {
			log.Warn("issue feed push failed", zap.Error(err))
		}
	}

	issueErrors, issueWarnings := issues.Count(findings)
	log.Info("scan finished",
		zap.String("run_id", writer.RunID()),
		zap.Int("entries", len(result.RawEntries)),
		zap.Int("folders", len(result.Folders)),
		zap.Int("issue_errors", issueErrors),
		zap.Int("issue_warnings", issueWarnings),
		zap.Strings("artifacts", artifacts),
	)

	return nil
}

// telemetryConfig returns the function that must be called to shut down tracing.
// The context provided to this function should be error-free, or shut down will be incomplete.
func telemetryConfig(cfg *config.Config, log logger.Logger) func() error {
	if cfg.Trace.Enabled {
		log.Info(fmt.Sprintf("tracing enabled: sampling ratio is %v and sending traces to '%s'", cfg.Trace.SampleRatio, cfg.Trace.Endpoint))

		tp := telemetry.MustNewTracerProvider(
			telemetry.WithOTLPEndpoint(cfg.Trace.Endpoint),
			telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
		)
		return func() error {
			// can take up to 5 seconds to complete (https://github.com/open-telemetry/opentelemetry-go/blob/aebcbfcbc2962957a578e9cb3e25dc834125e318/sdk/trace/batch_span_processor.go#L97)
			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()
			return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
		}
	}
	otel.SetTracerProvider(noop.NewTracerProvider())
	return func() error {
		return nil
	}
}

// buildDirectory wires the identity directory and the filesystem source the
// configuration asks for. The fake kind serves canned demo data and runs on
// any platform; the ldap kind reads the real filesystem and needs Windows.
func buildDirectory(cfg *config.Config, log logger.Logger) (directory.Directory, fsacl.TargetResolver, fsacl.EntryReader, func(), error) {
	switch cfg.DirectoryKind {
	case "fake":
		src := fsacltest.SampleShare()
		return directorytest.SampleForest(), src, src, func() {}, nil
	case "ldap":
		opts := []ldapdir.Option{ldapdir.WithLogger(log)}
		if cfg.LDAP.BindUser != "" {
			opts = append(opts, ldapdir.WithBind(cfg.LDAP.BindUser, cfg.LDAP.BindPassword))
		}
		if cfg.LDAP.SkipTLSVerify {
			opts = append(opts, ldapdir.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
		}
		dir := ldapdir.New(cfg.LDAP.Address, cfg.LDAP.BaseDN, opts...)

		resolver, reader, err := newFilesystemSource(log)
		if err != nil {
			dir.Close()
			return nil, nil, nil, nil, err
		}
		return dir, resolver, reader, dir.Close, nil
	default:
		return nil, nil, nil, nil, fmt.Errorf("unknown directory kind %q, expected ldap or fake", cfg.DirectoryKind)
	}
}

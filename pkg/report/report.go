// Package report renders the per-run artifacts: the three tabular ACE
// dumps, the grouped permission report, and the XML issue feed consumed by
// the monitoring push endpoint.
package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/aclscan/aclscan/internal/pipeline"
	"github.com/aclscan/aclscan/pkg/id"
	"github.com/aclscan/aclscan/pkg/logger"
)

// Option configures a Writer.
type Option func(*Writer)

// WithFs replaces the filesystem the artifacts are written to.
func WithFs(fs afero.Fs) Option {
	return func(w *Writer) {
		w.fs = fs
	}
}

func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithRunID pins the run ID instead of minting one, for reproducible
// artifact names.
func WithRunID(runID string) Option {
	return func(w *Writer) {
		w.runID = runID
	}
}

// Writer writes one run's artifacts into the output directory. Every file
// name carries the run ID, so repeated runs never clobber each other.
type Writer struct {
	fs     afero.Fs
	dir    string
	runID  string
	logger logger.Logger
}

func NewWriter(outputDir string, opts ...Option) *Writer {
	w := &Writer{
		fs:     afero.NewOsFs(),
		dir:    outputDir,
		runID:  id.MustNewString(),
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunID returns the identifier stamped into this writer's artifact names.
func (w *Writer) RunID() string {
	return w.runID
}

// WriteAll renders every artifact and returns the paths written.
func (w *Writer) WriteAll(result *pipeline.Result, feed IssueFeed) ([]string, error) {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("output directory %s: %w", w.dir, err)
	}

	artifacts := []struct {
		name   string
		render func(io.Writer) error
	}{
		{w.fileName("raw-aces", "csv"), func(out io.Writer) error {
			return writeRawCSV(out, result.RawEntries)
		}},
		{w.fileName("resolved-aces", "csv"), func(out io.Writer) error {
			return writeResolvedCSV(out, result.ResolvedEntries)
		}},
		{w.fileName("expanded-aces", "csv"), func(out io.Writer) error {
			return writeExpandedCSV(out, result.ExpandedRows)
		}},
		{w.fileName("permissions", "html"), func(out io.Writer) error {
			return w.writeHTML(out, result)
		}},
		{w.fileName("issues", "xml"), func(out io.Writer) error {
			return writeFeed(out, feed)
		}},
	}

	written := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		path, err := w.writeArtifact(artifact.name, artifact.render)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	w.logger.Info("artifacts written",
		zap.String("run_id", w.runID),
		zap.String("dir", w.dir),
		zap.Int("files", len(written)),
	)
	return written, nil
}

func (w *Writer) fileName(artifact, ext string) string {
	return fmt.Sprintf("%s-%s.%s", artifact, w.runID, ext)
}

func (w *Writer) writeArtifact(name string, render func(io.Writer) error) (string, error) {
	path := filepath.Join(w.dir, name)

	f, err := w.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

//go:build windows

package scan

import (
	"github.com/aclscan/aclscan/pkg/fsacl"
	"github.com/aclscan/aclscan/pkg/logger"
)

func newFilesystemSource(log logger.Logger) (fsacl.TargetResolver, fsacl.EntryReader, error) {
	return fsacl.PassthroughResolver{}, fsacl.NewWindowsReader(fsacl.WithReaderLogger(log)), nil
}

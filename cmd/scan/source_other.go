//go:build !windows

package scan

import (
	"errors"

	"github.com/aclscan/aclscan/pkg/fsacl"
	"github.com/aclscan/aclscan/pkg/logger"
)

// Reading filesystem ACLs needs the Windows security API.
func newFilesystemSource(_ logger.Logger) (fsacl.TargetResolver, fsacl.EntryReader, error) {
	return nil, nil, errors.New("filesystem ACL scanning is only available on Windows, use '--directory fake' for the canned demo data")
}

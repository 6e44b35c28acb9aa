//go:build windows

package fsacl

import (
	"context"
	"fmt"
	"path/filepath"
	"unsafe"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/logger"
)

// WindowsReader lists folder DACLs through the Windows security APIs.
type WindowsReader struct {
	fs     afero.Fs
	logger logger.Logger
}

var _ EntryReader = (*WindowsReader)(nil)

// WindowsReaderOption configures a WindowsReader.
type WindowsReaderOption func(*WindowsReader)

func WithReaderLogger(l logger.Logger) WindowsReaderOption {
	return func(r *WindowsReader) {
		r.logger = l
	}
}

func NewWindowsReader(opts ...WindowsReaderOption) *WindowsReader {
	r := &WindowsReader{
		fs:     afero.NewOsFs(),
		logger: logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *WindowsReader) ListAccessEntries(ctx context.Context, folder string, recurseLevels int) ([]acl.Entry, error) {
	entries, err := readDACL(folder)
	if err != nil {
		return nil, fmt.Errorf("access list for %s: %w", folder, err)
	}
	if recurseLevels == 0 {
		return entries, nil
	}

	children, err := r.descendants(folder, recurseLevels)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		read, err := readDACL(child)
		if err != nil {
			// Only the root folder is load-bearing; a child the
			// scanning account cannot read is reported and skipped.
			r.logger.Warn("folder access list unreadable, skipped",
				zap.String("folder", child),
				zap.Error(err),
			)
			continue
		}
		entries = append(entries, read...)
	}
	return entries, nil
}

// descendants lists the folders below root down to the given level, depth
// first, children in name order. Level -1 descends without bound.
func (r *WindowsReader) descendants(root string, levels int) ([]string, error) {
	if levels == 0 {
		return nil, nil
	}

	infos, err := afero.ReadDir(r.fs, root)
	if err != nil {
		return nil, fmt.Errorf("list folders under %s: %w", root, err)
	}

	next := levels - 1
	if levels < 0 {
		next = -1
	}

	var folders []string
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		child := filepath.Join(root, info.Name())
		folders = append(folders, child)

		below, err := r.descendants(child, next)
		if err != nil {
			r.logger.Warn("folder listing failed, subtree skipped",
				zap.String("folder", child),
				zap.Error(err),
			)
			continue
		}
		folders = append(folders, below...)
	}
	return folders, nil
}

func readDACL(path string) ([]acl.Entry, error) {
	sd, err := windows.GetNamedSecurityInfo(path, windows.SE_FILE_OBJECT, windows.DACL_SECURITY_INFORMATION)
	if err != nil {
		return nil, err
	}
	dacl, _, err := sd.DACL()
	if err != nil {
		return nil, err
	}
	if dacl == nil {
		// A nil DACL means no protection at all.
		return []acl.Entry{{
			SourcePath:        path,
			IdentityReference: "Everyone",
			Access:            acl.Allow,
			Rights:            acl.RightsFullControl,
		}}, nil
	}

	entries := make([]acl.Entry, 0, dacl.AceCount)
	for i := uint32(0); i < uint32(dacl.AceCount); i++ {
		var ace *windows.ACCESS_ALLOWED_ACE
		if err := windows.GetAce(dacl, i, &ace); err != nil {
			return nil, fmt.Errorf("ace %d of %s: %w", i, path, err)
		}

		var access acl.AccessType
		switch ace.Header.AceType {
		case windows.ACCESS_ALLOWED_ACE_TYPE:
			access = acl.Allow
		case windows.ACCESS_DENIED_ACE_TYPE:
			access = acl.Deny
		default:
			// Audit and object ACEs carry no folder permission.
			continue
		}

		sid := (*windows.SID)(unsafe.Pointer(&ace.SidStart))
		entries = append(entries, acl.Entry{
			SourcePath:        path,
			IdentityReference: identityReference(sid),
			Access:            access,
			Rights:            acl.Rights(ace.Mask),
			IsInherited:       ace.Header.AceFlags&windows.INHERITED_ACE != 0,
			InheritanceFlags:  inheritanceFlags(ace.Header.AceFlags),
			PropagationFlags:  propagationFlags(ace.Header.AceFlags),
		})
	}
	return entries, nil
}

// identityReference renders the ACE trustee the way the rest of the pipeline
// expects raw references: a DOMAIN\name caption when the SID translates, the
// string SID when it does not.
func identityReference(sid *windows.SID) string {
	account, domain, _, err := sid.LookupAccount("")
	if err != nil {
		return sid.String()
	}
	return acl.QualifiedName(domain, account)
}

func inheritanceFlags(aceFlags uint8) acl.InheritanceFlags {
	flags := acl.InheritanceNone
	if aceFlags&windows.CONTAINER_INHERIT_ACE != 0 {
		flags |= acl.ContainerInherit
	}
	if aceFlags&windows.OBJECT_INHERIT_ACE != 0 {
		flags |= acl.ObjectInherit
	}
	return flags
}

func propagationFlags(aceFlags uint8) acl.PropagationFlags {
	flags := acl.PropagationNone
	if aceFlags&windows.NO_PROPAGATE_INHERIT_ACE != 0 {
		flags |= acl.NoPropagateInherit
	}
	if aceFlags&windows.INHERIT_ONLY_ACE != 0 {
		flags |= acl.InheritOnly
	}
	return flags
}

package acl

import (
	"fmt"
	"strings"
)

// Rights is the Windows file-access bitmask carried by an access-control
// entry.
type Rights uint32

const (
	RightsReadData                     Rights = 0x000001
	RightsWriteData                    Rights = 0x000002
	RightsAppendData                   Rights = 0x000004
	RightsReadExtendedAttributes       Rights = 0x000008
	RightsWriteExtendedAttributes      Rights = 0x000010
	RightsExecuteFile                  Rights = 0x000020
	RightsDeleteSubdirectoriesAndFiles Rights = 0x000040
	RightsReadAttributes               Rights = 0x000080
	RightsWriteAttributes              Rights = 0x000100
	RightsDelete                       Rights = 0x010000
	RightsReadPermissions              Rights = 0x020000
	RightsChangePermissions            Rights = 0x040000
	RightsTakeOwnership                Rights = 0x080000
	RightsSynchronize                  Rights = 0x100000
)

// Composite masks as surfaced by the Windows security dialog.
const (
	RightsRead = RightsReadData | RightsReadExtendedAttributes |
		RightsReadAttributes | RightsReadPermissions
	RightsWrite = RightsWriteData | RightsAppendData |
		RightsWriteExtendedAttributes | RightsWriteAttributes
	RightsReadAndExecute        = RightsRead | RightsExecuteFile
	RightsModify                = RightsReadAndExecute | RightsWrite | RightsDelete
	RightsFullControl    Rights = 0x1F01FF
)

// Has reports whether every bit of mask is set.
func (r Rights) Has(mask Rights) bool {
	return r&mask == mask
}

var compositeRightNames = []struct {
	mask Rights
	name string
}{
	{RightsFullControl, "FullControl"},
	{RightsModify, "Modify"},
	{RightsReadAndExecute, "ReadAndExecute"},
	{RightsWrite, "Write"},
	{RightsRead, "Read"},
}

var componentRightNames = []struct {
	mask Rights
	name string
}{
	{RightsReadData, "ReadData"},
	{RightsWriteData, "WriteData"},
	{RightsAppendData, "AppendData"},
	{RightsReadExtendedAttributes, "ReadExtendedAttributes"},
	{RightsWriteExtendedAttributes, "WriteExtendedAttributes"},
	{RightsExecuteFile, "ExecuteFile"},
	{RightsDeleteSubdirectoriesAndFiles, "DeleteSubdirectoriesAndFiles"},
	{RightsReadAttributes, "ReadAttributes"},
	{RightsWriteAttributes, "WriteAttributes"},
	{RightsDelete, "Delete"},
	{RightsReadPermissions, "ReadPermissions"},
	{RightsChangePermissions, "ChangePermissions"},
	{RightsTakeOwnership, "TakeOwnership"},
	{RightsSynchronize, "Synchronize"},
}

// String renders the mask the way the Windows security dialog does: the
// widest matching composite names first, then any leftover component bits.
func (r Rights) String() string {
	if r == 0 {
		return "None"
	}

	var parts []string
	rest := r
	for _, c := range compositeRightNames {
		if rest.Has(c.mask) {
			parts = append(parts, c.name)
			rest &^= c.mask
		}
	}
	for _, c := range componentRightNames {
		if rest.Has(c.mask) {
			parts = append(parts, c.name)
			rest &^= c.mask
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%X", uint32(rest)))
	}
	return strings.Join(parts, ", ")
}

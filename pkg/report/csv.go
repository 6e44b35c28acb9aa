package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/aclscan/aclscan/internal/pipeline"
	"github.com/aclscan/aclscan/pkg/acl"
	"github.com/aclscan/aclscan/pkg/identity"
)

func writeRawCSV(out io.Writer, entries []acl.Entry) error {
	cw := csv.NewWriter(out)

	header := []string{"path", "identity_reference", "access", "rights", "is_inherited", "inheritance_flags", "propagation_flags"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range entries {
		record := []string{
			e.SourcePath,
			e.IdentityReference,
			e.Access.String(),
			e.Rights.String(),
			strconv.FormatBool(e.IsInherited),
			e.InheritanceFlags.String(),
			e.PropagationFlags.String(),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeResolvedCSV(out io.Writer, resolved []pipeline.ResolvedEntry) error {
	cw := csv.NewWriter(out)

	header := []string{"path", "raw_reference", "resolved_name", "sid", "status", "access", "rights", "is_inherited"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, re := range resolved {
		record := []string{
			re.Entry.SourcePath,
			re.Entry.IdentityReference,
			re.Identity.Name,
			re.Identity.SID,
			re.Identity.Status.String(),
			re.Entry.Access.String(),
			re.Entry.Rights.String(),
			strconv.FormatBool(re.Entry.IsInherited),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// writeExpandedCSV emits one line per (account, access) pair, the flattened
// view the deduplication stage produced.
func writeExpandedCSV(out io.Writer, rows []identity.PermissionRow) error {
	cw := csv.NewWriter(out)

	header := []string{"account", "type", "sid", "status", "path", "access", "rights", "via", "is_inherited"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		for _, access := range row.Access {
			record := []string{
				row.Account.Name,
				row.Account.Type.String(),
				row.Account.SID,
				row.Account.Status.String(),
				access.Entry.SourcePath,
				access.Entry.Access.String(),
				access.Entry.Rights.String(),
				access.Via,
				strconv.FormatBool(access.Entry.IsInherited),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

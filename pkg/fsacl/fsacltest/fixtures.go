package fsacltest

import "github.com/aclscan/aclscan/pkg/acl"

// SampleShare scripts the finance share behind the demo scan mode. The
// entries reference the directorytest sample forest and are arranged so that
// every built-in issue rule has something to find.
func SampleShare() *Source {
	s := New()
	root := `\\fs01.contoso.com\finance`

	s.AddFolder(root,
		acl.Entry{
			IdentityReference: `CONTOSO\grp-finance-rw`,
			Access:            acl.Allow,
			Rights:            acl.RightsModify,
			InheritanceFlags:  acl.ContainerInherit | acl.ObjectInherit,
		},
		acl.Entry{
			IdentityReference: `CONTOSO\alice`,
			Access:            acl.Allow,
			Rights:            acl.RightsRead,
		},
		acl.Entry{
			IdentityReference: "S-1-5-18",
			Access:            acl.Allow,
			Rights:            acl.RightsFullControl,
			InheritanceFlags:  acl.ContainerInherit | acl.ObjectInherit,
		},
		acl.Entry{
			IdentityReference: `BUILTIN\Administrators`,
			Access:            acl.Allow,
			Rights:            acl.RightsFullControl,
			InheritanceFlags:  acl.ContainerInherit | acl.ObjectInherit,
		},
	)

	s.AddFolder(root+`\payroll`,
		acl.Entry{
			IdentityReference: `CONTOSO\Payroll Users`,
			Access:            acl.Allow,
			Rights:            acl.RightsModify,
		},
		acl.Entry{
			IdentityReference: "Everyone",
			Access:            acl.Allow,
			Rights:            acl.RightsFullControl,
		},
		acl.Entry{
			IdentityReference: `CONTOSO\svc-backup`,
			Access:            acl.Allow,
			Rights:            acl.RightsRead,
		},
		acl.Entry{
			IdentityReference: `FABRIKAM\svc-backup`,
			Access:            acl.Allow,
			Rights:            acl.RightsRead,
		},
	)

	s.AddFolder(root+`\archive`,
		acl.Entry{
			IdentityReference: "S-1-5-21-100-200-300-9999",
			Access:            acl.Allow,
			Rights:            acl.RightsRead,
		},
		acl.Entry{
			IdentityReference: `CONTOSO\bob`,
			Access:            acl.Allow,
			Rights:            acl.RightsRead,
			IsInherited:       true,
		},
		acl.Entry{
			IdentityReference: `CONTOSO\bob`,
			Access:            acl.Deny,
			Rights:            acl.RightsWrite,
		},
	)

	return s
}

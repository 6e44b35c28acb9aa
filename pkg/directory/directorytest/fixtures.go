package directorytest

import "github.com/aclscan/aclscan/pkg/directory"

// User builds a user entry shaped like an LDAP search result.
func User(name, sid string) *directory.Entry {
	return entry("user", name, sid)
}

// Group builds a group entry. Members are scripted through Fake.AddMember.
func Group(name, sid string) *directory.Entry {
	return entry("group", name, sid)
}

// Computer builds a computer entry.
func Computer(name, sid string) *directory.Entry {
	return entry("computer", name, sid)
}

// FakeUser and FakeGroup build synthetic principals for demo runs, which
// report rows flag as fake account types.
func FakeUser(name, sid string) *directory.Entry {
	return entry("fakeUser", name, sid)
}

func FakeGroup(name, sid string) *directory.Entry {
	return entry("fakeGroup", name, sid)
}

func entry(class, name, sid string) *directory.Entry {
	attrs := map[string][]string{
		"sAMAccountName": {name},
	}
	if sid != "" {
		attrs["objectSid"] = []string{sid}
	}
	return &directory.Entry{
		Path:        "CN=" + name,
		SchemaClass: class,
		Attributes:  attrs,
	}
}

// SampleForest scripts the small two-domain forest behind the demo scan
// mode: one file server, two trusted domains, a handful of accounts, and a
// group with one direct member.
func SampleForest() *Fake {
	f := New()

	f.AddServer(&directory.Server{
		DNSName: "fs01.contoso.com",
		NetBIOS: "FS01",
	})
	f.AddDomain(&directory.Domain{
		SID:     "S-1-5-21-100-200-300",
		NetBIOS: "CONTOSO",
		FQDN:    "contoso.com",
	})
	f.AddDomain(&directory.Domain{
		SID:     "S-1-5-21-400-500-600",
		NetBIOS: "FABRIKAM",
		FQDN:    "fabrikam.com",
	})

	f.AddPrincipal("CONTOSO", FakeUser("alice", "S-1-5-21-100-200-300-1001"))
	f.AddPrincipal("CONTOSO", FakeUser("bob", "S-1-5-21-100-200-300-1002"))
	f.AddPrincipal("CONTOSO", FakeUser("svc-backup", "S-1-5-21-100-200-300-1103"))
	f.AddPrincipal("CONTOSO", FakeGroup("grp-finance-rw", "S-1-5-21-100-200-300-2001"))
	f.AddPrincipal("CONTOSO", FakeGroup("Payroll Users", "S-1-5-21-100-200-300-2002"))
	f.AddPrincipal("FABRIKAM", FakeUser("svc-backup", "S-1-5-21-400-500-600-1103"))

	f.AddMember("grp-finance-rw", FakeUser("bob", "S-1-5-21-100-200-300-1002"))
	f.AddMember("Payroll Users", FakeUser("alice", "S-1-5-21-100-200-300-1001"))

	return f
}

package ldapdir

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/aclscan/aclscan/pkg/directory"
)

// SERVER_TRUST_ACCOUNT bit of userAccountControl, set on domain controllers.
const uacServerTrustAccount = 0x2000

var serverAttrs = []string{"sAMAccountName", "dNSHostName", "userAccountControl", "objectClass"}

// DiscoverServer finds the computer account behind a server's DNS name.
func (d *Directory) DiscoverServer(ctx context.Context, dnsName string) (*directory.Server, error) {
	host := shortHostName(dnsName)
	filter := fmt.Sprintf(
		"(&(objectClass=computer)(|(dNSHostName=%s)(sAMAccountName=%s$)))",
		ldap.EscapeFilter(dnsName),
		ldap.EscapeFilter(host),
	)

	entries, err := d.search(ctx, d.baseDN, ldap.ScopeWholeSubtree, filter, serverAttrs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("server %s: %w", dnsName, directory.ErrNotFound)
	}

	e := entries[0]
	uac, _ := strconv.ParseUint(e.Attr("userAccountControl"), 10, 32)

	return &directory.Server{
		DNSName:            dnsName,
		NetBIOS:            strings.TrimSuffix(e.SAMAccountName(), "$"),
		DistinguishedName:  e.Path,
		IsDomainController: uac&uacServerTrustAccount != 0,
	}, nil
}

// TrustedDomains returns the connected domain followed by every domain it
// trusts, read from the trustedDomain objects in the System container.
func (d *Directory) TrustedDomains(ctx context.Context) ([]*directory.Domain, error) {
	rootDSE, err := d.search(ctx, "", ldap.ScopeBaseObject, "(objectClass=*)",
		[]string{"defaultNamingContext", "configurationNamingContext"})
	if err != nil {
		return nil, err
	}
	if len(rootDSE) == 0 {
		return nil, fmt.Errorf("rootDSE: %w", directory.ErrNotFound)
	}
	domainDN := rootDSE[0].Attr("defaultNamingContext")
	configDN := rootDSE[0].Attr("configurationNamingContext")

	own, err := d.connectedDomain(ctx, domainDN, configDN)
	if err != nil {
		return nil, err
	}
	domains := []*directory.Domain{own}

	trusted, err := d.search(ctx, "CN=System,"+domainDN, ldap.ScopeWholeSubtree,
		"(objectClass=trustedDomain)",
		[]string{"flatName", "trustPartner", "securityIdentifier"})
	if err != nil {
		// Partial discovery is fine: identities from unlisted domains
		// degrade to unresolved instead of failing the run.
		d.logger.Warn("trusted domain enumeration failed", zap.Error(err))
		return domains, nil
	}

	for _, e := range trusted {
		domains = append(domains, &directory.Domain{
			SID:               e.Attr("securityIdentifier"),
			NetBIOS:           e.Attr("flatName"),
			FQDN:              e.Attr("trustPartner"),
			DistinguishedName: e.Path,
		})
	}

	return domains, nil
}

func (d *Directory) connectedDomain(ctx context.Context, domainDN, configDN string) (*directory.Domain, error) {
	head, err := d.search(ctx, domainDN, ldap.ScopeBaseObject, "(objectClass=*)", []string{"objectSid"})
	if err != nil {
		return nil, err
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("domain head %s: %w", domainDN, directory.ErrNotFound)
	}

	dom := &directory.Domain{
		SID:               head[0].SID(),
		DistinguishedName: domainDN,
	}

	// The crossRef partition record carries the NetBIOS name and DNS root.
	crossRefs, err := d.search(ctx, "CN=Partitions,"+configDN, ldap.ScopeWholeSubtree,
		fmt.Sprintf("(&(objectClass=crossRef)(nCName=%s))", ldap.EscapeFilter(domainDN)),
		[]string{"nETBIOSName", "dnsRoot"})
	if err == nil && len(crossRefs) > 0 {
		dom.NetBIOS = crossRefs[0].Attr("nETBIOSName")
		dom.FQDN = crossRefs[0].Attr("dnsRoot")
	}
	if dom.FQDN == "" {
		dom.FQDN = dnFQDN(domainDN)
	}
	if dom.NetBIOS == "" && dom.FQDN != "" {
		dom.NetBIOS = strings.ToUpper(strings.SplitN(dom.FQDN, ".", 2)[0])
	}

	return dom, nil
}

func shortHostName(dnsName string) string {
	return strings.SplitN(dnsName, ".", 2)[0]
}

// dnFQDN rebuilds a DNS name from a domain distinguished name, so
// DC=contoso,DC=com becomes contoso.com.
func dnFQDN(dn string) string {
	var labels []string
	for _, part := range strings.Split(dn, ",") {
		part = strings.TrimSpace(part)
		if rest, ok := strings.CutPrefix(part, "DC="); ok {
			labels = append(labels, rest)
		}
	}
	return strings.Join(labels, ".")
}

package directory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// DomainFromDN derives domain metadata from a distinguished name by collecting
// its DC components. Entries in nested or trusted domains carry their domain in
// the DN, so this works for any entry regardless of which connection returned
// it.
//
// Example: "CN=Sales,OU=Groups,DC=child,DC=contoso,DC=local" yields
// {Name: "child", FQDN: "child.contoso.local", DN: "DC=child,DC=contoso,DC=local"}.
func DomainFromDN(dn string) (*DomainInfo, error) {
	if dn == "" {
		return nil, fmt.Errorf("distinguished name cannot be empty")
	}

	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DN %q: %w", dn, err)
	}

	var components []string
	var rdns []*ldap.RelativeDN
	for _, rdn := range parsed.RDNs {
		if len(rdn.Attributes) != 1 {
			continue
		}
		attr := rdn.Attributes[0]
		if strings.EqualFold(attr.Type, "DC") {
			components = append(components, attr.Value)
			rdns = append(rdns, rdn)
		}
	}

	if len(components) == 0 {
		return nil, fmt.Errorf("no DC components in DN %q", dn)
	}

	domainDN := &ldap.DN{RDNs: rdns}

	return &DomainInfo{
		Name: components[0],
		FQDN: strings.Join(components, "."),
		DN:   domainDN.String(),
	}, nil
}

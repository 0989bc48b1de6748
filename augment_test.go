package ldapcp

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yvand/LDAPCP-sub000/directory"
)

// augmentDirectory routes searches the way the manual walk issues them:
// subtree searches resolve the principal, base-scoped searches fetch
// one group by DN.
type augmentDirectory struct {
	principal *ldap.Entry
	groups    map[string]*ldap.Entry
}

func (d *augmentDirectory) handle(req *directory.SearchRequest) (*directory.SearchResult, error) {
	if req.Scope == directory.ScopeBaseObject {
		if group, ok := d.groups[req.BaseDN]; ok {
			return entries(group)
		}
		return entries()
	}
	if d.principal != nil && strings.Contains(req.Filter, "userPrincipalName=") {
		return entries(d.principal)
	}
	return entries()
}

func groupEntry(dn, name string, memberOf ...string) *ldap.Entry {
	attrs := map[string][]string{
		"objectClass":    {"top", "group"},
		"sAMAccountName": {name},
	}
	if len(memberOf) > 0 {
		attrs["memberOf"] = memberOf
	}
	return testEntry(dn, attrs)
}

func TestAugmentCyclicNestingTerminates(t *testing.T) {
	const (
		dnA = "CN=A,OU=Groups,DC=contoso,DC=local"
		dnB = "CN=B,OU=Groups,DC=contoso,DC=local"
		dnC = "CN=C,OU=Groups,DC=contoso,DC=local"
	)
	dir := &augmentDirectory{
		principal: testEntry("CN=John Doe,CN=Users,DC=contoso,DC=local", map[string][]string{
			"objectClass":       {"top", "person", "user"},
			"userPrincipalName": {"jdoe@contoso.local"},
			"memberOf":          {dnA},
		}),
		groups: map[string]*ldap.Entry{
			dnA: groupEntry(dnA, "A", dnB),
			dnB: groupEntry(dnB, "B", dnC),
			dnC: groupEntry(dnC, "C", dnA),
		},
	}
	conn, _ := newTestConnection("contoso", "DC=contoso,DC=local", dir.handle)
	p := newTestProvider(t, conn)

	groups, err := p.Augment(context.Background(), &Claim{
		Type:  testIdentityClaimType,
		Value: "jdoe@contoso.local",
	})
	require.NoError(t, err)

	sort.Strings(groups)
	assert.Equal(t, []string{
		`contoso.local\A`,
		`contoso.local\B`,
		`contoso.local\C`,
	}, groups)
}

func TestAugmentNestedGroupInOtherDomain(t *testing.T) {
	const (
		dnSales = "CN=Sales,OU=Groups,DC=contoso,DC=local"
		dnAll   = "CN=AllStaff,OU=Groups,DC=fabrikam,DC=com"
	)
	dir := &augmentDirectory{
		principal: testEntry("CN=John Doe,CN=Users,DC=contoso,DC=local", map[string][]string{
			"objectClass":       {"top", "person", "user"},
			"userPrincipalName": {"jdoe@contoso.local"},
			"memberOf":          {dnSales},
		}),
		groups: map[string]*ldap.Entry{
			dnSales: groupEntry(dnSales, "Sales", dnAll),
			dnAll:   groupEntry(dnAll, "AllStaff"),
		},
	}
	conn, _ := newTestConnection("contoso", "DC=contoso,DC=local", dir.handle)
	p := newTestProvider(t, conn)

	groups, err := p.Augment(context.Background(), &Claim{
		Type:  testIdentityClaimType,
		Value: "jdoe@contoso.local",
	})
	require.NoError(t, err)

	sort.Strings(groups)
	// The nested group's identifier carries its own domain, not the
	// querying connection's.
	assert.Equal(t, []string{
		`contoso.local\Sales`,
		`fabrikam.com\AllStaff`,
	}, groups)
}

func TestAugmentNativeStrategy(t *testing.T) {
	conn, client := newTestConnection("contoso", "DC=contoso,DC=local",
		func(req *directory.SearchRequest) (*directory.SearchResult, error) {
			if strings.Contains(req.Filter, "member:1.2.840.113556.1.4.1941:=") {
				return entries(
					groupEntry("CN=Sales,OU=Groups,DC=contoso,DC=local", "Sales"),
					groupEntry("CN=Managers,OU=Groups,DC=contoso,DC=local", "Managers"),
				)
			}
			if strings.Contains(req.Filter, "userPrincipalName=") {
				return entries(testEntry("CN=John Doe,CN=Users,DC=contoso,DC=local", map[string][]string{
					"objectClass":       {"top", "person", "user"},
					"userPrincipalName": {"jdoe@contoso.local"},
				}))
			}
			return entries()
		})
	conn.UseNativeGroupResolution = true
	p := newTestProvider(t, conn)

	groups, err := p.Augment(context.Background(), &Claim{
		Type:  testIdentityClaimType,
		Value: "jdoe@contoso.local",
	})
	require.NoError(t, err)

	sort.Strings(groups)
	assert.Equal(t, []string{
		`contoso.local\Managers`,
		`contoso.local\Sales`,
	}, groups)
	assert.Equal(t, 2, client.searchCount(), "principal lookup plus one transitive search")
}

func TestAugmentNativeFallsBackToManual(t *testing.T) {
	const dnSales = "CN=Sales,OU=Groups,DC=contoso,DC=local"
	dir := &augmentDirectory{
		principal: testEntry("CN=John Doe,CN=Users,DC=contoso,DC=local", map[string][]string{
			"objectClass":       {"top", "person", "user"},
			"userPrincipalName": {"jdoe@contoso.local"},
			"memberOf":          {dnSales},
		}),
		groups: map[string]*ldap.Entry{
			dnSales: groupEntry(dnSales, "Sales"),
		},
	}
	conn, _ := newTestConnection("contoso", "DC=contoso,DC=local",
		func(req *directory.SearchRequest) (*directory.SearchResult, error) {
			if strings.Contains(req.Filter, "member:1.2.840.113556.1.4.1941:=") {
				return nil, directory.NewError("search",
					ldap.NewError(ldap.LDAPResultUnavailable, errors.New("cross-domain referral")))
			}
			return dir.handle(req)
		})
	conn.UseNativeGroupResolution = true
	p := newTestProvider(t, conn)

	groups, err := p.Augment(context.Background(), &Claim{
		Type:  testIdentityClaimType,
		Value: "jdoe@contoso.local",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`contoso.local\Sales`}, groups)
}

func TestAugmentPrincipalNotFound(t *testing.T) {
	conn, _ := newTestConnection("contoso", "DC=contoso,DC=local",
		func(req *directory.SearchRequest) (*directory.SearchResult, error) {
			return entries()
		})
	p := newTestProvider(t, conn)

	groups, err := p.Augment(context.Background(), &Claim{
		Type:  testIdentityClaimType,
		Value: "nobody@contoso.local",
	})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestAugmentSkipsDisabledConnections(t *testing.T) {
	conn, client := newTestConnection("contoso", "DC=contoso,DC=local", nil)
	conn.AugmentationEnabled = false
	p := newTestProvider(t, conn)

	_, err := p.Augment(context.Background(), &Claim{
		Type:  testIdentityClaimType,
		Value: "jdoe@contoso.local",
	})
	assert.ErrorIs(t, err, ErrNoDirectoryConfigured)
	assert.Zero(t, client.searchCount())
}

func TestAugmentMergesConnectionsAndIsolatesFailures(t *testing.T) {
	const dnSales = "CN=Sales,OU=Groups,DC=contoso,DC=local"
	dir := &augmentDirectory{
		principal: testEntry("CN=John Doe,CN=Users,DC=contoso,DC=local", map[string][]string{
			"objectClass":       {"top", "person", "user"},
			"userPrincipalName": {"jdoe@contoso.local"},
			"memberOf":          {dnSales},
		}),
		groups: map[string]*ldap.Entry{
			dnSales: groupEntry(dnSales, "Sales"),
		},
	}
	healthy, _ := newTestConnection("contoso", "DC=contoso,DC=local", dir.handle)
	broken, _ := newTestConnection("fabrikam", "DC=fabrikam,DC=com",
		func(req *directory.SearchRequest) (*directory.SearchResult, error) {
			return nil, errors.New("connection refused")
		})
	p := newTestProvider(t, healthy, broken)

	groups, err := p.Augment(context.Background(), &Claim{
		Type:  testIdentityClaimType,
		Value: "jdoe@contoso.local",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`contoso.local\Sales`}, groups)
}

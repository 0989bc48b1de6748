package ldapcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yvand/LDAPCP-sub000/claims"
	"github.com/Yvand/LDAPCP-sub000/directory"
)

func testUserConfig() *claims.ClaimTypeConfig {
	return &claims.ClaimTypeConfig{
		ClaimType:          testIdentityClaimType,
		DirectoryAttribute: "userPrincipalName",
		DirectoryClass:     "user",
		ObjectKind:         claims.ObjectKindUser,
		SupportsWildcard:   true,
	}
}

func testGroupConfig() *claims.ClaimTypeConfig {
	return &claims.ClaimTypeConfig{
		ClaimType:          testRoleClaimType,
		DirectoryAttribute: "sAMAccountName",
		DirectoryClass:     "group",
		ObjectKind:         claims.ObjectKindGroup,
		SupportsWildcard:   true,
		ClaimValuePrefix:   claims.TokenFQDN + `\`,
	}
}

func TestFilterBuilderWildcardPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   WildcardPolicy
		exact    bool
		expected string
	}{
		{"suffix wildcard", WildcardSuffix, false, "(&(objectClass=user)(userPrincipalName=jdoe*))"},
		{"both sides", WildcardBoth, false, "(&(objectClass=user)(userPrincipalName=*jdoe*))"},
		{"no wildcard", WildcardNone, false, "(&(objectClass=user)(userPrincipalName=jdoe))"},
		{"exact match overrides policy", WildcardSuffix, true, "(&(objectClass=user)(userPrincipalName=jdoe))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &OperationContext{
				Kind:       OperationSearch,
				Input:      "jdoe",
				ExactMatch: tt.exact,
				Configs:    []*claims.ClaimTypeConfig{testUserConfig()},
				settings:   &Settings{WildcardPolicy: tt.policy},
			}
			assert.Equal(t, tt.expected, NewFilterBuilder().Build(op, nil))
		})
	}
}

func TestFilterBuilderExactOnlyConfig(t *testing.T) {
	config := testUserConfig()
	config.SupportsWildcard = false

	op := &OperationContext{
		Kind:     OperationSearch,
		Input:    "jdoe",
		Configs:  []*claims.ClaimTypeConfig{config},
		settings: &Settings{WildcardPolicy: WildcardSuffix},
	}
	assert.Equal(t, "(&(objectClass=user)(userPrincipalName=jdoe))", NewFilterBuilder().Build(op, nil))
}

func TestFilterBuilderCombinesConfigs(t *testing.T) {
	op := &OperationContext{
		Kind:     OperationSearch,
		Input:    "sal",
		Configs:  []*claims.ClaimTypeConfig{testUserConfig(), testGroupConfig()},
		settings: &Settings{WildcardPolicy: WildcardSuffix},
	}

	filter := NewFilterBuilder().Build(op, nil)
	assert.Equal(t, "(|(&(objectClass=user)(userPrincipalName=sal*))(&(objectClass=group)(sAMAccountName=sal*)))", filter)
}

func TestFilterBuilderEscapesInputBeforeWildcards(t *testing.T) {
	op := &OperationContext{
		Kind:     OperationSearch,
		Input:    `j*(doe)\`,
		Configs:  []*claims.ClaimTypeConfig{testUserConfig()},
		settings: &Settings{WildcardPolicy: WildcardSuffix},
	}

	filter := NewFilterBuilder().Build(op, nil)
	require.Equal(t, `(&(objectClass=user)(userPrincipalName=j\2a\28doe\29\5c*))`, filter)

	// The trailing wildcard stays literal; the escaped body round-trips
	// to the original input.
	assert.Equal(t, `j*(doe)\*`, directory.UnescapeFilter(`j\2a\28doe\29\5c*`))
}

func TestFilterBuilderAdditionalFilter(t *testing.T) {
	config := testGroupConfig()
	config.AdditionalFilter = "(groupType:1.2.840.113556.1.4.803:=2147483648)"

	op := &OperationContext{
		Kind:       OperationSearch,
		Input:      "Sales",
		ExactMatch: true,
		Configs:    []*claims.ClaimTypeConfig{config},
		settings:   &Settings{},
	}
	assert.Equal(t,
		"(&(objectClass=group)(sAMAccountName=Sales)(groupType:1.2.840.113556.1.4.803:=2147483648))",
		NewFilterBuilder().Build(op, nil))
}

func TestFilterBuilderGlobalRestrictions(t *testing.T) {
	op := &OperationContext{
		Kind:    OperationSearch,
		Input:   "sal",
		Configs: []*claims.ClaimTypeConfig{testUserConfig(), testGroupConfig()},
		settings: &Settings{
			WildcardPolicy:           WildcardSuffix,
			FilterEnabledUsersOnly:   true,
			FilterSecurityGroupsOnly: true,
		},
	}

	filter := NewFilterBuilder().Build(op, nil)
	assert.Contains(t, filter, "(!(userAccountControl:1.2.840.113556.1.4.803:=2))")
	assert.Contains(t, filter, "(groupType:1.2.840.113556.1.4.803:=2147483648)")
}

func TestFilterBuilderConnectionPrefix(t *testing.T) {
	op := &OperationContext{
		Kind:       OperationSearch,
		Input:      "jdoe",
		ExactMatch: true,
		Configs:    []*claims.ClaimTypeConfig{testUserConfig()},
		settings:   &Settings{},
	}
	conn := &Connection{Name: "contoso", FilterPrefix: "(!(cn=svc-*))"}

	filter := NewFilterBuilder().Build(op, conn)
	assert.Equal(t, "(&(!(cn=svc-*))(&(objectClass=user)(userPrincipalName=jdoe)))", filter)
}

func TestFilterBuilderEmptyInput(t *testing.T) {
	op := &OperationContext{
		Kind:     OperationSearch,
		Configs:  []*claims.ClaimTypeConfig{testUserConfig()},
		settings: &Settings{},
	}
	assert.Empty(t, NewFilterBuilder().Build(op, nil))
}

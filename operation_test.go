package ldapcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yvand/LDAPCP-sub000/claims"
)

func TestStripValuePrefix(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		prefix   string
		expected string
	}{
		{"no prefix configured", "jdoe@contoso.local", "", "jdoe@contoso.local"},
		{"static prefix present", "ext:bob@x.com", "ext:", "bob@x.com"},
		{"static prefix absent", "bob@x.com", "ext:", "bob@x.com"},
		{"fqdn token prefix", `contoso.local\Sales`, claims.TokenFQDN + `\`, "Sales"},
		{"domain token prefix", `contoso\Sales`, claims.TokenDomain + `\`, "Sales"},
		{"token prefix absent", "Sales", claims.TokenFQDN + `\`, "Sales"},
		{"token only prefix", "Sales", claims.TokenFQDN, "Sales"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripValuePrefix(tt.value, tt.prefix))
		})
	}
}

func TestSearchContextSelectsKinds(t *testing.T) {
	cc := newTestClaimsCollection(t)

	op := newSearchContext(cc, nil, DefaultSettings(), "sal", []claims.ObjectKind{claims.ObjectKindGroup}, "")
	require.Len(t, op.Configs, 1)
	assert.Equal(t, claims.ObjectKindGroup, op.Configs[0].ObjectKind)

	op = newSearchContext(cc, nil, DefaultSettings(), "sal",
		[]claims.ObjectKind{claims.ObjectKindUser, claims.ObjectKindGroup}, "")
	assert.Len(t, op.Configs, cc.Len())
}

func TestSearchContextClaimTypeScope(t *testing.T) {
	cc := newTestClaimsCollection(t)

	op := newSearchContext(cc, nil, DefaultSettings(), "sal",
		[]claims.ObjectKind{claims.ObjectKindUser, claims.ObjectKindGroup}, testRoleClaimType)
	require.Len(t, op.Configs, 1)
	assert.Equal(t, testRoleClaimType, op.Configs[0].ClaimType)
}

func TestSearchContextDetectsBypass(t *testing.T) {
	cc := newTestClaimsCollection(t)

	op := newSearchContext(cc, nil, DefaultSettings(), "ext:bob@x.com",
		[]claims.ObjectKind{claims.ObjectKindUser}, "")
	require.NotNil(t, op.BypassConfig)
	assert.Equal(t, "bob@x.com", op.BypassValue)
}

func TestValidateContext(t *testing.T) {
	cc := newTestClaimsCollection(t)

	op, err := newValidateContext(cc, nil, DefaultSettings(), &Claim{
		Type:  testRoleClaimType,
		Value: `contoso.local\Sales`,
	})
	require.NoError(t, err)
	assert.True(t, op.ExactMatch)
	assert.Equal(t, "Sales", op.Input)
	require.Len(t, op.Configs, 1)
	assert.Equal(t, testRoleClaimType, op.Configs[0].ClaimType)
}

func TestValidateContextUnknownClaimType(t *testing.T) {
	cc := newTestClaimsCollection(t)

	_, err := newValidateContext(cc, nil, DefaultSettings(), &Claim{
		Type:  "http://schemas.contoso.com/claims/unknown",
		Value: "whatever",
	})
	assert.ErrorIs(t, err, ErrUnknownClaimType)
}

func TestAugmentContext(t *testing.T) {
	cc := newTestClaimsCollection(t)

	op, err := newAugmentContext(cc, nil, DefaultSettings(), &Claim{
		Type:  testIdentityClaimType,
		Value: "jdoe@contoso.local",
	})
	require.NoError(t, err)
	assert.Equal(t, "jdoe@contoso.local", op.Input)
	require.NotNil(t, op.PrincipalConfig())
	require.NotNil(t, op.GroupConfig())
	assert.Equal(t, "userPrincipalName", op.PrincipalConfig().DirectoryAttribute)
	assert.Equal(t, "sAMAccountName", op.GroupConfig().DirectoryAttribute)
}

func TestAugmentContextUnknownClaimType(t *testing.T) {
	cc := newTestClaimsCollection(t)

	_, err := newAugmentContext(cc, nil, DefaultSettings(), &Claim{
		Type:  "http://schemas.contoso.com/claims/unknown",
		Value: "whatever",
	})
	assert.ErrorIs(t, err, ErrUnknownClaimType)
}

package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainFromDN(t *testing.T) {
	tests := []struct {
		name         string
		dn           string
		expectedName string
		expectedFQDN string
		expectedDN   string
		expectError  bool
	}{
		{
			name:         "group in nested domain",
			dn:           "CN=Sales,OU=Groups,DC=child,DC=contoso,DC=local",
			expectedName: "child",
			expectedFQDN: "child.contoso.local",
			expectedDN:   "DC=child,DC=contoso,DC=local",
		},
		{
			name:         "user in root domain",
			dn:           "CN=John Doe,CN=Users,DC=contoso,DC=local",
			expectedName: "contoso",
			expectedFQDN: "contoso.local",
			expectedDN:   "DC=contoso,DC=local",
		},
		{
			name:         "domain DN only",
			dn:           "DC=example,DC=org",
			expectedName: "example",
			expectedFQDN: "example.org",
			expectedDN:   "DC=example,DC=org",
		},
		{
			name:         "lowercase dc components",
			dn:           "cn=admin,dc=example,dc=net",
			expectedName: "example",
			expectedFQDN: "example.net",
		},
		{
			name:        "no dc components",
			dn:          "CN=Sales,OU=Groups",
			expectError: true,
		},
		{
			name:        "empty dn",
			dn:          "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := DomainFromDN(tt.dn)
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedName, info.Name)
			assert.Equal(t, tt.expectedFQDN, info.FQDN)
			if tt.expectedDN != "" {
				assert.Equal(t, tt.expectedDN, info.DN)
			}
		})
	}
}

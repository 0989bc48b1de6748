package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLDAPURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		expected    *ServerInfo
		expectError bool
	}{
		{
			name: "ldaps with port",
			url:  "ldaps://dc1.contoso.local:636",
			expected: &ServerInfo{
				Host:   "dc1.contoso.local",
				Port:   636,
				UseTLS: true,
				Source: "config",
			},
		},
		{
			name: "ldap with port",
			url:  "ldap://dc1.contoso.local:389",
			expected: &ServerInfo{
				Host:   "dc1.contoso.local",
				Port:   389,
				UseTLS: false,
				Source: "config",
			},
		},
		{
			name: "ldap default port",
			url:  "ldap://dc1.contoso.local",
			expected: &ServerInfo{
				Host:   "dc1.contoso.local",
				Port:   389,
				UseTLS: false,
				Source: "config",
			},
		},
		{
			name: "ldaps default port",
			url:  "ldaps://dc1.contoso.local",
			expected: &ServerInfo{
				Host:   "dc1.contoso.local",
				Port:   636,
				UseTLS: true,
				Source: "config",
			},
		},
		{
			name:        "unsupported scheme",
			url:         "http://dc1.contoso.local",
			expectError: true,
		},
		{
			name:        "empty url",
			url:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := ParseLDAPURL(tt.url)
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected.Host, server.Host)
			assert.Equal(t, tt.expected.Port, server.Port)
			assert.Equal(t, tt.expected.UseTLS, server.UseTLS)
		})
	}
}

func TestServerInfoToURL(t *testing.T) {
	assert.Equal(t, "ldaps://dc1.contoso.local:636", ServerInfoToURL(&ServerInfo{
		Host: "dc1.contoso.local", Port: 636, UseTLS: true,
	}))
	assert.Equal(t, "ldap://dc1.contoso.local:389", ServerInfoToURL(&ServerInfo{
		Host: "dc1.contoso.local", Port: 389,
	}))
}

func TestSortServersByPriority(t *testing.T) {
	d := NewSRVDiscovery(nil)

	servers := []*ServerInfo{
		{Host: "dc3", Priority: 10, Weight: 50},
		{Host: "dc1", Priority: 0, Weight: 100},
		{Host: "dc4", Priority: 10, Weight: 100},
		{Host: "dc2", Priority: 0, Weight: 50},
	}
	d.sortServersByPriority(servers)

	hosts := make([]string, len(servers))
	for i, s := range servers {
		hosts[i] = s.Host
	}
	assert.Equal(t, []string{"dc1", "dc2", "dc4", "dc3"}, hosts)
}

func TestValidateServerInfo(t *testing.T) {
	tests := []struct {
		name        string
		server      *ServerInfo
		expectError bool
	}{
		{"valid", &ServerInfo{Host: "dc1", Port: 636}, false},
		{"nil", nil, true},
		{"empty host", &ServerInfo{Port: 636}, true},
		{"invalid port", &ServerInfo{Host: "dc1", Port: 0}, true},
		{"port too large", &ServerInfo{Host: "dc1", Port: 70000}, true},
		{"negative priority", &ServerInfo{Host: "dc1", Port: 636, Priority: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerInfo(tt.server)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

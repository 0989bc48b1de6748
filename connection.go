package ldapcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/creasty/defaults"

	"github.com/Yvand/LDAPCP-sub000/directory"
)

// WildcardPolicy controls how non-exact search input is turned into a
// filter pattern.
type WildcardPolicy int

const (
	// WildcardNone matches input verbatim.
	WildcardNone WildcardPolicy = iota
	// WildcardSuffix appends a trailing wildcard (prefix match).
	WildcardSuffix
	// WildcardBoth wraps input in wildcards on both sides. Higher cost
	// on large directories.
	WildcardBoth
)

// Settings holds the global resolution policy shared by all operations.
// A Settings value is used exactly as given: WildcardNone and other
// zero values are honored as explicit choices, never rewritten.
// DefaultSettings returns the recommended starting point.
type Settings struct {
	// WildcardPolicy applies to search operations on configs that
	// support wildcards.
	WildcardPolicy WildcardPolicy `default:"1"`

	// ExactMatchOnly forces exact comparison for every search.
	ExactMatchOnly bool

	// FilterEnabledUsersOnly excludes disabled accounts from user
	// searches.
	FilterEnabledUsersOnly bool

	// FilterSecurityGroupsOnly restricts group searches to security
	// groups.
	FilterSecurityGroupsOnly bool

	// CompareResultsByDomain dedups same-valued results from different
	// domains separately even when the matched config's prefix has no
	// domain token.
	CompareResultsByDomain bool

	// MaxSearchResults caps the entries requested per connection. Zero
	// means no cap.
	MaxSearchResults int `default:"30"`

	// SearchTimeout bounds each per-connection directory call. Zero
	// means no per-connection deadline.
	SearchTimeout time.Duration `default:"10s"`
}

// DefaultSettings returns the recommended policy: suffix wildcards,
// 30 results per connection, a 10 second per-connection timeout.
func DefaultSettings() *Settings {
	s := &Settings{}
	_ = defaults.Set(s)
	return s
}

// Connection is one configured directory endpoint together with its
// resolution flags. Domain metadata is resolved lazily on first use;
// only a successful resolution is cached, so a transient failure does
// not poison later requests.
type Connection struct {
	// Name identifies the connection in logs.
	Name string

	// Config describes the endpoint and credentials.
	Config *directory.ConnectionConfig

	// AugmentationEnabled includes this connection in group
	// augmentation.
	AugmentationEnabled bool

	// UseNativeGroupResolution prefers the directory's transitive
	// membership matching rule over the manual recursive walk.
	UseNativeGroupResolution bool

	// GroupMembershipAttributes lists membership attribute names in
	// fallback order, e.g. "memberOf" then "uniqueMemberOf".
	GroupMembershipAttributes []string

	// FilterPrefix is a connection-specific filter fragment ANDed into
	// every search against this connection.
	FilterPrefix string

	client directory.Client

	domainMu   sync.Mutex
	domainInfo *directory.DomainInfo
}

// NewConnection creates a connection over a pooled directory client.
func NewConnection(name string, config *directory.ConnectionConfig, log directory.Logger) (*Connection, error) {
	if config == nil {
		return nil, fmt.Errorf("connection config cannot be nil")
	}
	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply connection defaults: %w", err)
	}

	client, err := directory.NewClient(config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory client for %q: %w", name, err)
	}

	return &Connection{
		Name:                      name,
		Config:                    config,
		GroupMembershipAttributes: []string{"memberOf", "uniqueMemberOf"},
		client:                    client,
	}, nil
}

// NewConnectionWithClient creates a connection over an existing client.
func NewConnectionWithClient(name string, config *directory.ConnectionConfig, client directory.Client) *Connection {
	return &Connection{
		Name:                      name,
		Config:                    config,
		GroupMembershipAttributes: []string{"memberOf", "uniqueMemberOf"},
		client:                    client,
	}
}

// Client returns the underlying directory client.
func (c *Connection) Client() directory.Client {
	return c.client
}

// Close releases the connection's pooled client.
func (c *Connection) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// DomainInfo resolves the connection's domain name, FQDN and base DN.
// The first successful resolution queries the root DSE and is cached;
// a failed resolution is retried on the next call.
func (c *Connection) DomainInfo(ctx context.Context) (*directory.DomainInfo, error) {
	c.domainMu.Lock()
	defer c.domainMu.Unlock()

	if c.domainInfo != nil {
		return c.domainInfo, nil
	}

	baseDN, err := c.client.BaseDN(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base DN for %q: %w", c.Name, err)
	}
	info, err := directory.DomainFromDN(baseDN)
	if err != nil {
		return nil, fmt.Errorf("failed to derive domain info for %q: %w", c.Name, err)
	}
	c.domainInfo = info
	return info, nil
}

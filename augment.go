package ldapcp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Yvand/LDAPCP-sub000/claims"
	"github.com/Yvand/LDAPCP-sub000/directory"
)

// transitiveMemberClause is the matching-rule filter resolving nested
// group membership in one round trip (LDAP_MATCHING_RULE_IN_CHAIN).
const transitiveMemberClause = "member:1.2.840.113556.1.4.1941:=%s"

// augmentationEngine resolves the transitive group closure for a
// validated principal. Per connection it prefers the directory's
// native transitive matching rule and falls back to a manual recursive
// walk when the native strategy is unavailable, which happens on some
// cross-domain trust topologies.
type augmentationEngine struct {
	collection *claims.Collection
	settings   *Settings
	log        directory.Logger
}

func newAugmentationEngine(collection *claims.Collection, settings *Settings, log directory.Logger) *augmentationEngine {
	return &augmentationEngine{collection: collection, settings: settings, log: log}
}

// GetGroups fans out over every augmentation-enabled connection and
// merges the distinct group identifiers. A connection that cannot
// resolve the principal, or fails outright, contributes zero groups
// and never aborts its siblings.
func (a *augmentationEngine) GetGroups(ctx context.Context, op *OperationContext) ([]string, error) {
	var connections []*Connection
	for _, conn := range op.Connections {
		if conn.AugmentationEnabled {
			connections = append(connections, conn)
		}
	}
	if len(connections) == 0 {
		return nil, ErrNoDirectoryConfigured
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		seen   = make(map[string]bool)
		groups []string
	)
	for _, conn := range connections {
		wg.Add(1)
		go func(conn *Connection) {
			defer wg.Done()

			connGroups, err := a.groupsFromConnection(ctx, op, conn)
			if err != nil {
				a.log.Warn("Augmentation connection contributed no groups", map[string]any{
					"connection": conn.Name,
					"error":      err.Error(),
				})
				return
			}

			mu.Lock()
			for _, group := range connGroups {
				key := strings.ToLower(group)
				if !seen[key] {
					seen[key] = true
					groups = append(groups, group)
				}
			}
			mu.Unlock()
		}(conn)
	}
	wg.Wait()

	a.log.Debug("Augmentation completed", map[string]any{
		"claim_value": op.IncomingClaim.Value,
		"connections": len(connections),
		"groups":      len(groups),
	})
	return groups, nil
}

// groupsFromConnection resolves the principal's groups against one
// connection with its own timeout.
func (a *augmentationEngine) groupsFromConnection(ctx context.Context, op *OperationContext, conn *Connection) ([]string, error) {
	var timeout time.Duration
	if a.settings != nil {
		timeout = a.settings.SearchTimeout
	}
	connCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	domain, err := conn.DomainInfo(connCtx)
	if err != nil {
		return nil, err
	}

	principal, err := a.findPrincipal(connCtx, op, conn, domain)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		// Not found in this directory. Not an error.
		a.log.Debug("Principal not found in directory", map[string]any{
			"connection":  conn.Name,
			"claim_value": op.IncomingClaim.Value,
		})
		return nil, nil
	}

	if conn.UseNativeGroupResolution {
		groups, err := a.nativeGroups(connCtx, conn, domain, principal.DN)
		if err == nil {
			return groups, nil
		}
		if !directory.IsUnavailableError(err) {
			return nil, err
		}
		a.log.Warn("Native group resolution unavailable, falling back to manual walk", map[string]any{
			"connection": conn.Name,
			"error":      err.Error(),
		})
	}
	return a.manualGroups(connCtx, conn, principal)
}

// findPrincipal looks the principal up by its configured identity
// attribute and returns nil when no entry matches.
func (a *augmentationEngine) findPrincipal(ctx context.Context, op *OperationContext, conn *Connection, domain *directory.DomainInfo) (*Row, error) {
	config := op.PrincipalConfig()
	filter := fmt.Sprintf("(&(objectClass=%s)(%s=%s))",
		config.DirectoryClass, config.DirectoryAttribute, directory.EscapeFilter(op.Input))

	attributes := append([]string{objectClassAttribute, config.DirectoryAttribute}, conn.GroupMembershipAttributes...)
	result, err := conn.Client().Search(ctx, &directory.SearchRequest{
		BaseDN:     domain.DN,
		Scope:      directory.ScopeWholeSubtree,
		Filter:     filter,
		Attributes: attributes,
		SizeLimit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Entries) == 0 {
		return nil, nil
	}
	return entryToRow(result.Entries[0], domain), nil
}

// nativeGroups resolves the full closure in one search using the
// transitive membership matching rule.
func (a *augmentationEngine) nativeGroups(ctx context.Context, conn *Connection, domain *directory.DomainInfo, principalDN string) ([]string, error) {
	groupConfig := a.groupConfig()
	memberClause := fmt.Sprintf(transitiveMemberClause, directory.EscapeFilter(principalDN))
	filter := fmt.Sprintf("(&(objectClass=%s)%s)", groupConfig.DirectoryClass, memberClause)

	result, err := conn.Client().SearchWithPaging(ctx, &directory.SearchRequest{
		BaseDN:     domain.DN,
		Scope:      directory.ScopeWholeSubtree,
		Filter:     filter,
		Attributes: []string{objectClassAttribute, groupConfig.DirectoryAttribute},
	})
	if err != nil {
		return nil, err
	}

	groups := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		// Transitive results may include groups from trusted domains.
		groupDomain, err := directory.DomainFromDN(entry.DN)
		if err != nil {
			groupDomain = domain
		}
		row := entryToRow(entry, groupDomain)
		if identifier := a.groupIdentifier(groupConfig, row); identifier != "" {
			groups = append(groups, identifier)
		}
	}
	return groups, nil
}

// manualGroups walks the membership graph from the principal's direct
// groups. A visited set over group DNs guarantees termination on
// cyclic nesting.
func (a *augmentationEngine) manualGroups(ctx context.Context, conn *Connection, principal *Row) ([]string, error) {
	visited := make(map[string]bool)
	var groups []string

	for _, groupDN := range a.membershipDNs(conn, principal) {
		if err := a.walkGroup(ctx, conn, groupDN, visited, &groups); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// walkGroup resolves one group and recurses into its own memberships.
func (a *augmentationEngine) walkGroup(ctx context.Context, conn *Connection, groupDN string, visited map[string]bool, groups *[]string) error {
	key := strings.ToLower(groupDN)
	if visited[key] {
		return nil
	}
	visited[key] = true

	groupConfig := a.groupConfig()
	attributes := append([]string{objectClassAttribute, groupConfig.DirectoryAttribute}, conn.GroupMembershipAttributes...)
	result, err := conn.Client().Search(ctx, &directory.SearchRequest{
		BaseDN:     groupDN,
		Scope:      directory.ScopeBaseObject,
		Filter:     fmt.Sprintf("(objectClass=%s)", groupConfig.DirectoryClass),
		Attributes: attributes,
		SizeLimit:  1,
	})
	if err != nil {
		if directory.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	if len(result.Entries) == 0 {
		return nil
	}

	// Nested groups may live in a different domain, so the identifier
	// uses domain info derived from the group's own DN.
	groupDomain, err := directory.DomainFromDN(result.Entries[0].DN)
	if err != nil {
		return err
	}
	row := entryToRow(result.Entries[0], groupDomain)

	if identifier := a.groupIdentifier(groupConfig, row); identifier != "" {
		*groups = append(*groups, identifier)
	}

	for _, nestedDN := range a.membershipDNs(conn, row) {
		if err := a.walkGroup(ctx, conn, nestedDN, visited, groups); err != nil {
			return err
		}
	}
	return nil
}

// membershipDNs returns the row's direct membership DNs from the first
// non-empty membership attribute.
func (a *augmentationEngine) membershipDNs(conn *Connection, row *Row) []string {
	for _, name := range conn.GroupMembershipAttributes {
		for attr, values := range row.Attributes {
			if strings.EqualFold(attr, name) && len(values) > 0 {
				return values
			}
		}
	}
	return nil
}

// groupIdentifier formats one group's output identifier with domain
// token substitution from the group's own domain.
func (a *augmentationEngine) groupIdentifier(config *claims.ClaimTypeConfig, row *Row) string {
	value := row.AttributeValue(config.DirectoryAttribute)
	if strings.EqualFold(config.DirectoryAttribute, sidAttribute) {
		if sid := directory.SIDText(row.RawAttributeValue(config.DirectoryAttribute)); sid != "" {
			value = sid
		}
	}
	if value == "" {
		return ""
	}
	prefix := claims.SubstituteTokens(config.ClaimValuePrefix, row.DomainName, row.DomainFQDN)
	return prefix + value
}

func (a *augmentationEngine) groupConfig() *claims.ClaimTypeConfig {
	return a.collection.PrimaryConfigFor(claims.ObjectKindGroup)
}

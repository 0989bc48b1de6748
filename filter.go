package ldapcp

import (
	"fmt"
	"strings"

	"github.com/Yvand/LDAPCP-sub000/claims"
	"github.com/Yvand/LDAPCP-sub000/directory"
)

// Active Directory matching-rule clauses.
const (
	// enabledAccountsClause excludes accounts with the disabled bit set.
	enabledAccountsClause = "(!(userAccountControl:1.2.840.113556.1.4.803:=2))"
	// securityGroupsClause keeps security groups only.
	securityGroupsClause = "(groupType:1.2.840.113556.1.4.803:=2147483648)"
)

// FilterBuilder turns an operation context into a directory search
// filter. Implementations may be swapped per deployment; the default
// OR-combines one clause per applicable config.
type FilterBuilder interface {
	// Build returns the filter for the given connection, or "" when no
	// applicable config produces a clause.
	Build(op *OperationContext, conn *Connection) string
}

// defaultFilterBuilder builds standard LDAP filters with optional
// enabled-accounts and security-groups restrictions.
type defaultFilterBuilder struct{}

// NewFilterBuilder returns the default filter builder.
func NewFilterBuilder() FilterBuilder {
	return defaultFilterBuilder{}
}

func (defaultFilterBuilder) Build(op *OperationContext, conn *Connection) string {
	if op.Input == "" {
		return ""
	}

	// Escape once, before wildcards are appended, so literal wildcard
	// characters added below are never escaped themselves.
	escaped := directory.EscapeFilter(op.Input)

	var clauses []string
	for _, config := range op.Configs {
		clause := buildConfigClause(config, escaped, op)
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}
	if len(clauses) == 0 {
		return ""
	}

	filter := clauses[0]
	if len(clauses) > 1 {
		filter = fmt.Sprintf("(|%s)", strings.Join(clauses, ""))
	}

	if conn != nil && conn.FilterPrefix != "" {
		filter = fmt.Sprintf("(&%s%s)", conn.FilterPrefix, filter)
	}
	return filter
}

// buildConfigClause returns the AND clause for one config, or "" when
// the config cannot match the input (wildcard-only pattern against an
// exact-only attribute).
func buildConfigClause(config *claims.ClaimTypeConfig, escaped string, op *OperationContext) string {
	pattern := buildPattern(config, escaped, op)

	var parts []string
	parts = append(parts, fmt.Sprintf("(objectClass=%s)", config.DirectoryClass))
	parts = append(parts, fmt.Sprintf("(%s=%s)", config.DirectoryAttribute, pattern))

	if config.AdditionalFilter != "" {
		parts = append(parts, config.AdditionalFilter)
	}
	if op.settings != nil {
		if config.ObjectKind == claims.ObjectKindUser && op.settings.FilterEnabledUsersOnly {
			parts = append(parts, enabledAccountsClause)
		}
		if config.ObjectKind == claims.ObjectKindGroup && op.settings.FilterSecurityGroupsOnly {
			parts = append(parts, securityGroupsClause)
		}
	}

	return fmt.Sprintf("(&%s)", strings.Join(parts, ""))
}

// buildPattern applies the wildcard policy to the escaped input.
func buildPattern(config *claims.ClaimTypeConfig, escaped string, op *OperationContext) string {
	if op.ExactMatch || config.ExactMatchOnly || !config.SupportsWildcard {
		return escaped
	}

	policy := WildcardSuffix
	if op.settings != nil {
		policy = op.settings.WildcardPolicy
	}
	switch policy {
	case WildcardSuffix:
		return escaped + "*"
	case WildcardBoth:
		return "*" + escaped + "*"
	default:
		return escaped
	}
}

package claims

import (
	"strings"
)

// Dynamic tokens usable in ClaimValuePrefix. They are substituted with
// the resolving directory's domain name or FQDN at result time.
const (
	TokenDomain = "{domain}"
	TokenFQDN   = "{fqdn}"
)

// ObjectKind identifies the directory object category a claim type
// configuration targets.
type ObjectKind int

const (
	ObjectKindUser ObjectKind = iota
	ObjectKindGroup
)

// String returns the object kind name.
func (k ObjectKind) String() string {
	switch k {
	case ObjectKindUser:
		return "user"
	case ObjectKindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// ClaimTypeConfig maps one claim type to a directory attribute and
// object class. A config either declares its own ClaimType, or sets
// UseMainConfigIdentifier to borrow the claim type of the primary
// config of the same ObjectKind (an "additional identifier" used for
// matching only).
type ClaimTypeConfig struct {
	// ClaimType is the abstract claim type identifier, e.g. the host's
	// identity or role claim URI. Empty when UseMainConfigIdentifier
	// is set, or for metadata-only configs.
	ClaimType string

	// DirectoryAttribute is the LDAP attribute matched and returned.
	DirectoryAttribute string

	// DirectoryClass is the LDAP object class the attribute belongs to,
	// e.g. "user" or "group".
	DirectoryClass string

	// ObjectKind says whether this config resolves users or groups.
	ObjectKind ObjectKind

	// SupportsWildcard allows wildcard patterns for this attribute in
	// search filters. Attributes that only support exact comparison
	// (e.g. binary identifiers) set this to false.
	SupportsWildcard bool

	// UseMainConfigIdentifier marks this config as an additional
	// identifier: it matches on its own attribute but the emitted
	// claim uses the primary config of the same ObjectKind.
	UseMainConfigIdentifier bool

	// ClaimValuePrefix is prepended to the attribute value in emitted
	// claims. May embed TokenDomain or TokenFQDN.
	ClaimValuePrefix string

	// BypassLookupPrefix is an optional keyword. Input starting with
	// it is accepted as a valid value without any directory lookup.
	BypassLookupPrefix string

	// DropPrefixWhenBypassed removes BypassLookupPrefix from the value
	// when the lookup was bypassed.
	DropPrefixWhenBypassed bool

	// DisplayAttribute overrides DirectoryAttribute for display text.
	DisplayAttribute string

	// ExactMatchOnly forces exact comparison for this config even when
	// the operation would otherwise match by prefix.
	ExactMatchOnly bool

	// AdditionalFilter is a raw LDAP filter fragment appended to this
	// config's clause, e.g. a matching-rule restriction.
	AdditionalFilter string

	// MetadataKey, when set, copies the attribute value into the
	// resolved entity's metadata map under this key.
	MetadataKey string

	// ShowClaimTypeInDisplayText appends the claim type's label to the
	// display text, e.g. `Sales (Role)`.
	ShowClaimTypeInDisplayText bool
}

// Copy returns an independent copy of the config.
func (c *ClaimTypeConfig) Copy() *ClaimTypeConfig {
	if c == nil {
		return nil
	}
	return &ClaimTypeConfig{
		ClaimType:                  c.ClaimType,
		DirectoryAttribute:         c.DirectoryAttribute,
		DirectoryClass:             c.DirectoryClass,
		ObjectKind:                 c.ObjectKind,
		SupportsWildcard:           c.SupportsWildcard,
		UseMainConfigIdentifier:    c.UseMainConfigIdentifier,
		ClaimValuePrefix:           c.ClaimValuePrefix,
		BypassLookupPrefix:         c.BypassLookupPrefix,
		DropPrefixWhenBypassed:     c.DropPrefixWhenBypassed,
		DisplayAttribute:           c.DisplayAttribute,
		ExactMatchOnly:             c.ExactMatchOnly,
		AdditionalFilter:           c.AdditionalFilter,
		MetadataKey:                c.MetadataKey,
		ShowClaimTypeInDisplayText: c.ShowClaimTypeInDisplayText,
	}
}

// PrefixHasDomainToken reports whether the claim value prefix embeds a
// dynamic domain token.
func (c *ClaimTypeConfig) PrefixHasDomainToken() bool {
	return PrefixHasDomainToken(c.ClaimValuePrefix)
}

// PrefixHasDomainToken reports whether prefix embeds TokenDomain or
// TokenFQDN.
func PrefixHasDomainToken(prefix string) bool {
	return strings.Contains(prefix, TokenDomain) || strings.Contains(prefix, TokenFQDN)
}

// SubstituteTokens replaces dynamic tokens in prefix with the given
// domain name and FQDN.
func SubstituteTokens(prefix, domainName, domainFQDN string) string {
	prefix = strings.ReplaceAll(prefix, TokenDomain, domainName)
	return strings.ReplaceAll(prefix, TokenFQDN, domainFQDN)
}

package ldapcp

import (
	"fmt"
	"strings"

	"github.com/Yvand/LDAPCP-sub000/claims"
)

// ResolvedEntity is the final principal or group returned to the host.
type ResolvedEntity struct {
	ClaimType   string
	ClaimValue  string
	DisplayText string
	ObjectKind  claims.ObjectKind
	Metadata    map[string]string
}

// EntityFormatter produces resolved entities from consolidated
// results. Implementations may be swapped per deployment.
type EntityFormatter interface {
	Format(result *ConsolidatedResult) *ResolvedEntity
	FormatBypass(config *claims.ClaimTypeConfig, value string) *ResolvedEntity
}

// defaultFormatter applies claim value prefixes with domain token
// substitution and resolves additional-identifier configs to their
// primary config's claim type.
type defaultFormatter struct {
	collection *claims.Collection
}

// NewEntityFormatter returns the default formatter over the given
// configuration.
func NewEntityFormatter(collection *claims.Collection) EntityFormatter {
	return &defaultFormatter{collection: collection}
}

func (f *defaultFormatter) Format(result *ConsolidatedResult) *ResolvedEntity {
	config := f.resolveConfig(result.MatchedConfig)

	prefix := claims.SubstituteTokens(config.ClaimValuePrefix, result.DomainName, result.DomainFQDN)
	entity := &ResolvedEntity{
		ClaimType:  config.ClaimType,
		ClaimValue: prefix + result.Value,
		ObjectKind: config.ObjectKind,
		Metadata:   make(map[string]string),
	}
	entity.DisplayText = f.displayText(config, result)

	for _, metaConfig := range f.collection.MetadataConfigs() {
		if metaConfig.ObjectKind != config.ObjectKind {
			continue
		}
		if value := result.Row.AttributeValue(metaConfig.DirectoryAttribute); value != "" {
			entity.Metadata[metaConfig.MetadataKey] = value
		}
	}
	return entity
}

// FormatBypass emits an entity straight from the input value, without
// any directory row, prefix substitution or metadata.
func (f *defaultFormatter) FormatBypass(config *claims.ClaimTypeConfig, value string) *ResolvedEntity {
	resolved := f.resolveConfig(config)
	return &ResolvedEntity{
		ClaimType:   resolved.ClaimType,
		ClaimValue:  value,
		DisplayText: value,
		ObjectKind:  resolved.ObjectKind,
		Metadata:    make(map[string]string),
	}
}

// resolveConfig substitutes the primary config when the matched config
// borrows its identifier.
func (f *defaultFormatter) resolveConfig(config *claims.ClaimTypeConfig) *claims.ClaimTypeConfig {
	if config.UseMainConfigIdentifier {
		if primary := f.collection.PrimaryConfigFor(config.ObjectKind); primary != nil {
			return primary
		}
	}
	return config
}

func (f *defaultFormatter) displayText(config *claims.ClaimTypeConfig, result *ConsolidatedResult) string {
	text := result.Value
	if config.DisplayAttribute != "" {
		if display := result.Row.AttributeValue(config.DisplayAttribute); display != "" {
			text = display
		}
	}

	isIdentity := f.collection.IdentityClaimType != "" &&
		strings.EqualFold(config.ClaimType, f.collection.IdentityClaimType)
	if config.ShowClaimTypeInDisplayText && !isIdentity {
		text = fmt.Sprintf("%s (%s)", text, claimTypeLabel(config.ClaimType))
	}
	return text
}

// claimTypeLabel derives a short human label from a claim type URI,
// e.g. ".../claims/role" yields "role".
func claimTypeLabel(claimType string) string {
	label := claimType
	if idx := strings.LastIndexAny(label, "/:"); idx >= 0 && idx+1 < len(label) {
		label = label[idx+1:]
	}
	return label
}

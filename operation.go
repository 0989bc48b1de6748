package ldapcp

import (
	"strings"

	"github.com/Yvand/LDAPCP-sub000/claims"
)

// OperationKind identifies the request entry point.
type OperationKind int

const (
	OperationSearch OperationKind = iota
	OperationValidate
	OperationAugment
)

// String returns the operation kind name.
func (k OperationKind) String() string {
	switch k {
	case OperationSearch:
		return "search"
	case OperationValidate:
		return "validate"
	case OperationAugment:
		return "augment"
	default:
		return "unknown"
	}
}

// Claim is an incoming claim to validate or augment.
type Claim struct {
	Type  string
	Value string
}

// OperationContext carries everything one request needs: the operation
// kind, the prepared input, the applicable config subset and the
// connection list. Built once per request and read-only thereafter.
type OperationContext struct {
	Kind       OperationKind
	Input      string
	ExactMatch bool

	// Configs is the subset of claim type configs this operation
	// resolves against.
	Configs []*claims.ClaimTypeConfig

	// IncomingClaim is set for validate and augment operations.
	IncomingClaim *Claim

	// Connections is the snapshot of directory connections.
	Connections []*Connection

	// BypassConfig is set when the input starts with a configured
	// bypass prefix, so no directory lookup is needed.
	BypassConfig *claims.ClaimTypeConfig

	// BypassValue is the input with the bypass prefix dropped when the
	// config says to drop it.
	BypassValue string

	collection *claims.Collection
	settings   *Settings
}

// newSearchContext builds the context for a search operation over the
// given object kinds, optionally scoped to one claim type.
func newSearchContext(collection *claims.Collection, connections []*Connection, settings *Settings, input string, kinds []claims.ObjectKind, claimTypeScope string) *OperationContext {
	op := &OperationContext{
		Kind:        OperationSearch,
		Input:       strings.TrimSpace(input),
		ExactMatch:  settings.ExactMatchOnly,
		Connections: connections,
		collection:  collection,
		settings:    settings,
	}

	for _, config := range collection.All() {
		if !kindRequested(kinds, config.ObjectKind) {
			continue
		}
		// Metadata-only configs enrich results but are not searched.
		if config.ClaimType == "" && !config.UseMainConfigIdentifier {
			continue
		}
		if claimTypeScope != "" && !strings.EqualFold(config.ClaimType, claimTypeScope) {
			continue
		}
		op.Configs = append(op.Configs, config)
	}

	op.detectBypass(op.Input)
	return op
}

// newValidateContext builds the context for validating one incoming
// claim. It returns ErrUnknownClaimType when no config declares the
// claim's type.
func newValidateContext(collection *claims.Collection, connections []*Connection, settings *Settings, claim *Claim) (*OperationContext, error) {
	config := collection.GetByClaimType(claim.Type)
	if config == nil {
		return nil, UnknownClaimTypeError(claim.Type)
	}

	op := &OperationContext{
		Kind:          OperationValidate,
		ExactMatch:    true,
		Configs:       []*claims.ClaimTypeConfig{config},
		IncomingClaim: claim,
		Connections:   connections,
		collection:    collection,
		settings:      settings,
	}

	// The prefix is re-applied after lookup, so it is stripped before
	// matching rather than matched against.
	op.Input = stripValuePrefix(claim.Value, config.ClaimValuePrefix)

	// Additional identifiers emit the primary config's claim type, so a
	// bypass prefix configured on one of them applies to incoming
	// claims of that type too.
	candidates := []*claims.ClaimTypeConfig{config}
	if collection.PrimaryConfigFor(config.ObjectKind) == config {
		candidates = append(candidates, collection.AdditionalConfigsFor(config.ObjectKind)...)
	}
	op.detectBypassIn(candidates, op.Input)
	return op, nil
}

// newAugmentContext builds the context for augmenting one principal
// with its groups.
func newAugmentContext(collection *claims.Collection, connections []*Connection, settings *Settings, claim *Claim) (*OperationContext, error) {
	principalConfig := collection.GetByClaimType(claim.Type)
	if principalConfig == nil {
		return nil, UnknownClaimTypeError(claim.Type)
	}
	groupConfig := collection.PrimaryConfigFor(claims.ObjectKindGroup)
	if groupConfig == nil {
		return nil, UnknownClaimTypeError("group")
	}

	op := &OperationContext{
		Kind:          OperationAugment,
		ExactMatch:    true,
		Configs:       []*claims.ClaimTypeConfig{principalConfig, groupConfig},
		IncomingClaim: claim,
		Connections:   connections,
		collection:    collection,
		settings:      settings,
	}
	op.Input = stripValuePrefix(claim.Value, principalConfig.ClaimValuePrefix)
	return op, nil
}

// PrincipalConfig returns the incoming principal's config on an
// augmentation context.
func (op *OperationContext) PrincipalConfig() *claims.ClaimTypeConfig {
	if len(op.Configs) == 0 {
		return nil
	}
	return op.Configs[0]
}

// GroupConfig returns the group identifier config on an augmentation
// context.
func (op *OperationContext) GroupConfig() *claims.ClaimTypeConfig {
	if len(op.Configs) < 2 {
		return nil
	}
	return op.Configs[1]
}

// detectBypass records the first applicable config whose bypass prefix
// starts the input, and the value to emit for it.
func (op *OperationContext) detectBypass(input string) {
	op.detectBypassIn(op.Configs, input)
}

func (op *OperationContext) detectBypassIn(configs []*claims.ClaimTypeConfig, input string) {
	for _, config := range configs {
		if config.BypassLookupPrefix == "" {
			continue
		}
		if strings.HasPrefix(input, config.BypassLookupPrefix) {
			op.BypassConfig = config
			op.BypassValue = input
			if config.DropPrefixWhenBypassed {
				op.BypassValue = strings.TrimPrefix(input, config.BypassLookupPrefix)
			}
			return
		}
	}
}

// stripValuePrefix removes a configured claim value prefix from an
// incoming value. When the prefix embeds a domain token, the dynamic
// part is unknown at parse time, so everything through the prefix's
// literal remainder is stripped instead.
func stripValuePrefix(value, prefix string) string {
	if prefix == "" {
		return value
	}
	if claims.PrefixHasDomainToken(prefix) {
		literal := prefix
		literal = strings.ReplaceAll(literal, claims.TokenDomain, "")
		literal = strings.ReplaceAll(literal, claims.TokenFQDN, "")
		if literal == "" {
			return value
		}
		if idx := strings.Index(value, literal); idx >= 0 {
			return value[idx+len(literal):]
		}
		return value
	}
	return strings.TrimPrefix(value, prefix)
}

func kindRequested(kinds []claims.ObjectKind, kind claims.ObjectKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

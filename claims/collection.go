package claims

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfiguration is wrapped by every validation failure raised
// on collection mutation.
var ErrInvalidConfiguration = errors.New("invalid claim type configuration")

// Collection owns a set of claim type configs and enforces cross-field
// uniqueness rules on every mutation. A mutation either commits with
// all rules holding, or fails and leaves the collection unchanged.
//
// Collection is not safe for concurrent mutation. Engines only ever
// read an immutable snapshot committed by the host.
type Collection struct {
	// IdentityClaimType is the host's identity claim type. The config
	// carrying it must target users and can never be removed.
	IdentityClaimType string

	// AllowMultipleGroupClaimTypes permits more than one group config
	// with its own claim type.
	AllowMultipleGroupClaimTypes bool

	configs []*ClaimTypeConfig
}

// NewCollection creates an empty collection bound to the host's
// identity claim type.
func NewCollection(identityClaimType string) *Collection {
	return &Collection{IdentityClaimType: identityClaimType}
}

// Add inserts a config after validating it against the collection. On
// failure the collection is unchanged.
func (cc *Collection) Add(config *ClaimTypeConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfiguration)
	}

	scratch := append(cc.copyConfigs(), config.Copy())
	if err := cc.validateConfigs(scratch); err != nil {
		return err
	}

	cc.configs = scratch
	return nil
}

// Update replaces the config identified by oldClaimType with newConfig
// after validating the result. Changing the identity claim config's
// claim type always fails. On failure the collection is unchanged.
func (cc *Collection) Update(oldClaimType string, newConfig *ClaimTypeConfig) error {
	if newConfig == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfiguration)
	}

	idx := cc.indexOfClaimType(oldClaimType)
	if idx < 0 {
		return fmt.Errorf("%w: no config with claim type %q", ErrInvalidConfiguration, oldClaimType)
	}

	if cc.isIdentityClaimType(oldClaimType) && !strings.EqualFold(newConfig.ClaimType, oldClaimType) {
		return fmt.Errorf("%w: claim type of the identity claim config cannot be changed", ErrInvalidConfiguration)
	}

	scratch := cc.copyConfigs()
	scratch[idx] = newConfig.Copy()
	if err := cc.validateConfigs(scratch); err != nil {
		return err
	}

	cc.configs = scratch
	return nil
}

// Remove deletes the config identified by claimType. Removing the
// identity claim config always fails.
func (cc *Collection) Remove(claimType string) error {
	if cc.isIdentityClaimType(claimType) {
		return fmt.Errorf("%w: the identity claim config cannot be removed", ErrInvalidConfiguration)
	}

	idx := cc.indexOfClaimType(claimType)
	if idx < 0 {
		return fmt.Errorf("%w: no config with claim type %q", ErrInvalidConfiguration, claimType)
	}

	return cc.removeAt(idx)
}

// RemoveConfig deletes the given config by attribute, class and object
// kind, covering configs with no claim type of their own.
func (cc *Collection) RemoveConfig(config *ClaimTypeConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config cannot be nil", ErrInvalidConfiguration)
	}
	if cc.isIdentityClaimType(config.ClaimType) {
		return fmt.Errorf("%w: the identity claim config cannot be removed", ErrInvalidConfiguration)
	}

	for i, existing := range cc.configs {
		if strings.EqualFold(existing.DirectoryAttribute, config.DirectoryAttribute) &&
			strings.EqualFold(existing.DirectoryClass, config.DirectoryClass) &&
			existing.ObjectKind == config.ObjectKind {
			return cc.removeAt(i)
		}
	}
	return fmt.Errorf("%w: config not found", ErrInvalidConfiguration)
}

func (cc *Collection) removeAt(idx int) error {
	scratch := cc.copyConfigs()
	scratch = append(scratch[:idx], scratch[idx+1:]...)
	if err := cc.validateConfigs(scratch); err != nil {
		return err
	}

	cc.configs = scratch
	return nil
}

// Validate checks the collection against all rules without mutating it.
func (cc *Collection) Validate() error {
	return cc.validateConfigs(cc.configs)
}

// GetByClaimType returns the config declaring the given claim type, or
// nil if none does. Comparison is case-insensitive.
func (cc *Collection) GetByClaimType(claimType string) *ClaimTypeConfig {
	idx := cc.indexOfClaimType(claimType)
	if idx < 0 {
		return nil
	}
	return cc.configs[idx]
}

// PrimaryConfigFor returns the first config of the given kind that
// declares its own claim type. For users this is the identity claim
// config when present.
func (cc *Collection) PrimaryConfigFor(kind ObjectKind) *ClaimTypeConfig {
	if kind == ObjectKindUser && cc.IdentityClaimType != "" {
		if config := cc.GetByClaimType(cc.IdentityClaimType); config != nil {
			return config
		}
	}
	for _, config := range cc.configs {
		if config.ObjectKind == kind && config.ClaimType != "" && !config.UseMainConfigIdentifier {
			return config
		}
	}
	return nil
}

// AdditionalConfigsFor returns the configs of the given kind that match
// on their own attribute but emit the primary config's claim type.
func (cc *Collection) AdditionalConfigsFor(kind ObjectKind) []*ClaimTypeConfig {
	var result []*ClaimTypeConfig
	for _, config := range cc.configs {
		if config.ObjectKind == kind && config.UseMainConfigIdentifier {
			result = append(result, config)
		}
	}
	return result
}

// MetadataConfigs returns the configs that populate entity metadata.
func (cc *Collection) MetadataConfigs() []*ClaimTypeConfig {
	var result []*ClaimTypeConfig
	for _, config := range cc.configs {
		if config.MetadataKey != "" {
			result = append(result, config)
		}
	}
	return result
}

// All returns the configs in insertion order.
func (cc *Collection) All() []*ClaimTypeConfig {
	return cc.configs
}

// Len returns the number of configs.
func (cc *Collection) Len() int {
	return len(cc.configs)
}

// Copy returns an independent copy of the collection.
func (cc *Collection) Copy() *Collection {
	return &Collection{
		IdentityClaimType:            cc.IdentityClaimType,
		AllowMultipleGroupClaimTypes: cc.AllowMultipleGroupClaimTypes,
		configs:                      cc.copyConfigs(),
	}
}

func (cc *Collection) copyConfigs() []*ClaimTypeConfig {
	copied := make([]*ClaimTypeConfig, len(cc.configs))
	for i, config := range cc.configs {
		copied[i] = config.Copy()
	}
	return copied
}

func (cc *Collection) indexOfClaimType(claimType string) int {
	if claimType == "" {
		return -1
	}
	for i, config := range cc.configs {
		if strings.EqualFold(config.ClaimType, claimType) {
			return i
		}
	}
	return -1
}

func (cc *Collection) isIdentityClaimType(claimType string) bool {
	return cc.IdentityClaimType != "" && strings.EqualFold(claimType, cc.IdentityClaimType)
}

// validateConfigs checks every rule against the candidate config set.
func (cc *Collection) validateConfigs(configs []*ClaimTypeConfig) error {
	claimTypes := make(map[string]bool)
	attributeKeys := make(map[string]bool)
	metadataKeys := make(map[string]bool)
	bypassPrefixes := make(map[string]bool)
	groupClaimTypes := 0

	for _, config := range configs {
		if config.DirectoryAttribute == "" {
			return fmt.Errorf("%w: directory attribute is required", ErrInvalidConfiguration)
		}
		if config.DirectoryClass == "" {
			return fmt.Errorf("%w: directory class is required", ErrInvalidConfiguration)
		}

		if config.UseMainConfigIdentifier {
			if config.ClaimType != "" {
				return fmt.Errorf("%w: config %q cannot both set a claim type and use the main config identifier",
					ErrInvalidConfiguration, config.DirectoryAttribute)
			}
		} else if config.ClaimType == "" && config.MetadataKey == "" {
			return fmt.Errorf("%w: config %q must set a claim type or a metadata key",
				ErrInvalidConfiguration, config.DirectoryAttribute)
		}

		if config.ClaimType != "" {
			key := strings.ToLower(config.ClaimType)
			if claimTypes[key] {
				return fmt.Errorf("%w: claim type %q is declared more than once", ErrInvalidConfiguration, config.ClaimType)
			}
			claimTypes[key] = true

			if config.ObjectKind == ObjectKindGroup && !config.UseMainConfigIdentifier {
				groupClaimTypes++
			}
		}

		attrKey := fmt.Sprintf("%s|%s|%d",
			strings.ToLower(config.DirectoryAttribute),
			strings.ToLower(config.DirectoryClass),
			config.ObjectKind)
		if attributeKeys[attrKey] {
			return fmt.Errorf("%w: attribute %q on class %q is already mapped for %s objects",
				ErrInvalidConfiguration, config.DirectoryAttribute, config.DirectoryClass, config.ObjectKind)
		}
		attributeKeys[attrKey] = true

		if config.MetadataKey != "" {
			metaKey := fmt.Sprintf("%s|%d", strings.ToLower(config.MetadataKey), config.ObjectKind)
			if metadataKeys[metaKey] {
				return fmt.Errorf("%w: metadata key %q is already used for %s objects",
					ErrInvalidConfiguration, config.MetadataKey, config.ObjectKind)
			}
			metadataKeys[metaKey] = true
		}

		if config.BypassLookupPrefix != "" {
			key := strings.ToLower(config.BypassLookupPrefix)
			if bypassPrefixes[key] {
				return fmt.Errorf("%w: bypass prefix %q is configured more than once",
					ErrInvalidConfiguration, config.BypassLookupPrefix)
			}
			bypassPrefixes[key] = true
		}

		if cc.isIdentityClaimType(config.ClaimType) && config.ObjectKind != ObjectKindUser {
			return fmt.Errorf("%w: the identity claim config must target user objects", ErrInvalidConfiguration)
		}
	}

	// Additional identifiers need a primary config of the same kind.
	for _, config := range configs {
		if !config.UseMainConfigIdentifier {
			continue
		}
		found := false
		for _, other := range configs {
			if other != config && other.ObjectKind == config.ObjectKind &&
				other.ClaimType != "" && !other.UseMainConfigIdentifier {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: config %q uses the main config identifier but no %s config declares a claim type",
				ErrInvalidConfiguration, config.DirectoryAttribute, config.ObjectKind)
		}
	}

	if groupClaimTypes > 1 && !cc.AllowMultipleGroupClaimTypes {
		return fmt.Errorf("%w: only one group config may declare a claim type", ErrInvalidConfiguration)
	}

	return nil
}

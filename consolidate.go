package ldapcp

import (
	"fmt"
	"strings"

	"github.com/Yvand/LDAPCP-sub000/claims"
	"github.com/Yvand/LDAPCP-sub000/directory"
)

// Binary attributes converted to their canonical textual form.
const (
	sidAttribute  = "objectSid"
	guidAttribute = "objectGUID"
)

// ConsolidatedResult is one deduplicated match: the config it matched,
// the canonical attribute value and the row it came from. Transient,
// created and discarded within one request.
type ConsolidatedResult struct {
	MatchedConfig *claims.ClaimTypeConfig
	Value         string
	DomainName    string
	DomainFQDN    string
	Row           *Row

	// MatchCount is how many directory rows collapsed into this entry.
	MatchCount int
}

// consolidator maps raw rows back to configs, applies the match policy
// and deduplicates across connections.
type consolidator struct {
	collection *claims.Collection
	settings   *Settings
	log        directory.Logger
}

func newConsolidator(collection *claims.Collection, settings *Settings, log directory.Logger) *consolidator {
	return &consolidator{collection: collection, settings: settings, log: log}
}

// Consolidate reduces raw rows to one result per deduplication key.
func (c *consolidator) Consolidate(op *OperationContext, rows []*Row) []*ConsolidatedResult {
	var results []*ConsolidatedResult
	byKey := make(map[string]*ConsolidatedResult)

	for _, row := range rows {
		if len(row.Classes) == 0 {
			// Rows without a readable object class indicate insufficient
			// read permissions on the entry.
			c.log.Warn("Skipping row without object class", map[string]any{
				"dn": row.DN,
			})
			continue
		}
		if !c.rowIdentifiable(row) {
			continue
		}

		for _, config := range op.Configs {
			if !row.HasClass(config.DirectoryClass) {
				continue
			}
			value := c.attributeText(row, config.DirectoryAttribute)
			if value == "" {
				continue
			}
			if !c.valueMatches(op, config, value) {
				continue
			}

			key := c.dedupKey(config, value, row)
			if existing, ok := byKey[key]; ok {
				existing.MatchCount++
				continue
			}

			result := &ConsolidatedResult{
				MatchedConfig: config,
				Value:         value,
				DomainName:    row.DomainName,
				DomainFQDN:    row.DomainFQDN,
				Row:           row,
				MatchCount:    1,
			}
			byKey[key] = result
			results = append(results, result)
		}
	}
	return results
}

// rowIdentifiable checks that a row carries the identifying attribute
// of its object kind. Rows that don't cannot be emitted as entities.
func (c *consolidator) rowIdentifiable(row *Row) bool {
	if userConfig := c.collection.PrimaryConfigFor(claims.ObjectKindUser); userConfig != nil && row.HasClass(userConfig.DirectoryClass) {
		if c.attributeText(row, userConfig.DirectoryAttribute) == "" {
			c.log.Warn("Skipping user row without identity attribute", map[string]any{
				"dn":        row.DN,
				"attribute": userConfig.DirectoryAttribute,
			})
			return false
		}
		return true
	}

	for _, config := range c.collection.All() {
		if config.ObjectKind != claims.ObjectKindGroup || config.UseMainConfigIdentifier {
			continue
		}
		if !row.HasClass(config.DirectoryClass) {
			continue
		}
		if c.attributeText(row, config.DirectoryAttribute) == "" {
			c.log.Warn("Skipping group row without identifying attribute", map[string]any{
				"dn":        row.DN,
				"attribute": config.DirectoryAttribute,
			})
			return false
		}
		return true
	}
	return true
}

// attributeText returns the attribute's canonical textual value,
// decoding binary security identifiers and GUIDs.
func (c *consolidator) attributeText(row *Row, attribute string) string {
	if strings.EqualFold(attribute, sidAttribute) {
		if sid := directory.SIDText(row.RawAttributeValue(attribute)); sid != "" {
			return sid
		}
	}
	if strings.EqualFold(attribute, guidAttribute) {
		if guid := directory.GUIDText(row.RawAttributeValue(attribute)); guid != "" {
			return guid
		}
	}
	return row.AttributeValue(attribute)
}

// valueMatches applies the operation's match policy to one candidate.
func (c *consolidator) valueMatches(op *OperationContext, config *claims.ClaimTypeConfig, value string) bool {
	if op.ExactMatch || config.ExactMatchOnly {
		return strings.EqualFold(value, op.Input)
	}

	policy := WildcardSuffix
	if c.settings != nil {
		policy = c.settings.WildcardPolicy
	}
	lowerValue := strings.ToLower(value)
	lowerInput := strings.ToLower(op.Input)
	switch policy {
	case WildcardBoth:
		return strings.Contains(lowerValue, lowerInput)
	case WildcardSuffix:
		return strings.HasPrefix(lowerValue, lowerInput)
	default:
		return lowerValue == lowerInput
	}
}

// dedupKey computes the deduplication key: claim type and value, plus
// the origin domain when the config's prefix embeds a domain token or
// the global policy says to compare by domain.
func (c *consolidator) dedupKey(config *claims.ClaimTypeConfig, value string, row *Row) string {
	claimType := config.ClaimType
	if config.UseMainConfigIdentifier {
		if primary := c.collection.PrimaryConfigFor(config.ObjectKind); primary != nil {
			claimType = primary.ClaimType
		}
	}

	key := fmt.Sprintf("%s|%s", strings.ToLower(claimType), strings.ToLower(value))
	compareByDomain := config.PrefixHasDomainToken()
	if c.settings != nil && c.settings.CompareResultsByDomain {
		compareByDomain = true
	}
	if compareByDomain {
		key += "|" + strings.ToLower(row.DomainFQDN)
	}
	return key
}

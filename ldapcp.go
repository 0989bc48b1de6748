// Package ldapcp resolves principals and groups against one or more
// LDAP directories and augments authenticated principals with their
// transitive group memberships. The host supplies claim type
// configuration, directory connections and per-request intents; the
// package exposes three synchronous entry points: Search, Validate and
// Augment.
package ldapcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/Yvand/LDAPCP-sub000/claims"
	"github.com/Yvand/LDAPCP-sub000/directory"
)

// configSnapshot is one immutable configuration version. Requests read
// the current snapshot under a read lock; a new version is swapped in
// wholesale, never mutated in place.
type configSnapshot struct {
	collection  *claims.Collection
	connections []*Connection
	settings    *Settings
	formatter   EntityFormatter
	version     int64
}

// FormatterFactory builds an entity formatter bound to a configuration
// snapshot.
type FormatterFactory func(*claims.Collection) EntityFormatter

// Option customizes a Provider.
type Option func(*Provider)

// WithFilterBuilder replaces the default filter builder.
func WithFilterBuilder(builder FilterBuilder) Option {
	return func(p *Provider) { p.filters = builder }
}

// WithFormatterFactory replaces the default entity formatter.
func WithFormatterFactory(factory FormatterFactory) Option {
	return func(p *Provider) { p.formatterFactory = factory }
}

// WithLogger sets the logger used by all engines.
func WithLogger(log directory.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// Provider is the entry point the host calls into. Safe for concurrent
// use; configuration updates swap an immutable snapshot under a
// writer lock.
type Provider struct {
	mu       sync.RWMutex
	snapshot *configSnapshot

	filters          FilterBuilder
	formatterFactory FormatterFactory
	log              directory.Logger
}

// NewProvider creates a provider with no configuration. Entry points
// return ErrNoDirectoryConfigured until UpdateConfiguration is called.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		filters:          NewFilterBuilder(),
		formatterFactory: NewEntityFormatter,
		log:              directory.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UpdateConfiguration validates and installs a new configuration
// version. On validation failure the previous snapshot stays active.
// Nil settings install DefaultSettings; non-nil settings are used
// verbatim, zero values included.
func (p *Provider) UpdateConfiguration(collection *claims.Collection, connections []*Connection, settings *Settings, version int64) error {
	if collection == nil {
		return fmt.Errorf("%w: collection cannot be nil", claims.ErrInvalidConfiguration)
	}
	if err := collection.Validate(); err != nil {
		return err
	}
	if settings == nil {
		settings = DefaultSettings()
	}

	frozen := collection.Copy()
	snapshot := &configSnapshot{
		collection:  frozen,
		connections: connections,
		settings:    settings,
		formatter:   p.formatterFactory(frozen),
		version:     version,
	}

	p.mu.Lock()
	p.snapshot = snapshot
	p.mu.Unlock()

	p.log.Info("Configuration updated", map[string]any{
		"version":     version,
		"configs":     frozen.Len(),
		"connections": len(connections),
	})
	return nil
}

// ConfigurationVersion returns the active snapshot's version, or -1
// when none is installed.
func (p *Provider) ConfigurationVersion() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot == nil {
		return -1
	}
	return p.snapshot.version
}

func (p *Provider) currentSnapshot() (*configSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot == nil {
		return nil, ErrNoDirectoryConfigured
	}
	return p.snapshot, nil
}

// Search resolves free-text input to zero or more entities of the
// requested object kinds. A configured bypass prefix on the input
// short-circuits the directory lookup entirely.
func (p *Provider) Search(ctx context.Context, input string, kinds []claims.ObjectKind, maxResults int) ([]*ResolvedEntity, error) {
	snap, err := p.currentSnapshot()
	if err != nil {
		return nil, err
	}

	op := newSearchContext(snap.collection, snap.connections, snap.settings, input, kinds, "")
	return p.search(ctx, snap, op, maxResults)
}

// SearchByClaimType resolves free-text input against the configs of a
// single claim type, as when the host narrows a picker to one claim
// hierarchy node.
func (p *Provider) SearchByClaimType(ctx context.Context, input, claimType string, maxResults int) ([]*ResolvedEntity, error) {
	snap, err := p.currentSnapshot()
	if err != nil {
		return nil, err
	}
	if snap.collection.GetByClaimType(claimType) == nil {
		return nil, UnknownClaimTypeError(claimType)
	}

	op := newSearchContext(snap.collection, snap.connections, snap.settings, input, nil, claimType)
	return p.search(ctx, snap, op, maxResults)
}

func (p *Provider) search(ctx context.Context, snap *configSnapshot, op *OperationContext, maxResults int) ([]*ResolvedEntity, error) {
	if op.Input == "" {
		return nil, nil
	}

	if op.BypassConfig != nil {
		return []*ResolvedEntity{snap.formatter.FormatBypass(op.BypassConfig, op.BypassValue)}, nil
	}

	results, err := p.resolve(ctx, snap, op)
	if err != nil {
		return nil, err
	}

	entities := make([]*ResolvedEntity, 0, len(results))
	for _, result := range results {
		entities = append(entities, snap.formatter.Format(result))
		if maxResults > 0 && len(entities) >= maxResults {
			break
		}
	}
	return entities, nil
}

// Validate checks one incoming claim against the directory and returns
// at most one entity. More than one match indicates a configuration
// error and is reported as ErrAmbiguousValidation.
func (p *Provider) Validate(ctx context.Context, claim *Claim) (*ResolvedEntity, error) {
	snap, err := p.currentSnapshot()
	if err != nil {
		return nil, err
	}

	op, err := newValidateContext(snap.collection, snap.connections, snap.settings, claim)
	if err != nil {
		return nil, err
	}

	if op.BypassConfig != nil {
		return snap.formatter.FormatBypass(op.BypassConfig, op.BypassValue), nil
	}

	results, err := p.resolve(ctx, snap, op)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return snap.formatter.Format(results[0]), nil
	default:
		return nil, fmt.Errorf("%w: claim %q matched %d entities", ErrAmbiguousValidation, claim.Value, len(results))
	}
}

// Augment returns the distinct transitive group identifiers of a
// validated principal.
func (p *Provider) Augment(ctx context.Context, claim *Claim) ([]string, error) {
	snap, err := p.currentSnapshot()
	if err != nil {
		return nil, err
	}

	op, err := newAugmentContext(snap.collection, snap.connections, snap.settings, claim)
	if err != nil {
		return nil, err
	}

	engine := newAugmentationEngine(snap.collection, snap.settings, p.log)
	return engine.GetGroups(ctx, op)
}

// resolve runs the query and consolidation pipeline for search and
// validate operations.
func (p *Provider) resolve(ctx context.Context, snap *configSnapshot, op *OperationContext) ([]*ConsolidatedResult, error) {
	engine := newQueryEngine(p.filters, p.log)
	rows, err := engine.Query(ctx, op)
	if err != nil {
		return nil, err
	}
	return newConsolidator(snap.collection, snap.settings, p.log).Consolidate(op, rows), nil
}

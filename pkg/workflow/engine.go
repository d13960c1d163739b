package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ledgersmith/ledgersmith/pkg/engine"
	"github.com/rs/zerolog"
)

// bulkAutomationThreshold is the largest bulk record count that may still
// execute without an explicit human action.
const bulkAutomationThreshold = 5

// Engine is the approval/automation policy state machine. It stores one
// policy per (verb, collection) key, decides how much human gating a
// candidate operation requires, and automatically demotes a key to manual
// after any failure at the automated level.
//
// The policy catalog is session-scoped shared state mutated synchronously;
// a mutex guards it so the engine is also safe under concurrent readers.
type Engine struct {
	mu        sync.RWMutex
	policies  map[string]*Policy
	store     PolicyStore
	clock     Clock
	logger    zerolog.Logger
	countdown *Countdown
}

// Option configures the engine.
type Option func(*Engine)

// WithStore attaches a persistence backend. Mutations are written through;
// call Hydrate after construction to load persisted state.
func WithStore(store PolicyStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithClock injects a clock, used for execution timestamps and the
// countdown ticker. Defaults to the wall clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// NewEngine creates a policy engine seeded with the fixed catalog: every
// (mutating verb, known collection) pair at manual with zeroed statistics.
func NewEngine(logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		policies: make(map[string]*Policy),
		clock:    NewWallClock(),
		logger:   logger.With().Str("component", "workflow-engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, p := range SeedCatalog() {
		e.policies[p.ID] = p
	}

	e.countdown = NewCountdown(e.clock, logger)
	return e
}

// Hydrate overlays persisted policies on top of the seeded catalog so that
// operator-chosen levels and statistics survive restarts.
func (e *Engine) Hydrate(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	persisted, err := e.store.ListPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range persisted {
		e.policies[p.ID] = p.Clone()
	}

	e.logger.Info().Int("count", len(persisted)).Msg("Policies hydrated from store")
	return nil
}

// GetPolicy returns a copy of the policy for a key, if present.
func (e *Engine) GetPolicy(key PolicyKey) (*Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	p, ok := e.policies[key.String()]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// ListPolicies returns copies of all policies sorted by key.
func (e *Engine) ListPolicies() []*Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Policy, 0, len(e.policies))
	for _, p := range e.policies {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetApprovalLevel applies an operator-chosen level to a key. Delete-verb
// keys silently clamp automated down to validated: destructive operations
// never run unattended. The clamp is deliberate source-compatible behavior,
// not an error.
func (e *Engine) SetApprovalLevel(ctx context.Context, key PolicyKey, level ApprovalLevel) (*Policy, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}

	if key.Verb.IsDestructive() && level == LevelAutomated {
		level = LevelValidated
		e.logger.Debug().
			Str("policy", key.String()).
			Msg("Automated level clamped to validated for delete verb")
	}

	e.mu.Lock()
	p := e.getOrCreateLocked(key)
	p.Level = level
	snapshot := p.Clone()
	e.mu.Unlock()

	e.logger.Info().
		Str("policy", key.String()).
		Str("level", string(level)).
		Msg("Approval level set")

	return snapshot, e.persist(ctx, snapshot)
}

// RecordExecution records one completed operation against a key: it bumps
// the matching counter and stamps LastExecutedAt. A failure while the key is
// at automated immediately demotes it to manual; a single failure is enough.
func (e *Engine) RecordExecution(ctx context.Context, key PolicyKey, success bool) (*Policy, error) {
	e.mu.Lock()
	p := e.getOrCreateLocked(key)
	if success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	p.LastExecutedAt = e.clock.Now()

	demoted := false
	if !success && p.Level == LevelAutomated {
		p.Level = LevelManual
		demoted = true
	}
	snapshot := p.Clone()
	e.mu.Unlock()

	if demoted {
		e.logger.Warn().
			Str("policy", key.String()).
			Msg("Automated policy demoted to manual after failure")
	}

	return snapshot, e.persist(ctx, snapshot)
}

// ResetAllToManual forces every policy back to manual regardless of its
// current level.
func (e *Engine) ResetAllToManual(ctx context.Context) error {
	e.mu.Lock()
	snapshots := make([]*Policy, 0, len(e.policies))
	for _, p := range e.policies {
		p.Level = LevelManual
		snapshots = append(snapshots, p.Clone())
	}
	e.mu.Unlock()

	for _, p := range snapshots {
		if err := e.persist(ctx, p); err != nil {
			return err
		}
	}

	e.logger.Info().Int("count", len(snapshots)).Msg("All policies reset to manual")
	return nil
}

// ShouldAutoExecute returns true iff the key's level is automated. Unknown
// keys default to manual.
func (e *Engine) ShouldAutoExecute(key PolicyKey) bool {
	return e.level(key) == LevelAutomated
}

// ShouldShowCountdown returns true iff the key's level is validated.
func (e *Engine) ShouldShowCountdown(key PolicyKey) bool {
	return e.level(key) == LevelValidated
}

// CanBeAutomated is the safeguard predicate applied on top of stored levels:
// delete verbs can never be automated, and bulk operations touching more
// than bulkAutomationThreshold records can be at most validated.
func (e *Engine) CanBeAutomated(verb engine.Verb, isBulk bool, recordCount int) bool {
	if verb.IsDestructive() {
		return false
	}
	if isBulk && recordCount > bulkAutomationThreshold {
		return false
	}
	return true
}

// Decide is the gating decision for one candidate operation. Gating happens
// before the operation is ever submitted to the batch executor.
func (e *Engine) Decide(key PolicyKey, isBulk bool, recordCount int) ExecutionMode {
	switch e.level(key) {
	case LevelAutomated:
		if e.CanBeAutomated(key.Verb, isBulk, recordCount) {
			return ModeImmediate
		}
		// Safeguard degrades automated to at most a countdown.
		return ModeCountdown
	case LevelValidated:
		return ModeCountdown
	default:
		return ModeManual
	}
}

// Countdown exposes the engine-owned countdown sub-machine.
func (e *Engine) Countdown() *Countdown {
	return e.countdown
}

// level resolves the stored level for a key, defaulting unknown keys to
// manual.
func (e *Engine) level(key PolicyKey) ApprovalLevel {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if p, ok := e.policies[key.String()]; ok {
		return p.Level
	}
	return LevelManual
}

// getOrCreateLocked fetches a policy, creating it at manual if the key was
// not in the seeded catalog. Caller must hold the write lock.
func (e *Engine) getOrCreateLocked(key PolicyKey) *Policy {
	id := key.String()
	if p, ok := e.policies[id]; ok {
		return p
	}
	p := &Policy{ID: id, Key: key, Level: LevelManual}
	e.policies[id] = p
	return p
}

// persist writes one policy through to the store, when configured.
func (e *Engine) persist(ctx context.Context, p *Policy) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SavePolicy(ctx, p); err != nil {
		return fmt.Errorf("failed to persist policy %s: %w", p.ID, err)
	}
	return nil
}

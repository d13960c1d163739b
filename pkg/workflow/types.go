package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgersmith/ledgersmith/pkg/engine"
)

// ApprovalLevel is how much human gating an operation requires before it
// executes.
type ApprovalLevel string

const (
	// LevelManual requires an explicit human action for every operation.
	// This is the system's safe default.
	LevelManual ApprovalLevel = "manual"

	// LevelValidated executes after a cancellable countdown.
	LevelValidated ApprovalLevel = "validated"

	// LevelAutomated executes immediately without human action.
	LevelAutomated ApprovalLevel = "automated"
)

// Validate checks if the approval level is valid.
func (l ApprovalLevel) Validate() error {
	switch l {
	case LevelManual, LevelValidated, LevelAutomated:
		return nil
	default:
		return fmt.Errorf("invalid approval level: %s", l)
	}
}

// PolicyKey identifies one approval/automation policy: the pair of verb and
// target collection.
type PolicyKey struct {
	// Verb is the operation verb this policy gates.
	Verb engine.Verb `json:"verb"`

	// Collection is the record-store collection this policy gates.
	Collection string `json:"collection"`
}

// String renders the key in its canonical "verb:collection" form.
func (k PolicyKey) String() string {
	return string(k.Verb) + ":" + k.Collection
}

// Policy holds the persisted automation state and execution statistics for
// one policy key.
type Policy struct {
	// ID is the stable identifier, the canonical key string.
	ID string `json:"id"`

	// Key is the (verb, collection) pair this policy gates.
	Key PolicyKey `json:"key"`

	// Level is the current approval level.
	Level ApprovalLevel `json:"level"`

	// SuccessCount is the number of recorded successful executions.
	SuccessCount int `json:"success_count"`

	// FailureCount is the number of recorded failed executions.
	FailureCount int `json:"failure_count"`

	// LastExecutedAt is when an execution was last recorded against this key.
	// Zero when the policy has never been exercised.
	LastExecutedAt time.Time `json:"last_executed_at"`
}

// Clone returns a copy of the policy.
func (p *Policy) Clone() *Policy {
	dup := *p
	return &dup
}

// ExecutionMode is the gating decision for one candidate operation.
type ExecutionMode string

const (
	// ModeManual means the caller must block on an explicit human action.
	ModeManual ExecutionMode = "manual"

	// ModeCountdown means the caller shows a cancellable countdown and
	// executes when it elapses.
	ModeCountdown ExecutionMode = "countdown"

	// ModeImmediate means the caller may execute without human action.
	ModeImmediate ExecutionMode = "immediate"
)

// PolicyStore persists policies across sessions. Implementations must
// round-trip LastExecutedAt as a typed timestamp.
type PolicyStore interface {
	// SavePolicy inserts or updates one policy.
	SavePolicy(ctx context.Context, policy *Policy) error

	// ListPolicies returns every persisted policy.
	ListPolicies(ctx context.Context) ([]*Policy, error)
}

// seedVerbs are the verbs seeded into the policy catalog. Read operations
// are not gated.
var seedVerbs = []engine.Verb{engine.VerbCreate, engine.VerbUpdate, engine.VerbDelete}

// SeedCatalog builds the fixed policy catalog: one policy per mutating verb
// and known collection, all at manual with zeroed statistics.
func SeedCatalog() []*Policy {
	var policies []*Policy
	for _, kind := range engine.AllEntityKinds() {
		for _, verb := range seedVerbs {
			key := PolicyKey{Verb: verb, Collection: kind.Collection()}
			policies = append(policies, &Policy{
				ID:    key.String(),
				Key:   key,
				Level: LevelManual,
			})
		}
	}
	return policies
}

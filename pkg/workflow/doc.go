// Package workflow implements the approval and automation policy engine
// that gates record-store operations before they reach the batch executor.
//
// Each (verb, collection) pair carries a policy with one of three approval
// levels: manual (explicit human action per operation), validated (a
// cancellable countdown before execution), or automated (immediate
// execution). Safeguards apply on top of stored levels: delete verbs are
// never automated, bulk runs over the threshold require at least a
// countdown, and any failure at the automated level demotes the key back
// to manual.
//
// The countdown is owned by the engine and driven by an injectable Clock;
// callers subscribe to its event channel rather than running timers of
// their own.
package workflow

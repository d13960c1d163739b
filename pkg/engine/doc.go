// Package engine implements the multi-entity request orchestration core.
//
// A caller assembles a batch of pending operations targeting different,
// cross-referencing entity types. The engine sorts them by a fixed
// entity-kind precedence (Order), substitutes symbolic identifier
// placeholders with identifiers produced earlier in the same run (Resolve),
// validates structural well-formedness without network effects (Validate,
// DryRun), and executes the batch strictly sequentially against an injected
// record-store collaborator (BatchExecutor).
//
// Approval gating happens before operations ever reach the executor; see
// package workflow.
package engine

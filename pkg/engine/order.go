package engine

import "sort"

// kindPrecedence is the fixed execution precedence for entity kinds.
// Independent entities and common parents come before the entities that
// reference them. This is a heuristic total order, not a dependency graph:
// callers must not construct payloads whose real dependency runs against it.
var kindPrecedence = []EntityKind{
	KindVendor,
	KindSupplier,
	KindCmdbModel,
	KindServiceOffering,
	KindAsset,
	KindContract,
	KindPurchaseOrder,
	KindExpenseLine,
	KindPurchaseOrderLine,
	KindContractAsset,
	KindCurrencyInstance,
	KindSupplierProduct,
}

// precedenceIndex maps each kind to its position in kindPrecedence.
var precedenceIndex = func() map[EntityKind]int {
	idx := make(map[EntityKind]int, len(kindPrecedence))
	for i, k := range kindPrecedence {
		idx[k] = i
	}
	return idx
}()

// KindPrecedence returns the fixed entity-kind precedence list.
func KindPrecedence() []EntityKind {
	out := make([]EntityKind, len(kindPrecedence))
	copy(out, kindPrecedence)
	return out
}

// Order sorts operations so that records an operation might reference are
// created before the operations that reference them. The sort is stable:
// operations of the same entity kind keep their relative input order, and
// operations whose kind is not in the precedence list sort after all known
// kinds, also in input order. Pure function; the input slice is not mutated.
func Order(operations []*Operation) []*Operation {
	ordered := make([]*Operation, len(operations))
	copy(ordered, operations)

	sort.SliceStable(ordered, func(i, j int) bool {
		return kindRank(ordered[i].EntityKind) < kindRank(ordered[j].EntityKind)
	})

	return ordered
}

// kindRank returns the precedence rank of a kind. Unknown kinds rank after
// every known kind.
func kindRank(kind EntityKind) int {
	if rank, ok := precedenceIndex[kind]; ok {
		return rank
	}
	return len(kindPrecedence)
}

package engine

import (
	"encoding/json"
	"fmt"
)

// OperationStatus represents the lifecycle state of an operation.
// Transitions are strictly forward: pending -> approved -> executing ->
// succeeded | failed. Terminal states are immutable.
type OperationStatus string

const (
	// StatusPending indicates the operation has been submitted but not yet gated.
	StatusPending OperationStatus = "pending"

	// StatusApproved indicates the operation passed its approval gate.
	StatusApproved OperationStatus = "approved"

	// StatusExecuting indicates the operation is being sent to the record store.
	StatusExecuting OperationStatus = "executing"

	// StatusSucceeded indicates the record store accepted the operation.
	StatusSucceeded OperationStatus = "succeeded"

	// StatusFailed indicates the record store rejected the operation or the
	// call failed in transport.
	StatusFailed OperationStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Validate checks if the operation status is valid.
func (s OperationStatus) Validate() error {
	switch s {
	case StatusPending, StatusApproved, StatusExecuting, StatusSucceeded, StatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}

// rank orders statuses along the forward-only lifecycle.
func (s OperationStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusApproved:
		return 1
	case StatusExecuting:
		return 2
	case StatusSucceeded, StatusFailed:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving to next respects the forward-only
// lifecycle. Terminal states accept no further transitions.
func (s OperationStatus) CanTransitionTo(next OperationStatus) bool {
	if s.Validate() != nil || next.Validate() != nil {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Verb represents the kind of request an operation performs against the
// record store.
type Verb string

const (
	// VerbRead retrieves one or more records.
	VerbRead Verb = "read"

	// VerbCreate inserts a new record.
	VerbCreate Verb = "create"

	// VerbUpdate modifies an existing record.
	VerbUpdate Verb = "update"

	// VerbDelete removes an existing record.
	VerbDelete Verb = "delete"
)

// HTTPMethod returns the HTTP method the record store expects for this verb.
func (v Verb) HTTPMethod() string {
	switch v {
	case VerbRead:
		return "GET"
	case VerbCreate:
		return "POST"
	case VerbUpdate:
		return "PATCH"
	case VerbDelete:
		return "DELETE"
	default:
		return ""
	}
}

// IsDestructive returns true if the verb removes records.
func (v Verb) IsDestructive() bool {
	return v == VerbDelete
}

// IsMutating returns true if the verb changes record state.
func (v Verb) IsMutating() bool {
	return v == VerbCreate || v == VerbUpdate || v == VerbDelete
}

// Validate checks if the verb is valid.
func (v Verb) Validate() error {
	switch v {
	case VerbRead, VerbCreate, VerbUpdate, VerbDelete:
		return nil
	default:
		return fmt.Errorf("invalid verb: %s", v)
	}
}

// EntityKind identifies one of the record categories the engine knows how to
// order and validate. The enumeration is part of the public contract with
// callers and must not be renamed.
type EntityKind string

const (
	KindVendor            EntityKind = "vendor"
	KindSupplier          EntityKind = "supplier"
	KindContract          EntityKind = "contract"
	KindPurchaseOrder     EntityKind = "purchaseOrder"
	KindExpenseLine       EntityKind = "expenseLine"
	KindAsset             EntityKind = "asset"
	KindContractAsset     EntityKind = "contractAsset"
	KindCmdbModel         EntityKind = "cmdbModel"
	KindPurchaseOrderLine EntityKind = "purchaseOrderLine"
	KindCurrencyInstance  EntityKind = "currencyInstance"
	KindSupplierProduct   EntityKind = "supplierProduct"
	KindServiceOffering   EntityKind = "serviceOffering"
)

// AllEntityKinds lists every known entity kind.
func AllEntityKinds() []EntityKind {
	return []EntityKind{
		KindVendor, KindSupplier, KindContract, KindPurchaseOrder,
		KindExpenseLine, KindAsset, KindContractAsset, KindCmdbModel,
		KindPurchaseOrderLine, KindCurrencyInstance, KindSupplierProduct,
		KindServiceOffering,
	}
}

// kindCollections maps each entity kind to its record-store collection.
var kindCollections = map[EntityKind]string{
	KindVendor:            "core_company",
	KindSupplier:          "sn_supplier",
	KindContract:          "ast_contract",
	KindPurchaseOrder:     "proc_po",
	KindExpenseLine:       "fm_expense_line",
	KindAsset:             "alm_asset",
	KindContractAsset:     "clm_m2m_contract_asset",
	KindCmdbModel:         "cmdb_model",
	KindPurchaseOrderLine: "proc_po_item",
	KindCurrencyInstance:  "fx_currency_instance",
	KindSupplierProduct:   "sn_supplier_product",
	KindServiceOffering:   "service_offering",
}

// Collection returns the record-store collection backing this entity kind,
// or an empty string for unknown kinds.
func (k EntityKind) Collection() string {
	return kindCollections[k]
}

// Validate checks if the entity kind is one of the known categories.
func (k EntityKind) Validate() error {
	if _, ok := kindCollections[k]; !ok {
		return fmt.Errorf("invalid entity kind: %s", k)
	}
	return nil
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s OperationStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *OperationStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = OperationStatus(str)
	return s.Validate()
}

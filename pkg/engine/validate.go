package engine

import "fmt"

// requiredFields is the fixed per-kind required-field catalog. It is part of
// the engine's public contract with callers: an operation creating or
// updating a record of a given kind must carry a non-empty value for each
// listed field. A residual placeholder still counts as present; this is a
// structural check, not a semantic one.
var requiredFields = map[EntityKind][]string{
	KindVendor:            {"name"},
	KindSupplier:          {"name"},
	KindContract:          {"short_description"},
	KindPurchaseOrder:     {"short_description", "vendor"},
	KindExpenseLine:       {"short_description", "amount"},
	KindAsset:             {"model"},
	KindContractAsset:     {"contract", "asset"},
	KindCmdbModel:         {"name"},
	KindPurchaseOrderLine: {"purchase_order", "short_description"},
	KindCurrencyInstance:  {"amount", "currency"},
	KindSupplierProduct:   {"supplier"},
	KindServiceOffering:   {"name"},
}

// RequiredFields returns the required-field list for an entity kind. The
// returned slice is a copy.
func RequiredFields(kind EntityKind) []string {
	fields := requiredFields[kind]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// ValidationResult reports the structural well-formedness of one operation.
type ValidationResult struct {
	// OperationID is the ID of the validated operation.
	OperationID string `json:"operation_id"`

	// Valid is true when Errors is empty.
	Valid bool `json:"valid"`

	// Errors lists human-readable validation messages.
	Errors []string `json:"errors,omitempty"`
}

// DryRunResult aggregates validation over a whole batch.
type DryRunResult struct {
	// Valid is true only if every operation validated cleanly.
	Valid bool `json:"valid"`

	// Results holds one entry per operation, in input order.
	Results []ValidationResult `json:"results"`
}

// Validate checks an operation's structural well-formedness without any
// network effect. It is deterministic and total: validation problems are
// reported as messages, never as errors.
func Validate(op *Operation) ValidationResult {
	result := ValidationResult{OperationID: op.ID}

	if err := op.Verb.Validate(); err != nil {
		result.Errors = append(result.Errors, "missing or invalid verb")
	}
	if op.Target.Collection == "" {
		result.Errors = append(result.Errors, "missing target collection")
	}

	switch op.Verb {
	case VerbCreate, VerbUpdate:
		if len(op.Payload) == 0 {
			result.Errors = append(result.Errors, "payload must not be empty")
		}
		for _, field := range requiredFields[op.EntityKind] {
			if isBlank(op.Payload[field]) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("required field %q is missing or empty", field))
			}
		}
	}

	if (op.Verb == VerbUpdate || op.Verb == VerbDelete) && op.Target.RecordID == "" {
		result.Errors = append(result.Errors, "missing target record id")
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// DryRun validates every operation without any collaborator call.
func DryRun(operations []*Operation) DryRunResult {
	out := DryRunResult{
		Valid:   true,
		Results: make([]ValidationResult, 0, len(operations)),
	}

	for _, op := range operations {
		r := Validate(op)
		if !r.Valid {
			out.Valid = false
		}
		out.Results = append(out.Results, r)
	}

	return out
}

// isBlank reports whether a payload value is absent or an empty string.
// Placeholders are non-empty strings and therefore count as present.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

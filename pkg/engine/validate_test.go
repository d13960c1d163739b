package engine

import (
	"strings"
	"testing"
)

func TestValidate_WellFormedCreate(t *testing.T) {
	op := makeOp("op1", KindVendor)

	result := Validate(op)

	if !result.Valid {
		t.Errorf("expected valid, got errors: %v", result.Errors)
	}
}

func TestValidate_MissingRequiredField(t *testing.T) {
	op := makeOp("op1", KindContract)
	op.Payload = map[string]any{"vendor": "some-vendor"}

	result := Validate(op)

	if result.Valid {
		t.Fatal("expected invalid result")
	}
	found := false
	for _, msg := range result.Errors {
		if strings.Contains(msg, "short_description") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected short_description error, got %v", result.Errors)
	}
}

func TestValidate_PlaceholderCountsAsPresent(t *testing.T) {
	op := makeOp("op1", KindContractAsset)
	op.Payload = map[string]any{
		"contract": "{{contract.identifier}}",
		"asset":    "{{asset.identifier}}",
	}

	result := Validate(op)

	if !result.Valid {
		t.Errorf("residual placeholder should count as present, got %v", result.Errors)
	}
}

func TestValidate_RelationRequiresBothEnds(t *testing.T) {
	op := makeOp("op1", KindContractAsset)
	op.Payload = map[string]any{"contract": "{{contract.identifier}}"}

	result := Validate(op)

	if result.Valid {
		t.Fatal("expected invalid result for relation missing one end")
	}
}

func TestValidate_MissingVerbAndTarget(t *testing.T) {
	op := &Operation{ID: "op1", EntityKind: KindVendor, Status: StatusPending}

	result := Validate(op)

	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if len(result.Errors) < 2 {
		t.Errorf("expected verb and target errors, got %v", result.Errors)
	}
}

func TestValidate_EmptyPayloadOnCreate(t *testing.T) {
	op := makeOp("op1", KindVendor)
	op.Payload = nil

	result := Validate(op)

	if result.Valid {
		t.Fatal("expected invalid result for empty create payload")
	}
}

func TestValidate_UpdateRequiresRecordID(t *testing.T) {
	op := makeOp("op1", KindVendor)
	op.Verb = VerbUpdate

	result := Validate(op)

	if result.Valid {
		t.Fatal("expected invalid result for update without record id")
	}

	op.Target.RecordID = "rec1"
	if result := Validate(op); !result.Valid {
		t.Errorf("expected valid update, got %v", result.Errors)
	}
}

func TestValidate_DeleteNeedsNoPayload(t *testing.T) {
	op := makeOp("op1", KindVendor)
	op.Verb = VerbDelete
	op.Target.RecordID = "rec1"
	op.Payload = nil

	result := Validate(op)

	if !result.Valid {
		t.Errorf("expected valid delete, got %v", result.Errors)
	}
}

func TestDryRun_AggregatesWithoutNetworkEffect(t *testing.T) {
	good := makeOp("good", KindVendor)
	bad := makeOp("bad", KindContract)
	bad.Payload = map[string]any{"vendor": "v"}

	result := DryRun([]*Operation{good, bad})

	if result.Valid {
		t.Fatal("expected aggregate invalid")
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(result.Results))
	}
	if !result.Results[0].Valid {
		t.Errorf("expected first operation valid, got %v", result.Results[0].Errors)
	}
	if result.Results[1].Valid {
		t.Error("expected second operation invalid")
	}
	if len(result.Results[1].Errors) == 0 {
		t.Error("expected non-empty errors for invalid operation")
	}
}

func TestDryRun_AllValid(t *testing.T) {
	result := DryRun([]*Operation{makeOp("a", KindVendor), makeOp("b", KindSupplier)})

	if !result.Valid {
		t.Errorf("expected valid dry run, got %+v", result.Results)
	}
}

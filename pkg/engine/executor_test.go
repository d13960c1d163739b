package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

// stubRecordClient scripts responses by collection and records every request
// it receives in order.
type stubRecordClient struct {
	requests    []*Request
	identifiers map[string]string   // collection -> produced sys_id
	queued      map[string][]string // collection -> sys_id sequence, takes precedence
	failOn      map[string]int      // collection -> status code to return
	transportOn map[string]error    // collection -> transport error
}

func newStubRecordClient() *stubRecordClient {
	return &stubRecordClient{
		identifiers: make(map[string]string),
		queued:      make(map[string][]string),
		failOn:      make(map[string]int),
		transportOn: make(map[string]error),
	}
}

func (c *stubRecordClient) ExecuteRequest(_ context.Context, req *Request) (*Response, error) {
	c.requests = append(c.requests, req)

	if err, ok := c.transportOn[req.Collection]; ok {
		return nil, err
	}
	if code, ok := c.failOn[req.Collection]; ok {
		return &Response{StatusCode: code, Raw: json.RawMessage(`{"error":"rejected"}`)}, nil
	}

	result := map[string]any{}
	if queue := c.queued[req.Collection]; len(queue) > 0 {
		result["sys_id"] = queue[0]
		c.queued[req.Collection] = queue[1:]
	} else if id, ok := c.identifiers[req.Collection]; ok {
		result["sys_id"] = id
	}
	return &Response{StatusCode: 201, Result: result}, nil
}

func newTestExecutor(t *testing.T, client RecordClient) *BatchExecutor {
	t.Helper()
	exec, err := NewBatchExecutor(client, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}
	return exec
}

func TestNewBatchExecutor_NilClient(t *testing.T) {
	if _, err := NewBatchExecutor(nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestExecuteBatch_ResolvesCrossReference(t *testing.T) {
	client := newStubRecordClient()
	client.identifiers["core_company"] = "v1"
	client.identifiers["ast_contract"] = "c1"
	exec := newTestExecutor(t, client)

	vendor := makeOp("vendor", KindVendor)
	vendor.Payload = map[string]any{"name": "Acme"}
	contract := makeOp("contract", KindContract)
	contract.Payload = map[string]any{
		"vendor":            "{{vendor.identifier}}",
		"short_description": "SOW",
	}

	report := exec.ExecuteBatch(context.Background(), []*Operation{contract, vendor}, BatchOptions{})

	if report.Succeeded != 2 || report.Failed != 0 {
		t.Fatalf("expected 2 successes, got %d/%d", report.Succeeded, report.Failed)
	}
	if report.Results[0].OperationID != "vendor" || report.Results[1].OperationID != "contract" {
		t.Errorf("unexpected execution order: %s, %s",
			report.Results[0].OperationID, report.Results[1].OperationID)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(client.requests))
	}
	if client.requests[1].Payload["vendor"] != "v1" {
		t.Errorf("expected resolved vendor=v1, got %v", client.requests[1].Payload["vendor"])
	}
}

func TestExecuteBatch_OrderingIsDeterministic(t *testing.T) {
	ops := func() []*Operation {
		return []*Operation{
			makeOp("line", KindExpenseLine),
			makeOp("vendor", KindVendor),
			makeOp("contract", KindContract),
		}
	}

	first := newTestExecutor(t, newStubRecordClient()).
		ExecuteBatch(context.Background(), ops(), BatchOptions{})
	second := newTestExecutor(t, newStubRecordClient()).
		ExecuteBatch(context.Background(), ops(), BatchOptions{})

	if len(first.Results) != len(second.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(first.Results), len(second.Results))
	}
	for i := range first.Results {
		if first.Results[i].OperationID != second.Results[i].OperationID {
			t.Errorf("position %d differs: %s vs %s",
				i, first.Results[i].OperationID, second.Results[i].OperationID)
		}
	}
}

func TestExecuteBatch_StopOnError(t *testing.T) {
	client := newStubRecordClient()
	client.failOn["core_company"] = 400
	exec := newTestExecutor(t, client)

	vendor := makeOp("vendor", KindVendor)
	contract := makeOp("contract", KindContract)

	report := exec.ExecuteBatch(context.Background(),
		[]*Operation{vendor, contract}, BatchOptions{StopOnError: true})

	if len(report.Results) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(report.Results))
	}
	if report.Results[0].OperationID != "vendor" || report.Results[0].Success {
		t.Errorf("unexpected first result: %+v", report.Results[0])
	}
	if !report.Halted {
		t.Error("expected halted report")
	}
	if len(client.requests) != 1 {
		t.Errorf("contract should never be attempted, saw %d requests", len(client.requests))
	}
	if contract.Status != StatusPending {
		t.Errorf("untouched operation should stay pending, got %s", contract.Status)
	}
}

func TestExecuteBatch_ContinuesPastFailureByDefault(t *testing.T) {
	client := newStubRecordClient()
	client.failOn["core_company"] = 500
	exec := newTestExecutor(t, client)

	report := exec.ExecuteBatch(context.Background(),
		[]*Operation{makeOp("vendor", KindVendor), makeOp("contract", KindContract)},
		BatchOptions{})

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}
	if report.Failed != 1 || report.Succeeded != 1 {
		t.Errorf("expected 1 failure and 1 success, got %d/%d", report.Failed, report.Succeeded)
	}
}

func TestExecuteBatch_TransportErrorIsCaptured(t *testing.T) {
	client := newStubRecordClient()
	client.transportOn["core_company"] = context.DeadlineExceeded
	exec := newTestExecutor(t, client)

	report := exec.ExecuteBatch(context.Background(),
		[]*Operation{makeOp("vendor", KindVendor)}, BatchOptions{})

	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %d", report.Failed)
	}
	result := report.Results[0]
	if result.Error == nil || !IsTransient(result.Error) {
		t.Errorf("expected transient error, got %+v", result.Error)
	}
}

func TestExecuteBatch_SkipsTerminalOperations(t *testing.T) {
	client := newStubRecordClient()
	exec := newTestExecutor(t, client)

	done := makeOp("done", KindVendor)
	done.Status = StatusSucceeded
	pending := makeOp("pending", KindSupplier)

	report := exec.ExecuteBatch(context.Background(), []*Operation{done, pending}, BatchOptions{})

	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if report.Results[0].OperationID != "pending" {
		t.Errorf("expected pending operation executed, got %s", report.Results[0].OperationID)
	}
}

func TestExecuteBatch_LastWriteWinsPerKind(t *testing.T) {
	client := newStubRecordClient()
	client.queued["core_company"] = []string{"v1", "v2"}
	exec := newTestExecutor(t, client)

	first := makeOp("first", KindVendor)
	second := makeOp("second", KindVendor)
	contract := makeOp("contract", KindContract)
	contract.Payload = map[string]any{
		"vendor":            "{{vendor.identifier}}",
		"short_description": "SOW",
	}

	report := exec.ExecuteBatch(context.Background(),
		[]*Operation{first, second, contract}, BatchOptions{})

	if report.Succeeded != 3 {
		t.Fatalf("expected 3 successes, got %d", report.Succeeded)
	}
	last := client.requests[len(client.requests)-1]
	if last.Payload["vendor"] != "v2" {
		t.Errorf("expected last-write-wins identifier v2, got %v", last.Payload["vendor"])
	}
}

func TestExecuteBatch_Callbacks(t *testing.T) {
	client := newStubRecordClient()
	client.failOn["ast_contract"] = 403
	exec := newTestExecutor(t, client)

	var started, succeeded, failed []string
	opts := BatchOptions{
		OnStart:   func(op *Operation) { started = append(started, op.ID) },
		OnSuccess: func(op *Operation, _ *ExecutionResult) { succeeded = append(succeeded, op.ID) },
		OnFailure: func(op *Operation, _ *ExecutionResult) { failed = append(failed, op.ID) },
	}

	exec.ExecuteBatch(context.Background(),
		[]*Operation{makeOp("vendor", KindVendor), makeOp("contract", KindContract)}, opts)

	if len(started) != 2 {
		t.Errorf("expected 2 start callbacks, got %d", len(started))
	}
	if len(succeeded) != 1 || succeeded[0] != "vendor" {
		t.Errorf("unexpected success callbacks: %v", succeeded)
	}
	if len(failed) != 1 || failed[0] != "contract" {
		t.Errorf("unexpected failure callbacks: %v", failed)
	}
}

func TestExecuteBatch_NoIdentifierDoesNotFeedResolver(t *testing.T) {
	client := newStubRecordClient()
	// Vendor create succeeds but carries no sys_id in the response.
	exec := newTestExecutor(t, client)

	vendor := makeOp("vendor", KindVendor)
	contract := makeOp("contract", KindContract)
	contract.Payload = map[string]any{
		"vendor":            "{{vendor.identifier}}",
		"short_description": "SOW",
	}

	exec.ExecuteBatch(context.Background(), []*Operation{vendor, contract}, BatchOptions{})

	last := client.requests[len(client.requests)-1]
	if last.Payload["vendor"] != "{{vendor.identifier}}" {
		t.Errorf("placeholder should stay unresolved, got %v", last.Payload["vendor"])
	}
}

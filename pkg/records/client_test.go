package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ledgersmith/ledgersmith/pkg/engine"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	client, err := NewClient(ClientConfig{
		BaseURL:  server.URL,
		Username: "admin",
		Password: "secret",
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestExecuteRequest_Create(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method

		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			t.Errorf("missing or wrong basic auth: %s/%s", user, pass)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":{"sys_id":"abc123","name":"Globex"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	resp, err := client.ExecuteRequest(context.Background(), &engine.Request{
		Verb:       engine.VerbCreate,
		Collection: "core_company",
		Payload:    map[string]any{"name": "Globex"},
	})
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/api/now/table/core_company" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotBody["name"] != "Globex" {
		t.Errorf("payload not forwarded: %+v", gotBody)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}
	if resp.Identifier() != "abc123" {
		t.Errorf("expected identifier abc123, got %q", resp.Identifier())
	}
}

func TestExecuteRequest_UpdateAddressesRecord(t *testing.T) {
	var gotPath, gotMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		_, _ = w.Write([]byte(`{"result":{"sys_id":"abc123"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.ExecuteRequest(context.Background(), &engine.Request{
		Verb:       engine.VerbUpdate,
		Collection: "ast_contract",
		RecordID:   "abc123",
		Payload:    map[string]any{"short_description": "renewed"},
	})
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}

	if gotMethod != http.MethodPatch {
		t.Errorf("expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/api/now/table/ast_contract/abc123" {
		t.Errorf("unexpected path: %s", gotPath)
	}
}

func TestExecuteRequest_DeleteSendsNoBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 {
			t.Errorf("delete carried a body: %d bytes", r.ContentLength)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	resp, err := client.ExecuteRequest(context.Background(), &engine.Request{
		Verb:       engine.VerbDelete,
		Collection: "alm_asset",
		RecordID:   "abc123",
	})
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
	if resp.Identifier() != "" {
		t.Errorf("delete produced an identifier: %q", resp.Identifier())
	}
}

func TestExecuteRequest_RejectionIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"insufficient rights"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	resp, err := client.ExecuteRequest(context.Background(), &engine.Request{
		Verb:       engine.VerbCreate,
		Collection: "core_company",
		Payload:    map[string]any{"name": "Globex"},
	})
	if err != nil {
		t.Fatalf("rejection must not be a client error, got: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
	if len(resp.Raw) == 0 {
		t.Error("expected raw body passed through")
	}
}

func TestExecuteRequest_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(t, server)
	_, err := client.ExecuteRequest(context.Background(), &engine.Request{
		Verb:       engine.VerbCreate,
		Collection: "core_company",
		Payload:    map[string]any{"name": "Globex"},
	})
	if err == nil {
		t.Fatal("expected transport error")
	}
}

func TestExecuteRequest_ExtraHeadersForwarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Correlation-Id"); got != "run-42" {
			t.Errorf("header not forwarded: %q", got)
		}
		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.ExecuteRequest(context.Background(), &engine.Request{
		Verb:       engine.VerbRead,
		Collection: "core_company",
		Headers:    map[string]string{"X-Correlation-Id": "run-42"},
	})
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

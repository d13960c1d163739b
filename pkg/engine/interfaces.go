package engine

import (
	"context"
	"encoding/json"
)

// Request is a single call to the record store.
type Request struct {
	// Verb is the request kind; it maps to an HTTP method via Verb.HTTPMethod.
	Verb Verb `json:"verb"`

	// Collection is the record-store collection (table) name.
	Collection string `json:"collection"`

	// RecordID addresses an existing record for update, delete, and read-one.
	RecordID string `json:"record_id,omitempty"`

	// Headers are additional headers to send with the request.
	Headers map[string]string `json:"headers,omitempty"`

	// Payload is the field map to submit for create and update requests.
	Payload map[string]any `json:"payload,omitempty"`
}

// Response is the record store's answer to a request. Any status in
// [200,300) is treated as success by the execution loop.
type Response struct {
	// StatusCode is the HTTP-like status code.
	StatusCode int `json:"status_code"`

	// Result is the decoded result object, when the response carried one.
	Result map[string]any `json:"result,omitempty"`

	// Raw is the undecoded response body, passed through for logging.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Identifier extracts the created-record identifier from a conventional
// success payload, or an empty string when none is present.
func (r *Response) Identifier() string {
	if r == nil || r.Result == nil {
		return ""
	}
	if id, ok := r.Result["sys_id"].(string); ok {
		return id
	}
	return ""
}

// RecordClient is the external record-store collaborator. Implementations
// are injected into the execution loop; the engine never reaches out to an
// ambient singleton. A non-2xx response must be returned as a Response with
// a nil error; only transport-level failures should produce an error.
type RecordClient interface {
	// ExecuteRequest performs one create/read/update/delete call.
	ExecuteRequest(ctx context.Context, req *Request) (*Response, error)
}

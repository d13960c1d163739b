package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// batchDocument is the on-disk shape of a submitted batch.
type batchDocument struct {
	Operations []batchOperation `json:"operations"`
}

// batchOperation is one operation as authored by the caller. Collection and
// record ID may be given explicitly; the collection defaults to the entity
// kind's backing collection.
type batchOperation struct {
	ID         string         `json:"id"`
	EntityKind EntityKind     `json:"entity_kind"`
	Verb       Verb           `json:"verb"`
	Collection string         `json:"collection,omitempty"`
	RecordID   string         `json:"record_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ParseBatch decodes a JSON batch document into pending operations.
// Operations with an unknown verb are rejected; unknown entity kinds are
// accepted (they sort last and validate against an empty required-field
// list) as long as an explicit collection is given.
func ParseBatch(r io.Reader) ([]*Operation, error) {
	var doc batchDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, NewPermanentError("failed to decode batch document", err).
			WithCode(ErrCodeMalformedBatch)
	}

	if len(doc.Operations) == 0 {
		return nil, NewPermanentError("batch document contains no operations", nil).
			WithCode(ErrCodeMalformedBatch)
	}

	now := time.Now()
	seen := make(map[string]struct{}, len(doc.Operations))
	ops := make([]*Operation, 0, len(doc.Operations))

	for i, in := range doc.Operations {
		if in.ID == "" {
			return nil, NewPermanentError(
				fmt.Sprintf("operation at index %d has no id", i), nil).
				WithCode(ErrCodeMalformedBatch)
		}
		if _, dup := seen[in.ID]; dup {
			return nil, NewPermanentError(
				fmt.Sprintf("duplicate operation id %q", in.ID), nil).
				WithCode(ErrCodeMalformedBatch)
		}
		seen[in.ID] = struct{}{}

		if err := in.Verb.Validate(); err != nil {
			return nil, NewPermanentError("invalid verb", err).
				WithCode(ErrCodeMalformedBatch).
				WithOperation(in.ID)
		}

		collection := in.Collection
		if collection == "" {
			collection = in.EntityKind.Collection()
		}
		if collection == "" {
			return nil, NewPermanentError(
				fmt.Sprintf("operation %q has unknown entity kind %q and no explicit collection",
					in.ID, in.EntityKind), nil).
				WithCode(ErrCodeMalformedBatch)
		}

		ops = append(ops, &Operation{
			ID:         in.ID,
			EntityKind: in.EntityKind,
			Verb:       in.Verb,
			Target:     Target{Collection: collection, RecordID: in.RecordID},
			Payload:    in.Payload,
			Status:     StatusPending,
			CreatedAt:  now,
		})
	}

	return ops, nil
}

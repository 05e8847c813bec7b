package store

import (
	"context"
	"errors"
)

// Collection names of the persisted remote layout
const (
	CollectionUsers     = "users"
	CollectionUserChats = "userchats"
	CollectionChats     = "chats"
	CollectionGroups    = "groups"
)

// ErrNotFound is returned by Get and UpdateMerge when the document is absent
var ErrNotFound = errors.New("document not found")

// Document is the schema-less field map of one remote document
type Document map[string]any

// ArrayUnion adds the given elements to a set-like array field, skipping
// elements already present (deep equality, matching the store's semantics)
type ArrayUnion struct {
	Values []any
}

// ArrayRemove removes all occurrences of the given elements from an array field
type ArrayRemove struct {
	Values []any
}

// Unsubscribe releases a live document subscription. Implementations must be
// idempotent and safe to call multiple times.
type Unsubscribe func()

// ChangeHandler receives a snapshot of the document after each detected
// change. Within one subscription, snapshots arrive in the order the store
// detected them; no ordering holds across different documents.
type ChangeHandler func(doc Document)

// DocStore is the narrow interface of the remote mutable document store.
// All cross-document invariants over it are eventual: there is no
// transaction spanning two documents, and concurrent writers are resolved
// with union-of-sets for array operations and last-write-wins for scalars.
type DocStore interface {
	// Get fetches a document, returning ErrNotFound if it is absent
	Get(ctx context.Context, collection, id string) (Document, error)

	// Set creates or fully overwrites a document
	Set(ctx context.Context, collection, id string, fields Document) error

	// UpdateMerge merges partial fields into an existing document; update
	// values may be ArrayUnion/ArrayRemove for set-like array fields.
	// Returns ErrNotFound if the document is absent.
	UpdateMerge(ctx context.Context, collection, id string, updates Document) error

	// Subscribe registers a change handler for one document and delivers an
	// initial snapshot if the document exists. Pending writes are not
	// cancelable; unsubscribing only stops delivery.
	Subscribe(ctx context.Context, collection, id string, fn ChangeHandler) (Unsubscribe, error)
}

// Clone returns a deep copy of a document so callers can mutate snapshots
// without aliasing store-internal state
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

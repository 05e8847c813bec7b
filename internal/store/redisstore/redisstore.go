package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/internal/store"
	"github.com/iamnishu22/chatapp/pkg/logger"
	"github.com/iamnishu22/chatapp/pkg/metrics"
)

// Store adapts Redis to the DocStore interface for self-hosted deployments:
// documents are JSON values and change push rides on Pub/Sub. Merge updates
// are read-modify-write with last-write-wins, the same consistency the rest
// of the engine assumes.
type Store struct {
	client *redis.Client
}

// New creates a Redis-backed document store
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func docKey(collection, id string) string {
	return fmt.Sprintf("doc:%s:%s", collection, id)
}

func changeChannel(collection, id string) string {
	return fmt.Sprintf("docchange:%s:%s", collection, id)
}

// Get fetches a document, returning store.ErrNotFound if it is absent
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	data, err := s.client.Get(ctx, docKey(collection, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		metrics.StoreErrorTotal.WithLabelValues("get").Inc()
		return nil, err
	}

	var doc store.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Set creates or fully overwrites a document, then publishes the new state
func (s *Store) Set(ctx context.Context, collection, id string, fields store.Document) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	if err := s.client.Set(ctx, docKey(collection, id), data, 0).Err(); err != nil {
		metrics.StoreErrorTotal.WithLabelValues("set").Inc()
		return err
	}

	// Best effort: a lost publish only delays observation until the next one
	if err := s.client.Publish(ctx, changeChannel(collection, id), data).Err(); err != nil {
		logger.Warn("Failed to publish document change",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
	}
	return nil
}

// UpdateMerge merges partial fields into an existing document. An absent
// document fails with store.ErrNotFound unless the update consists solely
// of array operations, in which case the document is created.
func (s *Store) UpdateMerge(ctx context.Context, collection, id string, updates store.Document) error {
	doc, err := s.Get(ctx, collection, id)
	if errors.Is(err, store.ErrNotFound) {
		if !arrayOpsOnly(updates) {
			return store.ErrNotFound
		}
		doc = make(store.Document)
	} else if err != nil {
		return err
	}

	for key, value := range updates {
		switch op := value.(type) {
		case store.ArrayUnion:
			doc[key] = applyUnion(asSlice(doc[key]), normalize(op.Values))
		case store.ArrayRemove:
			doc[key] = applyRemove(asSlice(doc[key]), normalize(op.Values))
		default:
			doc[key] = value
		}
	}

	return s.Set(ctx, collection, id, doc)
}

// Subscribe listens on the document's change channel and delivers an initial
// snapshot if the document exists. The returned Unsubscribe is idempotent.
func (s *Store) Subscribe(ctx context.Context, collection, id string, fn store.ChangeHandler) (store.Unsubscribe, error) {
	pubsub := s.client.Subscribe(ctx, changeChannel(collection, id))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		metrics.StoreErrorTotal.WithLabelValues("subscribe").Inc()
		return nil, err
	}

	metrics.SubscriptionsActive.WithLabelValues(collection).Inc()

	go func() {
		if doc, err := s.Get(ctx, collection, id); err == nil {
			fn(doc)
		}
		for msg := range pubsub.Channel() {
			var doc store.Document
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				logger.Warn("Dropping undecodable document change",
					zap.String("collection", collection),
					zap.String("id", id),
					zap.Error(err),
				)
				continue
			}
			fn(doc)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			pubsub.Close()
			metrics.SubscriptionsActive.WithLabelValues(collection).Dec()
		})
	}, nil
}

func arrayOpsOnly(updates store.Document) bool {
	for _, value := range updates {
		switch value.(type) {
		case store.ArrayUnion, store.ArrayRemove:
		default:
			return false
		}
	}
	return len(updates) > 0
}

func asSlice(v any) []any {
	if vals, ok := v.([]any); ok {
		return vals
	}
	return nil
}

// normalize round-trips values through JSON so deep equality against
// already-stored (JSON-decoded) elements behaves
func normalize(values []any) []any {
	data, err := json.Marshal(values)
	if err != nil {
		return values
	}
	var out []any
	if err := json.Unmarshal(data, &out); err != nil {
		return values
	}
	return out
}

func applyUnion(existing []any, values []any) []any {
	out := existing
	for _, v := range values {
		if !containsDeep(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func applyRemove(existing []any, values []any) []any {
	out := make([]any, 0, len(existing))
	for _, item := range existing {
		if !containsDeep(values, item) {
			out = append(out, item)
		}
	}
	return out
}

func containsDeep(haystack []any, needle any) bool {
	for _, item := range haystack {
		if reflect.DeepEqual(item, needle) {
			return true
		}
	}
	return false
}

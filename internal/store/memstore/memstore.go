package memstore

import (
	"context"
	"reflect"
	"sync"

	"github.com/iamnishu22/chatapp/internal/store"
)

// Store is an in-memory DocStore with the remote store's merge semantics:
// union-of-sets for array operations, last-write-wins for scalar fields.
// Change notifications are delivered per subscription in write order, on a
// dedicated goroutine so handlers may freely call back into the store.
type Store struct {
	mu   sync.Mutex
	cols map[string]map[string]*document
}

type document struct {
	fields      store.Document
	exists      bool // subscriptions may attach before the first write
	subscribers map[*subscriber]struct{}
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		cols: make(map[string]map[string]*document),
	}
}

// Get fetches a document, returning store.ErrNotFound if it is absent
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.lookup(collection, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.Clone(doc.fields), nil
}

// Set creates or fully overwrites a document and notifies subscribers
func (s *Store) Set(ctx context.Context, collection, id string, fields store.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	doc := s.ensure(collection, id)
	doc.fields = store.Clone(fields)
	doc.exists = true
	s.notifyLocked(doc)
	s.mu.Unlock()
	return nil
}

// UpdateMerge merges partial fields into an existing document. An absent
// document is an error unless every update is an array union/remove, in
// which case the document is created from the array operations.
func (s *Store) UpdateMerge(ctx context.Context, collection, id string, updates store.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.lookup(collection, id)
	if !ok {
		if !arrayOpsOnly(updates) {
			return store.ErrNotFound
		}
		doc = s.ensure(collection, id)
	}

	for key, value := range updates {
		switch op := value.(type) {
		case store.ArrayUnion:
			doc.fields[key] = applyUnion(asSlice(doc.fields[key]), op.Values)
		case store.ArrayRemove:
			doc.fields[key] = applyRemove(asSlice(doc.fields[key]), op.Values)
		default:
			doc.fields[key] = store.Clone(store.Document{key: value})[key]
		}
	}
	doc.exists = true

	s.notifyLocked(doc)
	return nil
}

// Subscribe registers a change handler, delivering an initial snapshot if
// the document already exists. The returned Unsubscribe is idempotent.
func (s *Store) Subscribe(ctx context.Context, collection, id string, fn store.ChangeHandler) (store.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	doc := s.ensure(collection, id)
	sub := newSubscriber(fn)
	doc.subscribers[sub] = struct{}{}
	if doc.exists {
		sub.enqueue(store.Clone(doc.fields))
	}
	s.mu.Unlock()

	go sub.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(doc.subscribers, sub)
			s.mu.Unlock()
			sub.close()
		})
	}, nil
}

func (s *Store) lookup(collection, id string) (*document, bool) {
	col, ok := s.cols[collection]
	if !ok {
		return nil, false
	}
	doc, ok := col[id]
	if !ok || !doc.exists {
		return doc, false
	}
	return doc, true
}

func (s *Store) ensure(collection, id string) *document {
	col, ok := s.cols[collection]
	if !ok {
		col = make(map[string]*document)
		s.cols[collection] = col
	}
	doc, ok := col[id]
	if !ok {
		doc = &document{
			fields:      make(store.Document),
			subscribers: make(map[*subscriber]struct{}),
		}
		col[id] = doc
	}
	if doc.fields == nil {
		doc.fields = make(store.Document)
	}
	return doc
}

func (s *Store) notifyLocked(doc *document) {
	for sub := range doc.subscribers {
		sub.enqueue(store.Clone(doc.fields))
	}
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

// subscriber delivers snapshots to one handler in enqueue order
type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []store.Document
	closed bool
	fn     store.ChangeHandler
}

func newSubscriber(fn store.ChangeHandler) *subscriber {
	sub := &subscriber{fn: fn}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

func (sub *subscriber) enqueue(doc store.Document) {
	sub.mu.Lock()
	if !sub.closed {
		sub.queue = append(sub.queue, doc)
		sub.cond.Signal()
	}
	sub.mu.Unlock()
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	sub.closed = true
	sub.cond.Signal()
	sub.mu.Unlock()
}

func (sub *subscriber) run() {
	for {
		sub.mu.Lock()
		for len(sub.queue) == 0 && !sub.closed {
			sub.cond.Wait()
		}
		if len(sub.queue) == 0 && sub.closed {
			sub.mu.Unlock()
			return
		}
		next := sub.queue[0]
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		sub.fn(next)
	}
}

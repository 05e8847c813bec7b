package firestoredoc

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/iamnishu22/chatapp/internal/store"
	"github.com/iamnishu22/chatapp/pkg/logger"
	"github.com/iamnishu22/chatapp/pkg/metrics"
)

// Store adapts Cloud Firestore to the DocStore interface. Firestore is the
// production backend: snapshot listeners back Subscribe, and the native
// ArrayUnion/ArrayRemove transforms back the set-like array operations.
type Store struct {
	client *firestore.Client
}

// New initializes the Firebase app and opens a Firestore client.
// credentialsFile may be empty, in which case application default
// credentials are used.
func New(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, err
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}

	return &Store{client: client}, nil
}

// Close releases the underlying Firestore client
func (s *Store) Close() error {
	return s.client.Close()
}

// Get fetches a document, returning store.ErrNotFound if it is absent
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, store.ErrNotFound
		}
		metrics.StoreErrorTotal.WithLabelValues("get").Inc()
		return nil, err
	}
	return store.Document(snap.Data()), nil
}

// Set creates or fully overwrites a document
func (s *Store) Set(ctx context.Context, collection, id string, fields store.Document) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, map[string]any(fields))
	if err != nil {
		metrics.StoreErrorTotal.WithLabelValues("set").Inc()
	}
	return err
}

// UpdateMerge merges partial fields into an existing document, translating
// the portable array operations into Firestore transforms. An absent
// document fails with store.ErrNotFound unless the update consists solely
// of array operations, in which case the document is created.
func (s *Store) UpdateMerge(ctx context.Context, collection, id string, updates store.Document) error {
	fsUpdates := make([]firestore.Update, 0, len(updates))
	arrayOpsOnly := true
	for key, value := range updates {
		switch op := value.(type) {
		case store.ArrayUnion:
			fsUpdates = append(fsUpdates, firestore.Update{Path: key, Value: firestore.ArrayUnion(op.Values...)})
		case store.ArrayRemove:
			fsUpdates = append(fsUpdates, firestore.Update{Path: key, Value: firestore.ArrayRemove(op.Values...)})
		default:
			arrayOpsOnly = false
			fsUpdates = append(fsUpdates, firestore.Update{Path: key, Value: value})
		}
	}

	_, err := s.client.Collection(collection).Doc(id).Update(ctx, fsUpdates)
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		metrics.StoreErrorTotal.WithLabelValues("update").Inc()
		return err
	}
	if !arrayOpsOnly || len(updates) == 0 {
		return store.ErrNotFound
	}

	// Document absent, array operations only: materialize the unions into a
	// fresh document, matching the in-memory backend.
	fields := make(map[string]any, len(updates))
	for key, value := range updates {
		if op, ok := value.(store.ArrayUnion); ok {
			fields[key] = op.Values
		}
	}
	_, err = s.client.Collection(collection).Doc(id).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		metrics.StoreErrorTotal.WithLabelValues("update").Inc()
	}
	return err
}

// Subscribe attaches a snapshot listener to one document. Snapshots are
// delivered on a dedicated goroutine in listener order; the returned
// Unsubscribe stops the listener and is idempotent.
func (s *Store) Subscribe(ctx context.Context, collection, id string, fn store.ChangeHandler) (store.Unsubscribe, error) {
	listenCtx, cancel := context.WithCancel(ctx)
	iter := s.client.Collection(collection).Doc(id).Snapshots(listenCtx)

	metrics.SubscriptionsActive.WithLabelValues(collection).Inc()

	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if listenCtx.Err() == nil && !errors.Is(err, context.Canceled) {
					metrics.StoreErrorTotal.WithLabelValues("subscribe").Inc()
					logger.Error("Firestore snapshot listener stopped",
						zap.String("collection", collection),
						zap.String("id", id),
						zap.Error(err),
					)
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			fn(store.Document(snap.Data()))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			metrics.SubscriptionsActive.WithLabelValues(collection).Dec()
		})
	}, nil
}

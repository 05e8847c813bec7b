package block

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/internal/directory"
	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/store"
	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
	"github.com/iamnishu22/chatapp/pkg/logger"
	"github.com/iamnishu22/chatapp/pkg/metrics"
)

// Relationship is the two-way blocked state between the current user and a
// peer, derived from both profiles' blocked sets
type Relationship struct {
	CurrentUserBlocked bool // peer blocks the current user
	PeerBlocked        bool // current user blocks the peer
}

// Any reports whether either direction is blocked
func (r Relationship) Any() bool {
	return r.CurrentUserBlocked || r.PeerBlocked
}

// Service derives and mutates block relationships. The two profile writes of
// a toggle are not transactional, so the service always re-reads both
// profiles instead of trusting cached pair state.
type Service struct {
	store     store.DocStore
	directory *directory.Service
}

// NewService creates a new block relationship resolver
func NewService(docStore store.DocStore, dir *directory.Service) *Service {
	return &Service{
		store:     docStore,
		directory: dir,
	}
}

// Relationship computes both block directions from fresh profile reads
func (s *Service) Relationship(ctx context.Context, currentUserID, peerID string) (Relationship, error) {
	me, err := s.directory.ResolveFresh(ctx, currentUserID)
	if err != nil {
		return Relationship{}, err
	}
	peer, err := s.directory.ResolveFresh(ctx, peerID)
	if err != nil {
		return Relationship{}, err
	}

	return Relationship{
		CurrentUserBlocked: peer.HasBlocked(currentUserID),
		PeerBlocked:        me.HasBlocked(peerID),
	}, nil
}

// Toggle flips the "current user blocks peer" direction: it updates the
// current user's blocked set, the peer's reciprocal blockedBy annotation,
// and appends a system marker message into the shared conversation log.
//
// The two profile writes have no cross-document transaction. If the second
// fails the first stands; callers observe the divergence on the next
// Relationship call, which re-reads both documents.
func (s *Service) Toggle(ctx context.Context, currentUserID, peerID string, chat domain.ChatRef) (bool, error) {
	me, err := s.directory.ResolveFresh(ctx, currentUserID)
	if err != nil {
		return false, err
	}
	blocking := !me.HasBlocked(peerID)

	var blockedOp, blockedByOp any
	direction := "unblock"
	if blocking {
		direction = "block"
		blockedOp = store.ArrayUnion{Values: []any{peerID}}
		blockedByOp = store.ArrayUnion{Values: []any{currentUserID}}
	} else {
		blockedOp = store.ArrayRemove{Values: []any{peerID}}
		blockedByOp = store.ArrayRemove{Values: []any{currentUserID}}
	}

	if err := s.store.UpdateMerge(ctx, store.CollectionUsers, currentUserID, store.Document{
		"blocked": blockedOp,
	}); err != nil {
		return !blocking, apperrors.RemoteIOError(err)
	}
	s.directory.Invalidate(currentUserID)

	if err := s.store.UpdateMerge(ctx, store.CollectionUsers, peerID, store.Document{
		"blockedBy": blockedByOp,
	}); err != nil {
		// The blocked-set write already landed; report the divergence
		// without compensating it.
		s.directory.Invalidate(peerID)
		return blocking, apperrors.PartialWriteError("peer blockedBy annotation not updated", err)
	}
	s.directory.Invalidate(peerID)

	metrics.BlockToggleTotal.WithLabelValues(direction).Inc()

	s.appendMarker(ctx, chat)

	return blocking, nil
}

// appendMarker documents the state change in the conversation log with a
// system-sender message. Best effort: the toggle already succeeded.
func (s *Service) appendMarker(ctx context.Context, chat domain.ChatRef) {
	if chat.IsZero() {
		return
	}

	marker := domain.Message{
		ID:        uuid.NewString(),
		SenderID:  domain.SenderSystem,
		CreatedAt: time.Now(),
		IsSeen:    false,
	}

	err := s.store.UpdateMerge(ctx, chat.Collection(), chat.ID(), store.Document{
		"messages": store.ArrayUnion{Values: []any{marker.Doc()}},
	})
	if err != nil {
		logger.Warn("Failed to append block marker message",
			zap.String("chat_id", chat.ID()),
			zap.Error(err),
		)
	}
}

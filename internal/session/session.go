package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/internal/block"
	"github.com/iamnishu22/chatapp/internal/chatindex"
	"github.com/iamnishu22/chatapp/internal/conversation"
	"github.com/iamnishu22/chatapp/internal/directory"
	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/group"
	"github.com/iamnishu22/chatapp/internal/notify"
	"github.com/iamnishu22/chatapp/internal/store"
	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
	"github.com/iamnishu22/chatapp/pkg/logger"
)

// State is the derived, observable session state: current user, active chat
// and its block relationship. Consumers fold State events into their own
// views instead of reaching into shared mutable globals.
type State struct {
	CurrentUser  *domain.UserProfile
	ActiveChat   domain.ChatRef
	Peer         *domain.UserProfile // nil for groups and when hidden by a block
	Group        *domain.GroupInfo
	Relationship block.Relationship
}

// Session is the explicit per-user state container wiring the directory,
// block resolver, chat index, conversation engine and group manager
// together. Its lifecycle bounds every subscription it opens.
type Session struct {
	store store.DocStore

	Directory *directory.Service
	Blocks    *block.Service
	Index     *chatindex.Service
	Groups    *group.Service
	Notices   *notify.Center

	mu           sync.Mutex
	userID       string
	state        State
	watchers     []chan State
	engine       *conversation.Engine
	indexSub     *chatindex.Subscription
	profileUnsub store.Unsubscribe
	closed       bool
}

// New creates a session over the given document store
func New(docStore store.DocStore) *Session {
	dir := directory.NewService(docStore)
	blocks := block.NewService(docStore, dir)

	return &Session{
		store:     docStore,
		Directory: dir,
		Blocks:    blocks,
		Index:     chatindex.NewService(docStore, dir),
		Groups:    group.NewService(docStore),
		Notices:   notify.NewCenter(notify.DefaultDismissAfter),
	}
}

// Start binds the session to one signed-in user: it resolves the profile,
// keeps it live via subscription and opens the chat index subscription.
func (s *Session) Start(ctx context.Context, userID string) error {
	profile, err := s.Directory.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	indexSub, err := s.Index.Subscribe(ctx, userID)
	if err != nil {
		return err
	}

	profileUnsub, err := s.Directory.SubscribeProfile(ctx, userID, func(p *domain.UserProfile) {
		s.mu.Lock()
		s.state.CurrentUser = p
		s.broadcastLocked()
		s.mu.Unlock()
	})
	if err != nil {
		indexSub.Close()
		return err
	}

	s.mu.Lock()
	s.userID = userID
	s.state.CurrentUser = profile
	s.indexSub = indexSub
	s.profileUnsub = profileUnsub
	s.engine = conversation.NewEngine(s.store, s.Blocks, userID)
	s.broadcastLocked()
	s.mu.Unlock()

	logger.Info("Session started", zap.String("user_id", userID))
	return nil
}

// IndexEvents delivers one chat list snapshot per observed remote change
func (s *Session) IndexEvents() <-chan chatindex.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexSub == nil {
		return nil
	}
	return s.indexSub.Events()
}

// ConversationEvents delivers the active conversation's log after each
// observed remote change
func (s *Session) ConversationEvents() <-chan []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	return s.engine.Events()
}

// Engine exposes the conversation engine bound to this session's user
func (s *Session) Engine() *conversation.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// IndexSubscription exposes the live chat index view
func (s *Session) IndexSubscription() *chatindex.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexSub
}

// OpenChat selects one chat list entry: marks it seen, persists the index,
// derives the block relationship and activates the conversation engine.
// While the peer blocks the current user, the peer profile is withheld from
// the session state.
func (s *Session) OpenChat(ctx context.Context, ref domain.ChatRef) error {
	s.mu.Lock()
	indexSub := s.indexSub
	engine := s.engine
	userID := s.userID
	s.mu.Unlock()
	if indexSub == nil || engine == nil {
		return apperrors.InternalError("session not started")
	}

	entry, err := indexSub.Select(ctx, ref)
	if err != nil {
		s.Notices.Error(err.Error())
		return err
	}

	var rel block.Relationship
	peerID := ""
	if entry.Peer != nil {
		peerID = entry.Peer.ID
		rel, err = s.Blocks.Relationship(ctx, userID, peerID)
		if err != nil {
			s.Notices.Error(err.Error())
			return err
		}
	}

	if err := engine.Activate(ctx, ref, peerID); err != nil {
		s.Notices.Error(err.Error())
		return err
	}

	s.mu.Lock()
	s.state.ActiveChat = ref
	s.state.Group = entry.Group
	s.state.Relationship = rel
	if rel.CurrentUserBlocked {
		s.state.Peer = nil
	} else {
		s.state.Peer = entry.Peer
	}
	s.broadcastLocked()
	s.mu.Unlock()
	return nil
}

// SendMessage sends through the engine, degrading blocked-state and remote
// failures to transient notices
func (s *Session) SendMessage(ctx context.Context, payload domain.Payload) (*domain.Message, error) {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil {
		return nil, apperrors.InternalError("session not started")
	}

	msg, err := engine.Send(ctx, payload)
	if err != nil {
		s.Notices.Error(apperrors.GetAppError(err).Message)
		return nil, err
	}
	return msg, nil
}

// ToggleBlock flips the block on the active chat's peer and refreshes the
// session's relationship state from fresh profile reads
func (s *Session) ToggleBlock(ctx context.Context) error {
	s.mu.Lock()
	userID := s.userID
	ref := s.state.ActiveChat
	peer := s.state.Peer
	s.mu.Unlock()

	if peer == nil {
		return apperrors.InvalidInputError("no peer to block in the active chat")
	}

	if _, err := s.Blocks.Toggle(ctx, userID, peer.ID, ref); err != nil {
		s.Notices.Error(apperrors.GetAppError(err).Message)
		if !apperrors.IsCode(err, apperrors.ErrCodePartialWrite) {
			return err
		}
	}

	rel, err := s.Blocks.Relationship(ctx, userID, peer.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state.Relationship = rel
	s.broadcastLocked()
	s.mu.Unlock()
	return nil
}

// Watch returns a channel receiving the session state after each change
func (s *Session) Watch() <-chan State {
	ch := make(chan State, 8)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	return ch
}

// State returns the current session state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close tears down every subscription owned by the session. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	engine := s.engine
	indexSub := s.indexSub
	profileUnsub := s.profileUnsub
	watchers := s.watchers
	s.watchers = nil
	s.mu.Unlock()

	if engine != nil {
		engine.Close()
	}
	if indexSub != nil {
		indexSub.Close()
	}
	if profileUnsub != nil {
		profileUnsub()
	}
	for _, ch := range watchers {
		close(ch)
	}
	s.Notices.Close()
	s.Directory.Reset()

	logger.Info("Session closed", zap.String("user_id", s.userID))
}

func (s *Session) broadcastLocked() {
	if s.closed {
		return
	}
	for _, ch := range s.watchers {
		select {
		case ch <- s.state:
		default:
		}
	}
}

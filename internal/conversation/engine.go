package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/internal/block"
	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/store"
	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
	"github.com/iamnishu22/chatapp/pkg/logger"
	"github.com/iamnishu22/chatapp/pkg/metrics"
)

// Engine owns the message log of one active conversation. Activate binds a
// live subscription; all other operations act against the latest locally
// observed snapshot, accepting last-write-wins races on the remote store.
type Engine struct {
	store  store.DocStore
	blocks *block.Service

	currentUserID string

	mu       sync.Mutex
	ref      domain.ChatRef
	peerID   string
	messages []domain.Message
	members  []string
	unsub    store.Unsubscribe
	timer    *time.Timer
	closed   bool

	events chan []domain.Message
}

// NewEngine creates a conversation engine for the given user
func NewEngine(docStore store.DocStore, blocks *block.Service, currentUserID string) *Engine {
	return &Engine{
		store:         docStore,
		blocks:        blocks,
		currentUserID: currentUserID,
		events:        make(chan []domain.Message, 16),
	}
}

// Activate binds the engine to one conversation, releasing any previous
// subscription. The retention timer is deliberately not renewed here: it is
// fire-once from the moment the duration was set.
func (e *Engine) Activate(ctx context.Context, ref domain.ChatRef, peerID string) error {
	if ref.IsZero() {
		return apperrors.InvalidInputError("conversation reference is empty")
	}

	e.mu.Lock()
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	e.ref = ref
	e.peerID = peerID
	e.messages = nil
	e.members = nil
	e.mu.Unlock()

	unsub, err := e.store.Subscribe(ctx, ref.Collection(), ref.ID(), func(doc store.Document) {
		e.onChange(ref, doc)
	})
	if err != nil {
		return apperrors.RemoteIOError(err)
	}

	e.mu.Lock()
	e.unsub = unsub
	e.mu.Unlock()
	return nil
}

// Events delivers the full message log after each observed remote change,
// including changes this engine did not initiate
func (e *Engine) Events() <-chan []domain.Message {
	return e.events
}

// Close releases the live subscription and stops the retention timer for
// this process. Idempotent.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	unsub := e.unsub
	timer := e.timer
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if timer != nil {
		timer.Stop()
	}
	close(e.events)
}

func (e *Engine) onChange(ref domain.ChatRef, doc store.Document) {
	conv := domain.ConversationFromDoc(ref, doc)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.ref != ref {
		return
	}
	e.messages = conv.Messages
	e.members = conv.Members

	// Coalesce under backpressure: only the latest log matters
	select {
	case e.events <- conv.Messages:
	default:
		select {
		case <-e.events:
		default:
		}
		e.events <- conv.Messages
	}
}

// Messages returns the latest locally observed log
func (e *Engine) Messages() []domain.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Send validates the payload, gates on the block relationship and appends a
// message to the log. If the conversation document does not exist yet it is
// created with a single-element log. After the append succeeds, the chat
// index summaries of both parties are updated best-effort; their failure
// never rolls back the sent message.
func (e *Engine) Send(ctx context.Context, payload domain.Payload) (*domain.Message, error) {
	if err := payload.Validate(); err != nil {
		metrics.MessageRejectedTotal.WithLabelValues("empty").Inc()
		return nil, err
	}

	e.mu.Lock()
	ref := e.ref
	peerID := e.peerID
	e.mu.Unlock()
	if ref.IsZero() {
		return nil, apperrors.InvalidInputError("no active conversation")
	}

	// Group conversations carry no two-party block semantics
	if ref.Kind() == domain.KindIndividual && peerID != "" {
		rel, err := e.blocks.Relationship(ctx, e.currentUserID, peerID)
		if err != nil {
			return nil, err
		}
		if rel.Any() {
			metrics.MessageRejectedTotal.WithLabelValues("blocked").Inc()
			return nil, apperrors.BlockedError()
		}
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		SenderID:  e.currentUserID,
		Payload:   payload,
		CreatedAt: time.Now(),
		IsSeen:    false,
	}

	if err := e.appendMessage(ctx, ref, msg); err != nil {
		return nil, err
	}

	kind := "individual"
	if ref.Kind() == domain.KindGroup {
		kind = "group"
	}
	metrics.MessageSentTotal.WithLabelValues(kind).Inc()

	e.updateIndexes(ctx, ref, peerID, msg)

	return &msg, nil
}

// appendMessage appends with union semantics so a retried write of the same
// message id cannot introduce a duplicate
func (e *Engine) appendMessage(ctx context.Context, ref domain.ChatRef, msg domain.Message) error {
	current, err := e.store.Get(ctx, ref.Collection(), ref.ID())
	if errors.Is(err, store.ErrNotFound) {
		err = e.store.Set(ctx, ref.Collection(), ref.ID(), store.Document{
			"messages": []any{msg.Doc()},
		})
		if err != nil {
			return apperrors.RemoteIOError(err)
		}
		return nil
	}
	if err != nil {
		return apperrors.RemoteIOError(err)
	}

	for _, existing := range domain.MessagesFromDoc(current["messages"]) {
		if existing.ID == msg.ID {
			return nil // retry of an already-landed write
		}
	}

	err = e.store.UpdateMerge(ctx, ref.Collection(), ref.ID(), store.Document{
		"messages": store.ArrayUnion{Values: []any{msg.Doc()}},
	})
	if err != nil {
		return apperrors.RemoteIOError(err)
	}
	return nil
}

// updateIndexes refreshes the chat index summaries of everyone who should
// see the new last message: both parties of an individual chat, every
// member of a group. Each write is independent and best-effort.
func (e *Engine) updateIndexes(ctx context.Context, ref domain.ChatRef, peerID string, msg domain.Message) {
	recipients := []string{e.currentUserID}
	if ref.Kind() == domain.KindGroup {
		e.mu.Lock()
		recipients = append(recipients, e.members...)
		e.mu.Unlock()
	} else if peerID != "" {
		recipients = append(recipients, peerID)
	}

	seen := make(map[string]bool, len(recipients))
	for _, userID := range recipients {
		if seen[userID] {
			continue
		}
		seen[userID] = true

		if err := e.updateIndexEntry(ctx, userID, ref, msg); err != nil {
			metrics.IndexWriteFailedTotal.Inc()
			logger.Warn("Best-effort chat index update failed",
				zap.String("user_id", userID),
				zap.String("chat_id", ref.ID()),
				zap.Error(err),
			)
		}
	}
}

func (e *Engine) updateIndexEntry(ctx context.Context, userID string, ref domain.ChatRef, msg domain.Message) error {
	doc, err := e.store.Get(ctx, store.CollectionUserChats, userID)
	if err != nil {
		return err
	}

	raw, _ := doc["chats"].([]any)
	updated := false
	for _, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		summary, err := domain.ChatSummaryFromDoc(fields, 0)
		if err != nil || summary.Ref != ref {
			continue
		}
		fields["lastMessage"] = msg.Payload.Text
		fields["isSeen"] = userID == e.currentUserID
		fields["updatedAt"] = msg.CreatedAt
		updated = true
		break
	}
	if !updated {
		return nil // recipient has no summary for this chat yet
	}

	return e.store.UpdateMerge(ctx, store.CollectionUserChats, userID, store.Document{
		"chats": raw,
	})
}

// Delete removes the given message ids from the log in one write, set
// difference by identifier, preserving the order of the remaining messages
func (e *Engine) Delete(ctx context.Context, messageIDs []string) error {
	e.mu.Lock()
	ref := e.ref
	e.mu.Unlock()
	if ref.IsZero() {
		return apperrors.InvalidInputError("no active conversation")
	}

	doomed := make(map[string]bool, len(messageIDs))
	for _, id := range messageIDs {
		doomed[id] = true
	}

	current, err := e.store.Get(ctx, ref.Collection(), ref.ID())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFoundError("Conversation")
		}
		return apperrors.RemoteIOError(err)
	}

	messages := domain.MessagesFromDoc(current["messages"])
	remaining := make([]domain.Message, 0, len(messages))
	removed := 0
	for _, msg := range messages {
		if doomed[msg.ID] {
			removed++
			continue
		}
		remaining = append(remaining, msg)
	}

	err = e.store.UpdateMerge(ctx, ref.Collection(), ref.ID(), store.Document{
		"messages": domain.MessagesToDoc(remaining),
	})
	if err != nil {
		return apperrors.RemoteIOError(err)
	}

	metrics.MessageDeletedTotal.Add(float64(removed))
	return nil
}

// ClearAll empties the log and removes the conversation entry from the
// invoking user's chat index. Other participants keep their entries.
func (e *Engine) ClearAll(ctx context.Context) error {
	e.mu.Lock()
	ref := e.ref
	e.mu.Unlock()
	if ref.IsZero() {
		return apperrors.InvalidInputError("no active conversation")
	}

	err := e.store.UpdateMerge(ctx, ref.Collection(), ref.ID(), store.Document{
		"messages": []any{},
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFoundError("Conversation")
		}
		return apperrors.RemoteIOError(err)
	}

	return e.pruneOwnIndexEntry(ctx, ref)
}

func (e *Engine) pruneOwnIndexEntry(ctx context.Context, ref domain.ChatRef) error {
	doc, err := e.store.Get(ctx, store.CollectionUserChats, e.currentUserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.RemoteIOError(err)
	}

	raw, _ := doc["chats"].([]any)
	kept := make([]any, 0, len(raw))
	for _, item := range raw {
		fields, ok := item.(map[string]any)
		if ok {
			if summary, err := domain.ChatSummaryFromDoc(fields, 0); err == nil && summary.Ref == ref {
				continue
			}
		}
		kept = append(kept, item)
	}

	err = e.store.UpdateMerge(ctx, store.CollectionUserChats, e.currentUserID, store.Document{
		"chats": kept,
	})
	if err != nil {
		return apperrors.RemoteIOError(err)
	}
	return nil
}

// Search is a pure, case-insensitive substring filter over the currently
// loaded log. It never touches the remote store; an empty query returns the
// full log.
func (e *Engine) Search(query string) []domain.Message {
	messages := e.Messages()
	if query == "" {
		return messages
	}

	needle := strings.ToLower(query)
	matched := make([]domain.Message, 0, len(messages))
	for _, msg := range messages {
		if strings.Contains(strings.ToLower(msg.Payload.Text), needle) {
			matched = append(matched, msg)
		}
	}
	return matched
}

// SetRetention persists the disappearing-messages duration on the
// conversation and schedules a one-shot wipe of the whole log once it
// elapses, regardless of messages added in between. The timer lives in this
// process only; if the process exits first, expiry does not happen.
func (e *Engine) SetRetention(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return apperrors.ValidationError("retention duration must be positive")
	}

	e.mu.Lock()
	ref := e.ref
	e.mu.Unlock()
	if ref.IsZero() {
		return apperrors.InvalidInputError("no active conversation")
	}

	err := e.store.UpdateMerge(ctx, ref.Collection(), ref.ID(), store.Document{
		"disappearingMessages": duration.Milliseconds(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFoundError("Conversation")
		}
		return apperrors.RemoteIOError(err)
	}

	timer := time.AfterFunc(duration, func() {
		e.expireRetention(ref)
	})

	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = timer
	e.mu.Unlock()

	return nil
}

func (e *Engine) expireRetention(ref domain.ChatRef) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := e.store.UpdateMerge(ctx, ref.Collection(), ref.ID(), store.Document{
		"messages": []any{},
	})
	if err != nil {
		logger.Error("Retention wipe failed",
			zap.String("chat_id", ref.ID()),
			zap.Error(err),
		)
		return
	}

	metrics.RetentionWipeTotal.Inc()
	logger.Info("Conversation log cleared by retention timer",
		zap.String("chat_id", ref.ID()),
	)
}

// VisibleMessages filters the log for rendering under an active block:
// while the peer blocks the current user, the user's own messages are
// hidden; while the current user blocks the peer, the peer's are.
func VisibleMessages(messages []domain.Message, currentUserID, peerID string, rel block.Relationship) []domain.Message {
	visible := make([]domain.Message, 0, len(messages))
	for _, msg := range messages {
		if rel.CurrentUserBlocked && msg.SenderID == currentUserID {
			continue
		}
		if rel.PeerBlocked && msg.SenderID == peerID {
			continue
		}
		visible = append(visible, msg)
	}
	return visible
}

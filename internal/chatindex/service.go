package chatindex

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/internal/directory"
	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/store"
	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
	"github.com/iamnishu22/chatapp/pkg/logger"
	"github.com/iamnishu22/chatapp/pkg/metrics"
)

// fallbackLastMessage is shown for summaries that never carried a message
const fallbackLastMessage = "No messages yet"

// unnamedGroup stands in for a group whose document is missing; a single
// unresolvable group must not fail the whole refresh
const unnamedGroup = "Unnamed Group"

// Entry is one resolved row of the displayed chat list: the persisted
// summary plus the peer profile or group info it references
type Entry struct {
	Summary domain.ChatSummary
	Peer    *domain.UserProfile // individual chats
	Group   *domain.GroupInfo   // group chats
}

// DisplayName returns the group name or the peer's username
func (e Entry) DisplayName() string {
	if e.Group != nil {
		return e.Group.Name
	}
	if e.Peer != nil && e.Peer.Username != "" {
		return e.Peer.Username
	}
	return "No Name"
}

// Snapshot is one derived view of the chat list: display-ordered, with
// blocked peers filtered out. The persisted list keeps every entry.
type Snapshot struct {
	Entries []Entry
}

// Service maintains live, ordered views of per-user chat indexes
type Service struct {
	store     store.DocStore
	directory *directory.Service
}

// NewService creates a new chat index service
func NewService(docStore store.DocStore, dir *directory.Service) *Service {
	return &Service{
		store:     docStore,
		directory: dir,
	}
}

// Subscription is a live view over one user's userchats document. Each
// remote change is folded into a new Snapshot on Events.
type Subscription struct {
	svc    *Service
	userID string

	mu        sync.Mutex
	persisted []domain.ChatSummary // full list, display-sorted, as last written
	closed    bool

	events chan Snapshot
	unsub  store.Unsubscribe
}

// Subscribe opens a live subscription on the user's chat index
func (s *Service) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	sub := &Subscription{
		svc:    s,
		userID: userID,
		events: make(chan Snapshot, 16),
	}

	unsub, err := s.store.Subscribe(ctx, store.CollectionUserChats, userID, func(doc store.Document) {
		sub.refresh(ctx, doc)
	})
	if err != nil {
		return nil, apperrors.RemoteIOError(err)
	}
	sub.unsub = unsub
	return sub, nil
}

// Events delivers one Snapshot per observed remote change
func (sub *Subscription) Events() <-chan Snapshot {
	return sub.events
}

// Close releases the underlying push subscription. Idempotent.
func (sub *Subscription) Close() {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	sub.mu.Unlock()

	sub.unsub()
	close(sub.events)
}

// refresh re-derives the display list from one remote snapshot: decode,
// capture insertion order, resolve references, sort, filter, emit
func (sub *Subscription) refresh(ctx context.Context, doc store.Document) {
	summaries := decodeSummaries(doc)

	entries := make([]Entry, 0, len(summaries))
	for _, summary := range summaries {
		entries = append(entries, sub.svc.resolveEntry(ctx, summary))
	}

	sortEntries(entries)
	visible := sub.svc.filterBlocked(ctx, sub.userID, entries)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	sub.persisted = summariesOf(entries)

	// Coalesce under backpressure: only the latest snapshot matters
	select {
	case sub.events <- Snapshot{Entries: visible}:
	default:
		select {
		case <-sub.events:
		default:
		}
		sub.events <- Snapshot{Entries: visible}
	}

	metrics.IndexRefreshTotal.WithLabelValues("ok").Inc()
}

// Select marks the chosen summary seen for this user and persists the full
// summary list back to the store, then returns the resolved entry so the
// caller can activate the conversation engine with it.
func (sub *Subscription) Select(ctx context.Context, ref domain.ChatRef) (Entry, error) {
	sub.mu.Lock()
	updated := make([]domain.ChatSummary, len(sub.persisted))
	copy(updated, sub.persisted)
	sub.mu.Unlock()

	found := -1
	for i := range updated {
		if updated[i].Ref == ref {
			updated[i].IsSeen = true
			found = i
			break
		}
	}
	if found == -1 {
		return Entry{}, apperrors.NotFoundError("Chat")
	}

	if err := sub.persist(ctx, updated); err != nil {
		return Entry{}, err
	}

	return sub.svc.resolveEntry(ctx, updated[found]), nil
}

// TogglePin flips the pinned flag of one summary, re-sorts the full list
// (pinned first, captured insertion order within each partition) and
// persists it. Unrelated entries keep their mutual order.
func (sub *Subscription) TogglePin(ctx context.Context, ref domain.ChatRef) error {
	sub.mu.Lock()
	updated := make([]domain.ChatSummary, len(sub.persisted))
	copy(updated, sub.persisted)
	sub.mu.Unlock()

	found := false
	for i := range updated {
		if updated[i].Ref == ref {
			updated[i].Pinned = !updated[i].Pinned
			found = true
			break
		}
	}
	if !found {
		return apperrors.NotFoundError("Chat")
	}

	sortSummaries(updated)
	return sub.persist(ctx, updated)
}

func (sub *Subscription) persist(ctx context.Context, summaries []domain.ChatSummary) error {
	err := sub.svc.store.UpdateMerge(ctx, store.CollectionUserChats, sub.userID, store.Document{
		"chats": domain.SummariesToDoc(summaries),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFoundError("Chat index")
		}
		return apperrors.RemoteIOError(err)
	}

	sub.mu.Lock()
	if !sub.closed {
		sub.persisted = summaries
	}
	sub.mu.Unlock()
	return nil
}

// resolveEntry resolves one summary's peer or group reference, degrading to
// placeholder data instead of failing the refresh
func (s *Service) resolveEntry(ctx context.Context, summary domain.ChatSummary) Entry {
	if summary.LastMessage == "" {
		summary.LastMessage = fallbackLastMessage
	}
	entry := Entry{Summary: summary}

	switch summary.Ref.Kind() {
	case domain.KindGroup:
		doc, err := s.store.Get(ctx, store.CollectionGroups, summary.Ref.ID())
		if err != nil {
			metrics.IndexEntryDegradedTotal.Inc()
			entry.Group = &domain.GroupInfo{Name: unnamedGroup, Members: []string{}}
			return entry
		}
		conv := domain.ConversationFromDoc(summary.Ref, doc)
		name := conv.Name
		if name == "" {
			name = unnamedGroup
		}
		entry.Group = &domain.GroupInfo{Name: name, Members: conv.Members}
	default:
		peer, err := s.directory.Resolve(ctx, summary.ReceiverID)
		if err != nil {
			metrics.IndexEntryDegradedTotal.Inc()
			logger.Warn("Chat index entry degraded",
				zap.String("receiver_id", summary.ReceiverID),
				zap.Error(err),
			)
			peer = &domain.UserProfile{ID: summary.ReceiverID}
		}
		entry.Peer = peer
	}
	return entry
}

// filterBlocked excludes entries whose peer is blocked in either direction.
// They stay in the persisted list; only the visible sequence drops them.
func (s *Service) filterBlocked(ctx context.Context, userID string, entries []Entry) []Entry {
	me, err := s.directory.Resolve(ctx, userID)
	if err != nil {
		logger.Warn("Cannot resolve current user for block filtering",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		out := make([]Entry, len(entries))
		copy(out, entries)
		return out
	}

	visible := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Peer != nil && (me.HasBlocked(entry.Peer.ID) || me.IsBlockedBy(entry.Peer.ID)) {
			continue
		}
		visible = append(visible, entry)
	}
	return visible
}

// decodeSummaries decodes the chats array, capturing each entry's index
// position as its insertion-order rank before any sorting happens. Entries
// violating the chatId/groupId variant invariant are skipped.
func decodeSummaries(doc store.Document) []domain.ChatSummary {
	raw, ok := doc["chats"].([]any)
	if !ok {
		return nil
	}

	summaries := make([]domain.ChatSummary, 0, len(raw))
	for i, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		summary, err := domain.ChatSummaryFromDoc(fields, i)
		if err != nil {
			metrics.IndexRefreshTotal.WithLabelValues("decode_error").Inc()
			logger.Warn("Skipping malformed chat summary", zap.Int("index", i), zap.Error(err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// Ordering rule: pinned first, stable by captured insertion order within
// each partition. Pin toggles cannot reorder unrelated entries because the
// rank is the pre-sort index, never a timestamp.
func sortSummaries(summaries []domain.ChatSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Pinned != summaries[j].Pinned {
			return summaries[i].Pinned
		}
		return summaries[i].Order < summaries[j].Order
	})
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Summary.Pinned != entries[j].Summary.Pinned {
			return entries[i].Summary.Pinned
		}
		return entries[i].Summary.Order < entries[j].Summary.Order
	})
}

func summariesOf(entries []Entry) []domain.ChatSummary {
	out := make([]domain.ChatSummary, len(entries))
	for i := range entries {
		out[i] = entries[i].Summary
	}
	return out
}

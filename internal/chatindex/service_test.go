package chatindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnishu22/chatapp/internal/directory"
	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/store"
	"github.com/iamnishu22/chatapp/internal/store/memstore"
)

func seedUser(t *testing.T, s *memstore.Store, id, username string) {
	t.Helper()
	require.NoError(t, s.Set(context.Background(), store.CollectionUsers, id, store.Document{
		"username": username, "blocked": []any{}, "blockedBy": []any{},
	}))
}

func chatEntry(chatID, receiverID, lastMessage string, pinned bool) map[string]any {
	return map[string]any{
		"chatId":      chatID,
		"receiverId":  receiverID,
		"lastMessage": lastMessage,
		"isSeen":      false,
		"pinned":      pinned,
		"updatedAt":   time.Now(),
	}
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snapshot := <-ch:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chat index snapshot")
		return Snapshot{}
	}
}

func newTestSubscription(t *testing.T, s *memstore.Store, userID string) *Subscription {
	t.Helper()
	svc := NewService(s, directory.NewService(s))
	sub, err := svc.Subscribe(context.Background(), userID)
	require.NoError(t, err)
	t.Cleanup(sub.Close)
	return sub
}

func TestPinnedEntriesPrecedeUnpinned(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	for _, peer := range []string{"u2", "u3", "u4"} {
		seedUser(t, s, peer, peer)
	}

	require.NoError(t, s.Set(ctx, store.CollectionUserChats, "u1", store.Document{
		"chats": []any{
			chatEntry("c1", "u2", "one", false),
			chatEntry("c2", "u3", "two", true),
			chatEntry("c3", "u4", "three", false),
		},
	}))

	sub := newTestSubscription(t, s, "u1")
	snapshot := waitSnapshot(t, sub.Events())

	require.Len(t, snapshot.Entries, 3)
	assert.Equal(t, "c2", snapshot.Entries[0].Summary.Ref.ID())
	assert.Equal(t, "c1", snapshot.Entries[1].Summary.Ref.ID())
	assert.Equal(t, "c3", snapshot.Entries[2].Summary.Ref.ID())
	assert.True(t, snapshot.Entries[0].Summary.Pinned)
}

func TestPinToggleMovesEntryToFrontOnly(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	peers := []string{"u2", "u3", "u4", "u5", "u6"}
	chats := make([]any, len(peers))
	for i, peer := range peers {
		seedUser(t, s, peer, peer)
		chats[i] = chatEntry("c"+string(rune('1'+i)), peer, "msg", false)
	}
	require.NoError(t, s.Set(ctx, store.CollectionUserChats, "u1", store.Document{"chats": chats}))

	sub := newTestSubscription(t, s, "u1")
	waitSnapshot(t, sub.Events())

	// Pin the 3rd of 5 unpinned chats
	require.NoError(t, sub.TogglePin(ctx, domain.IndividualRef("c3")))

	snapshot := waitSnapshot(t, sub.Events())
	require.Len(t, snapshot.Entries, 5)

	got := make([]string, len(snapshot.Entries))
	for i, entry := range snapshot.Entries {
		got[i] = entry.Summary.Ref.ID()
	}
	assert.Equal(t, []string{"c3", "c1", "c2", "c4", "c5"}, got)
}

func TestBlockedPeersFilteredButPersisted(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, store.CollectionUsers, "u1", store.Document{
		"username": "alice", "blocked": []any{"u3"}, "blockedBy": []any{},
	}))
	seedUser(t, s, "u2", "bob")
	seedUser(t, s, "u3", "mallory")

	require.NoError(t, s.Set(ctx, store.CollectionUserChats, "u1", store.Document{
		"chats": []any{
			chatEntry("c1", "u2", "hi", false),
			chatEntry("c2", "u3", "yo", false),
		},
	}))

	sub := newTestSubscription(t, s, "u1")
	snapshot := waitSnapshot(t, sub.Events())

	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "c1", snapshot.Entries[0].Summary.Ref.ID())

	// The persisted list still holds both entries
	doc, err := s.Get(ctx, store.CollectionUserChats, "u1")
	require.NoError(t, err)
	assert.Len(t, doc["chats"], 2)
}

func TestMissingGroupDegradesToUnnamed(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")

	require.NoError(t, s.Set(ctx, store.CollectionUserChats, "u1", store.Document{
		"chats": []any{
			map[string]any{"groupId": "g-missing", "lastMessage": "", "isSeen": false, "pinned": false},
		},
	}))

	sub := newTestSubscription(t, s, "u1")
	snapshot := waitSnapshot(t, sub.Events())

	require.Len(t, snapshot.Entries, 1)
	entry := snapshot.Entries[0]
	require.NotNil(t, entry.Group)
	assert.Equal(t, "Unnamed Group", entry.Group.Name)
	assert.Empty(t, entry.Group.Members)
	assert.Equal(t, "No messages yet", entry.Summary.LastMessage)
}

func TestMalformedSummarySkippedWithoutFailingRefresh(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	seedUser(t, s, "u2", "bob")

	require.NoError(t, s.Set(ctx, store.CollectionUserChats, "u1", store.Document{
		"chats": []any{
			map[string]any{"chatId": "c1", "groupId": "g1"}, // violates the variant invariant
			chatEntry("c2", "u2", "hi", false),
		},
	}))

	sub := newTestSubscription(t, s, "u1")
	snapshot := waitSnapshot(t, sub.Events())

	require.Len(t, snapshot.Entries, 1)
	assert.Equal(t, "c2", snapshot.Entries[0].Summary.Ref.ID())
}

func TestSelectMarksSeenAndPersistsFullList(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	seedUser(t, s, "u1", "alice")
	seedUser(t, s, "u2", "bob")
	seedUser(t, s, "u3", "carol")

	require.NoError(t, s.Set(ctx, store.CollectionUserChats, "u1", store.Document{
		"chats": []any{
			chatEntry("c1", "u2", "hi", false),
			chatEntry("c2", "u3", "yo", false),
		},
	}))

	sub := newTestSubscription(t, s, "u1")
	waitSnapshot(t, sub.Events())

	entry, err := sub.Select(ctx, domain.IndividualRef("c1"))
	require.NoError(t, err)
	assert.True(t, entry.Summary.IsSeen)
	require.NotNil(t, entry.Peer)
	assert.Equal(t, "bob", entry.Peer.Username)

	doc, err := s.Get(ctx, store.CollectionUserChats, "u1")
	require.NoError(t, err)
	raw := doc["chats"].([]any)
	require.Len(t, raw, 2)

	first := raw[0].(map[string]any)
	second := raw[1].(map[string]any)
	assert.Equal(t, true, first["isSeen"])
	assert.Equal(t, false, second["isSeen"])
}

func TestCloseIsIdempotent(t *testing.T) {
	s := memstore.New()
	seedUser(t, s, "u1", "alice")

	sub := newTestSubscription(t, s, "u1")
	sub.Close()
	sub.Close()
}

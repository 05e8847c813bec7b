package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnishu22/chatapp/internal/chatindex"
	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/store"
	"github.com/iamnishu22/chatapp/internal/store/memstore"
	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
)

func newStartedSession(t *testing.T) (*Session, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	ctx := context.Background()

	for _, id := range []string{"u1", "u2"} {
		require.NoError(t, s.Set(ctx, store.CollectionUsers, id, store.Document{
			"username": id, "blocked": []any{}, "blockedBy": []any{},
		}))
	}
	require.NoError(t, s.Set(ctx, store.CollectionUserChats, "u1", store.Document{
		"chats": []any{map[string]any{
			"chatId": "c1", "receiverId": "u2", "lastMessage": "", "isSeen": false, "pinned": false,
		}},
	}))
	require.NoError(t, s.Set(ctx, store.CollectionUserChats, "u2", store.Document{
		"chats": []any{map[string]any{
			"chatId": "c1", "receiverId": "u1", "lastMessage": "", "isSeen": false, "pinned": false,
		}},
	}))

	sess := New(s)
	require.NoError(t, sess.Start(ctx, "u1"))
	t.Cleanup(sess.Close)

	// The index subscription needs its first snapshot before chats can be
	// selected
	select {
	case <-sess.IndexEvents():
	case <-time.After(2 * time.Second):
		t.Fatal("no initial chat index snapshot")
	}

	return sess, s
}

func TestStartUnknownUser(t *testing.T) {
	sess := New(memstore.New())

	err := sess.Start(context.Background(), "ghost")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestOpenChatActivatesConversation(t *testing.T) {
	sess, _ := newStartedSession(t)
	ctx := context.Background()

	require.NoError(t, sess.OpenChat(ctx, domain.IndividualRef("c1")))

	state := sess.State()
	assert.Equal(t, domain.IndividualRef("c1"), state.ActiveChat)
	require.NotNil(t, state.Peer)
	assert.Equal(t, "u2", state.Peer.ID)
	assert.False(t, state.Relationship.Any())
}

func TestOpenChatUnknownRef(t *testing.T) {
	sess, _ := newStartedSession(t)

	err := sess.OpenChat(context.Background(), domain.IndividualRef("c-missing"))

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	assert.NotEmpty(t, sess.Notices.Notices())
}

func TestSendMessageThroughSession(t *testing.T) {
	sess, s := newStartedSession(t)
	ctx := context.Background()

	require.NoError(t, sess.OpenChat(ctx, domain.IndividualRef("c1")))

	msg, err := sess.SendMessage(ctx, domain.Payload{Text: "hi"})
	require.NoError(t, err)
	require.NotNil(t, msg)

	doc, err := s.Get(ctx, store.CollectionChats, "c1")
	require.NoError(t, err)
	msgs := domain.MessagesFromDoc(doc["messages"])
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Payload.Text)
}

func TestToggleBlockGatesSubsequentSends(t *testing.T) {
	sess, _ := newStartedSession(t)
	ctx := context.Background()

	require.NoError(t, sess.OpenChat(ctx, domain.IndividualRef("c1")))
	require.NoError(t, sess.ToggleBlock(ctx))

	state := sess.State()
	assert.True(t, state.Relationship.PeerBlocked)

	_, err := sess.SendMessage(ctx, domain.Payload{Text: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBlocked))

	// The failure degrades to a transient user-visible notice
	assert.NotEmpty(t, sess.Notices.Notices())

	// Unblocking restores sending
	require.NoError(t, sess.ToggleBlock(ctx))
	_, err = sess.SendMessage(ctx, domain.Payload{Text: "hi again"})
	assert.NoError(t, err)
}

func TestToggleBlockRequiresPeer(t *testing.T) {
	sess, _ := newStartedSession(t)

	err := sess.ToggleBlock(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
}

func TestWatchObservesStateChanges(t *testing.T) {
	sess, _ := newStartedSession(t)
	ctx := context.Background()

	ch := sess.Watch()
	require.NoError(t, sess.OpenChat(ctx, domain.IndividualRef("c1")))

	select {
	case state := <-ch:
		assert.Equal(t, domain.IndividualRef("c1"), state.ActiveChat)
	case <-time.After(2 * time.Second):
		t.Fatal("no state broadcast received")
	}
}

func TestGroupFlowThroughSession(t *testing.T) {
	sess, _ := newStartedSession(t)
	ctx := context.Background()

	groupID, err := sess.Groups.CreateGroup(ctx, "Team", []string{"u1", "u2"})
	require.NoError(t, err)

	// The group create lands in the index as a new entry
	var snapshot chatindex.Snapshot
	require.Eventually(t, func() bool {
		select {
		case snapshot = <-sess.IndexEvents():
			return len(snapshot.Entries) == 2
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sess.OpenChat(ctx, domain.GroupRef(groupID)))

	state := sess.State()
	require.NotNil(t, state.Group)
	assert.Equal(t, "Team", state.Group.Name)
	assert.Nil(t, state.Peer)

	_, err = sess.SendMessage(ctx, domain.Payload{Text: "hello team"})
	assert.NoError(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	sess, _ := newStartedSession(t)

	sess.Close()
	sess.Close()
}

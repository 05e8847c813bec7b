package group

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/store"
	"github.com/iamnishu22/chatapp/internal/store/memstore"
	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
)

func TestCreateGroupSeedsEveryMemberIndex(t *testing.T) {
	s := memstore.New()
	svc := NewService(s)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Team", []string{"u1", "u2"})
	require.NoError(t, err)
	require.NotEmpty(t, groupID)

	doc, err := s.Get(ctx, store.CollectionGroups, groupID)
	require.NoError(t, err)
	assert.Equal(t, "Team", doc["name"])
	assert.Equal(t, []any{"u1", "u2"}, doc["members"])
	assert.Empty(t, doc["messages"])

	for _, memberID := range []string{"u1", "u2"} {
		doc, err := s.Get(ctx, store.CollectionUserChats, memberID)
		require.NoError(t, err)
		raw := doc["chats"].([]any)
		require.Len(t, raw, 1)

		summary, err := domain.ChatSummaryFromDoc(raw[0].(map[string]any), 0)
		require.NoError(t, err)
		assert.Equal(t, domain.KindGroup, summary.Ref.Kind())
		assert.Equal(t, groupID, summary.Ref.ID())
		assert.Equal(t, "New group created", summary.LastMessage)
		assert.False(t, summary.IsSeen)
	}
}

func TestCreateGroupValidation(t *testing.T) {
	svc := NewService(memstore.New())
	ctx := context.Background()

	_, err := svc.CreateGroup(ctx, "", []string{"u1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))

	_, err = svc.CreateGroup(ctx, "Team", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

type failingStore struct {
	store.DocStore
	failUpdates map[string]bool
}

func (f *failingStore) UpdateMerge(ctx context.Context, collection, id string, updates store.Document) error {
	if f.failUpdates[collection+"/"+id] {
		return errors.New("simulated network error")
	}
	return f.DocStore.UpdateMerge(ctx, collection, id, updates)
}

func TestCreateGroupPartialFailureContinues(t *testing.T) {
	s := memstore.New()
	failing := &failingStore{DocStore: s, failUpdates: map[string]bool{"userchats/u2": true}}
	svc := NewService(failing)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Team", []string{"u1", "u2", "u3"})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodePartialWrite))
	assert.NotEmpty(t, groupID)

	// The group document and the successful member writes all stand
	_, err = s.Get(ctx, store.CollectionGroups, groupID)
	assert.NoError(t, err)

	for _, memberID := range []string{"u1", "u3"} {
		doc, err := s.Get(ctx, store.CollectionUserChats, memberID)
		require.NoError(t, err)
		assert.Len(t, doc["chats"], 1)
	}

	_, err = s.Get(ctx, store.CollectionUserChats, "u2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	s := memstore.New()
	svc := NewService(s)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Team", []string{"u1"})
	require.NoError(t, err)

	require.NoError(t, svc.AddMember(ctx, groupID, "u2"))
	require.NoError(t, svc.AddMember(ctx, groupID, "u2"))

	members, err := svc.Members(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, members)
}

func TestRemoveMemberIsIdempotent(t *testing.T) {
	s := memstore.New()
	svc := NewService(s)
	ctx := context.Background()

	groupID, err := svc.CreateGroup(ctx, "Team", []string{"u1", "u2"})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveMember(ctx, groupID, "u2"))
	require.NoError(t, svc.RemoveMember(ctx, groupID, "u2"))

	members, err := svc.Members(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, members)
}

func TestMembersMissingGroup(t *testing.T) {
	svc := NewService(memstore.New())

	_, err := svc.Members(context.Background(), "g-missing")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

package group

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/store"
	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
	"github.com/iamnishu22/chatapp/pkg/logger"
)

// creationLastMessage seeds each member's chat index entry for a new group
const creationLastMessage = "New group created"

// Service creates group conversations and mutates their member sets
type Service struct {
	store store.DocStore
}

// NewService creates a new group membership manager
func NewService(docStore store.DocStore) *Service {
	return &Service{store: docStore}
}

// CreateGroup creates one group conversation document and then appends a
// chat index entry to every member's userchats document. The per-member
// writes are independent: one failing must not prevent the others, and the
// caller learns of failures only in aggregate after all attempts.
func (s *Service) CreateGroup(ctx context.Context, name string, memberIDs []string) (string, error) {
	if name == "" {
		return "", apperrors.ValidationError("group name must not be empty")
	}
	if len(memberIDs) == 0 {
		return "", apperrors.ValidationError("group must have at least one member")
	}

	groupID := uuid.NewString()
	err := s.store.Set(ctx, store.CollectionGroups, groupID, store.Document{
		"name":     name,
		"members":  idsToAny(memberIDs),
		"messages": []any{},
	})
	if err != nil {
		return "", apperrors.RemoteIOError(err)
	}

	summaryDoc := func() map[string]any {
		summary := domain.ChatSummary{
			Ref:         domain.GroupRef(groupID),
			LastMessage: creationLastMessage,
			IsSeen:      false,
			Pinned:      false,
			UpdatedAt:   time.Now(),
		}
		return summary.Doc()
	}

	var failed []error
	for _, memberID := range memberIDs {
		err := s.store.UpdateMerge(ctx, store.CollectionUserChats, memberID, store.Document{
			"chats": store.ArrayUnion{Values: []any{summaryDoc()}},
		})
		if err != nil {
			logger.Warn("Failed to add group to member chat index",
				zap.String("group_id", groupID),
				zap.String("member_id", memberID),
				zap.Error(err),
			)
			failed = append(failed, fmt.Errorf("member %s: %w", memberID, err))
		}
	}

	if len(failed) > 0 {
		return groupID, apperrors.PartialWriteError(
			fmt.Sprintf("group created but %d of %d member chat lists not updated", len(failed), len(memberIDs)),
			errors.Join(failed...),
		)
	}

	logger.Info("Group created",
		zap.String("group_id", groupID),
		zap.String("name", name),
		zap.Int("members", len(memberIDs)),
	)
	return groupID, nil
}

// AddMember adds a user to the group's member set. Adding an already
// present member is a no-op, not an error.
func (s *Service) AddMember(ctx context.Context, groupID, userID string) error {
	err := s.store.UpdateMerge(ctx, store.CollectionGroups, groupID, store.Document{
		"members": store.ArrayUnion{Values: []any{userID}},
	})
	if err != nil {
		return apperrors.RemoteIOError(err)
	}
	return nil
}

// RemoveMember removes a user from the group's member set. Removing an
// absent member is a no-op, not an error.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID string) error {
	err := s.store.UpdateMerge(ctx, store.CollectionGroups, groupID, store.Document{
		"members": store.ArrayRemove{Values: []any{userID}},
	})
	if err != nil {
		return apperrors.RemoteIOError(err)
	}
	return nil
}

// Members returns the group's current member ids
func (s *Service) Members(ctx context.Context, groupID string) ([]string, error) {
	doc, err := s.store.Get(ctx, store.CollectionGroups, groupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundError("Group")
		}
		return nil, apperrors.RemoteIOError(err)
	}

	conv := domain.ConversationFromDoc(domain.GroupRef(groupID), doc)
	return conv.Members, nil
}

func idsToAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

package directory

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iamnishu22/chatapp/internal/domain"
	"github.com/iamnishu22/chatapp/internal/store"
	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
	"github.com/iamnishu22/chatapp/pkg/logger"
)

// DefaultCacheTTL bounds how long a resolved profile may be served without
// re-reading the users document
const DefaultCacheTTL = 30 * time.Second

// Service resolves user identifiers to profile records. Read-mostly; results
// are cached per session and invalidated on profile writes and subscription
// events.
type Service struct {
	store store.DocStore
	cache *profileCache
}

// NewService creates a new directory service
func NewService(docStore store.DocStore) *Service {
	return &Service{
		store: docStore,
		cache: newProfileCache(DefaultCacheTTL),
	}
}

// Resolve returns the profile for one user id, from cache when fresh
func (s *Service) Resolve(ctx context.Context, userID string) (*domain.UserProfile, error) {
	if profile, ok := s.cache.get(userID); ok {
		return profile, nil
	}
	return s.ResolveFresh(ctx, userID)
}

// ResolveFresh reads the users document, bypassing the cache. Callers that
// must not trust cached block state (the block resolver) use this.
func (s *Service) ResolveFresh(ctx context.Context, userID string) (*domain.UserProfile, error) {
	doc, err := s.store.Get(ctx, store.CollectionUsers, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFoundError("User")
		}
		return nil, apperrors.RemoteIOError(err)
	}

	profile := domain.UserProfileFromDoc(userID, doc)
	s.cache.set(profile)
	return profile, nil
}

// ResolveMany resolves a set of user ids, skipping ids that fail to resolve
func (s *Service) ResolveMany(ctx context.Context, userIDs []string) []*domain.UserProfile {
	profiles := make([]*domain.UserProfile, 0, len(userIDs))
	for _, id := range userIDs {
		profile, err := s.Resolve(ctx, id)
		if err != nil {
			logger.Warn("Skipping unresolvable user", zap.String("user_id", id), zap.Error(err))
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles
}

// ProfileUpdate carries the editable profile fields; nil means unchanged
type ProfileUpdate struct {
	Username *string
	Avatar   *string
	Status   *string
}

// UpdateProfile merges edits into the user's own profile document
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) error {
	fields := make(store.Document)
	if update.Username != nil {
		fields["username"] = *update.Username
	}
	if update.Avatar != nil {
		fields["avatar"] = *update.Avatar
	}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if len(fields) == 0 {
		return apperrors.ValidationError("no profile fields to update")
	}

	if err := s.store.UpdateMerge(ctx, store.CollectionUsers, userID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFoundError("User")
		}
		return apperrors.RemoteIOError(err)
	}

	s.cache.invalidate(userID)
	return nil
}

// SubscribeProfile watches one users document, keeping the cache current and
// forwarding each decoded profile to fn
func (s *Service) SubscribeProfile(ctx context.Context, userID string, fn func(*domain.UserProfile)) (store.Unsubscribe, error) {
	unsub, err := s.store.Subscribe(ctx, store.CollectionUsers, userID, func(doc store.Document) {
		profile := domain.UserProfileFromDoc(userID, doc)
		s.cache.set(profile)
		fn(profile)
	})
	if err != nil {
		return nil, apperrors.RemoteIOError(err)
	}
	return unsub, nil
}

// Invalidate drops one cached profile
func (s *Service) Invalidate(userID string) {
	s.cache.invalidate(userID)
}

// Reset drops the whole session cache
func (s *Service) Reset() {
	s.cache.clear()
}

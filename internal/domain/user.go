package domain

// SenderSystem is the sentinel sender id used for block-toggle marker messages
const SenderSystem = "system"

// UserProfile represents a user document in the users collection
// Owned by the user; mutated only by that user's own actions
type UserProfile struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Avatar    string   `json:"avatar"`
	Status    string   `json:"status"`
	Blocked   []string `json:"blocked"`   // outgoing blocks
	BlockedBy []string `json:"blockedBy"` // reciprocal annotation, maintained by blockers
}

// HasBlocked reports whether this user blocks the given peer
func (u *UserProfile) HasBlocked(peerID string) bool {
	return containsID(u.Blocked, peerID)
}

// IsBlockedBy reports whether the given peer blocks this user
func (u *UserProfile) IsBlockedBy(peerID string) bool {
	return containsID(u.BlockedBy, peerID)
}

// Doc encodes the profile as remote document fields
func (u *UserProfile) Doc() map[string]any {
	return map[string]any{
		"username":  u.Username,
		"avatar":    u.Avatar,
		"status":    u.Status,
		"blocked":   stringsToAny(u.Blocked),
		"blockedBy": stringsToAny(u.BlockedBy),
	}
}

// UserProfileFromDoc decodes a users document
func UserProfileFromDoc(id string, doc map[string]any) *UserProfile {
	return &UserProfile{
		ID:        id,
		Username:  asString(doc["username"]),
		Avatar:    asString(doc["avatar"]),
		Status:    asString(doc["status"]),
		Blocked:   asStringSlice(doc["blocked"]),
		BlockedBy: asStringSlice(doc["blockedBy"]),
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

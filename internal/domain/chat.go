package domain

import (
	"time"

	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
)

// ChatKind discriminates the two conversation reference variants
type ChatKind int

const (
	KindIndividual ChatKind = iota
	KindGroup
)

// ChatRef is a tagged reference to a conversation: exactly one of the
// individual chat id or the group id is set, enforced at construction.
type ChatRef struct {
	kind ChatKind
	id   string
}

// IndividualRef creates a reference to a two-party conversation
func IndividualRef(chatID string) ChatRef {
	return ChatRef{kind: KindIndividual, id: chatID}
}

// GroupRef creates a reference to a group conversation
func GroupRef(groupID string) ChatRef {
	return ChatRef{kind: KindGroup, id: groupID}
}

// Kind returns the variant tag
func (r ChatRef) Kind() ChatKind { return r.kind }

// ID returns the conversation or group identifier
func (r ChatRef) ID() string { return r.id }

// IsZero reports whether the reference is unset
func (r ChatRef) IsZero() bool { return r.id == "" }

// Collection returns the remote collection holding the referenced log
func (r ChatRef) Collection() string {
	if r.kind == KindGroup {
		return "groups"
	}
	return "chats"
}

// ChatSummary is one entry of a user's chat index (userchats document).
// Order is the insertion position captured once per refresh, before sorting;
// it is not persisted and not recomputed from timestamps.
type ChatSummary struct {
	Ref         ChatRef
	ReceiverID  string // peer id for individual chats, empty for groups
	LastMessage string
	IsSeen      bool
	Pinned      bool
	UpdatedAt   time.Time
	Order       int
}

// Doc encodes the summary as one element of the userchats chats array
func (s *ChatSummary) Doc() map[string]any {
	doc := map[string]any{
		"lastMessage": s.LastMessage,
		"isSeen":      s.IsSeen,
		"pinned":      s.Pinned,
		"updatedAt":   s.UpdatedAt,
	}
	switch s.Ref.Kind() {
	case KindGroup:
		doc["groupId"] = s.Ref.ID()
	default:
		doc["chatId"] = s.Ref.ID()
		doc["receiverId"] = s.ReceiverID
	}
	return doc
}

// ChatSummaryFromDoc decodes one chats array element. A document carrying
// both or neither of chatId/groupId violates the variant invariant and is
// rejected so a single bad entry can be skipped without failing the refresh.
func ChatSummaryFromDoc(doc map[string]any, order int) (ChatSummary, error) {
	chatID := asString(doc["chatId"])
	groupID := asString(doc["groupId"])

	var ref ChatRef
	switch {
	case chatID != "" && groupID != "":
		return ChatSummary{}, apperrors.ValidationError("chat summary has both chatId and groupId")
	case chatID == "" && groupID == "":
		return ChatSummary{}, apperrors.ValidationError("chat summary has neither chatId nor groupId")
	case groupID != "":
		ref = GroupRef(groupID)
	default:
		ref = IndividualRef(chatID)
	}

	return ChatSummary{
		Ref:         ref,
		ReceiverID:  asString(doc["receiverId"]),
		LastMessage: asString(doc["lastMessage"]),
		IsSeen:      asBool(doc["isSeen"]),
		Pinned:      asBool(doc["pinned"]),
		UpdatedAt:   asTime(doc["updatedAt"]),
		Order:       order,
	}, nil
}

// SummariesToDoc encodes a summary slice back into the chats array form
func SummariesToDoc(summaries []ChatSummary) []any {
	out := make([]any, len(summaries))
	for i := range summaries {
		out[i] = summaries[i].Doc()
	}
	return out
}

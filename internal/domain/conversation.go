package domain

import (
	"time"
)

// Conversation represents a chats or groups document: an ordered-by-creation
// message log plus, for groups, a name and mutable member set.
type Conversation struct {
	Ref       ChatRef
	Name      string // groups only
	Members   []string
	Messages  []Message
	Retention time.Duration // 0 when disappearing messages are off
}

// ConversationFromDoc decodes a chats or groups document
func ConversationFromDoc(ref ChatRef, doc map[string]any) *Conversation {
	return &Conversation{
		Ref:       ref,
		Name:      asString(doc["name"]),
		Members:   asStringSlice(doc["members"]),
		Messages:  MessagesFromDoc(doc["messages"]),
		Retention: time.Duration(asInt64(doc["disappearingMessages"])) * time.Millisecond,
	}
}

// GroupInfo is the resolved display data for a group reference
type GroupInfo struct {
	Name    string
	Members []string
}

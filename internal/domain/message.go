package domain

import (
	"time"

	apperrors "github.com/iamnishu22/chatapp/pkg/errors"
)

// Payload carries the content of a message. At least one field must be set;
// Image and Audio hold remote URLs produced by the media uploader.
type Payload struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"img,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// Empty reports whether the payload carries no content at all
func (p Payload) Empty() bool {
	return p.Text == "" && p.Image == "" && p.Audio == ""
}

// Validate rejects payloads with no content before any remote call is made
func (p Payload) Validate() error {
	if p.Empty() {
		return apperrors.EmptyMessageError()
	}
	return nil
}

// Message represents one entry in a conversation log.
// Immutable once created except for seen-flag updates and bulk deletion.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
	IsSeen    bool      `json:"isSeen"`
}

// IsSystem reports whether this is a block-toggle marker message
func (m *Message) IsSystem() bool {
	return m.SenderID == SenderSystem
}

// Doc encodes the message as remote document fields, omitting unset payload
// variants the way the original document shape does
func (m *Message) Doc() map[string]any {
	doc := map[string]any{
		"id":        m.ID,
		"senderId":  m.SenderID,
		"createdAt": m.CreatedAt,
		"isSeen":    m.IsSeen,
	}
	if m.Payload.Text != "" {
		doc["text"] = m.Payload.Text
	}
	if m.Payload.Image != "" {
		doc["img"] = m.Payload.Image
	}
	if m.Payload.Audio != "" {
		doc["audio"] = m.Payload.Audio
	}
	return doc
}

// MessageFromDoc decodes one message entry from a conversation document
func MessageFromDoc(doc map[string]any) Message {
	return Message{
		ID:       asString(doc["id"]),
		SenderID: asString(doc["senderId"]),
		Payload: Payload{
			Text:  asString(doc["text"]),
			Image: asString(doc["img"]),
			Audio: asString(doc["audio"]),
		},
		CreatedAt: asTime(doc["createdAt"]),
		IsSeen:    asBool(doc["isSeen"]),
	}
}

// MessagesFromDoc decodes the messages array of a conversation document
func MessagesFromDoc(v any) []Message {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	msgs := make([]Message, 0, len(raw))
	for _, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		msgs = append(msgs, MessageFromDoc(fields))
	}
	return msgs
}

// MessagesToDoc encodes a message slice back into document form
func MessagesToDoc(msgs []Message) []any {
	out := make([]any, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].Doc()
	}
	return out
}

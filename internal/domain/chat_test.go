package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSummaryFromDocIndividual(t *testing.T) {
	summary, err := ChatSummaryFromDoc(map[string]any{
		"chatId":      "c1",
		"receiverId":  "u2",
		"lastMessage": "hi",
		"isSeen":      true,
		"pinned":      false,
	}, 3)

	require.NoError(t, err)
	assert.Equal(t, KindIndividual, summary.Ref.Kind())
	assert.Equal(t, "c1", summary.Ref.ID())
	assert.Equal(t, "u2", summary.ReceiverID)
	assert.Equal(t, 3, summary.Order)
	assert.True(t, summary.IsSeen)
}

func TestChatSummaryFromDocGroup(t *testing.T) {
	summary, err := ChatSummaryFromDoc(map[string]any{
		"groupId":     "g1",
		"lastMessage": "New group created",
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, KindGroup, summary.Ref.Kind())
	assert.Equal(t, "g1", summary.Ref.ID())
}

func TestChatSummaryVariantEnforced(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{"both ids set", map[string]any{"chatId": "c1", "groupId": "g1"}},
		{"neither id set", map[string]any{"lastMessage": "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ChatSummaryFromDoc(tt.doc, 0)
			assert.Error(t, err)
		})
	}
}

func TestPayloadValidate(t *testing.T) {
	assert.Error(t, Payload{}.Validate())
	assert.NoError(t, Payload{Text: "hi"}.Validate())
	assert.NoError(t, Payload{Image: "https://cdn/img.png"}.Validate())
	assert.NoError(t, Payload{Audio: "https://cdn/a.wav"}.Validate())
	assert.NoError(t, Payload{Text: "hi", Image: "https://cdn/img.png"}.Validate())
}

func TestMessageDocOmitsUnsetPayload(t *testing.T) {
	msg := Message{
		ID:        "m1",
		SenderID:  "u1",
		Payload:   Payload{Text: "hi"},
		CreatedAt: time.Now(),
	}

	doc := msg.Doc()

	assert.Equal(t, "hi", doc["text"])
	assert.NotContains(t, doc, "img")
	assert.NotContains(t, doc, "audio")
}

func TestMessagesFromDocKeepsOrder(t *testing.T) {
	msgs := MessagesFromDoc([]any{
		map[string]any{"id": "m1", "senderId": "u1", "text": "first"},
		map[string]any{"id": "m2", "senderId": "u2", "text": "second"},
	})

	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestUserProfileBlockChecks(t *testing.T) {
	u := &UserProfile{ID: "u1", Blocked: []string{"u2"}, BlockedBy: []string{"u3"}}

	assert.True(t, u.HasBlocked("u2"))
	assert.False(t, u.HasBlocked("u3"))
	assert.True(t, u.IsBlockedBy("u3"))
	assert.False(t, u.IsBlockedBy("u2"))
}

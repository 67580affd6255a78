package chat

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxBodyLength caps message bodies, in runes.
const MaxBodyLength = 4000

// Message is an immutable log entry in a conversation
type Message struct {
	ID             string    `db:"id" bson:"_id" json:"id"`
	ConversationID string    `db:"conversation_id" bson:"conversation_id" json:"conversationId"`
	SenderID       string    `db:"sender_id" bson:"sender_id" json:"senderId"`
	Body           string    `db:"body" bson:"body" json:"body"`
	CreatedAt      time.Time `db:"created_at" bson:"created_at" json:"createdAt"`
}

// NewMessage builds a message for a conversation that has already been loaded.
// The sender must be a participant and the trimmed body must be non-empty.
func NewMessage(conv Conversation, senderID, body string, now time.Time) (*Message, error) {
	if conv.ID == "" {
		return nil, ErrInvalidConversation
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, ErrMessageTooLong
	}

	if now.IsZero() {
		now = time.Now()
	}

	return &Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      now.UTC(),
	}, nil
}

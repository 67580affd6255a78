package chat

import "errors"

// Domain-level errors for chat behaviors
var (
	ErrInvalidConversation  = errors.New("chat: conversation/message mismatch")
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrNotParticipant       = errors.New("chat: user is not a participant in the conversation")
	ErrSelfConversation     = errors.New("chat: buyer and seller must be different users")
	ErrEmptyMessage         = errors.New("chat: empty message")
	ErrMessageTooLong       = errors.New("chat: message exceeds maximum length")
)

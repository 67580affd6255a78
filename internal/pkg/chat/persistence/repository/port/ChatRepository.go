package repository

import (
	"context"

	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
)

// ChatRepository defines persistence operations for conversations and messages.
// Lookups of a missing conversation return chat.ErrConversationNotFound.
type ChatRepository interface {
	// CreateConversation inserts c, or returns the existing conversation for the
	// same (buyer, seller, part) triple.
	CreateConversation(ctx context.Context, c chat.Conversation) (chat.Conversation, error)
	FindConversation(ctx context.Context, buyerID, sellerID, partID string) (*chat.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error)
	// ListConversations returns the user's threads, most recent activity first.
	ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error)

	SaveMessage(ctx context.Context, m chat.Message) (string, error)
	// GetMessagesByConversation returns the page ending offset messages before
	// the newest one, in chronological order.
	GetMessagesByConversation(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error)
}

// DirectoryRepository reads marketplace profiles and parts owned by other services.
// Missing rows yield zero values rather than errors.
type DirectoryRepository interface {
	GetProfile(ctx context.Context, userID string) (chat.Profile, error)
	GetPart(ctx context.Context, partID string) (chat.Part, error)
}

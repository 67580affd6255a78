package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

// OpenConversationInput validates a request to attach a window to a conversation.
type OpenConversationInput struct {
	ConversationID string
	UserID         string
}

// OpenConversationUseCase ensures the user belongs to the conversation before a
// window subscribes to its live feed.
type OpenConversationUseCase struct {
	Repo repository.ChatRepository
}

func NewOpenConversationUseCase(repo repository.ChatRepository) *OpenConversationUseCase {
	return &OpenConversationUseCase{Repo: repo}
}

func (uc *OpenConversationUseCase) Execute(ctx context.Context, in OpenConversationInput) (*chat.Conversation, error) {
	if in.ConversationID == "" || in.UserID == "" {
		return nil, fmt.Errorf("%w: conversation_id and user_id are required", ErrInvalidInput)
	}
	return loadMembership(ctx, uc.Repo, in.ConversationID, in.UserID)
}

// loadMembership fetches the conversation and checks userID takes part in it.
func loadMembership(ctx context.Context, repo repository.ChatRepository, conversationID, userID string) (*chat.Conversation, error) {
	conv, err := repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !conv.HasParticipant(userID) {
		return nil, chat.ErrNotParticipant
	}
	return conv, nil
}

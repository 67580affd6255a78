package usecase

import (
	"context"
	"fmt"

	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

// GetMessageInput carries parameters to fetch messages of a conversation
// Using singular naming for the use case per guideline
type GetMessageInput struct {
	ConversationID string
	UserID         string
	Limit          int
	Offset         int
}

// GetMessageUseCase fetches messages for a given conversation
// Hexagonal: depends only on repository port
type GetMessageUseCase struct {
	Repo repository.ChatRepository
}

func NewGetMessageUseCase(repo repository.ChatRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

// Execute returns a page of messages, oldest first. Only participants may read.
func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]chat.Message, error) {
	if in.ConversationID == "" || in.UserID == "" {
		return nil, fmt.Errorf("%w: conversationId is required", ErrInvalidInput)
	}
	if _, err := loadMembership(ctx, uc.Repo, in.ConversationID, in.UserID); err != nil {
		return nil, err
	}
	msgs, err := uc.Repo.GetMessagesByConversation(ctx, in.ConversationID, in.Limit, in.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}

package usecase

import (
	"context"
	"fmt"

	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

type ListConversationsInput struct {
	UserID string
}

// ListConversationsUseCase returns the caller's conversation list, most recent first.
type ListConversationsUseCase struct {
	Repo repository.ChatRepository
}

func NewListConversationsUseCase(repo repository.ChatRepository) *ListConversationsUseCase {
	return &ListConversationsUseCase{Repo: repo}
}

func (uc *ListConversationsUseCase) Execute(ctx context.Context, in ListConversationsInput) ([]chat.ConversationSummary, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	sums, err := uc.Repo.ListConversations(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if sums == nil {
		sums = []chat.ConversationSummary{}
	}
	return sums, nil
}

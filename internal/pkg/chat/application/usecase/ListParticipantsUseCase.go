package usecase

import (
	"context"
	"fmt"

	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

// ListParticipantsInput wraps the conversation identifier to fetch its participants.
type ListParticipantsInput struct {
	ConversationID string
	UserID         string
}

// ListParticipantsUseCase returns buyer and seller with their public profiles.
type ListParticipantsUseCase struct {
	Repo      repository.ChatRepository
	Directory repository.DirectoryRepository
}

func NewListParticipantsUseCase(repo repository.ChatRepository, directory repository.DirectoryRepository) *ListParticipantsUseCase {
	return &ListParticipantsUseCase{Repo: repo, Directory: directory}
}

func (uc *ListParticipantsUseCase) Execute(ctx context.Context, in ListParticipantsInput) ([]chat.Participant, error) {
	if in.ConversationID == "" || in.UserID == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", ErrInvalidInput)
	}
	conv, err := loadMembership(ctx, uc.Repo, in.ConversationID, in.UserID)
	if err != nil {
		return nil, err
	}

	participants := make([]chat.Participant, 0, 2)
	for _, uid := range conv.Participants() {
		role, _ := conv.RoleOf(uid)
		profile := chat.Profile{UserID: uid}
		if uc.Directory != nil {
			if profile, err = uc.Directory.GetProfile(ctx, uid); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			if profile.UserID == "" {
				profile.UserID = uid
			}
		}
		participants = append(participants, chat.Participant{Role: role, Profile: profile})
	}
	return participants, nil
}

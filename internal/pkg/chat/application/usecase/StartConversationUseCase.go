package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

// StartConversationInput is a buyer reaching out to a seller about a part.
// SellerID may be left empty when the part's listing names its seller.
type StartConversationInput struct {
	BuyerID  string
	SellerID string
	PartID   string
}

// StartConversationUseCase finds or creates the conversation for a buyer, seller and part.
// One class per use case (own file)
type StartConversationUseCase struct {
	Repo      repository.ChatRepository
	Directory repository.DirectoryRepository
	Now       func() time.Time
}

func NewStartConversationUseCase(repo repository.ChatRepository, directory repository.DirectoryRepository) *StartConversationUseCase {
	return &StartConversationUseCase{Repo: repo, Directory: directory, Now: time.Now}
}

// Execute returns the conversation and whether it was created by this call.
func (uc *StartConversationUseCase) Execute(ctx context.Context, in StartConversationInput) (*chat.Conversation, bool, error) {
	in.BuyerID = strings.TrimSpace(in.BuyerID)
	in.SellerID = strings.TrimSpace(in.SellerID)
	in.PartID = strings.TrimSpace(in.PartID)
	if in.BuyerID == "" || in.PartID == "" {
		return nil, false, fmt.Errorf("%w: buyer_id and part_id are required", ErrInvalidInput)
	}

	if uc.Directory != nil {
		part, err := uc.Directory.GetPart(ctx, in.PartID)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		switch {
		case in.SellerID == "":
			in.SellerID = part.SellerID
		case part.SellerID != "" && part.SellerID != in.SellerID:
			return nil, false, fmt.Errorf("%w: part %s is not listed by seller %s", ErrInvalidInput, in.PartID, in.SellerID)
		}
	}
	if in.SellerID == "" {
		return nil, false, fmt.Errorf("%w: seller_id is required", ErrInvalidInput)
	}

	existing, err := uc.Repo.FindConversation(ctx, in.BuyerID, in.SellerID, in.PartID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, chat.ErrConversationNotFound):
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	conv, err := chat.NewConversation(in.BuyerID, in.SellerID, in.PartID, uc.Now())
	if err != nil {
		return nil, false, err
	}

	// CreateConversation is idempotent, so a concurrent create still lands on one row.
	saved, err := uc.Repo.CreateConversation(ctx, *conv)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.ConversationsStarted.Inc()
	return &saved, true, nil
}

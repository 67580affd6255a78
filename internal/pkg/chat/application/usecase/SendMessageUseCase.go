package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/live"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
)

// EventPublisher fans a persisted insert out to live subscribers.
// *realtime.Hub and *realtime.RedisBridge satisfy it.
type EventPublisher interface {
	PublishInsert(ctx context.Context, ev realtime.InsertEvent) error
}

// SendMessageInput carries the data needed to send a new message
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Body           string
}

// SendMessageUseCase handles the SendMessage application service
// Hexagonal: depends on repository port, returns domain entity
// One class per use case (own file)
type SendMessageUseCase struct {
	Repo repository.ChatRepository
	// Publisher is nil when inserts reach the hub through the database trigger.
	Publisher EventPublisher
	Log       *zap.Logger
	Now       func() time.Time
}

func NewSendMessageUseCase(repo repository.ChatRepository, publisher EventPublisher, log *zap.Logger) *SendMessageUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &SendMessageUseCase{Repo: repo, Publisher: publisher, Log: log, Now: time.Now}
}

// Execute sends/persists a new message for a conversation
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	if in.ConversationID == "" || in.SenderID == "" {
		return nil, fmt.Errorf("%w: conversationId and senderId are required", ErrInvalidInput)
	}

	conv, err := loadMembership(ctx, uc.Repo, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}

	msg, err := chat.NewMessage(*conv, in.SenderID, in.Body, uc.Now())
	if err != nil {
		return nil, err
	}

	id, err := uc.Repo.SaveMessage(ctx, *msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.ID = id

	if uc.Publisher != nil {
		// Fan-out failures are logged only.
		if err := uc.Publisher.PublishInsert(ctx, live.NewInsertEvent(*msg)); err != nil {
			uc.Log.Warn("publishing message insert failed",
				zap.String("conversation_id", msg.ConversationID),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return msg, nil
}

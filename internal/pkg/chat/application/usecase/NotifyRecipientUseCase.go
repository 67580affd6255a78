package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/live"
	repository "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/port"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/notification"
)

const notifyTimeout = 5 * time.Second

// notifyBacklog bounds queued inserts; a full backlog blocks the publisher.
const notifyBacklog = 256

// DispatcherSource yields the notification dispatchers of a user's open tabs.
// *notification.Registry satisfies it.
type DispatcherSource interface {
	Dispatchers(userID string) []*notification.Dispatcher
}

// NotifyRecipientUseCase alerts the other participant of a conversation about
// a new message on every tab they have open, whichever window is showing.
type NotifyRecipientUseCase struct {
	Repo        repository.ChatRepository
	Directory   repository.DirectoryRepository
	Dispatchers DispatcherSource
	Log         *zap.Logger
}

func NewNotifyRecipientUseCase(repo repository.ChatRepository, directory repository.DirectoryRepository, dispatchers DispatcherSource, log *zap.Logger) *NotifyRecipientUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotifyRecipientUseCase{Repo: repo, Directory: directory, Dispatchers: dispatchers, Log: log}
}

// Execute renders msg for its recipient and hands it to each of their tabs.
// It returns one outcome per tab.
func (uc *NotifyRecipientUseCase) Execute(ctx context.Context, msg chat.Message) ([]notification.Outcome, error) {
	conv, err := uc.Repo.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	recipient := conv.Counterpart(msg.SenderID)
	if recipient == "" {
		return nil, chat.ErrNotParticipant
	}

	dispatchers := uc.Dispatchers.Dispatchers(recipient)
	if len(dispatchers) == 0 {
		return nil, nil
	}

	in := notification.Input{
		SenderName:     "Someone",
		Message:        msg.Body,
		ConversationID: msg.ConversationID,
	}
	if uc.Directory != nil {
		sender, err := uc.Directory.GetProfile(ctx, msg.SenderID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		part, err := uc.Directory.GetPart(ctx, conv.PartID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		in.SenderName = sender.Name()
		in.SenderImage = sender.AvatarURL
		in.PartTitle = part.Title
	}

	outcomes := make([]notification.Outcome, 0, len(dispatchers))
	for _, d := range dispatchers {
		outcomes = append(outcomes, d.Show(ctx, in))
	}
	return outcomes, nil
}

// Listen subscribes to every message insert and notifies recipients in the
// background, one insert at a time in delivery order so a later alert for a
// conversation always replaces an earlier one. The returned channel ends the
// subscription and stops the worker.
func (uc *NotifyRecipientUseCase) Listen(source live.Source) realtime.Channel {
	queue := make(chan chat.Message, notifyBacklog)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range queue {
			uc.notify(msg)
		}
	}()

	ch := source.Subscribe(live.AllMessagesTopic(), func(ev realtime.InsertEvent) {
		msg, err := live.DecodeMessage(ev.Record)
		if err != nil {
			uc.Log.Warn("dropping undecodable insert", zap.Error(err))
			return
		}
		queue <- msg
	})
	return &notifyChannel{Channel: ch, queue: queue, done: done}
}

func (uc *NotifyRecipientUseCase) notify(msg chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if _, err := uc.Execute(ctx, msg); err != nil {
		uc.Log.Warn("notifying recipient failed",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

// notifyChannel drains the worker after the hub subscription ends.
type notifyChannel struct {
	realtime.Channel
	queue chan chat.Message
	done  chan struct{}
	once  sync.Once
}

func (c *notifyChannel) Unsubscribe() error {
	err := c.Channel.Unsubscribe()
	c.once.Do(func() {
		close(c.queue)
		<-c.done
	})
	return err
}

package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
	qport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/queue/port"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
)

// SendMessageTaskType is the queue task name for sending a message within the chat domain.
const SendMessageTaskType = "chat:send_message"

// SendMessageQueue is the logical queue queued sends go to.
const SendMessageQueue = "messages"

// SendMessageTaskPayload is the JSON payload transported via the queue.
// Kept decoupled from domain types to avoid tight coupling with JSON tags.
type SendMessageTaskPayload struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Body           string `json:"body"`
	ClientRef      string `json:"clientRef,omitempty"`
}

// Sender is the use case the handler drives. *usecase.SendMessageUseCase satisfies it.
type Sender interface {
	Execute(ctx context.Context, in usecase.SendMessageInput) (*chat.Message, error)
}

// AckSink delivers the outcome of a queued send back to the sender's open tabs.
// *realtime.Router satisfies it.
type AckSink interface {
	NotifyUser(userID string, payload []byte) int
}

// SendResult is the frame pushed to the sender once the task finishes.
type SendResult struct {
	Type      string        `json:"type"`
	ClientRef string        `json:"client_ref,omitempty"`
	Message   *chat.Message `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// NewSendMessageTask encodes a queued send.
func NewSendMessageTask(p SendMessageTaskPayload) (qport.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return qport.Task{}, err
	}
	return qport.Task{Type: SendMessageTaskType, Payload: payload}, nil
}

// RegisterSendMessageTask binds the task handler to the provided server.
// acks may be nil.
func RegisterSendMessageTask(srv qport.Server, sender Sender, acks AckSink, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	srv.Register(SendMessageTaskType, func(ctx context.Context, t qport.Task) error {
		var p SendMessageTaskPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: do not retry indefinitely
			return fmt.Errorf("%w: decode payload: %v", qport.ErrSkipRetry, err)
		}

		// give DB a reasonable time budget per task execution
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		msg, err := sender.Execute(ctx, usecase.SendMessageInput{
			ConversationID: p.ConversationID,
			SenderID:       p.SenderID,
			Body:           p.Body,
		})
		if err != nil {
			if errors.Is(err, usecase.ErrPersistence) {
				// transient: let the server retry with backoff
				if qport.IsFinalAttempt(ctx) {
					ack(acks, p, SendResult{Type: "message_failed", ClientRef: p.ClientRef, Error: "message could not be saved"}, log)
				}
				return err
			}
			ack(acks, p, SendResult{Type: "message_failed", ClientRef: p.ClientRef, Error: err.Error()}, log)
			return fmt.Errorf("%w: %v", qport.ErrSkipRetry, err)
		}

		metrics.MessagesSent.WithLabelValues("queued").Inc()
		ack(acks, p, SendResult{Type: "message_sent", ClientRef: p.ClientRef, Message: msg}, log)
		return nil
	})
}

func ack(acks AckSink, p SendMessageTaskPayload, res SendResult, log *zap.Logger) {
	if acks == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		log.Warn("encoding send result failed", zap.Error(err))
		return
	}
	if acks.NotifyUser(p.SenderID, payload) == 0 {
		log.Debug("no open tab for send result", zap.String("sender_id", p.SenderID))
	}
}

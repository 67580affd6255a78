package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	qport "github.com/axai-kaizoku/partout-sub001/internal/infrastructure/queue/port"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/task"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/usecase"
	"github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/persistence/repository/adapter"
)

// captureServer records registered handlers instead of running workers.
type captureServer struct {
	handlers map[string]qport.Handler
}

func (s *captureServer) Register(taskType string, h qport.Handler) {
	if s.handlers == nil {
		s.handlers = map[string]qport.Handler{}
	}
	s.handlers[taskType] = h
}
func (s *captureServer) Run(context.Context) error  { return nil }
func (s *captureServer) Stop(context.Context) error { return nil }

type ackRecorder struct {
	mu     sync.Mutex
	frames map[string][]task.SendResult
}

func (a *ackRecorder) NotifyUser(userID string, payload []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	var res task.SendResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return 0
	}
	if a.frames == nil {
		a.frames = map[string][]task.SendResult{}
	}
	a.frames[userID] = append(a.frames[userID], res)
	return 1
}

type failingSender struct{ err error }

func (f failingSender) Execute(context.Context, usecase.SendMessageInput) (*chat.Message, error) {
	return nil, f.err
}

func setup(t *testing.T) (*adapter.MemoryChatRepository, string) {
	t.Helper()
	repo := adapter.NewMemoryChatRepository()
	conv, err := repo.CreateConversation(context.Background(), chat.Conversation{BuyerID: "buyer", SellerID: "seller", PartID: "part"})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return repo, conv.ID
}

func run(t *testing.T, srv *captureServer, p task.SendMessageTaskPayload) error {
	t.Helper()
	tk, err := task.NewSendMessageTask(p)
	if err != nil {
		t.Fatalf("encode task: %v", err)
	}
	h, ok := srv.handlers[task.SendMessageTaskType]
	if !ok {
		t.Fatalf("handler not registered")
	}
	return h(context.Background(), tk)
}

func TestSendMessageTaskPersistsAndAcks(t *testing.T) {
	repo, convID := setup(t)
	srv := &captureServer{}
	acks := &ackRecorder{}
	task.RegisterSendMessageTask(srv, usecase.NewSendMessageUseCase(repo, nil, nil), acks, nil)

	if err := run(t, srv, task.SendMessageTaskPayload{ConversationID: convID, SenderID: "buyer", Body: "queued hello", ClientRef: "tmp-1"}); err != nil {
		t.Fatalf("handler: %v", err)
	}

	msgs, _ := repo.GetMessagesByConversation(context.Background(), convID, 10, 0)
	if len(msgs) != 1 || msgs[0].Body != "queued hello" {
		t.Fatalf("expected message to be stored, got %+v", msgs)
	}
	got := acks.frames["buyer"]
	if len(got) != 1 || got[0].Type != "message_sent" || got[0].ClientRef != "tmp-1" || got[0].Message == nil || got[0].Message.ID != msgs[0].ID {
		t.Fatalf("unexpected ack %+v", got)
	}
}

func TestSendMessageTaskDomainErrorSkipsRetry(t *testing.T) {
	repo, convID := setup(t)
	srv := &captureServer{}
	acks := &ackRecorder{}
	task.RegisterSendMessageTask(srv, usecase.NewSendMessageUseCase(repo, nil, nil), acks, nil)

	err := run(t, srv, task.SendMessageTaskPayload{ConversationID: convID, SenderID: "intruder", Body: "hi"})
	if !errors.Is(err, qport.ErrSkipRetry) {
		t.Fatalf("expected skip retry, got %v", err)
	}
	if got := acks.frames["intruder"]; len(got) != 1 || got[0].Type != "message_failed" {
		t.Fatalf("expected failure ack, got %+v", got)
	}
}

func TestSendMessageTaskMalformedPayload(t *testing.T) {
	srv := &captureServer{}
	task.RegisterSendMessageTask(srv, failingSender{}, nil, nil)

	err := srv.handlers[task.SendMessageTaskType](context.Background(), qport.Task{Type: task.SendMessageTaskType, Payload: []byte("{")})
	if !errors.Is(err, qport.ErrSkipRetry) {
		t.Fatalf("expected skip retry for malformed payload, got %v", err)
	}
}

func TestSendMessageTaskPersistenceErrorRetries(t *testing.T) {
	srv := &captureServer{}
	acks := &ackRecorder{}
	task.RegisterSendMessageTask(srv, failingSender{err: usecase.ErrPersistence}, acks, nil)

	err := run(t, srv, task.SendMessageTaskPayload{ConversationID: "c", SenderID: "buyer", Body: "hi"})
	if err == nil || errors.Is(err, qport.ErrSkipRetry) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if len(acks.frames) != 0 {
		t.Fatalf("expected no ack before the final attempt")
	}

	tk, _ := task.NewSendMessageTask(task.SendMessageTaskPayload{ConversationID: "c", SenderID: "buyer", Body: "hi", ClientRef: "tmp-2"})
	err = srv.handlers[task.SendMessageTaskType](qport.WithFinalAttempt(context.Background(), true), tk)
	if err == nil {
		t.Fatalf("expected the final attempt to still report the error")
	}
	got := acks.frames["buyer"]
	if len(got) != 1 || got[0].Type != "message_failed" || got[0].ClientRef != "tmp-2" {
		t.Fatalf("expected failure ack on the final attempt, got %+v", got)
	}
}

func TestSendResultWireKeys(t *testing.T) {
	raw, err := json.Marshal(task.SendResult{Type: "message_sent", ClientRef: "r1"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var keys map[string]any
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if keys["client_ref"] != "r1" {
		t.Fatalf("expected client_ref key matching socket frames, got %s", raw)
	}
	if _, ok := keys["clientRef"]; ok {
		t.Fatalf("unexpected camelCase key in %s", raw)
	}
}

package live

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
)

// Source opens filtered channels. *realtime.Hub satisfies it.
type Source interface {
	Subscribe(topic realtime.Topic, fn realtime.Handler) realtime.Channel
}

// Subscriber keeps at most one live subscription, scoped to the conversation
// the owning window has open. The previous channel is always torn down before
// a new one is opened.
//
// onMessage runs on the publisher's goroutine and must not call Sync or Close.
type Subscriber struct {
	source    Source
	onMessage func(chat.Message)
	log       *zap.Logger

	mu             sync.Mutex
	current        realtime.Channel
	conversationID string

	// generation invalidates callbacks from torn-down channels that were
	// already in flight when Sync swapped them out.
	generation atomic.Uint64
}

func NewSubscriber(source Source, onMessage func(chat.Message), log *zap.Logger) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriber{source: source, onMessage: onMessage, log: log}
}

// Sync points the subscription at conversationID. A disabled or empty target
// only tears down. Re-syncing the current target is a no-op.
func (s *Subscriber) Sync(conversationID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled && conversationID != "" && s.current != nil && conversationID == s.conversationID {
		return
	}

	s.teardownLocked()
	if !enabled || conversationID == "" {
		return
	}

	gen := s.generation.Add(1)
	s.conversationID = conversationID
	s.current = s.source.Subscribe(ConversationTopic(conversationID), func(ev realtime.InsertEvent) {
		s.deliver(gen, conversationID, ev)
	})
}

// Close tears down unconditionally.
func (s *Subscriber) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
}

// ConversationID returns the conversation currently subscribed to, or "".
func (s *Subscriber) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Subscriber) teardownLocked() {
	if s.current == nil {
		return
	}
	s.generation.Add(1)
	// Teardown errors are ignored.
	_ = s.current.Unsubscribe()
	s.current = nil
	s.conversationID = ""
}

func (s *Subscriber) deliver(gen uint64, conversationID string, ev realtime.InsertEvent) {
	if s.generation.Load() != gen {
		return
	}
	msg, err := DecodeMessage(ev.Record)
	if err != nil {
		s.log.Warn("dropping undecodable insert", zap.String("conversation_id", conversationID), zap.Error(err))
		return
	}
	if msg.ConversationID != conversationID {
		return
	}
	s.onMessage(msg)
}

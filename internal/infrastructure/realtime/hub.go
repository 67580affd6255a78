package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
)

// Handler receives insert events for a subscription.
type Handler func(InsertEvent)

// Channel is a live subscription handle.
type Channel interface {
	Topic() Topic
	// Unsubscribe stops delivery. Once it returns the handler is never invoked
	// again. It must not be called from inside the channel's own handler.
	Unsubscribe() error
}

// Hub fans insert events out to filtered subscriptions. Handlers run on the
// publisher's goroutine, serialized per subscription.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	tables map[string]map[uint64]*subscription // table -> id -> subscription
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		tables: make(map[string]map[uint64]*subscription),
		log:    log,
	}
}

// Subscribe registers fn for inserts matching topic.
func (h *Hub) Subscribe(topic Topic, fn Handler) Channel {
	h.mu.Lock()
	h.nextID++
	sub := &subscription{id: h.nextID, hub: h, topic: topic, fn: fn, active: true}
	subs := h.tables[topic.Table]
	if subs == nil {
		subs = make(map[uint64]*subscription)
		h.tables[topic.Table] = subs
	}
	subs[sub.id] = sub
	h.mu.Unlock()

	metrics.RealtimeSubscriptions.Inc()
	return sub
}

// Publish delivers ev to every matching subscription and reports how many received it.
func (h *Hub) Publish(ev InsertEvent) int {
	h.mu.RLock()
	var targets []*subscription
	for _, sub := range h.tables[ev.Table] {
		if sub.topic.Matches(ev) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range targets {
		if sub.deliver(ev) {
			delivered++
		}
	}
	return delivered
}

// PublishInsert publishes an event originating on this node.
func (h *Hub) PublishInsert(_ context.Context, ev InsertEvent) error {
	metrics.RealtimeEvents.WithLabelValues("local").Inc()
	h.Publish(ev)
	return nil
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.tables {
		n += len(subs)
	}
	return n
}

// Close silences every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*subscription
	for _, subs := range h.tables {
		for _, sub := range subs {
			all = append(all, sub)
		}
	}
	h.tables = make(map[string]map[uint64]*subscription)
	h.mu.Unlock()

	for _, sub := range all {
		sub.deactivate()
	}
}

func (h *Hub) remove(sub *subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.tables[sub.topic.Table]
	if _, ok := subs[sub.id]; !ok {
		return false
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.tables, sub.topic.Table)
	}
	return true
}

type subscription struct {
	id    uint64
	hub   *Hub
	topic Topic
	fn    Handler

	mu     sync.Mutex
	active bool
}

func (s *subscription) Topic() Topic { return s.topic }

func (s *subscription) Unsubscribe() error {
	s.hub.remove(s)
	s.deactivate()
	return nil
}

func (s *subscription) deactivate() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.mu.Unlock()
	if wasActive {
		metrics.RealtimeSubscriptions.Dec()
	}
}

func (s *subscription) deliver(ev InsertEvent) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			s.hub.log.Error("realtime handler panicked", zap.String("topic", s.topic.String()), zap.Any("panic", r))
			ok = false
		}
	}()
	s.fn(ev)
	return true
}

package realtime_test

import (
	"sync"
	"testing"
	"time"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
)

func insert(conversationID, body string) realtime.InsertEvent {
	return realtime.InsertEvent{
		Type:  realtime.EventInsert,
		Table: "messages",
		Record: map[string]any{
			"id":              "m-" + body,
			"conversation_id": conversationID,
			"sender_id":       "u1",
			"body":            body,
			"created_at":      "2024-05-01T10:00:00Z",
		},
		CommitTimestamp: time.Now(),
	}
}

func TestTopicMatches(t *testing.T) {
	topic := realtime.Topic{Table: "messages", Column: "conversation_id", Value: "abc"}

	if !topic.Matches(insert("abc", "hi")) {
		t.Fatalf("expected matching conversation to pass the filter")
	}
	if topic.Matches(insert("xyz", "hi")) {
		t.Fatalf("expected other conversation to be filtered out")
	}

	other := insert("abc", "hi")
	other.Table = "conversations"
	if topic.Matches(other) {
		t.Fatalf("expected other table to be filtered out")
	}

	update := insert("abc", "hi")
	update.Type = "UPDATE"
	if topic.Matches(update) {
		t.Fatalf("expected non-insert events to be filtered out")
	}

	all := realtime.Topic{Table: "messages"}
	if !all.Matches(insert("xyz", "hi")) {
		t.Fatalf("expected unfiltered topic to match every insert on the table")
	}
	if got := topic.String(); got != "messages:conversation_id=eq.abc" {
		t.Fatalf("unexpected topic string %q", got)
	}
}

func TestHubDeliversOnlyToMatchingSubscribers(t *testing.T) {
	hub := realtime.NewHub(nil)

	var (
		mu  sync.Mutex
		abc []string
		xyz []string
	)
	hub.Subscribe(realtime.Topic{Table: "messages", Column: "conversation_id", Value: "abc"}, func(ev realtime.InsertEvent) {
		mu.Lock()
		abc = append(abc, ev.Record["body"].(string))
		mu.Unlock()
	})
	hub.Subscribe(realtime.Topic{Table: "messages", Column: "conversation_id", Value: "xyz"}, func(ev realtime.InsertEvent) {
		mu.Lock()
		xyz = append(xyz, ev.Record["body"].(string))
		mu.Unlock()
	})

	if n := hub.Publish(insert("abc", "one")); n != 1 {
		t.Fatalf("expected one delivery, got %d", n)
	}
	hub.Publish(insert("abc", "two"))
	hub.Publish(insert("xyz", "three"))

	mu.Lock()
	defer mu.Unlock()
	if len(abc) != 2 || abc[0] != "one" || abc[1] != "two" {
		t.Fatalf("unexpected abc deliveries %v", abc)
	}
	if len(xyz) != 1 || xyz[0] != "three" {
		t.Fatalf("unexpected xyz deliveries %v", xyz)
	}
}

func TestUnsubscribeSilencesChannel(t *testing.T) {
	hub := realtime.NewHub(nil)
	calls := 0
	ch := hub.Subscribe(realtime.Topic{Table: "messages", Column: "conversation_id", Value: "abc"}, func(realtime.InsertEvent) {
		calls++
	})
	if hub.Len() != 1 {
		t.Fatalf("expected one live subscription, got %d", hub.Len())
	}

	hub.Publish(insert("abc", "before"))
	if err := ch.Unsubscribe(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := ch.Unsubscribe(); err != nil {
		t.Fatalf("second unsubscribe should be a no-op, got %v", err)
	}
	hub.Publish(insert("abc", "after"))

	if calls != 1 {
		t.Fatalf("expected exactly one call before unsubscribe, got %d", calls)
	}
	if hub.Len() != 0 {
		t.Fatalf("expected no live subscriptions, got %d", hub.Len())
	}
}

func TestUnsubscribeWaitsForInflightHandler(t *testing.T) {
	hub := realtime.NewHub(nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	var (
		mu       sync.Mutex
		finished bool
	)
	ch := hub.Subscribe(realtime.Topic{Table: "messages"}, func(realtime.InsertEvent) {
		close(entered)
		<-release
		mu.Lock()
		finished = true
		mu.Unlock()
	})

	go hub.Publish(insert("abc", "slow"))
	<-entered

	done := make(chan struct{})
	go func() {
		_ = ch.Unsubscribe()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("unsubscribe returned while handler was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Fatalf("expected handler to finish before unsubscribe returned")
	}
}

func TestHubRecoversHandlerPanic(t *testing.T) {
	hub := realtime.NewHub(nil)
	hub.Subscribe(realtime.Topic{Table: "messages"}, func(realtime.InsertEvent) { panic("boom") })
	survivor := 0
	hub.Subscribe(realtime.Topic{Table: "messages"}, func(realtime.InsertEvent) { survivor++ })

	hub.Publish(insert("abc", "x"))
	if survivor != 1 {
		t.Fatalf("expected healthy subscriber to still receive the event")
	}
}

func TestHubCloseSilencesEverything(t *testing.T) {
	hub := realtime.NewHub(nil)
	calls := 0
	hub.Subscribe(realtime.Topic{Table: "messages"}, func(realtime.InsertEvent) { calls++ })
	hub.Close()
	hub.Publish(insert("abc", "x"))
	if calls != 0 || hub.Len() != 0 {
		t.Fatalf("expected closed hub to deliver nothing, got %d calls", calls)
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func TestBridgeRelaySkipsOwnOrigin(t *testing.T) {
	hub := NewHub(nil)
	bridge := NewRedisBridge(nil, hub, nil)

	received := 0
	hub.Subscribe(Topic{Table: "messages", Column: "conversation_id", Value: "abc"}, func(InsertEvent) {
		received++
	})

	ev := InsertEvent{Type: EventInsert, Table: "messages", Record: map[string]any{"conversation_id": "abc"}}

	own, _ := json.Marshal(bridgeEnvelope{Origin: bridge.Node(), Event: ev})
	if bridge.relay(string(own)) {
		t.Fatalf("expected own payload to be skipped")
	}

	peer, _ := json.Marshal(bridgeEnvelope{Origin: "other-node", Event: ev})
	if !bridge.relay(string(peer)) {
		t.Fatalf("expected peer payload to be relayed")
	}

	if bridge.relay("{not json") {
		t.Fatalf("expected malformed payload to be dropped")
	}

	if received != 1 {
		t.Fatalf("expected exactly one local delivery, got %d", received)
	}
}

func TestBridgeAcrossNodes(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set; skipping redis bridge integration test")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opt)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hubA, hubB := NewHub(nil), NewHub(nil)
	nodeA := NewRedisBridge(client, hubA, nil)
	nodeB := NewRedisBridge(client, hubB, nil)

	got := make(chan InsertEvent, 1)
	hubB.Subscribe(Topic{Table: "messages", Column: "conversation_id", Value: "bridge-test"}, func(ev InsertEvent) {
		got <- ev
	})

	go func() { _ = nodeB.Run(ctx) }()
	time.Sleep(200 * time.Millisecond) // let the subscription settle

	ev := InsertEvent{Type: EventInsert, Table: "messages", Record: map[string]any{"conversation_id": "bridge-test", "body": "hello"}}
	if err := nodeA.PublishInsert(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case received := <-got:
		if received.Record["body"] != "hello" {
			t.Fatalf("unexpected record %v", received.Record)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for bridged event")
	}
}

package adapter

import (
	"testing"
	"time"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/queue/port"
)

func TestParseQueueWeights(t *testing.T) {
	got := parseQueueWeights(" messages=6, default=3 ,low, =4, bad=x ")
	want := map[string]int{"messages": 6, "default": 3, "low": 1, "bad": 1}
	if len(got) != len(want) {
		t.Fatalf("expected %d queues, got %v", len(want), got)
	}
	for name, w := range want {
		if got[name] != w {
			t.Fatalf("queue %s: expected weight %d, got %d", name, w, got[name])
		}
	}
}

func TestToAsynqOptions(t *testing.T) {
	if opts := toAsynqOptions(nil); len(opts) != 0 {
		t.Fatalf("expected no options, got %d", len(opts))
	}

	opts := toAsynqOptions([]port.EnqueueOption{{
		Queue:     "messages",
		MaxRetry:  5,
		ProcessIn: time.Second,
		UniqueTTL: time.Minute,
	}})
	if len(opts) != 4 {
		t.Fatalf("expected 4 options, got %d", len(opts))
	}

	opts = toAsynqOptions([]port.EnqueueOption{
		{ProcessAt: time.Now().Add(time.Hour), ProcessIn: time.Second},
		{Queue: "ignored"},
	})
	if len(opts) != 1 {
		t.Fatalf("expected ProcessAt to win and extra options to be ignored, got %d", len(opts))
	}
}

func TestNewAsynqClientRequiresRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := NewAsynqClientFromEnv(); err == nil {
		t.Fatalf("expected error without REDIS_URL")
	}
	if _, err := NewAsynqServer(nil); err == nil {
		t.Fatalf("expected error without REDIS_URL")
	}
}

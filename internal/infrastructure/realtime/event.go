package realtime

import (
	"fmt"
	"time"
)

// EventInsert is the only change kind the hub carries; rows are append-only.
const EventInsert = "INSERT"

// InsertEvent is a row-insert notification as delivered to channel subscribers.
// Record keys are column names, so timestamps arrive as snake_case strings
// (created_at) and consumers normalize them into typed values.
type InsertEvent struct {
	Type            string         `json:"type"`
	Table           string         `json:"table"`
	Record          map[string]any `json:"record"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
}

// Topic scopes a subscription to inserts on Table whose Column equals Value.
// An empty Column subscribes to every insert on the table.
type Topic struct {
	Table  string
	Column string
	Value  string
}

// Matches applies the equality filter server-side.
func (t Topic) Matches(ev InsertEvent) bool {
	if ev.Table != t.Table {
		return false
	}
	if ev.Type != "" && ev.Type != EventInsert {
		return false
	}
	if t.Column == "" {
		return true
	}
	v, ok := ev.Record[t.Column]
	if !ok || v == nil {
		return false
	}
	return fmt.Sprint(v) == t.Value
}

func (t Topic) String() string {
	if t.Column == "" {
		return t.Table
	}
	return fmt.Sprintf("%s:%s=eq.%s", t.Table, t.Column, t.Value)
}

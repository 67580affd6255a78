package live

import (
	"errors"
	"fmt"
	"time"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/realtime"
	chat "github.com/axai-kaizoku/partout-sub001/internal/pkg/chat/application/domain"
)

// Table and Column address the messages feed.
const (
	MessagesTable      = "messages"
	ConversationColumn = "conversation_id"
)

var ErrMalformedRecord = errors.New("live: malformed message record")

// timestamp layouts seen on the wire: RFC3339 from this service, and the
// Postgres row_to_json rendering of timestamptz.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999-07:00",
	"2006-01-02T15:04:05.999999-07",
	"2006-01-02T15:04:05.999999",
}

// ConversationTopic is the feed of inserts for one conversation.
func ConversationTopic(conversationID string) realtime.Topic {
	return realtime.Topic{Table: MessagesTable, Column: ConversationColumn, Value: conversationID}
}

// AllMessagesTopic is the unfiltered messages feed.
func AllMessagesTopic() realtime.Topic {
	return realtime.Topic{Table: MessagesTable}
}

// NewInsertEvent renders m the way the database trigger would.
func NewInsertEvent(m chat.Message) realtime.InsertEvent {
	return realtime.InsertEvent{
		Type:  realtime.EventInsert,
		Table: MessagesTable,
		Record: map[string]any{
			"id":              m.ID,
			"conversation_id": m.ConversationID,
			"sender_id":       m.SenderID,
			"body":            m.Body,
			"created_at":      m.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
		CommitTimestamp: time.Now().UTC(),
	}
}

// DecodeMessage converts a raw insert record into a typed message, parsing the
// snake_case created_at string into a time.
func DecodeMessage(record map[string]any) (chat.Message, error) {
	var m chat.Message
	var err error
	if m.ID, err = stringField(record, "id"); err != nil {
		return chat.Message{}, err
	}
	if m.ConversationID, err = stringField(record, "conversation_id"); err != nil {
		return chat.Message{}, err
	}
	if m.SenderID, err = stringField(record, "sender_id"); err != nil {
		return chat.Message{}, err
	}
	if m.Body, err = stringField(record, "body"); err != nil {
		return chat.Message{}, err
	}
	raw, err := stringField(record, "created_at")
	if err != nil {
		return chat.Message{}, err
	}
	if m.CreatedAt, err = parseTimestamp(raw); err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func stringField(record map[string]any, key string) (string, error) {
	v, ok := record[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedRecord, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T", ErrMalformedRecord, key, v)
	}
	return s, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: created_at %q", ErrMalformedRecord, raw)
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
)

// InsertNotifyChannel is the LISTEN channel the messages insert trigger notifies on.
const InsertNotifyChannel = "message_inserts"

// PgListener turns Postgres NOTIFY payloads into hub publishes. Notifications
// carry only the row keys; the full record is read back before publishing.
// It holds one pooled connection for as long as Run is active.
type PgListener struct {
	pool    *pgxpool.Pool
	hub     *Hub
	channel string
	log     *zap.Logger
}

func NewPgListener(pool *pgxpool.Pool, hub *Hub, log *zap.Logger) *PgListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &PgListener{pool: pool, hub: hub, channel: InsertNotifyChannel, log: log}
}

// Run listens until ctx is canceled or the connection fails. It does not
// reconnect; a dropped connection is returned to the caller.
func (l *PgListener) Run(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire listener: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("postgres: listen %s: %w", l.channel, err)
	}
	l.log.Info("listening for inserts", zap.String("channel", l.channel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("postgres: wait for notification: %w", err)
		}

		var ev InsertEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			l.log.Warn("dropping malformed insert notification", zap.Error(err))
			continue
		}
		if err := l.loadRecord(ctx, &ev); err != nil {
			l.log.Warn("dropping insert notification", zap.Any("record", ev.Record), zap.Error(err))
			continue
		}
		metrics.RealtimeEvents.WithLabelValues("postgres").Inc()
		l.hub.Publish(ev)
	}
}

// loadRecord replaces the key-only record with the stored row. row_to_json
// keeps column names and renders created_at as a string, matching the
// InsertEvent wire shape.
func (l *PgListener) loadRecord(ctx context.Context, ev *InsertEvent) error {
	id, ok := ev.Record["id"].(string)
	if !ok || id == "" {
		return errors.New("notification without id")
	}
	var raw []byte
	err := l.pool.QueryRow(ctx,
		`SELECT row_to_json(t) FROM `+pgx.Identifier{ev.Table}.Sanitize()+` t WHERE t.id = $1`, id,
	).Scan(&raw)
	if err != nil {
		return fmt.Errorf("postgres: load %s %s: %w", ev.Table, id, err)
	}
	record := map[string]any{}
	if err := json.Unmarshal(raw, &record); err != nil {
		return fmt.Errorf("postgres: decode %s %s: %w", ev.Table, id, err)
	}
	ev.Record = record
	return nil
}

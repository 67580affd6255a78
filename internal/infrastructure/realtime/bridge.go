package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/metrics"
)

// BridgeChannel is the Redis pub/sub channel shared by every API node.
const BridgeChannel = "partout:realtime:inserts"

type bridgeEnvelope struct {
	Origin string      `json:"origin"`
	Event  InsertEvent `json:"event"`
}

// RedisBridge fans local inserts out to peer nodes and replays theirs into the
// local hub, so a subscriber sees inserts written through any node.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	node    string
	channel string
	log     *zap.Logger
}

func NewRedisBridge(client *redis.Client, hub *Hub, log *zap.Logger) *RedisBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{
		client:  client,
		hub:     hub,
		node:    uuid.NewString(),
		channel: BridgeChannel,
		log:     log,
	}
}

// Node identifies this process on the bridge.
func (b *RedisBridge) Node() string { return b.node }

// PublishInsert delivers ev locally and forwards it to peers.
func (b *RedisBridge) PublishInsert(ctx context.Context, ev InsertEvent) error {
	metrics.RealtimeEvents.WithLabelValues("local").Inc()
	b.hub.Publish(ev)

	payload, err := json.Marshal(bridgeEnvelope{Origin: b.node, Event: ev})
	if err != nil {
		return fmt.Errorf("redis: encode insert: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish insert: %w", err)
	}
	return nil
}

// Run relays peer inserts until ctx is canceled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis: subscribe %s: %w", b.channel, err)
	}
	b.log.Info("realtime bridge subscribed", zap.String("channel", b.channel), zap.String("node", b.node))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.relay(msg.Payload)
		}
	}
}

func (b *RedisBridge) relay(payload string) bool {
	var env bridgeEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("dropping malformed bridge payload", zap.Error(err))
		return false
	}
	if env.Origin == b.node {
		return false
	}
	metrics.RealtimeEvents.WithLabelValues("redis").Inc()
	b.hub.Publish(env.Event)
	return true
}

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/sudo-init-do/greenvault/internal/ledger"
)

// Channel carries committed ledger events between the worker and api processes.
const Channel = "greenvault:wallet-events"

type relayMessage struct {
	AccountID string          `json:"accountId"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Relay publishes events to Redis so that whichever process holds the
// account's websocket connections can push them. It replaces the hub as the
// observer whenever Redis is available.
type Relay struct {
	rdb     redisPublisher
	channel string
}

func NewRelay(rdb redisPublisher, channel string) *Relay {
	if channel == "" {
		channel = Channel
	}
	return &Relay{rdb: rdb, channel: channel}
}

// Observe implements ledger.Observer.
func (r *Relay) Observe(ctx context.Context, evt ledger.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg, err := json.Marshal(relayMessage{AccountID: evt.AccountID, Type: string(evt.Type), Data: data})
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// Subscribe feeds events published on channel into the hub until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, rdb *redis.Client, channel string) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	slog.InfoContext(ctx, "stream relay subscribed", "module", "stream", "channel", channel)
	h.Consume(ctx, sub.Channel())
	return nil
}

// Consume delivers relayed messages until ctx is done or msgs is closed.
func (h *Hub) Consume(ctx context.Context, msgs <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var rm relayMessage
			if err := json.Unmarshal([]byte(m.Payload), &rm); err != nil || rm.AccountID == "" {
				slog.WarnContext(ctx, "dropping malformed relay message", "module", "stream", "channel", m.Channel)
				continue
			}
			h.broadcast(rm.AccountID, wsEvent{Type: rm.Type, Data: rm.Data})
		}
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/etudier/etudier/core"
)

// relayedChange mirrors core.Change with a raw record, so it can be relayed without knowing its type.
type relayedChange struct {
	Table      string          `json:"table"`
	Type       core.ChangeType `json:"type"`
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Public     bool            `json:"public"`
	Record     json.RawMessage `json:"record,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RedisBroker shares changes between every API instance through a Redis channel.
// Publish sends to Redis; Run relays what Redis delivers into the local Hub.
type RedisBroker struct {
	rdb          redis.UniversalClient
	channel      string
	hub          *Hub
	logger       core.Logger
	retryBackoff time.Duration
}

var _ core.ChangePublisher = (*RedisBroker)(nil)

func NewRedisBroker(rdb redis.UniversalClient, channel string, hub *Hub, logger core.Logger) *RedisBroker {
	return &RedisBroker{
		rdb:          rdb,
		channel:      channel,
		hub:          hub,
		logger:       logger,
		retryBackoff: time.Second,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, change core.Change) error {
	payload, err := sonic.Marshal(change)
	if err != nil {
		return errors.Wrap(err, "encoding change")
	}
	return errors.Wrap(b.rdb.Publish(ctx, b.channel, payload).Err(), "publishing change")
}

// Run relays changes until ctx is done, subscribing again whenever the subscription closes.
func (b *RedisBroker) Run(ctx context.Context) {
	for {
		b.relay(ctx)
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("change feed subscription closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.retryBackoff):
		}
	}
}

func (b *RedisBroker) relay(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rc relayedChange
			if err := sonic.UnmarshalString(msg.Payload, &rc); err != nil {
				b.logger.Error("decoding change", err)
				continue
			}
			change := core.Change{
				Table:      rc.Table,
				Type:       rc.Type,
				ID:         rc.ID,
				OwnerID:    rc.OwnerID,
				Public:     rc.Public,
				Record:     rc.Record,
				OccurredAt: rc.OccurredAt,
			}
			if len(rc.Record) == 0 {
				change.Record = nil
			}
			_ = b.hub.Publish(ctx, change)
		}
	}
}

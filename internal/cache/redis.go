// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChangeChannel is the pub/sub channel committed changes are published on.
var DefaultChangeChannel = "shootingstars_changes"

// ChangeRecord is the JSON payload published for every committed record.
type ChangeRecord struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Doc        json.RawMessage `json:"doc"`
	Timestamp  int64           `json:"timestamp"`
}

// ConnectRedis opens a client for addr/db and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ChangePublisher forwards committed changes to a Redis channel so that
// processes outside this one can follow state without a websocket session.
type ChangePublisher struct {
	rdb     *redis.Client
	channel string
	logger  *logrus.Logger
}

// NewChangePublisher returns a publisher on channel (DefaultChangeChannel when empty).
func NewChangePublisher(rdb *redis.Client, channel string, logger *logrus.Logger) *ChangePublisher {
	if channel == "" {
		channel = DefaultChangeChannel
	}
	return &ChangePublisher{rdb: rdb, channel: channel, logger: logger}
}

// Publish serializes the change and publishes it.
func (p *ChangePublisher) Publish(ctx context.Context, ch store.Change) error {
	data, err := json.Marshal(ChangeRecord{
		Collection: ch.Collection,
		Key:        ch.Key,
		Doc:        ch.Body,
		Timestamp:  ch.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal ChangeRecord: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel '%s': %w", p.channel, err)
	}
	return nil
}

// Notify implements store.Notifier. Publish failures are logged and dropped;
// the record is already committed.
func (p *ChangePublisher) Notify(ctx context.Context, ch store.Change) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.Publish(pubCtx, ch); err != nil {
		p.logger.WithFields(logrus.Fields{
			"collection": ch.Collection,
			"key":        ch.Key,
		}).Warnf("change publish failed: %v", err)
	}
}

// Subscribe returns a channel of decoded change records from the Redis channel.
// It closes when ctx is cancelled.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string) (<-chan ChangeRecord, error) {
	if channel == "" {
		channel = DefaultChangeChannel
	}
	sub := rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	out := make(chan ChangeRecord, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var rec ChangeRecord
				if err := json.Unmarshal([]byte(m.Payload), &rec); err != nil {
					continue
				}
				select {
				case out <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

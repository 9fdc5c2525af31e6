// Package redisbus is a watch.Bus over Redis pub/sub, for deployments where
// several engine processes share one store.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/tally/watch"
)

// DefaultPrefix namespaces the pub/sub channels, one per collection.
const DefaultPrefix = "tally:changes:"

// Compile-time interface check.
var _ watch.Bus = (*Bus)(nil)

// Bus publishes each change on "<prefix><collection>". It does not own the
// Redis client; Close only ends the bus's subscriptions.
type Bus struct {
	rdb    redis.UniversalClient
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

// Option configures a Bus.
type Option func(*Bus)

func WithPrefix(prefix string) Option {
	return func(b *Bus) { b.prefix = prefix }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

func New(rdb redis.UniversalClient, opts ...Option) *Bus {
	b := &Bus{
		rdb:    rdb,
		prefix: DefaultPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) channel(collection string) string {
	return b.prefix + collection
}

func (b *Bus) Publish(ctx context.Context, c watch.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redisbus: encode change: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel(c.Collection), payload).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", c.Collection, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription, so no change
// published after it returns is missed.
func (b *Bus) Subscribe(ctx context.Context, collections ...string) (<-chan watch.Change, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, watch.ErrClosed
	}
	b.mu.Unlock()

	var ps *redis.PubSub
	if len(collections) == 0 {
		ps = b.rdb.PSubscribe(ctx, b.prefix+"*")
	} else {
		channels := make([]string, len(collections))
		for i, c := range collections {
			channels[i] = b.channel(c)
		}
		ps = b.rdb.Subscribe(ctx, channels...)
	}

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redisbus: subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, ps)
	b.mu.Unlock()

	out := make(chan watch.Change, watch.DefaultBuffer)
	go b.pump(ctx, ps, out)

	return out, nil
}

func (b *Bus) pump(ctx context.Context, ps *redis.PubSub, out chan<- watch.Change) {
	defer close(out)
	defer ps.Close()

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			var c watch.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				b.logger.Warn("redisbus: undecodable change",
					"channel", msg.Channel,
					"error", err,
				)
				continue
			}
			if c.Collection == "" {
				c.Collection = strings.TrimPrefix(msg.Channel, b.prefix)
			}

			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var firstErr error
	for _, ps := range b.subs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.subs = nil
	return firstErr
}

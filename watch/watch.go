// Package watch carries change notifications from the engine to observers.
//
// A Change only names what moved; observers reload the collection to see the
// new state. Delivery is at most once and ordering is only guaranteed per
// publisher, so observers must tolerate gaps and reordering across
// collections.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Op is the kind of write that produced a Change.
type Op string

const (
	OpPut    Op = "put"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change names a record that was written.
type Change struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Op         Op        `json:"op"`
	At         time.Time `json:"at"`
}

// ErrClosed is returned by a Bus after Close.
var ErrClosed = errors.New("watch: bus closed")

// Publisher sends changes.
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Subscriber receives changes. The channel is closed when ctx ends or the
// bus is closed. No collections means all of them.
type Subscriber interface {
	Subscribe(ctx context.Context, collections ...string) (<-chan Change, error)
}

// Bus is both ends of a change feed.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 256

// Hub is an in-process Bus. Publish never blocks: a change for a subscriber
// whose queue is full is dropped and logged.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
	buffer int
	logger *slog.Logger
}

type subscription struct {
	ch     chan Change
	filter map[string]bool
	once   sync.Once
}

func (s *subscription) wants(collection string) bool {
	return len(s.filter) == 0 || s.filter[collection]
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[*subscription]struct{}),
		buffer: DefaultBuffer,
		logger: logger,
	}
}

func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	for s := range h.subs {
		if !s.wants(c.Collection) {
			continue
		}
		select {
		case s.ch <- c:
		default:
			h.logger.Warn("watch subscriber lagging, change dropped",
				"collection", c.Collection,
				"id", c.ID,
			)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, collections ...string) (<-chan Change, error) {
	s := &subscription{
		ch:     make(chan Change, h.buffer),
		filter: make(map[string]bool, len(collections)),
	}
	for _, c := range collections {
		s.filter[c] = true
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, s)
		h.mu.Unlock()
		s.close()
	}()

	return s.ch, nil
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for s := range h.subs {
		s.close()
		delete(h.subs, s)
	}
	return nil
}

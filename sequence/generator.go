package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultStart is the first number issued on an empty counter.
const DefaultStart int64 = 1000

// DefaultMaxAttempts bounds how often a lost race is retried.
const DefaultMaxAttempts = 5

// Generator issues strictly increasing numbers.
type Generator struct {
	store       Store
	name        string
	start       int64
	maxAttempts int
	newBackOff  func() backoff.BackOff
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithName selects the counter record. Defaults to Invoices.
func WithName(name string) Option {
	return func(g *Generator) { g.name = name }
}

// WithStart sets the number returned by the very first call.
func WithStart(n int64) Option {
	return func(g *Generator) { g.start = n }
}

// WithMaxAttempts bounds the attempts made when writes conflict.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithBackOff replaces the delay policy between conflicting attempts.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(g *Generator) { g.newBackOff = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator returns a generator over store.
func NewGenerator(store Store, opts ...Option) *Generator {
	g := &Generator{
		store:       store,
		name:        Invoices,
		start:       DefaultStart,
		maxAttempts: DefaultMaxAttempts,
		newBackOff:  defaultBackOff,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next issues a number. An absent counter is created holding start+1 and
// start is returned; otherwise the stored value is returned and incremented.
//
// Lost races are retried up to the attempt limit. When every attempt loses,
// the returned error wraps ErrConflict and nothing was issued.
func (g *Generator) Next(ctx context.Context) (int64, error) {
	var (
		issued   int64
		attempts int
	)

	op := func() error {
		attempts++
		err := g.store.MutateCounter(ctx, g.name, func(cur *Counter) (*Counter, error) {
			next := g.start
			if cur != nil {
				next = cur.NextNumber
			}
			issued = next
			return &Counter{
				Name:       g.name,
				NextNumber: next + 1,
				UpdatedAt:  time.Now().UTC(),
			}, nil
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrConflict):
			g.logger.Debug("sequence conflict, retrying", "counter", g.name, "attempt", attempts)
			return err
		default:
			return backoff.Permanent(err)
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(g.newBackOff(), uint64(g.maxAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, ErrConflict) {
			return 0, fmt.Errorf("sequence: %s after %d attempts: %w", g.name, attempts, err)
		}
		return 0, fmt.Errorf("sequence: %s: %w", g.name, err)
	}

	return issued, nil
}

// Peek returns the number the next call to Next would issue, without
// reserving it.
func (g *Generator) Peek(ctx context.Context) (int64, error) {
	c, err := g.store.GetCounter(ctx, g.name)
	if errors.Is(err, ErrCounterNotFound) {
		return g.start, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sequence: peek %s: %w", g.name, err)
	}
	return c.NextNumber, nil
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

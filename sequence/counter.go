// Package sequence issues invoice numbers from a shared counter.
//
// Numbers come from an atomic read-modify-write against the store. Client and
// supplier invoices draw from the same counter, so numbers are unique across
// both and increase by one per issued invoice.
package sequence

import (
	"context"
	"errors"
	"time"
)

// Invoices is the name of the singleton invoice counter.
const Invoices = "invoices"

var (
	// ErrConflict is returned by a Store when a concurrent writer changed the
	// counter between the read and the write.
	ErrConflict = errors.New("sequence: counter write lost a race")

	// ErrCounterNotFound is returned by GetCounter before the first number
	// has been issued.
	ErrCounterNotFound = errors.New("sequence: counter not found")
)

// Counter holds the next number to issue.
type Counter struct {
	Name       string    `json:"name"`
	NextNumber int64     `json:"next_number"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MutateFunc receives the current counter, nil when it does not exist yet,
// and returns the counter to write back.
type MutateFunc func(cur *Counter) (*Counter, error)

// Store is the atomic primitive the generator is built on.
//
// MutateCounter must write the result of fn only if the counter is unchanged
// since it was read, and return ErrConflict otherwise. An error from fn
// aborts the write and is returned as is.
type Store interface {
	MutateCounter(ctx context.Context, name string, fn MutateFunc) error
	GetCounter(ctx context.Context, name string) (*Counter, error)
}

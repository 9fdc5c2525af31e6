package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/tally/client"
)

type counting struct {
	name    string
	created atomic.Int32
	issued  atomic.Int64
	fail    bool
}

func (c *counting) Name() string { return c.name }

func (c *counting) OnClientCreated(context.Context, *client.Client) error {
	c.created.Add(1)
	if c.fail {
		return errors.New("boom")
	}
	return nil
}

func (c *counting) OnNumberIssued(_ context.Context, n int64) error {
	c.issued.Store(n)
	return nil
}

type sleepy struct{}

func (sleepy) Name() string { return "sleepy" }

func (sleepy) OnNumberIssued(ctx context.Context, _ int64) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&counting{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&counting{name: "a"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
	if r.Get("a") == nil || r.Get("missing") != nil {
		t.Error("Get returned the wrong plugin")
	}
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	r := quietRegistry()
	a := &counting{name: "a"}
	b := &counting{name: "b", fail: true}
	_ = r.Register(a)
	_ = r.Register(b)

	r.EmitClientCreated(context.Background(), client.New("x"))
	r.EmitNumberIssued(context.Background(), 1000)
	r.EmitSupplierDeleted(context.Background(), client.New("y").ID) // no implementers

	if a.created.Load() != 1 || b.created.Load() != 1 {
		t.Errorf("created calls = %d/%d, want 1/1", a.created.Load(), b.created.Load())
	}
	if a.issued.Load() != 1000 {
		t.Errorf("issued = %d, want 1000", a.issued.Load())
	}
}

func TestImplementedHooks(t *testing.T) {
	r := quietRegistry()
	hooks := r.implementedHooks(&counting{name: "a"})
	if len(hooks) != 2 {
		t.Fatalf("hooks = %v, want 2 entries", hooks)
	}
}

func TestCallWithTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	_ = r.Register(sleepy{})

	start := time.Now()
	r.EmitNumberIssued(context.Background(), 1)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("slow plugin blocked emission for %s", elapsed)
	}
}

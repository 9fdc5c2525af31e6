package tally

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/watch"
)

// DefaultEditor stamps stock changes made without an editor in the context.
const DefaultEditor = "system"

const tracerName = "github.com/xraph/tally"

// Engine is the ledger and inventory reconciliation engine. It is safe for
// concurrent use; it adds no locking beyond what the store provides.
type Engine struct {
	store      store.Store
	sequence   *sequence.Generator
	reconciler *stock.Reconciler
	plugins    *plugin.Registry
	bus        watch.Bus
	logger     *slog.Logger
	tracer     trace.Tracer

	compensate bool
	seqOpts    []sequence.Option
}

// New creates an engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.bus == nil {
		e.bus = watch.NewHub(e.logger)
	}
	e.sequence = sequence.NewGenerator(s, append([]sequence.Option{sequence.WithLogger(e.logger)}, e.seqOpts...)...)
	e.reconciler = stock.NewReconciler(s, e.logger)

	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithHookTimeout bounds each plugin hook call.
func WithHookTimeout(d time.Duration) Option {
	return func(e *Engine) { e.plugins.WithTimeout(d) }
}

// WithBus publishes change notifications on bus instead of a private hub.
// The engine closes the bus on Stop.
func WithBus(bus watch.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithCompensation makes a failed operation undo the steps it had already
// completed, in reverse order. Off by default: completed steps stay applied
// and the failure carries the completion log.
func WithCompensation(enabled bool) Option {
	return func(e *Engine) { e.compensate = enabled }
}

// WithSequence configures the invoice number generator.
func WithSequence(opts ...sequence.Option) Option {
	return func(e *Engine) { e.seqOpts = append(e.seqOpts, opts...) }
}

// WithTracerProvider traces operations and steps through tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("tally started",
		"plugins", e.plugins.Count(),
		"compensation", e.compensate,
	)

	return nil
}

// Stop shuts down plugins, the change bus and the store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	if err := e.bus.Close(); err != nil {
		e.logger.Warn("close change bus", "error", err)
	}

	return e.store.Close()
}

// Store returns the underlying store, for read paths that bypass the engine.
func (e *Engine) Store() store.Store { return e.store }

// Changes subscribes to the engine's change notifications.
func (e *Engine) Changes(ctx context.Context, collections ...string) (<-chan watch.Change, error) {
	return e.bus.Subscribe(ctx, collections...)
}

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// NextInvoiceNumber reserves a number from the shared counter outside of an
// invoice close. The number is consumed even if never used.
func (e *Engine) NextInvoiceNumber(ctx context.Context) (int64, error) {
	n, err := e.sequence.Next(ctx)
	if err != nil {
		return 0, storeFailure("next invoice number", err)
	}
	e.plugins.EmitNumberIssued(ctx, n)
	return n, nil
}

// PeekInvoiceNumber returns the number the next close would receive.
func (e *Engine) PeekInvoiceNumber(ctx context.Context) (int64, error) {
	return e.sequence.Peek(ctx)
}

// notify publishes a change. Failures are logged: observers resync on the
// next change.
func (e *Engine) notify(ctx context.Context, collection, recordID string, op watch.Op) {
	err := e.bus.Publish(ctx, watch.Change{
		Collection: collection,
		ID:         recordID,
		Op:         op,
		At:         time.Now().UTC(),
	})
	if err != nil {
		e.logger.Warn("publish change failed",
			"collection", collection,
			"id", recordID,
			"error", err,
		)
	}
}

// ──────────────────────────────────────────────────
// Editor identity
// ──────────────────────────────────────────────────

type editorKey struct{}

// WithEditor returns a context naming the user whose actions follow. Stock
// entries touched under it are stamped with the name.
func WithEditor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, editorKey{}, name)
}

// EditorFrom returns the editor carried by ctx, or DefaultEditor.
func EditorFrom(ctx context.Context) string {
	if name, ok := ctx.Value(editorKey{}).(string); ok && name != "" {
		return name
	}
	return DefaultEditor
}

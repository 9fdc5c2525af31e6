// Package extension assembles a runnable tally service: the engine, a
// snapshot mirror following its change feed, and the HTTP handler over both.
//
// Configuration can be provided programmatically via Option functions or
// loaded from the "tally" section of the service configuration file.
package extension

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/xraph/tally"
	"github.com/xraph/tally/api"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/snapshot"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/watch"
)

// Extension owns the lifecycle of one tally service.
type Extension struct {
	config    Config
	store     store.Store
	bus       watch.Bus
	logger    *slog.Logger
	tallyOpts []tally.Option
	apiOpts   []api.Option

	engine  *tally.Engine
	mirror  *snapshot.Mirror
	handler http.Handler

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan error
	started bool
}

// New builds the service. Without WithStore it runs on an in-memory store;
// without WithBus changes stay in process.
func New(opts ...Option) *Extension {
	e := &Extension{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.config = mergeWithDefaults(e.config)

	if e.store == nil {
		e.store = memory.New()
	}
	if e.bus == nil {
		e.bus = watch.NewHub(e.logger)
	}

	e.engine = tally.New(e.store, e.buildTallyOpts()...)
	e.mirror = snapshot.New(e.store, e.bus, e.logger)

	if !e.config.DisableRoutes {
		opts := append([]api.Option{api.WithBasePath(e.config.BasePath)}, e.apiOpts...)
		e.handler = api.New(e.engine, e.mirror, opts...).Router()
	}

	return e
}

// Engine returns the underlying engine.
func (e *Extension) Engine() *tally.Engine { return e.engine }

// Mirror returns the snapshot mirror.
func (e *Extension) Mirror() *snapshot.Mirror { return e.mirror }

// Handler returns the HTTP handler, or nil when routes are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Start migrates the store, loads the mirror and starts following changes.
func (e *Extension) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errors.New("tally: extension already started")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if err := e.mirror.Sync(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan error, 1)
	go func() { e.done <- e.mirror.Run(runCtx) }()

	e.started = true
	e.logger.Info("tally service started",
		"routes", !e.config.DisableRoutes,
		"base_path", e.config.BasePath,
		"compensation", e.config.Compensation,
	)
	return nil
}

// Stop ends the mirror and shuts the engine down.
func (e *Extension) Stop(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if e.started {
		e.cancel()
		errs = append(errs, <-e.done)
		e.started = false
	}
	errs = append(errs, e.engine.Stop())
	return errors.Join(errs...)
}

// Health pings the store.
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("tally: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildTallyOpts constructs tally.Option values from the resolved config.
func (e *Extension) buildTallyOpts() []tally.Option {
	opts := make([]tally.Option, 0, len(e.tallyOpts)+5)

	opts = append(opts,
		tally.WithLogger(e.logger),
		tally.WithBus(e.bus),
		tally.WithCompensation(e.config.Compensation),
		tally.WithHookTimeout(e.config.HookTimeout),
		tally.WithSequence(sequence.WithMaxAttempts(e.config.SequenceAttempts)),
	)

	// Append any pass-through options.
	opts = append(opts, e.tallyOpts...)

	return opts
}

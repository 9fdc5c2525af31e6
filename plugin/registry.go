package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/supplier"
)

// DefaultHookTimeout bounds a single hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches hooks from
// per-interface caches built at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                   []OnInit
	onShutdown               []OnShutdown
	onClientCreated          []OnClientCreated
	onClientDeleted          []OnClientDeleted
	onSupplierCreated        []OnSupplierCreated
	onSupplierDeleted        []OnSupplierDeleted
	onStockProductCreated    []OnStockProductCreated
	onStockProductDeleted    []OnStockProductDeleted
	onNumberIssued           []OnNumberIssued
	onStockReconciled        []OnStockReconciled
	onBalanceChanged         []OnBalanceChanged
	onClientInvoiceClosed    []OnClientInvoiceClosed
	onClientInvoiceDeleted   []OnClientInvoiceDeleted
	onSupplierInvoiceClosed  []OnSupplierInvoiceClosed
	onSupplierInvoiceDeleted []OnSupplierInvoiceDeleted
	onOperationFailed        []OnOperationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin and caches the hooks it implements. Names must be
// unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	cache(p, &r.onInit)
	cache(p, &r.onShutdown)
	cache(p, &r.onClientCreated)
	cache(p, &r.onClientDeleted)
	cache(p, &r.onSupplierCreated)
	cache(p, &r.onSupplierDeleted)
	cache(p, &r.onStockProductCreated)
	cache(p, &r.onStockProductDeleted)
	cache(p, &r.onNumberIssued)
	cache(p, &r.onStockReconciled)
	cache(p, &r.onBalanceChanged)
	cache(p, &r.onClientInvoiceClosed)
	cache(p, &r.onClientInvoiceDeleted)
	cache(p, &r.onSupplierInvoiceClosed)
	cache(p, &r.onSupplierInvoiceDeleted)
	cache(p, &r.onOperationFailed)

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", r.implementedHooks(p),
	)

	return nil
}

func cache[T Plugin](p Plugin, list *[]T) {
	if v, ok := p.(T); ok {
		*list = append(*list, v)
	}
}

// implementedHooks names the hook interfaces p satisfies, for logging.
func (r *Registry) implementedHooks(p Plugin) []string {
	hooks := []reflect.Type{
		reflect.TypeFor[OnInit](),
		reflect.TypeFor[OnShutdown](),
		reflect.TypeFor[OnClientCreated](),
		reflect.TypeFor[OnClientDeleted](),
		reflect.TypeFor[OnSupplierCreated](),
		reflect.TypeFor[OnSupplierDeleted](),
		reflect.TypeFor[OnStockProductCreated](),
		reflect.TypeFor[OnStockProductDeleted](),
		reflect.TypeFor[OnNumberIssued](),
		reflect.TypeFor[OnStockReconciled](),
		reflect.TypeFor[OnBalanceChanged](),
		reflect.TypeFor[OnClientInvoiceClosed](),
		reflect.TypeFor[OnClientInvoiceDeleted](),
		reflect.TypeFor[OnSupplierInvoiceClosed](),
		reflect.TypeFor[OnSupplierInvoiceDeleted](),
		reflect.TypeFor[OnOperationFailed](),
	}

	t := reflect.TypeOf(p)
	var names []string
	for _, h := range hooks {
		if t.Implements(h) {
			names = append(names, h.Name())
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// emit calls fn for every plugin in list. Hook failures are logged and never
// reach the engine.
func emit[T Plugin](ctx context.Context, r *Registry, list *[]T, hook string, fn func(T) error) {
	r.mu.RLock()
	plugins := *list
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, &r.onInit, "OnInit", func(p OnInit) error { return p.OnInit(ctx, engine) })
}

func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, &r.onShutdown, "OnShutdown", func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

func (r *Registry) EmitClientCreated(ctx context.Context, c *client.Client) {
	emit(ctx, r, &r.onClientCreated, "OnClientCreated", func(p OnClientCreated) error {
		return p.OnClientCreated(ctx, c)
	})
}

func (r *Registry) EmitClientDeleted(ctx context.Context, clientID id.ClientID) {
	emit(ctx, r, &r.onClientDeleted, "OnClientDeleted", func(p OnClientDeleted) error {
		return p.OnClientDeleted(ctx, clientID)
	})
}

func (r *Registry) EmitSupplierCreated(ctx context.Context, s *supplier.Supplier) {
	emit(ctx, r, &r.onSupplierCreated, "OnSupplierCreated", func(p OnSupplierCreated) error {
		return p.OnSupplierCreated(ctx, s)
	})
}

func (r *Registry) EmitSupplierDeleted(ctx context.Context, supplierID id.SupplierID) {
	emit(ctx, r, &r.onSupplierDeleted, "OnSupplierDeleted", func(p OnSupplierDeleted) error {
		return p.OnSupplierDeleted(ctx, supplierID)
	})
}

func (r *Registry) EmitStockProductCreated(ctx context.Context, prod *stock.Product) {
	emit(ctx, r, &r.onStockProductCreated, "OnStockProductCreated", func(p OnStockProductCreated) error {
		return p.OnStockProductCreated(ctx, prod)
	})
}

func (r *Registry) EmitStockProductDeleted(ctx context.Context, productID id.StockProductID) {
	emit(ctx, r, &r.onStockProductDeleted, "OnStockProductDeleted", func(p OnStockProductDeleted) error {
		return p.OnStockProductDeleted(ctx, productID)
	})
}

func (r *Registry) EmitNumberIssued(ctx context.Context, number int64) {
	emit(ctx, r, &r.onNumberIssued, "OnNumberIssued", func(p OnNumberIssued) error {
		return p.OnNumberIssued(ctx, number)
	})
}

func (r *Registry) EmitStockReconciled(ctx context.Context, report *stock.Report) {
	emit(ctx, r, &r.onStockReconciled, "OnStockReconciled", func(p OnStockReconciled) error {
		return p.OnStockReconciled(ctx, report)
	})
}

func (r *Registry) EmitBalanceChanged(ctx context.Context, clientID id.ClientID, previous, current decimal.Decimal) {
	emit(ctx, r, &r.onBalanceChanged, "OnBalanceChanged", func(p OnBalanceChanged) error {
		return p.OnBalanceChanged(ctx, clientID, previous, current)
	})
}

func (r *Registry) EmitClientInvoiceClosed(ctx context.Context, inv *invoice.ClientInvoice) {
	emit(ctx, r, &r.onClientInvoiceClosed, "OnClientInvoiceClosed", func(p OnClientInvoiceClosed) error {
		return p.OnClientInvoiceClosed(ctx, inv)
	})
}

func (r *Registry) EmitClientInvoiceDeleted(ctx context.Context, inv *invoice.ClientInvoice) {
	emit(ctx, r, &r.onClientInvoiceDeleted, "OnClientInvoiceDeleted", func(p OnClientInvoiceDeleted) error {
		return p.OnClientInvoiceDeleted(ctx, inv)
	})
}

func (r *Registry) EmitSupplierInvoiceClosed(ctx context.Context, inv *invoice.SupplierInvoice) {
	emit(ctx, r, &r.onSupplierInvoiceClosed, "OnSupplierInvoiceClosed", func(p OnSupplierInvoiceClosed) error {
		return p.OnSupplierInvoiceClosed(ctx, inv)
	})
}

func (r *Registry) EmitSupplierInvoiceDeleted(ctx context.Context, inv *invoice.SupplierInvoice) {
	emit(ctx, r, &r.onSupplierInvoiceDeleted, "OnSupplierInvoiceDeleted", func(p OnSupplierInvoiceDeleted) error {
		return p.OnSupplierInvoiceDeleted(ctx, inv)
	})
}

func (r *Registry) EmitOperationFailed(ctx context.Context, op, step string, opErr error) {
	emit(ctx, r, &r.onOperationFailed, "OnOperationFailed", func(p OnOperationFailed) error {
		return p.OnOperationFailed(ctx, op, step, opErr)
	})
}

// callWithTimeout calls a plugin function with a timeout so a slow plugin
// never stalls an operation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}

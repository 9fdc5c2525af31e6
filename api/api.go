// Package api exposes the tally engine over HTTP.
//
// Writes go through the engine; reads are served from a snapshot mirror, so
// a read right after a write may lag by one change notification.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xraph/tally"
	"github.com/xraph/tally/snapshot"
)

// Handler serves the tally routes.
type Handler struct {
	engine   *tally.Engine
	mirror   *snapshot.Mirror
	logger   *zap.Logger
	basePath string
	gatherer prometheus.Gatherer
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the access and error logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithBasePath mounts the tally routes under path. Health and metrics stay
// at the root.
func WithBasePath(path string) Option {
	return func(h *Handler) { h.basePath = path }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// WithClock overrides the time used for report windows.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New returns a handler writing through engine and reading from mirror.
func New(engine *tally.Engine, mirror *snapshot.Mirror, opts ...Option) *Handler {
	h := &Handler{
		engine:   engine,
		mirror:   mirror,
		logger:   zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds a gin engine with the middleware chain and every route.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(
		RequestID(),
		Recovery(h.logger),
		AccessLog(h.logger),
		Editor(),
	)

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	h.Register(r.Group(h.basePath))
	return r
}

// Register adds the tally routes to g.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/clients", h.addClient)
	g.DELETE("/clients/:id", h.deleteClient)
	g.POST("/suppliers", h.addSupplier)
	g.DELETE("/suppliers/:id", h.deleteSupplier)
	g.POST("/stock", h.addStockProduct)
	g.DELETE("/stock/:id", h.deleteStockProduct)

	g.POST("/client-invoices", h.closeClientInvoice)
	g.DELETE("/client-invoices/:id", h.deleteClientInvoice)
	g.POST("/supplier-invoices", h.closeSupplierInvoice)
	g.DELETE("/supplier-invoices/:id", h.deleteSupplierInvoice)
	g.GET("/invoice-number", h.peekInvoiceNumber)

	g.GET("/snapshots/:collection", h.snapshot)
	g.GET("/reports/series", h.series)
	g.GET("/reports/totals", h.totals)
	g.GET("/balances/audit", h.auditBalances)
	g.POST("/balances/:id/repair", h.repairBalance)
}

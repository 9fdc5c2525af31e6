// Package audithook bridges tally lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the engine does not depend on any
// particular audit store. The kafkasink subpackage provides a Recorder that
// publishes events to a Kafka topic.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/supplier"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                   = (*Extension)(nil)
	_ plugin.OnClientCreated          = (*Extension)(nil)
	_ plugin.OnClientDeleted          = (*Extension)(nil)
	_ plugin.OnSupplierCreated        = (*Extension)(nil)
	_ plugin.OnSupplierDeleted        = (*Extension)(nil)
	_ plugin.OnStockProductCreated    = (*Extension)(nil)
	_ plugin.OnStockProductDeleted    = (*Extension)(nil)
	_ plugin.OnNumberIssued           = (*Extension)(nil)
	_ plugin.OnStockReconciled        = (*Extension)(nil)
	_ plugin.OnBalanceChanged         = (*Extension)(nil)
	_ plugin.OnClientInvoiceClosed    = (*Extension)(nil)
	_ plugin.OnClientInvoiceDeleted   = (*Extension)(nil)
	_ plugin.OnSupplierInvoiceClosed  = (*Extension)(nil)
	_ plugin.OnSupplierInvoiceDeleted = (*Extension)(nil)
	_ plugin.OnOperationFailed        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audited action. Actor is the editor carried by the
// request context.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Actor      string         `json:"actor"`
	At         time.Time      `json:"at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges tally lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Directory hooks
// ──────────────────────────────────────────────────

// OnClientCreated implements plugin.OnClientCreated.
func (e *Extension) OnClientCreated(ctx context.Context, c *client.Client) error {
	return e.record(ctx, ActionClientCreated, SeverityInfo, OutcomeSuccess,
		ResourceClient, c.ID.String(), CategoryDirectory, nil,
		"name", c.Name,
	)
}

// OnClientDeleted implements plugin.OnClientDeleted.
func (e *Extension) OnClientDeleted(ctx context.Context, clientID id.ClientID) error {
	return e.record(ctx, ActionClientDeleted, SeverityWarning, OutcomeSuccess,
		ResourceClient, clientID.String(), CategoryDirectory, nil,
	)
}

// OnSupplierCreated implements plugin.OnSupplierCreated.
func (e *Extension) OnSupplierCreated(ctx context.Context, s *supplier.Supplier) error {
	return e.record(ctx, ActionSupplierCreated, SeverityInfo, OutcomeSuccess,
		ResourceSupplier, s.ID.String(), CategoryDirectory, nil,
		"name", s.Name,
	)
}

// OnSupplierDeleted implements plugin.OnSupplierDeleted.
func (e *Extension) OnSupplierDeleted(ctx context.Context, supplierID id.SupplierID) error {
	return e.record(ctx, ActionSupplierDeleted, SeverityWarning, OutcomeSuccess,
		ResourceSupplier, supplierID.String(), CategoryDirectory, nil,
	)
}

// OnStockProductCreated implements plugin.OnStockProductCreated.
func (e *Extension) OnStockProductCreated(ctx context.Context, p *stock.Product) error {
	return e.record(ctx, ActionStockProductCreated, SeverityInfo, OutcomeSuccess,
		ResourceStockProduct, p.ID.String(), CategoryInventory, nil,
		"name", p.Name,
		"unit_price", p.UnitPrice.String(),
	)
}

// OnStockProductDeleted implements plugin.OnStockProductDeleted.
func (e *Extension) OnStockProductDeleted(ctx context.Context, productID id.StockProductID) error {
	return e.record(ctx, ActionStockProductDeleted, SeverityWarning, OutcomeSuccess,
		ResourceStockProduct, productID.String(), CategoryInventory, nil,
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnNumberIssued implements plugin.OnNumberIssued.
func (e *Extension) OnNumberIssued(ctx context.Context, number int64) error {
	return e.record(ctx, ActionNumberIssued, SeverityInfo, OutcomeSuccess,
		ResourceSequence, "", CategoryLedger, nil,
		"number", number,
	)
}

// OnStockReconciled records one event per reconciliation. A run with failed
// items is recorded as partial.
func (e *Extension) OnStockReconciled(ctx context.Context, report *stock.Report) error {
	outcome, severity := OutcomeSuccess, SeverityInfo
	if failed := report.Failed(); len(failed) > 0 {
		outcome, severity = OutcomePartial, SeverityError
	}

	statuses := make(map[string]int)
	for _, o := range report.Outcomes {
		statuses[string(o.Status)]++
	}

	return e.record(ctx, ActionStockReconciled, severity, outcome,
		ResourceStockProduct, report.Ref.String(), CategoryInventory, nil,
		"kind", string(report.Kind),
		"items", statuses,
	)
}

// OnBalanceChanged implements plugin.OnBalanceChanged.
func (e *Extension) OnBalanceChanged(ctx context.Context, clientID id.ClientID, previous, current decimal.Decimal) error {
	return e.record(ctx, ActionBalanceChanged, SeverityInfo, OutcomeSuccess,
		ResourceClient, clientID.String(), CategoryLedger, nil,
		"previous", previous.String(),
		"current", current.String(),
	)
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnClientInvoiceClosed implements plugin.OnClientInvoiceClosed.
func (e *Extension) OnClientInvoiceClosed(ctx context.Context, inv *invoice.ClientInvoice) error {
	return e.record(ctx, ActionClientInvoiceClosed, SeverityInfo, OutcomeSuccess,
		ResourceClientInvoice, inv.ID.String(), CategorySales, nil,
		"number", inv.InvoiceNumber,
		"client_id", inv.ClientID.String(),
		"type", string(inv.Type),
		"total", inv.InvoiceTotal.String(),
		"cash_payment", inv.CashPayment.String(),
	)
}

// OnClientInvoiceDeleted implements plugin.OnClientInvoiceDeleted.
func (e *Extension) OnClientInvoiceDeleted(ctx context.Context, inv *invoice.ClientInvoice) error {
	return e.record(ctx, ActionClientInvoiceDeleted, SeverityWarning, OutcomeSuccess,
		ResourceClientInvoice, inv.ID.String(), CategorySales, nil,
		"number", inv.InvoiceNumber,
		"client_id", inv.ClientID.String(),
	)
}

// OnSupplierInvoiceClosed implements plugin.OnSupplierInvoiceClosed.
func (e *Extension) OnSupplierInvoiceClosed(ctx context.Context, inv *invoice.SupplierInvoice) error {
	return e.record(ctx, ActionSupplierInvoiceClosed, SeverityInfo, OutcomeSuccess,
		ResourceSupplierInvoice, inv.ID.String(), CategoryPurchases, nil,
		"number", inv.InvoiceNumber,
		"supplier_id", inv.SupplierID.String(),
		"total", inv.Total().String(),
	)
}

// OnSupplierInvoiceDeleted implements plugin.OnSupplierInvoiceDeleted.
func (e *Extension) OnSupplierInvoiceDeleted(ctx context.Context, inv *invoice.SupplierInvoice) error {
	return e.record(ctx, ActionSupplierInvoiceDeleted, SeverityWarning, OutcomeSuccess,
		ResourceSupplierInvoice, inv.ID.String(), CategoryPurchases, nil,
		"number", inv.InvoiceNumber,
		"supplier_id", inv.SupplierID.String(),
	)
}

// OnOperationFailed implements plugin.OnOperationFailed.
func (e *Extension) OnOperationFailed(ctx context.Context, op, step string, err error) error {
	severity := SeverityError
	if tally.IsValidation(err) {
		severity = SeverityWarning
	}
	return e.record(ctx, ActionOperationFailed, severity, OutcomeFailure,
		ResourceOperation, op, CategoryLedger, err,
		"step", step,
		"code", tally.ErrorCode(err),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Actor:      tally.EditorFrom(ctx),
		At:         time.Now().UTC(),
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/tally"
	audithook "github.com/xraph/tally/audit_hook"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store/memory"
)

type captured struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *captured) Record(_ context.Context, e *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captured) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

func (c *captured) find(action string) *audithook.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Action == action {
			return e
		}
	}
	return nil
}

func TestAuditTrailOfASale(t *testing.T) {
	rec := &captured{}
	ctx := tally.WithEditor(context.Background(), "ana")

	engine := tally.New(memory.New(), tally.WithPlugin(audithook.New(rec)))
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	c, err := engine.AddClient(ctx, "Don José")
	require.NoError(t, err)

	inv, err := engine.CloseClientInvoice(ctx, invoice.ClientDraft{
		ClientID:    c.ID,
		Type:        invoice.TypeSale,
		Items:       []invoice.Item{{Detail: "Vacío", Kilos: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(500)}},
		CashPayment: decimal.Zero,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		audithook.ActionClientCreated,
		audithook.ActionNumberIssued,
		audithook.ActionStockReconciled,
		audithook.ActionBalanceChanged,
		audithook.ActionClientInvoiceClosed,
	}, rec.actions())

	closed := rec.find(audithook.ActionClientInvoiceClosed)
	require.NotNil(t, closed)
	assert.Equal(t, inv.ID.String(), closed.ResourceID)
	assert.Equal(t, "ana", closed.Actor)
	assert.Equal(t, int64(1000), closed.Metadata["number"])
	assert.Equal(t, "500", closed.Metadata["total"])

	reconciled := rec.find(audithook.ActionStockReconciled)
	require.NotNil(t, reconciled)
	assert.Equal(t, audithook.OutcomeSuccess, reconciled.Outcome)
	assert.Equal(t, map[string]int{string(stock.StatusSkippedUnknown): 1}, reconciled.Metadata["items"])
}

func TestFailedOperationIsAudited(t *testing.T) {
	rec := &captured{}
	ctx := context.Background()
	engine := tally.New(memory.New(), tally.WithPlugin(audithook.New(rec)))
	require.NoError(t, engine.Start(ctx))
	defer func() { _ = engine.Stop() }()

	_, err := engine.CloseSupplierInvoice(ctx, invoice.SupplierDraft{})
	require.Error(t, err)

	failed := rec.find(audithook.ActionOperationFailed)
	require.NotNil(t, failed)
	assert.Equal(t, tally.OpCloseSupplierInvoice, failed.ResourceID)
	assert.Equal(t, audithook.SeverityWarning, failed.Severity)
	assert.Equal(t, audithook.OutcomeFailure, failed.Outcome)
	assert.Equal(t, tally.StepValidate, failed.Metadata["step"])
	assert.Equal(t, tally.DefaultEditor, failed.Actor)
	assert.NotEmpty(t, failed.Reason)
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()

	only := &captured{}
	ext := audithook.New(only, audithook.WithEnabledActions(audithook.ActionNumberIssued))
	require.NoError(t, ext.OnNumberIssued(ctx, 1000))
	require.NoError(t, ext.OnOperationFailed(ctx, tally.OpCloseClientInvoice, tally.StepNumber, errors.New("x")))
	assert.Equal(t, []string{audithook.ActionNumberIssued}, only.actions())

	without := &captured{}
	ext = audithook.New(without, audithook.WithDisabledActions(audithook.ActionNumberIssued))
	require.NoError(t, ext.OnNumberIssued(ctx, 1000))
	require.NoError(t, ext.OnOperationFailed(ctx, tally.OpCloseClientInvoice, tally.StepNumber, errors.New("x")))
	assert.Equal(t, []string{audithook.ActionOperationFailed}, without.actions())
}

func TestRecorderErrorsAreSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit store down")
	}))
	assert.NoError(t, ext.OnNumberIssued(context.Background(), 1000))
}

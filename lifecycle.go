package tally

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/stock"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/watch"
)

// ──────────────────────────────────────────────────
// Client invoices
// ──────────────────────────────────────────────────

// CloseClientInvoice turns a draft into a numbered, closed invoice.
//
// Steps run in order: validate, load the client, reserve a number, persist
// the invoice, set the client's balance to the invoice's final balance, and
// for sales remove the items from stock. A failure stops at the failing
// step and returns an *OperationError; earlier steps stay applied unless the
// engine runs with WithCompensation.
func (e *Engine) CloseClientInvoice(ctx context.Context, d invoice.ClientDraft) (*invoice.ClientInvoice, error) {
	var (
		c      *client.Client
		number int64
		inv    *invoice.ClientInvoice
		report *stock.Report
		editor = EditorFrom(ctx)
	)

	p := e.newPipeline(OpCloseClientInvoice)

	p.then(StepValidate, func(context.Context) error {
		return validateClientDraft(&d)
	}, nil)

	p.then(StepLoad, func(ctx context.Context) error {
		var err error
		c, err = e.store.GetClient(ctx, d.ClientID)
		if err != nil {
			return storeFailure("get client", err)
		}
		return nil
	}, nil)

	p.then(StepNumber, func(ctx context.Context) error {
		var err error
		number, err = e.sequence.Next(ctx)
		if err != nil {
			return storeFailure("next invoice number", err)
		}
		e.plugins.EmitNumberIssued(ctx, number)
		return nil
	}, nil)

	p.then(StepPersist, func(ctx context.Context) error {
		inv = invoice.NewClientInvoice(d, number, c.CurrentBalance)
		return storeFailure("put client invoice", e.store.PutClientInvoice(ctx, inv))
	}, func(ctx context.Context) error {
		if inv == nil {
			return nil
		}
		return ignoreNotFound(e.store.DeleteClientInvoice(ctx, inv.ID))
	})

	p.then(StepBalance, func(ctx context.Context) error {
		return storeFailure("update client balance", e.store.UpdateClientBalance(ctx, c.ID, inv.FinalBalance))
	}, func(ctx context.Context) error {
		return ignoreNotFound(e.store.UpdateClientBalance(ctx, c.ID, c.CurrentBalance))
	})

	p.then(StepStock, func(ctx context.Context) error {
		if inv.Type != invoice.TypeSale || len(inv.Items) == 0 {
			return nil
		}
		var err error
		report, err = e.reconciler.Apply(ctx, inv.ID, inv.Items, stock.Sale, editor)
		e.afterReconcile(ctx, report)
		return storeFailure("reconcile stock", err)
	}, func(ctx context.Context) error {
		return e.undoReconcile(ctx, report, editor)
	})

	if err := p.run(ctx); err != nil {
		return nil, err
	}

	e.notify(ctx, store.CollectionClientInvoices, inv.ID.String(), watch.OpPut)
	e.notify(ctx, store.CollectionClients, c.ID.String(), watch.OpUpdate)
	e.plugins.EmitBalanceChanged(ctx, c.ID, c.CurrentBalance, inv.FinalBalance)
	e.plugins.EmitClientInvoiceClosed(ctx, inv)

	e.logger.Info("client invoice closed",
		"invoice_id", inv.ID.String(),
		"number", inv.InvoiceNumber,
		"client_id", c.ID.String(),
		"type", string(inv.Type),
		"total", inv.InvoiceTotal.String(),
		"final_balance", inv.FinalBalance.String(),
	)

	return inv, nil
}

// DeleteClientInvoice removes a closed invoice and reverses its effects: the
// client's balance gives back the invoice's net effect and sold items return
// to stock. An absent invoice is a successful no-op. When the client is gone
// the balance step is skipped and the rest still runs.
//
// Re-running a delete that failed after the balance step reverses the
// balance again; AuditBalances detects that drift.
func (e *Engine) DeleteClientInvoice(ctx context.Context, invID id.ClientInvoiceID) error {
	var (
		inv      *invoice.ClientInvoice
		previous decimal.Decimal
		owner    *client.Client
		report   *stock.Report
		editor   = EditorFrom(ctx)
	)

	p := e.newPipeline(OpDeleteClientInvoice)

	p.then(StepLoad, func(ctx context.Context) error {
		var err error
		inv, err = e.store.GetClientInvoice(ctx, invID)
		if IsNotFound(err) {
			e.logger.Debug("client invoice already absent", "invoice_id", invID.String())
			return errHalt
		}
		return storeFailure("get client invoice", err)
	}, nil)

	p.then(StepBalance, func(ctx context.Context) error {
		var err error
		owner, err = e.store.GetClient(ctx, inv.ClientID)
		if IsNotFound(err) {
			e.logger.Debug("client gone, balance reversal skipped",
				"invoice_id", inv.ID.String(),
				"client_id", inv.ClientID.String(),
			)
			owner = nil
			return nil
		}
		if err != nil {
			return storeFailure("get client", err)
		}
		previous = owner.CurrentBalance
		next := previous.Sub(inv.InvoiceTotal).Add(inv.CashPayment)
		return storeFailure("update client balance", e.store.UpdateClientBalance(ctx, owner.ID, next))
	}, func(ctx context.Context) error {
		if owner == nil {
			return nil
		}
		return ignoreNotFound(e.store.UpdateClientBalance(ctx, owner.ID, previous))
	})

	p.then(StepStock, func(ctx context.Context) error {
		if inv.Type != invoice.TypeSale || len(inv.Items) == 0 {
			return nil
		}
		var err error
		report, err = e.reconciler.Apply(ctx, inv.ID, inv.Items, stock.RevertSale, editor)
		e.afterReconcile(ctx, report)
		return storeFailure("reconcile stock", err)
	}, func(ctx context.Context) error {
		return e.undoReconcile(ctx, report, editor)
	})

	p.then(StepRemove, func(ctx context.Context) error {
		return storeFailure("delete client invoice", ignoreNotFound(e.store.DeleteClientInvoice(ctx, inv.ID)))
	}, nil)

	if err := p.run(ctx); err != nil {
		return err
	}
	if inv == nil {
		return nil
	}

	e.forgetMovements(ctx, inv.ID)
	e.notify(ctx, store.CollectionClientInvoices, inv.ID.String(), watch.OpDelete)
	if owner != nil {
		e.notify(ctx, store.CollectionClients, owner.ID.String(), watch.OpUpdate)
		e.plugins.EmitBalanceChanged(ctx, owner.ID, previous, previous.Sub(inv.BalanceEffect()))
	}
	e.plugins.EmitClientInvoiceDeleted(ctx, inv)

	e.logger.Info("client invoice deleted",
		"invoice_id", inv.ID.String(),
		"number", inv.InvoiceNumber,
		"client_id", inv.ClientID.String(),
	)

	return nil
}

// ──────────────────────────────────────────────────
// Supplier invoices
// ──────────────────────────────────────────────────

// CloseSupplierInvoice turns a supplier draft into a numbered, closed
// invoice and adds its items to stock. Names not yet in stock get a new
// entry priced at the invoice's unit price.
func (e *Engine) CloseSupplierInvoice(ctx context.Context, d invoice.SupplierDraft) (*invoice.SupplierInvoice, error) {
	var (
		number int64
		inv    *invoice.SupplierInvoice
		report *stock.Report
		editor = EditorFrom(ctx)
	)

	p := e.newPipeline(OpCloseSupplierInvoice)

	p.then(StepValidate, func(context.Context) error {
		return validateSupplierDraft(&d)
	}, nil)

	p.then(StepLoad, func(ctx context.Context) error {
		_, err := e.store.GetSupplier(ctx, d.SupplierID)
		return storeFailure("get supplier", err)
	}, nil)

	p.then(StepNumber, func(ctx context.Context) error {
		var err error
		number, err = e.sequence.Next(ctx)
		if err != nil {
			return storeFailure("next invoice number", err)
		}
		e.plugins.EmitNumberIssued(ctx, number)
		return nil
	}, nil)

	p.then(StepPersist, func(ctx context.Context) error {
		inv = invoice.NewSupplierInvoice(d, number)
		return storeFailure("put supplier invoice", e.store.PutSupplierInvoice(ctx, inv))
	}, func(ctx context.Context) error {
		if inv == nil {
			return nil
		}
		return ignoreNotFound(e.store.DeleteSupplierInvoice(ctx, inv.ID))
	})

	p.then(StepStock, func(ctx context.Context) error {
		var err error
		report, err = e.reconciler.Apply(ctx, inv.ID, inv.Items, stock.Purchase, editor)
		e.afterReconcile(ctx, report)
		return storeFailure("reconcile stock", err)
	}, func(ctx context.Context) error {
		return e.undoReconcile(ctx, report, editor)
	})

	if err := p.run(ctx); err != nil {
		return nil, err
	}

	e.notify(ctx, store.CollectionSupplierInvoices, inv.ID.String(), watch.OpPut)
	e.plugins.EmitSupplierInvoiceClosed(ctx, inv)

	e.logger.Info("supplier invoice closed",
		"invoice_id", inv.ID.String(),
		"number", inv.InvoiceNumber,
		"supplier_id", inv.SupplierID.String(),
		"total", inv.Total().String(),
	)

	return inv, nil
}

// DeleteSupplierInvoice removes a closed supplier invoice and takes its
// items back out of stock. An absent invoice is a successful no-op.
func (e *Engine) DeleteSupplierInvoice(ctx context.Context, invID id.SupplierInvoiceID) error {
	var (
		inv    *invoice.SupplierInvoice
		report *stock.Report
		editor = EditorFrom(ctx)
	)

	p := e.newPipeline(OpDeleteSupplierInvoice)

	p.then(StepLoad, func(ctx context.Context) error {
		var err error
		inv, err = e.store.GetSupplierInvoice(ctx, invID)
		if IsNotFound(err) {
			e.logger.Debug("supplier invoice already absent", "invoice_id", invID.String())
			return errHalt
		}
		return storeFailure("get supplier invoice", err)
	}, nil)

	p.then(StepStock, func(ctx context.Context) error {
		var err error
		report, err = e.reconciler.Apply(ctx, inv.ID, inv.Items, stock.RevertPurchase, editor)
		e.afterReconcile(ctx, report)
		return storeFailure("reconcile stock", err)
	}, func(ctx context.Context) error {
		return e.undoReconcile(ctx, report, editor)
	})

	p.then(StepRemove, func(ctx context.Context) error {
		return storeFailure("delete supplier invoice", ignoreNotFound(e.store.DeleteSupplierInvoice(ctx, inv.ID)))
	}, nil)

	if err := p.run(ctx); err != nil {
		return err
	}
	if inv == nil {
		return nil
	}

	e.forgetMovements(ctx, inv.ID)
	e.notify(ctx, store.CollectionSupplierInvoices, inv.ID.String(), watch.OpDelete)
	e.plugins.EmitSupplierInvoiceDeleted(ctx, inv)

	e.logger.Info("supplier invoice deleted",
		"invoice_id", inv.ID.String(),
		"number", inv.InvoiceNumber,
		"supplier_id", inv.SupplierID.String(),
	)

	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// forgetMovements drops the movement keys of a removed invoice. A failure
// only leaves unused keys behind.
func (e *Engine) forgetMovements(ctx context.Context, ref id.ID) {
	if err := e.reconciler.Forget(ctx, ref); err != nil {
		e.logger.Warn("prune stock movements failed",
			"invoice_id", ref.String(),
			"error", err,
		)
	}
}

func (e *Engine) afterReconcile(ctx context.Context, report *stock.Report) {
	if report == nil {
		return
	}
	for _, productID := range report.Touched() {
		e.notify(ctx, store.CollectionStock, productID.String(), watch.OpUpdate)
	}
	e.plugins.EmitStockReconciled(ctx, report)
}

func (e *Engine) undoReconcile(ctx context.Context, report *stock.Report, editor string) error {
	if report == nil {
		return nil
	}
	undone, err := e.reconciler.Undo(ctx, report, editor)
	e.afterReconcile(ctx, undone)
	return err
}

func validateClientDraft(d *invoice.ClientDraft) error {
	if d.ClientID.IsNil() {
		return ValidationError{Field: "client_id", Message: "A client is required."}
	}
	if d.Type == "" {
		d.Type = invoice.TypeSale
	}
	d.Items = invoice.Compact(d.Items)

	if d.CashPayment.IsNegative() {
		return ValidationError{Field: "cash_payment", Message: "Cash payment cannot be negative.", Err: ErrInvalidPayment}
	}

	switch d.Type {
	case invoice.TypeSale:
		if len(d.Items) == 0 {
			return ValidationError{Field: "items", Message: "Add at least one product to the sale.", Err: ErrEmptyInvoice}
		}
	case invoice.TypePayment:
		if !d.CashPayment.IsPositive() {
			return ValidationError{Field: "cash_payment", Message: "Enter a payment amount greater than zero.", Err: ErrInvalidPayment}
		}
		if len(d.Items) > 0 {
			return ValidationError{Field: "items", Message: "A payment cannot carry products."}
		}
	default:
		return ValidationError{Field: "type", Message: fmt.Sprintf("Unknown invoice type %q.", string(d.Type))}
	}
	return nil
}

func validateSupplierDraft(d *invoice.SupplierDraft) error {
	if d.SupplierID.IsNil() {
		return ValidationError{Field: "supplier_id", Message: "A supplier is required."}
	}
	d.Items = invoice.Compact(d.Items)
	if len(d.Items) == 0 {
		return ValidationError{Field: "items", Message: "Add at least one product to the purchase.", Err: ErrEmptyInvoice}
	}
	return nil
}

func ignoreNotFound(err error) error {
	if err == nil || IsNotFound(err) {
		return nil
	}
	return err
}

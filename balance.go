package tally

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/store"
	"github.com/xraph/tally/watch"
)

// BalanceDrift is a client whose stored balance disagrees with its invoices.
type BalanceDrift struct {
	ClientID id.ClientID     `json:"client_id"`
	Name     string          `json:"name"`
	Stored   decimal.Decimal `json:"stored"`
	Expected decimal.Decimal `json:"expected"`
	Invoices int             `json:"invoices"`
}

// Difference is Stored − Expected.
func (d BalanceDrift) Difference() decimal.Decimal {
	return d.Stored.Sub(d.Expected)
}

// ExpectedBalance derives a balance from a client's invoices: the sum of each
// invoice's total minus its cash payment.
func ExpectedBalance(invoices []*invoice.ClientInvoice) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		total = total.Add(inv.BalanceEffect())
	}
	return total
}

// AuditBalances compares every client's stored balance with the one derived
// from its invoices. Lost concurrent updates and deletes interrupted after
// the balance step show up here.
func (e *Engine) AuditBalances(ctx context.Context) ([]BalanceDrift, error) {
	clients, err := e.store.ListClients(ctx)
	if err != nil {
		return nil, storeFailure("list clients", err)
	}
	invoices, err := e.store.ListClientInvoices(ctx, invoice.ListOpts{})
	if err != nil {
		return nil, storeFailure("list client invoices", err)
	}

	byClient := make(map[string][]*invoice.ClientInvoice, len(clients))
	for _, inv := range invoices {
		key := inv.ClientID.String()
		byClient[key] = append(byClient[key], inv)
	}

	var drifts []BalanceDrift
	for _, c := range clients {
		own := byClient[c.ID.String()]
		expected := ExpectedBalance(own)
		if expected.Equal(c.CurrentBalance) {
			continue
		}
		drifts = append(drifts, BalanceDrift{
			ClientID: c.ID,
			Name:     c.Name,
			Stored:   c.CurrentBalance,
			Expected: expected,
			Invoices: len(own),
		})
	}

	e.logger.Info("balances audited", "clients", len(clients), "drifts", len(drifts))
	return drifts, nil
}

// RepairBalance overwrites a client's balance with the value derived from its
// invoices and returns it.
func (e *Engine) RepairBalance(ctx context.Context, clientID id.ClientID) (decimal.Decimal, error) {
	c, err := e.store.GetClient(ctx, clientID)
	if err != nil {
		return decimal.Zero, storeFailure("get client", err)
	}
	invoices, err := e.store.ListClientInvoices(ctx, invoice.ListOpts{ClientID: clientID})
	if err != nil {
		return decimal.Zero, storeFailure("list client invoices", err)
	}

	expected := ExpectedBalance(invoices)
	if expected.Equal(c.CurrentBalance) {
		return expected, nil
	}
	if err := e.store.UpdateClientBalance(ctx, clientID, expected); err != nil {
		return decimal.Zero, storeFailure("update client balance", err)
	}

	e.notify(ctx, store.CollectionClients, clientID.String(), watch.OpUpdate)
	e.plugins.EmitBalanceChanged(ctx, clientID, c.CurrentBalance, expected)
	e.logger.Warn("client balance repaired",
		"client_id", clientID.String(),
		"from", c.CurrentBalance.String(),
		"to", expected.String(),
	)

	return expected, nil
}

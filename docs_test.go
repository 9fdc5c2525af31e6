package tally_test

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/store/memory"
)

// TestDocumentationExamples verifies that the examples in the package
// documentation compile and behave as described.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		// Memory store for the demo; use store/postgres or store/mongo in production.
		s := memory.New()

		engine := tally.New(s, tally.WithLogger(slog.Default()))

		ctx := context.Background()
		if err := engine.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer engine.Stop()

		c, err := engine.AddClient(ctx, "Carnicería Don Pepe")
		if err != nil {
			t.Fatal(err)
		}

		inv, err := engine.CloseClientInvoice(ctx, invoice.ClientDraft{
			ClientID: c.ID,
			Items: []invoice.Item{
				{Detail: "Vacío", Quantity: decimal.NewFromInt(2), Kilos: decimal.RequireFromString("3.5"), UnitPrice: decimal.NewFromInt(9000)},
			},
		})
		if err != nil {
			t.Fatal(err)
		}

		if inv.InvoiceNumber != 1000 {
			t.Errorf("first invoice number = %d, want 1000", inv.InvoiceNumber)
		}
		if want := decimal.NewFromInt(31500); !inv.FinalBalance.Equal(want) {
			t.Errorf("final balance = %s, want %s", inv.FinalBalance, want)
		}
		if got := tally.FormatCurrency(inv.FinalBalance); got != "$ 31.500,00" {
			t.Errorf("formatted balance = %q", got)
		}
	})

	t.Run("RetryExample", func(t *testing.T) {
		engine := tally.New(memory.New())
		ctx := context.Background()

		err := engine.DeleteClientInvoice(ctx, tally.ID{})
		if err != nil {
			t.Fatalf("deleting an absent invoice should succeed: %v", err)
		}
	})
}

func ExampleEngine_CloseClientInvoice() {
	ctx := context.Background()
	engine := tally.New(memory.New())
	if err := engine.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer engine.Stop()

	c, _ := engine.AddClient(ctx, "Almacén Ana")

	inv, err := engine.CloseClientInvoice(ctx, tally.ClientDraft{
		ClientID:    c.ID,
		Type:        tally.Payment,
		CashPayment: decimal.NewFromInt(300),
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(inv.InvoiceNumber, inv.FinalBalance)
	// Output: 1000 -300
}

// Package report derives sales and purchase figures from closed invoices.
//
// Reports are pure functions over snapshots; they never read the store.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/client"
	"github.com/xraph/tally/invoice"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod accepts "daily", "weekly" or "monthly". Empty means daily.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodDaily, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	}
	return "", fmt.Errorf("report: unknown period %q", s)
}

// Bucket is one bar of a series. Start is inclusive, End exclusive.
type Bucket struct {
	Label     string          `json:"label"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Sales     decimal.Decimal `json:"sales"`
	Purchases decimal.Decimal `json:"purchases"`
}

func (b Bucket) contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

var (
	weekdays = [...]string{"DOM", "LUN", "MAR", "MIÉ", "JUE", "VIE", "SÁB"}
	months   = [...]string{"ENE", "FEB", "MAR", "ABR", "MAY", "JUN", "JUL", "AGO", "SEP", "OCT", "NOV", "DIC"}
)

// Series buckets invoices ending at now, in now's location:
//
//   - daily: the last 7 calendar days, today included, labelled by weekday
//   - weekly: the last 28 days as four 7-day windows, SEM 1 oldest
//   - monthly: the last 6 calendar months, labelled by month
//
// Sales are invoice totals of client invoices; purchases are the item totals
// of supplier invoices. Invoices outside every bucket are ignored.
func Series(period Period, now time.Time, clientInvoices []*invoice.ClientInvoice, supplierInvoices []*invoice.SupplierInvoice) ([]Bucket, error) {
	var buckets []Bucket

	today := startOfDay(now)
	switch period {
	case PeriodDaily, "":
		for i := 6; i >= 0; i-- {
			start := today.AddDate(0, 0, -i)
			buckets = append(buckets, Bucket{
				Label: weekdays[start.Weekday()],
				Start: start,
				End:   start.AddDate(0, 0, 1),
			})
		}
	case PeriodWeekly:
		end := today.AddDate(0, 0, 1)
		for i := 3; i >= 0; i-- {
			buckets = append(buckets, Bucket{
				Label: fmt.Sprintf("SEM %d", 4-i),
				Start: end.AddDate(0, 0, -(i+1)*7),
				End:   end.AddDate(0, 0, -i*7),
			})
		}
	case PeriodMonthly:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		for i := 5; i >= 0; i-- {
			start := first.AddDate(0, -i, 0)
			buckets = append(buckets, Bucket{
				Label: months[start.Month()-1],
				Start: start,
				End:   start.AddDate(0, 1, 0),
			})
		}
	default:
		return nil, fmt.Errorf("report: unknown period %q", period)
	}

	for i := range buckets {
		buckets[i].Sales = decimal.Zero
		buckets[i].Purchases = decimal.Zero
	}

	for _, inv := range clientInvoices {
		if b := find(buckets, inv.Date.In(now.Location())); b != nil {
			b.Sales = b.Sales.Add(inv.InvoiceTotal)
		}
	}
	for _, inv := range supplierInvoices {
		if b := find(buckets, inv.Date.In(now.Location())); b != nil {
			b.Purchases = b.Purchases.Add(inv.Total())
		}
	}

	return buckets, nil
}

func find(buckets []Bucket, t time.Time) *Bucket {
	for i := range buckets {
		if buckets[i].contains(t) {
			return &buckets[i]
		}
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Summary holds the all-time figures.
type Summary struct {
	Sales     decimal.Decimal `json:"sales"`
	Purchases decimal.Decimal `json:"purchases"`
	Margin    decimal.Decimal `json:"margin"`
	Debt      decimal.Decimal `json:"debt"`
}

// MarginPercent is the margin over sales as a percentage with one decimal,
// zero when nothing was sold.
func (s Summary) MarginPercent() decimal.Decimal {
	if !s.Sales.IsPositive() {
		return decimal.Zero
	}
	return s.Margin.Div(s.Sales).Mul(decimal.NewFromInt(100)).Round(1)
}

// Totals sums every invoice and client balance. Debt is the sum of client
// balances, so clients in credit lower it.
func Totals(clients []*client.Client, clientInvoices []*invoice.ClientInvoice, supplierInvoices []*invoice.SupplierInvoice) Summary {
	s := Summary{
		Sales:     decimal.Zero,
		Purchases: decimal.Zero,
		Debt:      decimal.Zero,
	}
	for _, inv := range clientInvoices {
		s.Sales = s.Sales.Add(inv.InvoiceTotal)
	}
	for _, inv := range supplierInvoices {
		s.Purchases = s.Purchases.Add(inv.Total())
	}
	for _, c := range clients {
		s.Debt = s.Debt.Add(c.CurrentBalance)
	}
	s.Margin = s.Sales.Sub(s.Purchases)
	return s
}

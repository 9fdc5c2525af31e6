package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
)

// Status is the outcome of one item in a reconciliation.
type Status string

const (
	StatusApplied        Status = "applied"
	StatusCreated        Status = "created"
	StatusDuplicate      Status = "duplicate"
	StatusSkippedBlank   Status = "skipped_blank"
	StatusSkippedUnknown Status = "skipped_unknown"
	StatusFailed         Status = "failed"
)

// Outcome records what happened to one invoice item. Key and the deltas are
// set for items that moved stock.
type Outcome struct {
	Item      invoice.Item      `json:"item"`
	ProductID id.StockProductID `json:"product_id,omitempty"`
	Status    Status            `json:"status"`
	Key       string            `json:"key,omitempty"`
	Quantity  decimal.Decimal   `json:"quantity"`
	Kilos     decimal.Decimal   `json:"kilos"`
	Err       error             `json:"-"`
}

// Changed reports whether the item moved stock during this run.
func (o Outcome) Changed() bool {
	return o.Status == StatusApplied || o.Status == StatusCreated
}

// Report lists the per-item outcomes of one Apply call.
type Report struct {
	Ref      id.ID     `json:"ref"`
	Kind     Kind      `json:"kind"`
	Outcomes []Outcome `json:"outcomes"`
}

// Failed returns the outcomes that could not be applied.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Changed returns the items that moved stock during this run.
func (r *Report) Changed() []invoice.Item {
	var out []invoice.Item
	for _, o := range r.Outcomes {
		if o.Changed() {
			out = append(out, o.Item)
		}
	}
	return out
}

// Touched returns the ids of every stock entry this run moved or created.
func (r *Report) Touched() []id.StockProductID {
	var out []id.StockProductID
	for _, o := range r.Outcomes {
		if o.Changed() {
			out = append(out, o.ProductID)
		}
	}
	return out
}

// Err joins the failures, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("stock: item %q: %w", o.Item.Detail, o.Err))
	}
	return errors.Join(errs...)
}

// MovementKey identifies the effect of one item of one invoice in one
// direction. Items without an id fall back to their position.
func MovementKey(ref id.ID, item invoice.Item, pos int, kind Kind) string {
	itemKey := item.ID.String()
	if itemKey == "" {
		itemKey = "#" + strconv.Itoa(pos)
	}
	return KeyPrefix(ref) + itemKey + "/" + string(kind)
}

// KeyPrefix is the common prefix of every movement key of the invoice ref.
func KeyPrefix(ref id.ID) string {
	return ref.String() + "/"
}

// Reconciler applies invoice items to stock. Each item is an independent,
// idempotent write; there is no cross-item transaction.
type Reconciler struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler returns a reconciler writing through store.
func NewReconciler(store Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Apply moves stock for every named item of the invoice identified by ref.
// It keeps going after a failed item and reports every outcome; the returned
// error joins the failures.
func (r *Reconciler) Apply(ctx context.Context, ref id.ID, items []invoice.Item, kind Kind, editor string) (*Report, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	snapshot, err := r.store.ListStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock: load snapshot: %w", err)
	}

	idx := NewIndex(snapshot)
	report := &Report{Ref: ref, Kind: kind, Outcomes: make([]Outcome, 0, len(items))}

	for pos, item := range items {
		if err := ctx.Err(); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Item: item, Status: StatusFailed, Err: err})
			continue
		}
		report.Outcomes = append(report.Outcomes, r.applyItem(ctx, idx, ref, pos, item, kind, editor))
	}

	if err := report.Err(); err != nil {
		r.logger.Warn("stock reconciliation incomplete",
			"ref", ref.String(),
			"kind", string(kind),
			"failed", len(report.Failed()),
			"items", len(items),
		)
		return report, err
	}

	return report, nil
}

func (r *Reconciler) applyItem(ctx context.Context, idx *Index, ref id.ID, pos int, item invoice.Item, kind Kind, editor string) Outcome {
	if item.Blank() {
		return Outcome{Item: item, Status: StatusSkippedBlank}
	}

	mult := kind.Multiplier()
	key := MovementKey(ref, item, pos, kind)
	now := r.now()

	productID, found := idx.Lookup(item.Detail)
	switch {
	case found:
		m := &Movement{
			Key:       key,
			ProductID: productID,
			Quantity:  item.Quantity.Mul(mult),
			Kilos:     item.Kilos.Mul(mult),
			EditedBy:  editor,
			EditedAt:  now,
		}
		if kind == Purchase {
			price := item.UnitPrice
			m.UnitPrice = &price
		}

		applied, err := r.store.ApplyMovement(ctx, m)
		if err != nil {
			return Outcome{Item: item, ProductID: productID, Status: StatusFailed, Err: err}
		}
		if !applied {
			return Outcome{Item: item, ProductID: productID, Status: StatusDuplicate}
		}
		return Outcome{
			Item:      item,
			ProductID: productID,
			Status:    StatusApplied,
			Key:       key,
			Quantity:  m.Quantity,
			Kilos:     m.Kilos,
		}

	case kind.Creates():
		p := NewProduct(item.Detail, item.UnitPrice, editor)
		p.Quantity = item.Quantity.Mul(mult)
		p.Kilos = item.Kilos.Mul(mult)
		p.LastEditedAt = now
		p.Movements = []string{key}

		if err := r.store.PutStockProduct(ctx, p); err != nil {
			return Outcome{Item: item, Status: StatusFailed, Err: err}
		}
		idx.Add(p)
		return Outcome{
			Item:      item,
			ProductID: p.ID,
			Status:    StatusCreated,
			Key:       key,
			Quantity:  p.Quantity,
			Kilos:     p.Kilos,
		}

	default:
		r.logger.Debug("stock item dropped, unknown product",
			"ref", ref.String(),
			"kind", string(kind),
			"detail", item.Detail,
		)
		return Outcome{Item: item, Status: StatusSkippedUnknown}
	}
}

// Undo takes back every movement a previous Apply made. Entries created by
// that run stay in place with the created amounts removed; overwritten unit
// prices are not restored. Undo is itself safe to repeat.
func (r *Reconciler) Undo(ctx context.Context, done *Report, editor string) (*Report, error) {
	if done == nil {
		return nil, nil //nolint:nilnil // nothing was applied
	}

	report := &Report{Ref: done.Ref, Kind: done.Kind.Inverse()}
	now := r.now()

	for _, o := range done.Outcomes {
		if !o.Changed() {
			continue
		}

		m := &Movement{
			Key:       o.Key,
			ProductID: o.ProductID,
			Quantity:  o.Quantity.Neg(),
			Kilos:     o.Kilos.Neg(),
			EditedBy:  editor,
			EditedAt:  now,
			Undo:      true,
		}

		out := Outcome{Item: o.Item, ProductID: o.ProductID, Key: o.Key, Quantity: m.Quantity, Kilos: m.Kilos}
		undone, err := r.store.ApplyMovement(ctx, m)
		switch {
		case err != nil:
			out.Status, out.Err = StatusFailed, err
		case !undone:
			out.Status = StatusDuplicate
		default:
			out.Status = StatusApplied
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	return report, report.Err()
}

// Forget drops the movement keys recorded for ref. Call it once the invoice
// is gone: nothing can re-run its movements after that.
func (r *Reconciler) Forget(ctx context.Context, ref id.ID) error {
	if err := r.store.PruneMovements(ctx, ref.String()); err != nil {
		return fmt.Errorf("stock: forget %s: %w", ref.String(), err)
	}
	return nil
}

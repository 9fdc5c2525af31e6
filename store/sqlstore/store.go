// Package sqlstore is a store.Store on gorm. It backs the postgres and
// sqlite packages, which only add the dialect and the error classifier.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xraph/tally"
	"github.com/xraph/tally/client"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/sequence"
	"github.com/xraph/tally/stock"
	tallystore "github.com/xraph/tally/store"
	"github.com/xraph/tally/supplier"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Classifier extracts the backend's error code from a driver error, or ""
// when there is none.
type Classifier func(err error) string

// CodeConflict is the code a Classifier reports for a serialization failure.
// The counter treats it as a lost race.
const CodeConflict = "40001"

// Option configures a Store.
type Option func(*Store)

// WithRowLocks makes stock movements lock the product row (SELECT ... FOR
// UPDATE). Enable it for databases that support it.
func WithRowLocks() Option {
	return func(s *Store) { s.lockRows = true }
}

// WithClassifier sets the error classifier.
func WithClassifier(fn Classifier) Option {
	return func(s *Store) { s.classify = fn }
}

// WithName sets the name used in error messages.
func WithName(name string) Option {
	return func(s *Store) { s.name = name }
}

// Store implements store.Store on a gorm database.
type Store struct {
	db       *gorm.DB
	name     string
	lockRows bool
	classify Classifier
}

// New wraps db.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:       db,
		name:     "sql",
		classify: func(error) string { return "" },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying gorm database for direct access.
func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&clientRow{},
		&supplierRow{},
		&productRow{},
		&movementRow{},
		&clientInvoiceRow{},
		&supplierInvoiceRow{},
		&counterRow{},
	)
	if err != nil {
		return fmt.Errorf("tally/%s: %w: %w", s.name, tally.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.wrap("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return s.wrap("ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ==================== Client Store ====================

func (s *Store) PutClient(ctx context.Context, c *client.Client) error {
	return s.upsert(ctx, toClientRow(c), "put client")
}

func (s *Store) GetClient(ctx context.Context, clientID id.ClientID) (*client.Client, error) {
	var row clientRow
	if err := s.first(ctx, &row, clientID.String(), tally.ErrClientNotFound, "get client"); err != nil {
		return nil, err
	}
	return row.toClient(), nil
}

func (s *Store) ListClients(ctx context.Context) ([]*client.Client, error) {
	var rows []clientRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, s.wrap("list clients", err)
	}
	out := make([]*client.Client, len(rows))
	for i := range rows {
		out[i] = rows[i].toClient()
	}
	return out, nil
}

func (s *Store) UpdateClientBalance(ctx context.Context, clientID id.ClientID, balance decimal.Decimal) error {
	result := s.db.WithContext(ctx).
		Model(&clientRow{}).
		Where("id = ?", clientID.String()).
		Updates(map[string]any{
			"current_balance": balance,
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return s.wrap("update client balance", result.Error)
	}
	if result.RowsAffected == 0 {
		return tally.ErrClientNotFound
	}
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	return s.delete(ctx, &clientRow{}, clientID.String(), tally.ErrClientNotFound, "delete client")
}

// ==================== Supplier Store ====================

func (s *Store) PutSupplier(ctx context.Context, sup *supplier.Supplier) error {
	return s.upsert(ctx, toSupplierRow(sup), "put supplier")
}

func (s *Store) GetSupplier(ctx context.Context, supplierID id.SupplierID) (*supplier.Supplier, error) {
	var row supplierRow
	if err := s.first(ctx, &row, supplierID.String(), tally.ErrSupplierNotFound, "get supplier"); err != nil {
		return nil, err
	}
	return row.toSupplier(), nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]*supplier.Supplier, error) {
	var rows []supplierRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, s.wrap("list suppliers", err)
	}
	out := make([]*supplier.Supplier, len(rows))
	for i := range rows {
		out[i] = rows[i].toSupplier()
	}
	return out, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, supplierID id.SupplierID) error {
	return s.delete(ctx, &supplierRow{}, supplierID.String(), tally.ErrSupplierNotFound, "delete supplier")
}

// ==================== Stock Store ====================

// PutStockProduct replaces the product and its recorded movement keys.
func (s *Store) PutStockProduct(ctx context.Context, p *stock.Product) error {
	row := toProductRow(p)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Movements").Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", row.ID).Delete(&movementRow{}).Error; err != nil {
			return err
		}
		if len(p.Movements) == 0 {
			return nil
		}
		now := time.Now().UTC()
		movements := make([]movementRow, len(p.Movements))
		for i, key := range p.Movements {
			movements[i] = movementRow{ProductID: row.ID, MovementKey: key, AppliedAt: now}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&movements).Error
	})
	if err != nil {
		return s.wrap("put stock product", err)
	}
	return nil
}

func (s *Store) GetStockProduct(ctx context.Context, productID id.StockProductID) (*stock.Product, error) {
	var row productRow
	err := s.db.WithContext(ctx).Preload("Movements").First(&row, "id = ?", productID.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, tally.ErrStockProductNotFound
	}
	if err != nil {
		return nil, s.wrap("get stock product", err)
	}
	return row.toProduct(), nil
}

func (s *Store) ListStock(ctx context.Context) ([]*stock.Product, error) {
	var rows []productRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, s.wrap("list stock", err)
	}
	out := make([]*stock.Product, len(rows))
	for i := range rows {
		out[i] = rows[i].toProduct()
	}
	return out, nil
}

// PruneMovements deletes the movement rows of ref. The prefix is escaped so
// the "_" in type ids is not a LIKE wildcard.
func (s *Store) PruneMovements(ctx context.Context, ref string) error {
	pattern := likeEscaper.Replace(ref+"/") + "%"
	err := s.db.WithContext(ctx).
		Where(`movement_key LIKE ? ESCAPE '\'`, pattern).
		Delete(&movementRow{}).Error
	if err != nil {
		return s.wrap("prune movements", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (s *Store) DeleteStockProduct(ctx context.Context, productID id.StockProductID) error {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID.String()).Delete(&movementRow{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&productRow{}, "id = ?", productID.String())
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return s.wrap("delete stock product", err)
	}
	if affected == 0 {
		return tally.ErrStockProductNotFound
	}
	return nil
}

// ApplyMovement folds the movement inside one transaction: the product row
// is read (and locked when row locks are on), the key's presence decides
// whether the movement applies, and the new amounts are written back
// computed in decimal arithmetic.
func (s *Store) ApplyMovement(ctx context.Context, m *stock.Movement) (bool, error) {
	productID := m.ProductID.String()
	applied := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		read := tx
		if s.lockRows {
			read = read.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var row productRow
		if err := read.First(&row, "id = ?", productID).Error; err != nil {
			return err
		}

		var recorded int64
		err := tx.Model(&movementRow{}).
			Where("product_id = ? AND movement_key = ?", productID, m.Key).
			Count(&recorded).Error
		if err != nil {
			return err
		}

		p := row.toProduct()
		if recorded > 0 {
			p.Movements = []string{m.Key}
		}
		if !p.Fold(m) {
			return nil
		}

		if m.Undo {
			err = tx.Where("product_id = ? AND movement_key = ?", productID, m.Key).Delete(&movementRow{}).Error
		} else {
			err = tx.Create(&movementRow{ProductID: productID, MovementKey: m.Key, AppliedAt: m.EditedAt}).Error
		}
		if err != nil {
			return err
		}

		err = tx.Model(&productRow{}).Where("id = ?", productID).Updates(map[string]any{
			"quantity":       p.Quantity,
			"kilos":          p.Kilos,
			"unit_price":     p.UnitPrice,
			"last_edited_by": p.LastEditedBy,
			"last_edited_at": p.LastEditedAt,
			"updated_at":     p.UpdatedAt,
		}).Error
		if err != nil {
			return err
		}

		applied = true
		return nil
	})

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, tally.ErrStockProductNotFound
	}
	if err != nil {
		return false, s.wrap("apply movement", err)
	}
	return applied, nil
}

// ==================== Invoice Store ====================

func (s *Store) PutClientInvoice(ctx context.Context, inv *invoice.ClientInvoice) error {
	return s.upsert(ctx, toClientInvoiceRow(inv), "put client invoice")
}

func (s *Store) GetClientInvoice(ctx context.Context, invID id.ClientInvoiceID) (*invoice.ClientInvoice, error) {
	var row clientInvoiceRow
	if err := s.first(ctx, &row, invID.String(), tally.ErrClientInvoiceNotFound, "get client invoice"); err != nil {
		return nil, err
	}
	return row.toInvoice(), nil
}

func (s *Store) ListClientInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.ClientInvoice, error) {
	q := applyListOpts(s.db.WithContext(ctx), opts)
	if !opts.ClientID.IsNil() {
		q = q.Where("client_id = ?", opts.ClientID.String())
	}

	var rows []clientInvoiceRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, s.wrap("list client invoices", err)
	}
	out := make([]*invoice.ClientInvoice, len(rows))
	for i := range rows {
		out[i] = rows[i].toInvoice()
	}
	return out, nil
}

func (s *Store) DeleteClientInvoice(ctx context.Context, invID id.ClientInvoiceID) error {
	return s.delete(ctx, &clientInvoiceRow{}, invID.String(), tally.ErrClientInvoiceNotFound, "delete client invoice")
}

func (s *Store) PutSupplierInvoice(ctx context.Context, inv *invoice.SupplierInvoice) error {
	return s.upsert(ctx, toSupplierInvoiceRow(inv), "put supplier invoice")
}

func (s *Store) GetSupplierInvoice(ctx context.Context, invID id.SupplierInvoiceID) (*invoice.SupplierInvoice, error) {
	var row supplierInvoiceRow
	if err := s.first(ctx, &row, invID.String(), tally.ErrSupplierInvoiceNotFound, "get supplier invoice"); err != nil {
		return nil, err
	}
	return row.toInvoice(), nil
}

func (s *Store) ListSupplierInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.SupplierInvoice, error) {
	q := applyListOpts(s.db.WithContext(ctx), opts)
	if !opts.SupplierID.IsNil() {
		q = q.Where("supplier_id = ?", opts.SupplierID.String())
	}

	var rows []supplierInvoiceRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, s.wrap("list supplier invoices", err)
	}
	out := make([]*invoice.SupplierInvoice, len(rows))
	for i := range rows {
		out[i] = rows[i].toInvoice()
	}
	return out, nil
}

func (s *Store) DeleteSupplierInvoice(ctx context.Context, invID id.SupplierInvoiceID) error {
	return s.delete(ctx, &supplierInvoiceRow{}, invID.String(), tally.ErrSupplierInvoiceNotFound, "delete supplier invoice")
}

// ==================== Sequence Store ====================

// MutateCounter is a compare-and-swap on next_number. The first write is an
// insert that does nothing on conflict; an insert or update that touches no
// row lost the race and returns sequence.ErrConflict.
func (s *Store) MutateCounter(ctx context.Context, name string, fn sequence.MutateFunc) error {
	db := s.db.WithContext(ctx)

	var cur *sequence.Counter
	var row counterRow
	err := db.First(&row, "name = ?", name).Error
	switch {
	case err == nil:
		cur = row.toCounter()
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return s.counterErr("read counter", err)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	var result *gorm.DB
	if cur == nil {
		result = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&counterRow{
			Name:       name,
			NextNumber: next.NextNumber,
			UpdatedAt:  next.UpdatedAt,
		})
	} else {
		result = db.Model(&counterRow{}).
			Where("name = ? AND next_number = ?", name, cur.NextNumber).
			Updates(map[string]any{
				"next_number": next.NextNumber,
				"updated_at":  next.UpdatedAt,
			})
	}
	if result.Error != nil {
		return s.counterErr("write counter", result.Error)
	}
	if result.RowsAffected == 0 {
		return sequence.ErrConflict
	}
	return nil
}

func (s *Store) GetCounter(ctx context.Context, name string) (*sequence.Counter, error) {
	var row counterRow
	if err := s.first(ctx, &row, name, sequence.ErrCounterNotFound, "get counter"); err != nil {
		return nil, err
	}
	return row.toCounter(), nil
}

// ==================== Helpers ====================

func (s *Store) upsert(ctx context.Context, row any, op string) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
		return s.wrap(op, err)
	}
	return nil
}

// first loads a row by primary key. Counters are keyed by name, everything
// else by id.
func (s *Store) first(ctx context.Context, row any, key string, notFound error, op string) error {
	column := "id = ?"
	if _, ok := row.(*counterRow); ok {
		column = "name = ?"
	}
	err := s.db.WithContext(ctx).First(row, column, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if err != nil {
		return s.wrap(op, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, model any, key string, notFound error, op string) error {
	result := s.db.WithContext(ctx).Delete(model, "id = ?", key)
	if result.Error != nil {
		return s.wrap(op, result.Error)
	}
	if result.RowsAffected == 0 {
		return notFound
	}
	return nil
}

func applyListOpts(q *gorm.DB, opts invoice.ListOpts) *gorm.DB {
	if !opts.Start.IsZero() {
		q = q.Where("date >= ?", opts.Start)
	}
	if !opts.End.IsZero() {
		q = q.Where("date <= ?", opts.End)
	}
	q = q.Order("invoice_number")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	return q
}

func (s *Store) wrap(op string, err error) error {
	return &tally.StoreError{
		Op:   op,
		Code: s.classify(err),
		Err:  fmt.Errorf("tally/%s: %s: %w", s.name, op, err),
	}
}

func (s *Store) counterErr(op string, err error) error {
	if s.classify(err) == CodeConflict {
		return sequence.ErrConflict
	}
	return s.wrap(op, err)
}

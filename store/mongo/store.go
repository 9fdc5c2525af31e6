// Package mongo is a store.Store backed by MongoDB. Each collection maps to
// one MongoDB collection; amounts are Decimal128 and stock movements are
// single-document conditional updates.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

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

// Store implements store.Store on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	owned  bool
}

// New wraps an existing database handle. Close leaves the client connected.
func New(db *mongo.Database) *Store {
	return &Store{client: db.Client(), db: db}
}

// Open connects to uri and uses the named database. Close disconnects.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	c, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("tally/mongo: connect: %w", err)
	}
	if err := c.Ping(ctx, readpref.Primary()); err != nil {
		_ = c.Disconnect(ctx)
		return nil, storeErr("ping", err)
	}
	return &Store{client: c, db: c.Database(database), owned: true}, nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

func (s *Store) col(name string) *mongo.Collection { return s.db.Collection(name) }

// Migrate creates indexes for all tally collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.col(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("tally/mongo: migrate %s indexes: %w: %w", col, tally.ErrMigrationFailed, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// Close disconnects when the store opened the connection itself.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Client Store ====================

func (s *Store) PutClient(ctx context.Context, c *client.Client) error {
	return s.replace(ctx, tallystore.CollectionClients, c.ID.String(), toClientModel(c), "put client")
}

func (s *Store) GetClient(ctx context.Context, clientID id.ClientID) (*client.Client, error) {
	var m clientModel
	if err := s.findByID(ctx, tallystore.CollectionClients, clientID.String(), &m, tally.ErrClientNotFound, "get client"); err != nil {
		return nil, err
	}
	return fromClientModel(&m), nil
}

func (s *Store) ListClients(ctx context.Context) ([]*client.Client, error) {
	var models []clientModel
	if err := s.findAll(ctx, tallystore.CollectionClients, bson.M{}, byCreation(), &models, "list clients"); err != nil {
		return nil, err
	}
	out := make([]*client.Client, len(models))
	for i := range models {
		out[i] = fromClientModel(&models[i])
	}
	return out, nil
}

func (s *Store) UpdateClientBalance(ctx context.Context, clientID id.ClientID, balance decimal.Decimal) error {
	res, err := s.col(tallystore.CollectionClients).UpdateOne(ctx,
		bson.M{"_id": clientID.String()},
		bson.M{"$set": bson.M{
			"current_balance": toDec(balance),
			"updated_at":      time.Now().UTC(),
		}},
	)
	if err != nil {
		return storeErr("update client balance", err)
	}
	if res.MatchedCount == 0 {
		return tally.ErrClientNotFound
	}
	return nil
}

func (s *Store) DeleteClient(ctx context.Context, clientID id.ClientID) error {
	return s.deleteByID(ctx, tallystore.CollectionClients, clientID.String(), tally.ErrClientNotFound, "delete client")
}

// ==================== Supplier Store ====================

func (s *Store) PutSupplier(ctx context.Context, sup *supplier.Supplier) error {
	return s.replace(ctx, tallystore.CollectionSuppliers, sup.ID.String(), toSupplierModel(sup), "put supplier")
}

func (s *Store) GetSupplier(ctx context.Context, supplierID id.SupplierID) (*supplier.Supplier, error) {
	var m supplierModel
	if err := s.findByID(ctx, tallystore.CollectionSuppliers, supplierID.String(), &m, tally.ErrSupplierNotFound, "get supplier"); err != nil {
		return nil, err
	}
	return fromSupplierModel(&m), nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]*supplier.Supplier, error) {
	var models []supplierModel
	if err := s.findAll(ctx, tallystore.CollectionSuppliers, bson.M{}, byCreation(), &models, "list suppliers"); err != nil {
		return nil, err
	}
	out := make([]*supplier.Supplier, len(models))
	for i := range models {
		out[i] = fromSupplierModel(&models[i])
	}
	return out, nil
}

func (s *Store) DeleteSupplier(ctx context.Context, supplierID id.SupplierID) error {
	return s.deleteByID(ctx, tallystore.CollectionSuppliers, supplierID.String(), tally.ErrSupplierNotFound, "delete supplier")
}

// ==================== Stock Store ====================

func (s *Store) PutStockProduct(ctx context.Context, p *stock.Product) error {
	return s.replace(ctx, tallystore.CollectionStock, p.ID.String(), toProductModel(p), "put stock product")
}

func (s *Store) GetStockProduct(ctx context.Context, productID id.StockProductID) (*stock.Product, error) {
	var m productModel
	if err := s.findByID(ctx, tallystore.CollectionStock, productID.String(), &m, tally.ErrStockProductNotFound, "get stock product"); err != nil {
		return nil, err
	}
	return fromProductModel(&m), nil
}

func (s *Store) ListStock(ctx context.Context) ([]*stock.Product, error) {
	var models []productModel
	opts := byCreation().SetProjection(bson.M{"movements": 0})
	if err := s.findAll(ctx, tallystore.CollectionStock, bson.M{}, opts, &models, "list stock"); err != nil {
		return nil, err
	}
	out := make([]*stock.Product, len(models))
	for i := range models {
		out[i] = fromProductModel(&models[i])
	}
	return out, nil
}

// PruneMovements pulls the keys of ref from every product that holds one.
func (s *Store) PruneMovements(ctx context.Context, ref string) error {
	prefix := bson.Regex{Pattern: "^" + regexp.QuoteMeta(ref+"/")}
	_, err := s.col(tallystore.CollectionStock).UpdateMany(ctx,
		bson.M{"movements": prefix},
		bson.M{"$pull": bson.M{"movements": prefix}},
	)
	if err != nil {
		return storeErr("prune movements", err)
	}
	return nil
}

func (s *Store) DeleteStockProduct(ctx context.Context, productID id.StockProductID) error {
	return s.deleteByID(ctx, tallystore.CollectionStock, productID.String(), tally.ErrStockProductNotFound, "delete stock product")
}

// ApplyMovement folds the movement with one conditional update: the filter
// requires the key to be absent (present for an undo), so a repeated
// movement matches nothing.
func (s *Store) ApplyMovement(ctx context.Context, m *stock.Movement) (bool, error) {
	filter := bson.M{"_id": m.ProductID.String()}
	set := bson.M{
		"last_edited_by": m.EditedBy,
		"last_edited_at": m.EditedAt,
		"updated_at":     m.EditedAt,
	}
	if m.UnitPrice != nil {
		set["unit_price"] = toDec(*m.UnitPrice)
	}
	update := bson.M{
		"$inc": bson.M{
			"quantity": toDec(m.Quantity),
			"kilos":    toDec(m.Kilos),
		},
		"$set": set,
	}

	if m.Undo {
		filter["movements"] = m.Key
		update["$pull"] = bson.M{"movements": m.Key}
	} else {
		filter["movements"] = bson.M{"$ne": m.Key}
		update["$push"] = bson.M{"movements": m.Key}
	}

	res, err := s.col(tallystore.CollectionStock).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, storeErr("apply movement", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := s.col(tallystore.CollectionStock).CountDocuments(ctx, bson.M{"_id": m.ProductID.String()})
	if err != nil {
		return false, storeErr("apply movement", err)
	}
	if n == 0 {
		return false, tally.ErrStockProductNotFound
	}
	return false, nil
}

// ==================== Invoice Store ====================

func (s *Store) PutClientInvoice(ctx context.Context, inv *invoice.ClientInvoice) error {
	return s.replace(ctx, tallystore.CollectionClientInvoices, inv.ID.String(), toClientInvoiceModel(inv), "put client invoice")
}

func (s *Store) GetClientInvoice(ctx context.Context, invID id.ClientInvoiceID) (*invoice.ClientInvoice, error) {
	var m clientInvoiceModel
	if err := s.findByID(ctx, tallystore.CollectionClientInvoices, invID.String(), &m, tally.ErrClientInvoiceNotFound, "get client invoice"); err != nil {
		return nil, err
	}
	return fromClientInvoiceModel(&m), nil
}

func (s *Store) ListClientInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.ClientInvoice, error) {
	filter := dateFilter(opts)
	if !opts.ClientID.IsNil() {
		filter["client_id"] = opts.ClientID.String()
	}

	var models []clientInvoiceModel
	if err := s.findAll(ctx, tallystore.CollectionClientInvoices, filter, byNumber(opts.Limit), &models, "list client invoices"); err != nil {
		return nil, err
	}
	out := make([]*invoice.ClientInvoice, len(models))
	for i := range models {
		out[i] = fromClientInvoiceModel(&models[i])
	}
	return out, nil
}

func (s *Store) DeleteClientInvoice(ctx context.Context, invID id.ClientInvoiceID) error {
	return s.deleteByID(ctx, tallystore.CollectionClientInvoices, invID.String(), tally.ErrClientInvoiceNotFound, "delete client invoice")
}

func (s *Store) PutSupplierInvoice(ctx context.Context, inv *invoice.SupplierInvoice) error {
	return s.replace(ctx, tallystore.CollectionSupplierInvoices, inv.ID.String(), toSupplierInvoiceModel(inv), "put supplier invoice")
}

func (s *Store) GetSupplierInvoice(ctx context.Context, invID id.SupplierInvoiceID) (*invoice.SupplierInvoice, error) {
	var m supplierInvoiceModel
	if err := s.findByID(ctx, tallystore.CollectionSupplierInvoices, invID.String(), &m, tally.ErrSupplierInvoiceNotFound, "get supplier invoice"); err != nil {
		return nil, err
	}
	return fromSupplierInvoiceModel(&m), nil
}

func (s *Store) ListSupplierInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.SupplierInvoice, error) {
	filter := dateFilter(opts)
	if !opts.SupplierID.IsNil() {
		filter["supplier_id"] = opts.SupplierID.String()
	}

	var models []supplierInvoiceModel
	if err := s.findAll(ctx, tallystore.CollectionSupplierInvoices, filter, byNumber(opts.Limit), &models, "list supplier invoices"); err != nil {
		return nil, err
	}
	out := make([]*invoice.SupplierInvoice, len(models))
	for i := range models {
		out[i] = fromSupplierInvoiceModel(&models[i])
	}
	return out, nil
}

func (s *Store) DeleteSupplierInvoice(ctx context.Context, invID id.SupplierInvoiceID) error {
	return s.deleteByID(ctx, tallystore.CollectionSupplierInvoices, invID.String(), tally.ErrSupplierInvoiceNotFound, "delete supplier invoice")
}

// ==================== Sequence Store ====================

// MutateCounter is a compare-and-swap on next_number. The first write is an
// insert; losing either race to another writer returns sequence.ErrConflict.
func (s *Store) MutateCounter(ctx context.Context, name string, fn sequence.MutateFunc) error {
	col := s.col(tallystore.CollectionCounters)

	var cur *sequence.Counter
	var m counterModel
	err := col.FindOne(ctx, bson.M{"_id": name}).Decode(&m)
	switch {
	case err == nil:
		cur = fromCounterModel(&m)
	case isNoDocuments(err):
	default:
		return storeErr("read counter", err)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}

	if cur == nil {
		_, err := col.InsertOne(ctx, counterModel{Name: name, NextNumber: next.NextNumber, UpdatedAt: next.UpdatedAt})
		if mongo.IsDuplicateKeyError(err) {
			return sequence.ErrConflict
		}
		if err != nil {
			return storeErr("create counter", err)
		}
		return nil
	}

	res, err := col.UpdateOne(ctx,
		bson.M{"_id": name, "next_number": cur.NextNumber},
		bson.M{"$set": bson.M{"next_number": next.NextNumber, "updated_at": next.UpdatedAt}},
	)
	if err != nil {
		return storeErr("update counter", err)
	}
	if res.MatchedCount == 0 {
		return sequence.ErrConflict
	}
	return nil
}

func (s *Store) GetCounter(ctx context.Context, name string) (*sequence.Counter, error) {
	var m counterModel
	if err := s.findByID(ctx, tallystore.CollectionCounters, name, &m, sequence.ErrCounterNotFound, "get counter"); err != nil {
		return nil, err
	}
	return fromCounterModel(&m), nil
}

// ==================== Helpers ====================

func (s *Store) replace(ctx context.Context, col, docID string, doc any, op string) error {
	_, err := s.col(col).ReplaceOne(ctx, bson.M{"_id": docID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (s *Store) findByID(ctx context.Context, col, docID string, out any, notFound error, op string) error {
	err := s.col(col).FindOne(ctx, bson.M{"_id": docID}).Decode(out)
	if isNoDocuments(err) {
		return notFound
	}
	if err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (s *Store) findAll(ctx context.Context, col string, filter bson.M, opts *options.FindOptionsBuilder, out any, op string) error {
	cur, err := s.col(col).Find(ctx, filter, opts)
	if err != nil {
		return storeErr(op, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (s *Store) deleteByID(ctx context.Context, col, docID string, notFound error, op string) error {
	res, err := s.col(col).DeleteOne(ctx, bson.M{"_id": docID})
	if err != nil {
		return storeErr(op, err)
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	return nil
}

func byCreation() *options.FindOptionsBuilder {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
}

func byNumber(limit int) *options.FindOptionsBuilder {
	opts := options.Find().SetSort(bson.D{{Key: "invoice_number", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func dateFilter(opts invoice.ListOpts) bson.M {
	filter := bson.M{}
	date := bson.M{}
	if !opts.Start.IsZero() {
		date["$gte"] = opts.Start
	}
	if !opts.End.IsZero() {
		date["$lte"] = opts.End
	}
	if len(date) > 0 {
		filter["date"] = date
	}
	return filter
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// storeErr wraps a driver failure with the server's error code when there is
// one, or "unavailable" for network trouble and timeouts.
func storeErr(op string, err error) error {
	se := &tally.StoreError{Op: op, Err: fmt.Errorf("tally/mongo: %s: %w", op, err)}

	var (
		cmdErr   mongo.CommandError
		writeErr mongo.WriteException
	)
	switch {
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		se.Code = "unavailable"
	case errors.As(err, &cmdErr):
		se.Code = strconv.Itoa(int(cmdErr.Code))
	case errors.As(err, &writeErr) && len(writeErr.WriteErrors) > 0:
		se.Code = strconv.Itoa(writeErr.WriteErrors[0].Code)
	}
	return se
}

// migrationIndexes returns the index definitions for all tally collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		tallystore.CollectionClients: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		tallystore.CollectionSuppliers: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		tallystore.CollectionStock: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "movements", Value: 1}}},
		},
		tallystore.CollectionClientInvoices: {
			{
				Keys:    bson.D{{Key: "invoice_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "date", Value: -1}}},
		},
		tallystore.CollectionSupplierInvoices: {
			{
				Keys:    bson.D{{Key: "invoice_number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "supplier_id", Value: 1}, {Key: "date", Value: -1}}},
		},
	}
}

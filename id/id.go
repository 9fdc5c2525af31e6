// Package id defines TypeID-based identifiers for every tally record.
//
// Identifiers carry a short prefix naming the record kind ("cli_...",
// "stk_...") followed by a K-sortable UUIDv7 suffix, so they order by
// creation time and are safe to embed in URLs and stock movement keys.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record kind encoded in an ID.
type Prefix string

// Prefixes for every record kind.
const (
	PrefixClient          Prefix = "cli"
	PrefixSupplier        Prefix = "sup"
	PrefixStockProduct    Prefix = "stk"
	PrefixClientInvoice   Prefix = "cinv"
	PrefixSupplierInvoice Prefix = "sinv"
	PrefixItem            Prefix = "item"
)

// ID is the identifier type shared by all records.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero ID.
var Nil ID

// New generates an ID with the given prefix. It panics on an invalid prefix.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a "prefix_suffix" string.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that it carries the expected prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Typed aliases
// ──────────────────────────────────────────────────

// ClientID identifies a client (prefix "cli").
type ClientID = ID

// SupplierID identifies a supplier (prefix "sup").
type SupplierID = ID

// StockProductID identifies a stock entry (prefix "stk").
type StockProductID = ID

// ClientInvoiceID identifies a client invoice (prefix "cinv").
type ClientInvoiceID = ID

// SupplierInvoiceID identifies a supplier invoice (prefix "sinv").
type SupplierInvoiceID = ID

// ItemID identifies an invoice line item (prefix "item").
type ItemID = ID

func NewClientID() ID          { return New(PrefixClient) }
func NewSupplierID() ID        { return New(PrefixSupplier) }
func NewStockProductID() ID    { return New(PrefixStockProduct) }
func NewClientInvoiceID() ID   { return New(PrefixClientInvoice) }
func NewSupplierInvoiceID() ID { return New(PrefixSupplierInvoice) }
func NewItemID() ID            { return New(PrefixItem) }

func ParseClientID(s string) (ID, error)       { return ParseWithPrefix(s, PrefixClient) }
func ParseSupplierID(s string) (ID, error)     { return ParseWithPrefix(s, PrefixSupplier) }
func ParseStockProductID(s string) (ID, error) { return ParseWithPrefix(s, PrefixStockProduct) }
func ParseClientInvoiceID(s string) (ID, error) {
	return ParseWithPrefix(s, PrefixClientInvoice)
}
func ParseSupplierInvoiceID(s string) (ID, error) {
	return ParseWithPrefix(s, PrefixSupplierInvoice)
}
func ParseItemID(s string) (ID, error) { return ParseWithPrefix(s, PrefixItem) }

// ──────────────────────────────────────────────────
// Methods
// ──────────────────────────────────────────────────

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero ID.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer. Nil stores as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil

		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

// Package client defines the client aggregate: a customer buying on credit
// whose running balance is owned by the invoice lifecycle.
package client

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// Client is a customer with an outstanding balance. A positive balance is
// debt owed to the business.
type Client struct {
	types.Entity
	ID             id.ClientID     `json:"id"`
	Name           string          `json:"name"`
	Active         bool            `json:"active"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// New returns an active client with a zero balance.
func New(name string) *Client {
	return &Client{
		Entity: types.NewEntity(),
		ID:     id.NewClientID(),
		Name:   name,
		Active: true,
	}
}

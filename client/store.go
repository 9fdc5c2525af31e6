package client

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/id"
)

// Store persists clients. GetClient, UpdateClientBalance and DeleteClient
// return an error matching tally.ErrClientNotFound for unknown ids.
type Store interface {
	PutClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, clientID id.ClientID) (*Client, error)
	ListClients(ctx context.Context) ([]*Client, error)
	UpdateClientBalance(ctx context.Context, clientID id.ClientID, balance decimal.Decimal) error
	DeleteClient(ctx context.Context, clientID id.ClientID) error
}

package interfaces

import (
	"context"

	"earnings/internal/types"
)

// ChainProvider fetches raw option chains.
type ChainProvider interface {
	GetOptionChain(ctx context.Context, symbol string) (*types.RawChain, error)
}

// OrderRouter sends order specs to the broker.
type OrderRouter interface {
	// PlaceOrder returns the id of the new order.
	PlaceOrder(ctx context.Context, spec types.OrderSpec) (string, error)
	// ReplaceOrder cancels orderID and places spec in its place, returning the new id.
	ReplaceOrder(ctx context.Context, orderID string, spec types.OrderSpec) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Broker is the full brokerage surface used by the toolkit.
type Broker interface {
	ChainProvider
	OrderRouter

	GetQuotes(ctx context.Context, symbols []string) ([]types.Quote, error)
	GetBalances(ctx context.Context) (types.Balances, error)
	GetOrders(ctx context.Context) ([]types.Order, error)
	GetPositions(ctx context.Context) ([]types.Position, error)
}

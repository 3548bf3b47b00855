package brokerobs

import (
	"context"
	"time"

	"earnings/internal/interfaces"
	"earnings/internal/logger"
	"earnings/internal/metrics"
	"earnings/internal/trace"
	"earnings/internal/types"
)

// observableBroker wraps a Broker with logging, tracing and call metrics.
type observableBroker struct {
	broker interfaces.Broker
}

var _ interfaces.Broker = (*observableBroker)(nil)

func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: broker}
}

func (ob *observableBroker) GetQuotes(ctx context.Context, symbols []string) ([]types.Quote, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetQuotes")
	defer span.End()
	start := time.Now()

	logger.DebugSkip(ctx, 1, "Fetching quotes", "symbols", symbols)

	quotes, err := ob.broker.GetQuotes(ctx, symbols)
	metrics.ObserveBrokerCall("GetQuotes", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch quotes", err, "symbols", symbols)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Quotes fetched", "requested", len(symbols), "returned", len(quotes))
	return quotes, nil
}

func (ob *observableBroker) GetOptionChain(ctx context.Context, symbol string) (*types.RawChain, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetOptionChain")
	defer span.End()
	start := time.Now()

	logger.DebugSkip(ctx, 1, "Fetching option chain", "symbol", symbol)

	chain, err := ob.broker.GetOptionChain(ctx, symbol)
	metrics.ObserveBrokerCall("GetOptionChain", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch option chain", err, "symbol", symbol)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Option chain fetched", "symbol", symbol, "underlying_price", chain.UnderlyingPrice)
	return chain, nil
}

func (ob *observableBroker) GetBalances(ctx context.Context) (types.Balances, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetBalances")
	defer span.End()
	start := time.Now()

	bal, err := ob.broker.GetBalances(ctx)
	metrics.ObserveBrokerCall("GetBalances", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch balances", err)
		return types.Balances{}, err
	}

	logger.DebugSkip(ctx, 1, "Balances fetched", "equity", bal.Equity, "free_margin", bal.FreeMargin)
	return bal, nil
}

func (ob *observableBroker) GetOrders(ctx context.Context) ([]types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetOrders")
	defer span.End()
	start := time.Now()

	orders, err := ob.broker.GetOrders(ctx)
	metrics.ObserveBrokerCall("GetOrders", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch orders", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Orders fetched", "count", len(orders))
	return orders, nil
}

func (ob *observableBroker) GetPositions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetPositions")
	defer span.End()
	start := time.Now()

	positions, err := ob.broker.GetPositions(ctx)
	metrics.ObserveBrokerCall("GetPositions", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions fetched", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) PlaceOrder(ctx context.Context, spec types.OrderSpec) (string, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()
	start := time.Now()

	logger.InfoSkip(ctx, 1, "Placing order", "price", spec.Price, "legs", len(spec.OrderLegCollection))

	orderID, err := ob.broker.PlaceOrder(ctx, spec)
	metrics.ObserveBrokerCall("PlaceOrder", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err, "price", spec.Price)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Order placed", "order_id", orderID)
	return orderID, nil
}

func (ob *observableBroker) ReplaceOrder(ctx context.Context, orderID string, spec types.OrderSpec) (string, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ReplaceOrder")
	defer span.End()
	start := time.Now()

	logger.InfoSkip(ctx, 1, "Replacing order", "order_id", orderID, "price", spec.Price)

	newID, err := ob.broker.ReplaceOrder(ctx, orderID, spec)
	metrics.ObserveBrokerCall("ReplaceOrder", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to replace order", err, "order_id", orderID)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Order replaced", "order_id", orderID, "new_order_id", newID)
	return newID, nil
}

func (ob *observableBroker) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "broker.CancelOrder")
	defer span.End()
	start := time.Now()

	logger.InfoSkip(ctx, 1, "Cancelling order", "order_id", orderID)

	err := ob.broker.CancelOrder(ctx, orderID)
	metrics.ObserveBrokerCall("CancelOrder", start, err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_id", orderID)
		return err
	}

	logger.InfoSkip(ctx, 1, "Order cancelled", "order_id", orderID)
	return nil
}

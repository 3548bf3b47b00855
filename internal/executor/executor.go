package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"earnings/internal/interfaces"
	"earnings/internal/logger"
	"earnings/internal/metrics"
	"earnings/internal/tradelog"
	"earnings/internal/types"
)

var ErrInvalidOrder = errors.New("invalid order")

// Journal records every order action, successful or not.
type Journal interface {
	Append(e tradelog.Entry) (tradelog.Entry, error)
}

// Executor sends option orders to the broker and journals them.
type Executor struct {
	router  interfaces.OrderRouter
	journal Journal
}

func New(router interfaces.OrderRouter, journal Journal) *Executor {
	return &Executor{router: router, journal: journal}
}

// TruncatePrice cuts a limit price down to the tick TD accepts: cents at
// or above 1.00, hundredths of a cent below.
func TruncatePrice(price float64) float64 {
	if price >= 1 {
		return math.Trunc(price*100+1e-9) / 100
	}
	return math.Trunc(price*10000+1e-9) / 10000
}

// FormatPrice renders TruncatePrice(price) for the order payload.
func FormatPrice(price float64) string {
	if price >= 1 {
		return fmt.Sprintf("%.2f", TruncatePrice(price))
	}
	return fmt.Sprintf("%.4f", TruncatePrice(price))
}

// OrderSpec builds a single limit day order with one leg per symbol, selling
// to open or buying to close.
func OrderSpec(symbols []string, price float64, qty int, toOpen bool) types.OrderSpec {
	instruction := "BUY_TO_CLOSE"
	if toOpen {
		instruction = "SELL_TO_OPEN"
	}

	legs := make([]types.OrderLegSpec, 0, len(symbols))
	for _, s := range symbols {
		legs = append(legs, types.OrderLegSpec{
			Instruction: instruction,
			Quantity:    qty,
			Instrument:  types.Instrument{Symbol: s, AssetType: "OPTION"},
		})
	}

	return types.OrderSpec{
		OrderType:          "LIMIT",
		Session:            "NORMAL",
		Duration:           "DAY",
		Price:              FormatPrice(price),
		OrderStrategyType:  "SINGLE",
		OrderLegCollection: legs,
	}
}

func validate(symbols []string, price float64, qty int) ([]string, error) {
	cleaned := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	switch {
	case len(cleaned) == 0:
		return nil, fmt.Errorf("%w: at least one symbol is required", ErrInvalidOrder)
	case qty <= 0:
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, qty)
	case price <= 0 || math.IsNaN(price) || math.IsInf(price, 0):
		return nil, fmt.Errorf("%w: price must be positive, got %v", ErrInvalidOrder, price)
	}
	return cleaned, nil
}

// PlaceTrade opens (toOpen) or closes a position at a limit price and
// returns the broker's order id.
func (x *Executor) PlaceTrade(ctx context.Context, symbols []string, price float64, qty int, toOpen bool) (string, error) {
	symbols, err := validate(symbols, price, qty)
	if err != nil {
		return "", err
	}

	orderID, err := x.router.PlaceOrder(ctx, OrderSpec(symbols, price, qty, toOpen))
	x.record(ctx, tradelog.Entry{Action: tradelog.Place, OrderID: orderID, Symbols: symbols, Price: TruncatePrice(price), Qty: qty, ToOpen: toOpen}, err)
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	return orderID, nil
}

// ReplaceTrade swaps a working order for a new one and returns the new id.
func (x *Executor) ReplaceTrade(ctx context.Context, orderID string, symbols []string, price float64, qty int, toOpen bool) (string, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", fmt.Errorf("%w: order id is required", ErrInvalidOrder)
	}
	symbols, err := validate(symbols, price, qty)
	if err != nil {
		return "", err
	}

	newID, err := x.router.ReplaceOrder(ctx, orderID, OrderSpec(symbols, price, qty, toOpen))
	x.record(ctx, tradelog.Entry{Action: tradelog.Replace, OrderID: newID, ReplacedID: orderID, Symbols: symbols, Price: TruncatePrice(price), Qty: qty, ToOpen: toOpen}, err)
	if err != nil {
		return "", fmt.Errorf("replace order %s: %w", orderID, err)
	}
	return newID, nil
}

func (x *Executor) CancelTrade(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidOrder)
	}

	err := x.router.CancelOrder(ctx, orderID)
	x.record(ctx, tradelog.Entry{Action: tradelog.Cancel, OrderID: orderID}, err)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// OpenStrangle sells both legs of s at its mid price.
func (x *Executor) OpenStrangle(ctx context.Context, s *types.Strangle, qty int) (string, error) {
	if s == nil {
		return "", fmt.Errorf("%w: no strangle", ErrInvalidOrder)
	}
	return x.PlaceTrade(ctx, s.Symbols(), s.Mid, qty, true)
}

func (x *Executor) record(ctx context.Context, e tradelog.Entry, err error) {
	metrics.ObserveOrder(string(e.Action), err)
	if err != nil {
		e.Error = err.Error()
		logger.ErrorWithErr(ctx, "Order action failed", err, "action", e.Action, "order_id", e.OrderID, "symbols", e.Symbols)
	} else {
		logger.Trade(ctx, string(e.Action), e.OrderID, e.Symbols, e.Qty, e.Price, "to_open", e.ToOpen)
	}

	if x.journal == nil {
		return
	}
	if _, jerr := x.journal.Append(e); jerr != nil {
		logger.Warn(ctx, "Failed to journal order action", "action", e.Action, "order_id", e.OrderID, "error", jerr)
	}
}

package tdameritrade

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"earnings/internal/api"
	"earnings/internal/types"
)

// PlaceOrder submits spec and returns the new order id.
func (td *TDAmeritrade) PlaceOrder(ctx context.Context, spec types.OrderSpec) (string, error) {
	p, err := td.accountPath("/orders")
	if err != nil {
		return "", err
	}
	resp, err := td.api.POST(ctx, p, spec)
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	return orderIDFromLocation(resp)
}

// ReplaceOrder cancels orderID and submits spec in its place. TD assigns the
// replacement a new id.
func (td *TDAmeritrade) ReplaceOrder(ctx context.Context, orderID string, spec types.OrderSpec) (string, error) {
	if strings.TrimSpace(orderID) == "" {
		return "", errors.New("order id is required")
	}
	p, err := td.accountPath("/orders/" + url.PathEscape(orderID))
	if err != nil {
		return "", err
	}
	resp, err := td.api.PUT(ctx, p, spec)
	if err != nil {
		return "", fmt.Errorf("replace order %s: %w", orderID, err)
	}
	return orderIDFromLocation(resp)
}

func (td *TDAmeritrade) CancelOrder(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return errors.New("order id is required")
	}
	p, err := td.accountPath("/orders/" + url.PathEscape(orderID))
	if err != nil {
		return err
	}
	if _, err := td.api.DELETE(ctx, p); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// orderIDFromLocation reads the id from .../accounts/{account}/orders/{id}.
func orderIDFromLocation(resp *api.Response) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", errors.New("order accepted but response has no Location header")
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parse Location header %q: %w", loc, err)
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "" || id == "." || id == "/" || id == "orders" {
		return "", fmt.Errorf("no order id in Location header %q", loc)
	}
	return id, nil
}

package main

import (
	"context"
	"fmt"
	"time"
)

func parseDay(s string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return day, nil
}

// runTrade sends one order action through the executor, which journals it.
func runTrade(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	action, args := args[0], args[1:]
	switch action {
	case "open", "close", "replace", "cancel":
	default:
		return errUsage
	}

	fs, asJSON := newFlags("trade " + action)
	price := fs.Float64("price", 0, "limit price per strangle")
	qty := fs.Int("qty", a.cfg.Strangle.Quantity, "contracts per leg")
	id := fs.String("id", "", "order id (replace, cancel)")
	closing := fs.Bool("close", false, "replace with a closing order (replace)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	x, err := a.executor()
	if err != nil {
		return err
	}

	result := map[string]string{"action": action}
	switch action {
	case "open", "close":
		orderID, err := x.PlaceTrade(ctx, fs.Args(), *price, *qty, action == "open")
		if err != nil {
			return err
		}
		result["order_id"] = orderID
	case "replace":
		newID, err := x.ReplaceTrade(ctx, *id, fs.Args(), *price, *qty, !*closing)
		if err != nil {
			return err
		}
		result["order_id"] = newID
		result["replaced_order_id"] = *id
	case "cancel":
		if err := x.CancelTrade(ctx, *id); err != nil {
			return err
		}
		result["order_id"] = *id
	}

	if *asJSON {
		return printJSON(a.stdout, result)
	}
	fmt.Fprintf(a.stdout, "%s: order %s\n", action, result["order_id"])
	return nil
}

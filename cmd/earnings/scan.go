package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"earnings/internal/logger"
	"earnings/internal/metrics"
	"earnings/internal/options"
	"earnings/internal/types"
)

// findStrangle prices one symbol and counts the outcome.
func findStrangle(ctx context.Context, s *options.Strangler, symbol string) (*types.Strangle, error) {
	st, err := s.Strangle(ctx, symbol)
	switch {
	case err == nil:
		metrics.ObserveStrangle(metrics.StrangleFound)
	case errors.Is(err, options.ErrNoStrangle):
		metrics.ObserveStrangle(metrics.StrangleNone)
	default:
		metrics.ObserveStrangle(metrics.StrangleError)
	}
	return st, err
}

func runStrangle(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("strangle")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	s, err := a.strangler(options.DTE(a.cfg.Strangle.DTE))
	if err != nil {
		return err
	}

	st, err := findStrangle(ctx, s, strings.ToUpper(fs.Arg(0)))
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, st)
	}
	return printStrangles(a, []*types.Strangle{st})
}

func scanEarnings(ctx context.Context, a *app) ([]types.Earning, error) {
	sc, err := a.scanner()
	if err != nil {
		return nil, err
	}
	earnings, err := sc.Earnings(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ScannedEarnings.Set(float64(len(earnings)))
	return earnings, nil
}

func runScan(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("scan")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	earnings, err := scanEarnings(ctx, a)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, earnings)
	}
	t := newTable(a.stdout, "SYMBOL", "MARKET CAP (B)", "PRICE", "CHANGE", "DATE", "TIMING")
	for _, e := range earnings {
		t.row(e.Symbol, e.MarketCap, e.Price, fmt.Sprintf("%.2f%%", e.Change*100), e.Date, e.Timing)
	}
	return t.flush()
}

// runPlan scans today's reports and prices a strangle for each of them.
// Nothing is traded.
func runPlan(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("plan")
	metricsAddr := fs.String("metrics-addr", a.cfg.Metrics.Addr, "serve Prometheus metrics on this address while planning")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *metricsAddr != "" {
		srv := metrics.Serve(ctx, *metricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	op := logger.StartOperation(ctx, "plan")
	ctx = op.GetContext()

	earnings, err := scanEarnings(ctx, a)
	if err != nil {
		op.EndWithError(err)
		return err
	}
	s, err := a.strangler(options.DTE(a.cfg.Strangle.DTE))
	if err != nil {
		op.EndWithError(err)
		return err
	}

	var strangles []*types.Strangle
	for _, e := range earnings {
		if ctx.Err() != nil {
			op.EndWithError(ctx.Err())
			return ctx.Err()
		}
		st, err := findStrangle(ctx, s, e.Symbol)
		if err != nil {
			logger.Warn(ctx, "No strangle for report", "symbol", e.Symbol, "error", err)
			continue
		}
		strangles = append(strangles, st)
	}
	op.End("reports", len(earnings), "strangles", len(strangles))

	if *asJSON {
		return printJSON(a.stdout, strangles)
	}
	return printStrangles(a, strangles)
}

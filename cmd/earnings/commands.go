package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"earnings/internal/logger"
	"earnings/internal/options"
	"earnings/internal/types"
)

// runAuth walks through the authorization-code login and caches the token.
func runAuth(ctx context.Context, a *app, args []string) error {
	td, err := a.tdClient()
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, "Open this URL, log in and paste the address you are redirected to:")
	fmt.Fprintln(a.stdout, td.Auth().AuthorizationURL())
	fmt.Fprint(a.stdout, "> ")

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := td.Auth().ExchangeCode(ctx, line)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Token cached. Refresh token valid until %s.\n", tok.RefreshTokenExpiresAt.Format("2006-01-02"))
	return nil
}

func runQuotes(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("quotes")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	brk, err := a.brokerClient()
	if err != nil {
		return err
	}

	quotes, err := brk.GetQuotes(ctx, fs.Args())
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, quotes)
	}
	t := newTable(a.stdout, "SYMBOL", "MARK", "CHANGE", "CHANGE%", "VOLUME")
	for _, q := range quotes {
		t.row(q.Symbol, q.Mark, q.MarkChange, fmt.Sprintf("%.2f%%", q.MarkPctChange), q.Volume)
	}
	return t.flush()
}

func runBalances(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("balances")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	brk, err := a.brokerClient()
	if err != nil {
		return err
	}

	bal, err := brk.GetBalances(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, bal)
	}
	t := newTable(a.stdout, "BALANCE", "EQUITY", "FREE MARGIN", "USED MARGIN")
	t.row(bal.Balance, bal.Equity, bal.FreeMargin, bal.UsedMargin)
	return t.flush()
}

func runOrders(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("orders")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	brk, err := a.brokerClient()
	if err != nil {
		return err
	}

	orders, err := brk.GetOrders(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, orders)
	}
	t := newTable(a.stdout, "ID", "STATUS", "TYPE", "PRICE", "QTY", "FILLED", "ENTERED", "LEGS")
	for _, o := range orders {
		legs := make([]string, 0, len(o.Legs))
		for _, l := range o.Legs {
			legs = append(legs, l.Instruction+" "+l.Symbol)
		}
		t.row(o.OrderID, o.Status, o.OrderType, o.Price, o.Quantity, o.FilledQuantity, o.EnteredTime, strings.Join(legs, ", "))
	}
	return t.flush()
}

func runPositions(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("positions")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	brk, err := a.brokerClient()
	if err != nil {
		return err
	}

	positions, err := brk.GetPositions(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, positions)
	}
	t := newTable(a.stdout, "SYMBOL", "TYPE", "QTY", "EXPIRATION", "STRIKE", "PRICE", "VALUE", "DAY P/L")
	for _, p := range positions {
		kind := p.AssetType
		if p.OptionType != "" {
			kind = p.OptionType
		}
		t.row(p.Symbol, kind, p.Qty, p.ExpirationDate, p.Strike, p.Price, p.Value, p.PnLDay)
	}
	return t.flush()
}

func runChain(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("chain")
	dte := fs.Int("dte", -1, "expiration closest to this many days out")
	front := fs.Bool("front", false, "nearest expiration")
	back := fs.Bool("back", false, "second nearest expiration")
	itm := fs.Bool("itm", false, "include in-the-money strikes")
	weeklies := fs.Bool("weeklies", a.cfg.Strangle.Weeklies, "include weekly expirations")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	target := options.DTE(a.cfg.Strangle.DTE)
	switch {
	case *front:
		target = options.Front()
	case *back:
		target = options.Back()
	case *dte >= 0:
		target = options.DTE(*dte)
	}

	s, err := a.strangler(target)
	if err != nil {
		return err
	}
	chain, err := s.Chain(ctx, fs.Arg(0), options.ChainParams{Target: target, InTheMoney: *itm, Weeklies: *weeklies})
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, chain)
	}

	fmt.Fprintf(a.stdout, "%s %.2f  %s (%d DTE, %s)\n\n", chain.Symbol, chain.UnderlyingPrice, chain.Expiration.Date, chain.Expiration.DTE, strings.ToLower(string(chain.Expiration.Type)))
	t := newTable(a.stdout, "SYMBOL", "TYPE", "STRIKE", "BID", "ASK", "MARK", "DELTA", "IV", "OI")
	for _, c := range chain.Contracts {
		t.row(c.Symbol, c.OptionType, c.Strike, c.Bid, c.Ask, c.Mark, c.Delta, c.ImpliedVolatility, c.OpenInterest)
	}
	return t.flush()
}

func runMove(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("move")
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

	symbol := strings.ToUpper(fs.Arg(0))
	em, err := s.ExpectedMove(ctx, symbol)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, map[string]any{"symbol": symbol, "expected_move": em})
	}
	fmt.Fprintf(a.stdout, "%s expected move: %.2f\n", symbol, em)
	return nil
}

func printStrangles(a *app, strangles []*types.Strangle) error {
	t := newTable(a.stdout, "UNDERLYING", "PRICE", "EXPIRATION", "DTE", "PUT", "CALL", "BID", "ASK", "PREMIUM", "MOVE", "BREAK-EVENS")
	for _, s := range strangles {
		lo, hi := s.BreakEvens()
		t.row(s.Underlying, s.UnderlyingPrice, s.Expiration, s.DTE, s.Put.Strike, s.Call.Strike, s.Bid, s.Ask, s.Premium, s.ExpectedMove, fmt.Sprintf("%.2f / %.2f", lo, hi))
	}
	return t.flush()
}

func runEOD(ctx context.Context, a *app, args []string) error {
	fs, asJSON := newFlags("eod")
	date := fs.String("date", "", "day to summarize (YYYY-MM-DD), default today")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	summarizer := a.summarizer()
	var (
		path string
		err  error
	)
	if *date == "" {
		path, err = summarizer.SummarizeToday(ctx)
	} else {
		day, perr := parseDay(*date)
		if perr != nil {
			return perr
		}
		path, err = summarizer.SummarizeDay(ctx, day)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		return printJSON(a.stdout, map[string]string{"csv_path": path})
	}
	if path == "" {
		logger.Info(ctx, "No orders journaled for the day")
		return nil
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

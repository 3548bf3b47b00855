package options

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"earnings/internal/interfaces"
	"earnings/internal/logger"
	"earnings/internal/types"
)

type Config struct {
	Target                 Target
	Weeklies               bool
	MinPremium             float64
	ExpectedMoveMultiplier float64
	MaxRelativeSpread      float64
}

// Strangler prices earnings strangles off live option chains.
type Strangler struct {
	chains interfaces.ChainProvider
	cfg    Config
}

func NewStrangler(chains interfaces.ChainProvider, cfg Config) *Strangler {
	if cfg.ExpectedMoveMultiplier <= 0 {
		cfg.ExpectedMoveMultiplier = DefaultExpectedMoveMultiplier
	}
	if cfg.MinPremium < 0 {
		cfg.MinPremium = 0
	}
	return &Strangler{chains: chains, cfg: cfg}
}

// Chain fetches symbol's chain and flattens one expiration of it.
func (s *Strangler) Chain(ctx context.Context, symbol string, p ChainParams) (*Chain, error) {
	raw, err := s.fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	chain, err := BuildChain(raw, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	return chain.DropNaN(), nil
}

// ExpectedMove prices the ATM straddle of the configured expiration. The
// straddle is taken from the full chain, ITM strikes included, so the ATM
// strike may be ITM on one side. Pricing it from the OTM-only chain gives a
// different, usually wider, straddle and therefore a different move.
func (s *Strangler) ExpectedMove(ctx context.Context, symbol string) (float64, error) {
	raw, err := s.fetch(ctx, symbol)
	if err != nil {
		return 0, err
	}
	em, _, err := s.expectedMove(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", symbol, err)
	}
	return em, nil
}

func (s *Strangler) expectedMove(raw *types.RawChain) (float64, *Chain, error) {
	full, err := BuildChain(raw, ChainParams{Target: s.cfg.Target, InTheMoney: true, Weeklies: s.cfg.Weeklies})
	if err != nil {
		return 0, nil, err
	}
	em, err := ExpectedMove(full.DropNaN(), s.cfg.ExpectedMoveMultiplier)
	if err != nil {
		return 0, nil, err
	}
	return em, full, nil
}

// Strangle finds the widest OTM strangle on symbol whose credit still covers
// the expected move. Both come from a single chain fetch.
func (s *Strangler) Strangle(ctx context.Context, symbol string) (*types.Strangle, error) {
	op := logger.StartOperation(ctx, "options.Strangle", "symbol", symbol, "target", s.cfg.Target.String())
	ctx = op.GetContext()

	raw, err := s.fetch(ctx, symbol)
	if err != nil {
		op.EndWithError(err)
		return nil, err
	}

	em, full, err := s.expectedMove(raw)
	if err != nil {
		err = fmt.Errorf("%s: %w", symbol, err)
		op.EndWithError(err)
		return nil, err
	}

	otm, err := BuildChain(raw, ChainParams{Target: s.cfg.Target, InTheMoney: false, Weeklies: s.cfg.Weeklies})
	if err != nil {
		err = fmt.Errorf("%s: %w", symbol, err)
		op.EndWithError(err)
		return nil, err
	}

	strangle, err := BuildStrangle(otm.DropNaN(), em, StrangleParams{
		MinPremium:        s.cfg.MinPremium,
		MaxRelativeSpread: s.cfg.MaxRelativeSpread,
	})
	if err != nil {
		if errors.Is(err, ErrNoStrangle) {
			logger.Info(ctx, "No strangle covers the expected move", "symbol", symbol, "expected_move", em, "expiration", full.Expiration.Date)
		}
		err = fmt.Errorf("%s: %w", symbol, err)
		op.EndWithError(err)
		return nil, err
	}
	if strangle.Underlying == "" {
		strangle.Underlying = strings.ToUpper(symbol)
	}

	logger.Strangle(ctx, strangle.Underlying, strangle.Put.Strike, strangle.Call.Strike, strangle.Premium, em,
		"expiration", strangle.Expiration, "dte", strangle.DTE)
	op.End("put", strangle.Put.Symbol, "call", strangle.Call.Symbol)
	return strangle, nil
}

func (s *Strangler) fetch(ctx context.Context, symbol string) (*types.RawChain, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("empty symbol")
	}
	return s.chains.GetOptionChain(ctx, symbol)
}

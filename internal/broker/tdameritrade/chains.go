package tdameritrade

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"earnings/internal/types"
)

// ErrChainUnavailable is returned when the chains endpoint answers with a
// status other than SUCCESS, which TD does for unknown or non-optionable symbols.
var ErrChainUnavailable = errors.New("option chain unavailable")

func (td *TDAmeritrade) GetOptionChain(ctx context.Context, symbol string) (*types.RawChain, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("empty symbol")
	}

	resp, err := td.api.GET(ctx, "/marketdata/chains", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, fmt.Errorf("get option chain %s: %w", symbol, err)
	}

	var chain types.RawChain
	if err := resp.ParseJSON(&chain); err != nil {
		return nil, err
	}
	if chain.Status != "SUCCESS" {
		return nil, fmt.Errorf("%w: %s returned status %q", ErrChainUnavailable, symbol, chain.Status)
	}
	if chain.Symbol == "" {
		chain.Symbol = symbol
	}
	return &chain, nil
}

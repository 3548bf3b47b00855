package options

import (
	"errors"
	"sort"

	"earnings/internal/types"
)

// ErrNoStrangle means no call/put pair paid enough to cover the expected move.
var ErrNoStrangle = errors.New("no strangle covers the expected move")

// DefaultMinPremium is the smallest credit worth selling.
const DefaultMinPremium = 1.00

type StrangleParams struct {
	MinPremium float64
	// MaxRelativeSpread skips pairs whose (ask-bid)/mid exceeds it; 0 disables.
	MaxRelativeSpread float64
}

// CoversExpectedMove reports whether both break-evens lie outside the
// expected move.
func CoversExpectedMove(price, em, call, put, premium float64) bool {
	return call+premium > price+em && put-premium < price-em
}

// BuildStrangle pairs OTM calls and puts outward from the money and returns
// the furthest pair that still covers the expected move.
func BuildStrangle(otm *Chain, em float64, p StrangleParams) (*types.Strangle, error) {
	if otm == nil {
		return nil, ErrNoStrangle
	}

	calls := otm.Calls()
	puts := otm.Puts()
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].Strike < calls[j].Strike })
	sort.SliceStable(puts, func(i, j int) bool { return puts[i].Strike > puts[j].Strike })

	n := len(calls)
	if len(puts) < n {
		n = len(puts)
	}

	var best *types.Strangle
	for i := 0; i < n; i++ {
		call, put := calls[i], puts[i]
		bid := call.Bid + put.Bid
		ask := call.Ask + put.Ask
		mid := (bid + ask) / 2

		if mid < p.MinPremium {
			continue
		}
		if p.MaxRelativeSpread > 0 && mid > 0 && (ask-bid)/mid > p.MaxRelativeSpread {
			continue
		}
		if !CoversExpectedMove(otm.UnderlyingPrice, em, call.Strike, put.Strike, mid) {
			continue
		}

		best = &types.Strangle{
			Underlying:      otm.Symbol,
			UnderlyingPrice: otm.UnderlyingPrice,
			Expiration:      otm.Expiration.Date,
			DTE:             otm.Expiration.DTE,
			Put:             put,
			Call:            call,
			Bid:             round2(bid),
			Ask:             round2(ask),
			Mid:             mid,
			Premium:         round2(mid),
			ExpectedMove:    em,
		}
	}

	if best == nil {
		return nil, ErrNoStrangle
	}
	return best, nil
}

package options

import (
	"errors"
	"math"

	"earnings/internal/types"
)

// DefaultExpectedMoveMultiplier scales the ATM straddle price into an
// expected move.
const DefaultExpectedMoveMultiplier = 1.25

// Straddle returns the contracts at the strike closest to the underlying
// price. The lower strike wins a tie.
func Straddle(c *Chain) ([]types.OptionContract, error) {
	if c == nil || len(c.Contracts) == 0 {
		return nil, errors.New("empty option chain")
	}

	atm := c.Contracts[0].Strike
	for _, oc := range c.Contracts[1:] {
		if math.Abs(oc.Strike-c.UnderlyingPrice) < math.Abs(atm-c.UnderlyingPrice) {
			atm = oc.Strike
		}
	}

	var out []types.OptionContract
	for _, oc := range c.Contracts {
		if oc.Strike == atm {
			out = append(out, oc)
		}
	}
	return out, nil
}

// ExpectedMove is the ATM straddle mid price times multiplier, rounded to
// cents. A multiplier <= 0 uses DefaultExpectedMoveMultiplier.
func ExpectedMove(c *Chain, multiplier float64) (float64, error) {
	if multiplier <= 0 {
		multiplier = DefaultExpectedMoveMultiplier
	}
	straddle, err := Straddle(c)
	if err != nil {
		return 0, err
	}

	var bid, ask float64
	for _, oc := range straddle {
		bid += oc.Bid
		ask += oc.Ask
	}
	return round2((bid + ask) / 2 * multiplier), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package options

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"earnings/internal/types"
)

type ChainParams struct {
	Target     Target
	InTheMoney bool
	Weeklies   bool
}

// Chain is one expiration of an option chain, calls and puts together,
// sorted by strike.
type Chain struct {
	Symbol          string                 `json:"symbol"`
	UnderlyingPrice float64                `json:"underlying_price"`
	Expiration      types.Expiration       `json:"expiration"`
	Contracts       []types.OptionContract `json:"contracts"`
}

// BuildChain flattens the expiration selected by p.Target. Only the first
// contract listed for each strike is kept.
func BuildChain(raw *types.RawChain, p ChainParams) (*Chain, error) {
	exps, err := ParseExpirations(raw, p.Weeklies)
	if err != nil {
		return nil, err
	}
	exp, err := SelectExpiration(exps, p.Target)
	if err != nil {
		return nil, err
	}

	chain := &Chain{
		Symbol:          raw.Symbol,
		UnderlyingPrice: raw.UnderlyingPrice,
		Expiration:      exp,
	}
	for _, m := range []types.ExpDateMap{raw.CallExpDateMap, raw.PutExpDateMap} {
		for strikeKey, contracts := range m[exp.Key] {
			if len(contracts) == 0 {
				continue
			}
			c, err := convertContract(strikeKey, contracts[0])
			if err != nil {
				return nil, err
			}
			if c.InTheMoney && !p.InTheMoney {
				continue
			}
			chain.Contracts = append(chain.Contracts, c)
		}
	}

	sort.Slice(chain.Contracts, func(i, j int) bool {
		a, b := chain.Contracts[i], chain.Contracts[j]
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.OptionType == types.Call && b.OptionType == types.Put
	})
	return chain, nil
}

func convertContract(strikeKey string, r types.RawContract) (types.OptionContract, error) {
	strike := float64(r.StrikePrice)
	if r.StrikePrice == 0 || r.StrikePrice.IsNaN() {
		v, err := strconv.ParseFloat(strikeKey, 64)
		if err != nil {
			return types.OptionContract{}, fmt.Errorf("bad strike %q: %w", strikeKey, err)
		}
		strike = v
	}

	typ := types.Call
	if r.PutCall == string(types.Put) {
		typ = types.Put
	}

	return types.OptionContract{
		Symbol:            r.Symbol,
		Description:       r.Description,
		OptionType:        typ,
		Strike:            strike,
		Bid:               float64(r.Bid),
		Ask:               float64(r.Ask),
		Last:              float64(r.Last),
		Mark:              float64(r.Mark),
		TheoreticalValue:  float64(r.TheoreticalOptionValue),
		ImpliedVolatility: float64(r.Volatility),
		Delta:             float64(r.Delta),
		Gamma:             float64(r.Gamma),
		Theta:             float64(r.Theta),
		Vega:              float64(r.Vega),
		Volume:            float64(r.TotalVolume),
		OpenInterest:      float64(r.OpenInterest),
		TimeValue:         float64(r.TimeValue),
		ExpirationDate:    time.UnixMilli(r.ExpirationDate).UTC().Format("2006-01-02"),
		DTE:               r.DaysToExpiration,
		InTheMoney:        r.InTheMoney,
		Multiplier:        float64(r.Multiplier),
	}, nil
}

// DropNaN removes contracts with any NaN numeric field.
func (c *Chain) DropNaN() *Chain {
	kept := c.Contracts[:0]
	for _, oc := range c.Contracts {
		if !hasNaN(oc) {
			kept = append(kept, oc)
		}
	}
	c.Contracts = kept
	return c
}

func hasNaN(c types.OptionContract) bool {
	for _, v := range []float64{
		c.Strike, c.Bid, c.Ask, c.Last, c.Mark, c.TheoreticalValue, c.ImpliedVolatility,
		c.Delta, c.Gamma, c.Theta, c.Vega, c.Volume, c.OpenInterest, c.TimeValue, c.Multiplier,
	} {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func (c *Chain) Calls() []types.OptionContract {
	return c.filter(types.Call)
}

func (c *Chain) Puts() []types.OptionContract {
	return c.filter(types.Put)
}

func (c *Chain) filter(t types.OptionType) []types.OptionContract {
	var out []types.OptionContract
	for _, oc := range c.Contracts {
		if oc.OptionType == t {
			out = append(out, oc)
		}
	}
	return out
}

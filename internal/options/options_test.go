package options

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"earnings/internal/types"
)

const underlying = 100.3

type quote struct {
	strike   float64
	bid, ask float64
}

func contract(putCall string, exp time.Time, dte int, expType string, q quote) types.RawContract {
	itm := q.strike < underlying
	if putCall == "PUT" {
		itm = q.strike > underlying
	}
	letter := "C"
	if putCall == "PUT" {
		letter = "P"
	}
	return types.RawContract{
		PutCall:          putCall,
		Symbol:           fmt.Sprintf("XYZ_%s%s%g", exp.Format("010206"), letter, q.strike),
		Bid:              types.Float(q.bid),
		Ask:              types.Float(q.ask),
		Mark:             types.Float((q.bid + q.ask) / 2),
		ExpirationDate:   exp.UnixMilli(),
		DaysToExpiration: dte,
		InTheMoney:       itm,
		Multiplier:       100,
		StrikePrice:      types.Float(q.strike),
		ExpirationType:   expType,
	}
}

func addExpiration(raw *types.RawChain, exp time.Time, dte int, expType string, calls, puts []quote) {
	key := fmt.Sprintf("%s:%d", exp.Format("2006-01-02"), dte)
	raw.CallExpDateMap[key] = map[string][]types.RawContract{}
	raw.PutExpDateMap[key] = map[string][]types.RawContract{}
	for _, q := range calls {
		k := fmt.Sprintf("%.1f", q.strike)
		raw.CallExpDateMap[key][k] = append(raw.CallExpDateMap[key][k], contract("CALL", exp, dte, expType, q))
	}
	for _, q := range puts {
		k := fmt.Sprintf("%.1f", q.strike)
		raw.PutExpDateMap[key][k] = append(raw.PutExpDateMap[key][k], contract("PUT", exp, dte, expType, q))
	}
}

var monthly = time.Date(2021, 9, 17, 20, 0, 0, 0, time.UTC)

// testChain has a weekly at 9 DTE and monthlies at 16 and 44 DTE. The
// 16 DTE monthly is priced so that the 110/95 strangle is the widest pair
// paying at least 1.00 that covers a 7.25 expected move.
func testChain() *types.RawChain {
	raw := &types.RawChain{
		Symbol:          "XYZ",
		Status:          "SUCCESS",
		UnderlyingPrice: underlying,
		CallExpDateMap:  types.ExpDateMap{},
		PutExpDateMap:   types.ExpDateMap{},
	}

	flat := []quote{{95, 1, 1.1}, {100, 1, 1.1}, {105, 1, 1.1}}
	addExpiration(raw, time.Date(2021, 9, 10, 20, 0, 0, 0, time.UTC), 9, "W", flat, flat)
	addExpiration(raw, time.Date(2021, 10, 15, 20, 0, 0, 0, time.UTC), 44, "R", flat, flat)

	addExpiration(raw, monthly, 16, "R",
		[]quote{{90, 10.5, 10.8}, {95, 5.8, 6.0}, {100, 3.0, 3.2}, {105, 1.2, 1.3}, {110, 0.6, 0.7}, {115, 0.3, 0.4}},
		[]quote{{90, 0.4, 0.5}, {95, 1.3, 1.5}, {100, 2.6, 2.8}, {105, 4.9, 5.1}, {110, 9.7, 10.0}, {115, 14.6, 15.0}},
	)
	return raw
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestParseExpirations(t *testing.T) {
	raw := testChain()

	exps, err := ParseExpirations(raw, false)
	if err != nil {
		t.Fatalf("ParseExpirations: %v", err)
	}
	if len(exps) != 2 || exps[0].DTE != 16 || exps[1].DTE != 44 {
		t.Fatalf("unexpected monthlies %+v", exps)
	}
	if exps[0].Date != "2021-09-17" || exps[0].Type != types.Monthly || exps[0].Key != "2021-09-17:16" {
		t.Errorf("unexpected expiration %+v", exps[0])
	}

	exps, err = ParseExpirations(raw, true)
	if err != nil {
		t.Fatalf("ParseExpirations: %v", err)
	}
	if len(exps) != 3 || exps[0].DTE != 9 || exps[0].Type != types.Weekly {
		t.Errorf("unexpected expirations with weeklies %+v", exps)
	}

	if _, err := ParseExpirations(&types.RawChain{}, true); !errors.Is(err, ErrNoExpirations) {
		t.Errorf("expected ErrNoExpirations, got %v", err)
	}

	bad := &types.RawChain{CallExpDateMap: types.ExpDateMap{"2021-09-17": {}}}
	if _, err := ParseExpirations(bad, true); err == nil {
		t.Error("expected error for key without DTE")
	}
}

func TestSelectExpiration(t *testing.T) {
	exps := []types.Expiration{{DTE: 9, Date: "a"}, {DTE: 16, Date: "b"}, {DTE: 44, Date: "c"}}

	tests := []struct {
		target Target
		want   string
	}{
		{Front(), "a"},
		{Back(), "b"},
		{DTE(0), "a"},
		{DTE(14), "b"},
		{DTE(30), "b"}, // tie between 16 and 44, nearer listed first wins
		{DTE(40), "c"},
		{DTE(365), "c"},
	}
	for _, tt := range tests {
		got, err := SelectExpiration(exps, tt.target)
		if err != nil {
			t.Errorf("SelectExpiration(%s): %v", tt.target, err)
			continue
		}
		if got.Date != tt.want {
			t.Errorf("SelectExpiration(%s) = %s, want %s", tt.target, got.Date, tt.want)
		}
	}

	if _, err := SelectExpiration(exps[:1], Back()); !errors.Is(err, ErrNoExpirations) {
		t.Errorf("expected ErrNoExpirations for missing back month, got %v", err)
	}
	if _, err := SelectExpiration(nil, Front()); !errors.Is(err, ErrNoExpirations) {
		t.Errorf("expected ErrNoExpirations, got %v", err)
	}
}

func TestBuildChain(t *testing.T) {
	raw := testChain()

	full, err := BuildChain(raw, ChainParams{Target: DTE(20), InTheMoney: true})
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	if full.Expiration.DTE != 16 || len(full.Contracts) != 12 {
		t.Fatalf("unexpected chain: dte=%d contracts=%d", full.Expiration.DTE, len(full.Contracts))
	}
	first := full.Contracts[0]
	if first.Strike != 90 || first.OptionType != types.Call || full.Contracts[1].OptionType != types.Put {
		t.Errorf("chain not sorted by strike with calls first: %+v", full.Contracts[:2])
	}
	if first.ExpirationDate != "2021-09-17" || first.DTE != 16 || first.Multiplier != 100 {
		t.Errorf("unexpected contract fields %+v", first)
	}

	otm, err := BuildChain(raw, ChainParams{Target: DTE(20)})
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	for _, c := range otm.Contracts {
		if c.InTheMoney {
			t.Errorf("ITM contract kept: %+v", c)
		}
	}
	if len(otm.Calls()) != 3 || len(otm.Puts()) != 3 {
		t.Errorf("expected 3 OTM calls and puts, got %d/%d", len(otm.Calls()), len(otm.Puts()))
	}
}

func TestBuildChainKeepsFirstContractPerStrike(t *testing.T) {
	raw := testChain()
	key := "2021-09-17:16"
	dup := raw.CallExpDateMap[key]["105.0"][0]
	dup.Symbol = "XYZ_DUPLICATE"
	raw.CallExpDateMap[key]["105.0"] = append(raw.CallExpDateMap[key]["105.0"], dup)

	chain, err := BuildChain(raw, ChainParams{Target: Front()})
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}
	for _, c := range chain.Contracts {
		if c.Symbol == "XYZ_DUPLICATE" {
			t.Error("second contract at a strike should be ignored")
		}
	}
}

func TestDropNaN(t *testing.T) {
	c := &Chain{Contracts: []types.OptionContract{
		{Symbol: "A", Strike: 100, Bid: 1, Ask: 1.1},
		{Symbol: "B", Strike: 105, Bid: 1, Ask: 1.1, Delta: math.NaN()},
		{Symbol: "C", Strike: 110, Bid: math.NaN()},
	}}
	c.DropNaN()
	if len(c.Contracts) != 1 || c.Contracts[0].Symbol != "A" {
		t.Errorf("DropNaN kept %+v", c.Contracts)
	}
}

func TestExpectedMove(t *testing.T) {
	full, err := BuildChain(testChain(), ChainParams{Target: DTE(16), InTheMoney: true})
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}

	straddle, err := Straddle(full)
	if err != nil {
		t.Fatalf("Straddle: %v", err)
	}
	if len(straddle) != 2 || straddle[0].Strike != 100 || straddle[1].Strike != 100 {
		t.Errorf("unexpected straddle %+v", straddle)
	}

	em, err := ExpectedMove(full, 0)
	if err != nil {
		t.Fatalf("ExpectedMove: %v", err)
	}
	if em != 7.25 {
		t.Errorf("ExpectedMove = %v, want 7.25", em)
	}

	em, _ = ExpectedMove(full, 1)
	if em != 5.8 {
		t.Errorf("ExpectedMove with multiplier 1 = %v, want 5.8", em)
	}

	if _, err := ExpectedMove(&Chain{}, 1.25); err == nil {
		t.Error("expected error for empty chain")
	}
}

func TestStraddleTieTakesLowerStrike(t *testing.T) {
	c := &Chain{UnderlyingPrice: 102.5, Contracts: []types.OptionContract{
		{Strike: 100, OptionType: types.Call},
		{Strike: 100, OptionType: types.Put},
		{Strike: 105, OptionType: types.Call},
		{Strike: 105, OptionType: types.Put},
	}}
	s, err := Straddle(c)
	if err != nil {
		t.Fatalf("Straddle: %v", err)
	}
	if s[0].Strike != 100 {
		t.Errorf("ATM strike = %v, want 100", s[0].Strike)
	}
}

func TestCoversExpectedMove(t *testing.T) {
	tests := []struct {
		name                      string
		price, em, call, put, prm float64
		want                      bool
	}{
		{"both outside", 100, 5, 105, 95, 1, true},
		{"call side inside", 100, 5, 103, 90, 1, false},
		{"put side inside", 100, 5, 110, 97, 1, false},
		{"exactly at the move", 100, 5, 104, 96, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoversExpectedMove(tt.price, tt.em, tt.call, tt.put, tt.prm); got != tt.want {
				t.Errorf("CoversExpectedMove = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildStrangle(t *testing.T) {
	otm, err := BuildChain(testChain(), ChainParams{Target: DTE(16)})
	if err != nil {
		t.Fatalf("BuildChain: %v", err)
	}

	t.Run("widest pair above min premium", func(t *testing.T) {
		s, err := BuildStrangle(otm, 7.25, StrangleParams{MinPremium: DefaultMinPremium})
		if err != nil {
			t.Fatalf("BuildStrangle: %v", err)
		}
		if s.Call.Strike != 110 || s.Put.Strike != 95 {
			t.Errorf("strikes = %v/%v, want 95/110", s.Put.Strike, s.Call.Strike)
		}
		if s.Premium != 2.05 || !approx(s.Bid, 1.9) || !approx(s.Ask, 2.2) {
			t.Errorf("unexpected pricing %+v", s)
		}
		if s.Expiration != "2021-09-17" || s.DTE != 16 || s.ExpectedMove != 7.25 || s.Underlying != "XYZ" {
			t.Errorf("unexpected strangle metadata %+v", s)
		}
		if syms := s.Symbols(); syms[0] != s.Put.Symbol || syms[1] != s.Call.Symbol {
			t.Errorf("Symbols() = %v", syms)
		}
	})

	t.Run("lower min premium reaches further out", func(t *testing.T) {
		s, err := BuildStrangle(otm, 7.25, StrangleParams{MinPremium: 0.5})
		if err != nil {
			t.Fatalf("BuildStrangle: %v", err)
		}
		if s.Call.Strike != 115 || s.Put.Strike != 90 {
			t.Errorf("strikes = %v/%v, want 90/115", s.Put.Strike, s.Call.Strike)
		}
	})

	t.Run("wide spreads are skipped", func(t *testing.T) {
		_, err := BuildStrangle(otm, 7.25, StrangleParams{MinPremium: DefaultMinPremium, MaxRelativeSpread: 0.1})
		if !errors.Is(err, ErrNoStrangle) {
			t.Errorf("expected ErrNoStrangle, got %v", err)
		}
	})

	t.Run("move too large", func(t *testing.T) {
		_, err := BuildStrangle(otm, 20, StrangleParams{MinPremium: DefaultMinPremium})
		if !errors.Is(err, ErrNoStrangle) {
			t.Errorf("expected ErrNoStrangle, got %v", err)
		}
	})
}

type fakeChains struct {
	raw   *types.RawChain
	err   error
	calls int
}

func (f *fakeChains) GetOptionChain(ctx context.Context, symbol string) (*types.RawChain, error) {
	f.calls++
	return f.raw, f.err
}

func TestStrangler(t *testing.T) {
	chains := &fakeChains{raw: testChain()}
	s := NewStrangler(chains, Config{Target: DTE(16), MinPremium: 1})

	strangle, err := s.Strangle(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("Strangle: %v", err)
	}
	if strangle.Put.Strike != 95 || strangle.Call.Strike != 110 || strangle.ExpectedMove != 7.25 {
		t.Errorf("unexpected strangle %+v", strangle)
	}
	if chains.calls != 1 {
		t.Errorf("expected a single chain fetch, got %d", chains.calls)
	}

	em, err := s.ExpectedMove(context.Background(), "XYZ")
	if err != nil || em != 7.25 {
		t.Errorf("ExpectedMove = %v, %v", em, err)
	}

	chain, err := s.Chain(context.Background(), "XYZ", ChainParams{Target: Back(), Weeklies: true})
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if chain.Expiration.DTE != 16 {
		t.Errorf("back month with weeklies = %d DTE, want 16", chain.Expiration.DTE)
	}

	if _, err := s.Strangle(context.Background(), "  "); err == nil {
		t.Error("expected error for empty symbol")
	}
}

func TestStranglerPropagatesBrokerErrors(t *testing.T) {
	sentinel := errors.New("chain unavailable")
	s := NewStrangler(&fakeChains{err: sentinel}, Config{Target: Front()})
	if _, err := s.Strangle(context.Background(), "XYZ"); !errors.Is(err, sentinel) {
		t.Errorf("expected broker error, got %v", err)
	}
}

package types

import (
	"encoding/json"
	"time"
)

// Quote is the subset of a TD Ameritrade quote the toolkit reports.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Mark          float64 `json:"mark"`
	MarkChange    float64 `json:"mark_change"`
	MarkPctChange float64 `json:"mark_pct_change"`
	Volume        int64   `json:"volume"`
}

// Balances are the current account balances.
type Balances struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	FreeMargin float64 `json:"free_margin"`
	UsedMargin float64 `json:"used_margin"`
}

type OrderLeg struct {
	Instruction    string  `json:"instruction"`
	Symbol         string  `json:"symbol"`
	AssetType      string  `json:"asset_type"`
	Quantity       float64 `json:"quantity"`
	PositionEffect string  `json:"position_effect,omitempty"`
}

// Order is a working or historical order on the account.
type Order struct {
	OrderID                  int64      `json:"order_id"`
	Status                   string     `json:"status"`
	StatusDescription        string     `json:"status_description,omitempty"`
	OrderType                string     `json:"order_type"`
	ComplexOrderStrategyType string     `json:"complex_order_strategy_type,omitempty"`
	Session                  string     `json:"session"`
	Duration                 string     `json:"duration"`
	Price                    float64    `json:"price"`
	Quantity                 float64    `json:"quantity"`
	FilledQuantity           float64    `json:"filled_quantity"`
	RemainingQuantity        float64    `json:"remaining_quantity"`
	Cancelable               bool       `json:"cancelable"`
	EnteredTime              string     `json:"entered_time"`
	CloseTime                string     `json:"close_time,omitempty"`
	Tag                      string     `json:"tag,omitempty"`
	Legs                     []OrderLeg `json:"legs"`

	StopPrice          float64 `json:"stop_price,omitempty"`
	StopType           string  `json:"stop_type,omitempty"`
	StopPriceLinkBasis string  `json:"stop_price_link_basis,omitempty"`
	StopPriceLinkType  string  `json:"stop_price_link_type,omitempty"`
	StopPriceOffset    float64 `json:"stop_price_offset,omitempty"`
	ActivationPrice    float64 `json:"activation_price,omitempty"`
	PriceLinkBasis     string  `json:"price_link_basis,omitempty"`
	PriceLinkType      string  `json:"price_link_type,omitempty"`
	TaxLotMethod       string  `json:"tax_lot_method,omitempty"`
	SpecialInstruction string  `json:"special_instruction,omitempty"`
	ReleaseTime        string  `json:"release_time,omitempty"`
	CancelTime         string  `json:"cancel_time,omitempty"`
	StatusTime         string  `json:"status_time,omitempty"`

	// Nested collections are passed through as TD sent them.
	ChildOrderStrategies     json.RawMessage `json:"child_order_strategies,omitempty"`
	ReplacingOrderCollection json.RawMessage `json:"replacing_order_collection,omitempty"`
	OrderActivityCollection  json.RawMessage `json:"order_activity_collection,omitempty"`
}

// Position is an open equity or option position.
type Position struct {
	Symbol         string     `json:"symbol"`
	Underlying     string     `json:"underlying"`
	AssetType      string     `json:"asset_type"`
	Qty            float64    `json:"qty"`
	OptionType     string     `json:"option_type,omitempty"`
	ExpirationDate string     `json:"expiration_date,omitempty"`
	Expiration     *time.Time `json:"-"`
	Strike         float64    `json:"strike,omitempty"`
	Price          float64    `json:"price"`
	Value          float64    `json:"value"`
	PnLDay         float64    `json:"pnl_day"`
	BuyingPower    float64    `json:"buying_power"`
}

type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// ExpirationType distinguishes standard monthly cycles from weeklies.
type ExpirationType string

const (
	Monthly ExpirationType = "MONTHLY"
	Weekly  ExpirationType = "WEEKLY"
)

// Expiration is one expiration cycle of an option chain.
// Key is the TD map key, e.g. "2021-09-17:45".
type Expiration struct {
	Key  string         `json:"key"`
	Date string         `json:"date"`
	DTE  int            `json:"dte"`
	Type ExpirationType `json:"type"`
}

// OptionContract is one parsed row of an option chain.
type OptionContract struct {
	Symbol            string     `json:"symbol"`
	Description       string     `json:"description"`
	OptionType        OptionType `json:"option_type"`
	Strike            float64    `json:"strike"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	Last              float64    `json:"last"`
	Mark              float64    `json:"mark"`
	TheoreticalValue  float64    `json:"theoretical_value"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	Delta             float64    `json:"delta"`
	Gamma             float64    `json:"gamma"`
	Theta             float64    `json:"theta"`
	Vega              float64    `json:"vega"`
	Volume            float64    `json:"volume"`
	OpenInterest      float64    `json:"open_interest"`
	TimeValue         float64    `json:"time_value"`
	ExpirationDate    string     `json:"expiration_date"`
	DTE               int        `json:"dte"`
	InTheMoney        bool       `json:"in_the_money"`
	Multiplier        float64    `json:"multiplier"`
}

// Mid is the midpoint of the bid/ask.
func (c OptionContract) Mid() float64 {
	return (c.Bid + c.Ask) / 2
}

// Strangle is a short put and a short call on the same expiration.
type Strangle struct {
	Underlying      string         `json:"underlying"`
	UnderlyingPrice float64        `json:"underlying_price"`
	Expiration      string         `json:"expiration"`
	DTE             int            `json:"dte"`
	Put             OptionContract `json:"put"`
	Call            OptionContract `json:"call"`
	Bid             float64        `json:"bid"`
	Ask             float64        `json:"ask"`
	Mid             float64        `json:"mid"`
	Premium         float64        `json:"premium"`
	ExpectedMove    float64        `json:"expected_move"`
}

// Symbols returns the option symbols of both legs, put first.
func (s Strangle) Symbols() []string {
	return []string{s.Put.Symbol, s.Call.Symbol}
}

// BreakEvens returns the lower and upper break-even prices at expiration.
func (s Strangle) BreakEvens() (lower, upper float64) {
	return s.Put.Strike - s.Premium, s.Call.Strike + s.Premium
}

// Earning is one company reporting earnings, as listed by the screener.
type Earning struct {
	Symbol    string  `json:"symbol"`
	MarketCap float64 `json:"market_cap"` // billions, 0 when unknown
	Price     float64 `json:"price"`
	Change    float64 `json:"change"` // fraction, 0.0123 = 1.23%
	Date      string  `json:"date"`
	Timing    string  `json:"timing"` // AMC or BMO
}

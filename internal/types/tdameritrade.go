package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Float decodes TD numeric fields, which are sometimes sent as "NaN"
// strings or quoted numbers instead of JSON numbers.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = Float(math.NaN())
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = Float(math.NaN())
			return nil
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

func (f Float) IsNaN() bool {
	return math.IsNaN(float64(f))
}

// RawContract mirrors one option entry of the chains endpoint.
type RawContract struct {
	PutCall                string `json:"putCall"`
	Symbol                 string `json:"symbol"`
	Description            string `json:"description"`
	Bid                    Float  `json:"bid"`
	Ask                    Float  `json:"ask"`
	Last                   Float  `json:"last"`
	Mark                   Float  `json:"mark"`
	TheoreticalOptionValue Float  `json:"theoreticalOptionValue"`
	Volatility             Float  `json:"volatility"`
	Delta                  Float  `json:"delta"`
	Gamma                  Float  `json:"gamma"`
	Theta                  Float  `json:"theta"`
	Vega                   Float  `json:"vega"`
	TotalVolume            Float  `json:"totalVolume"`
	OpenInterest           Float  `json:"openInterest"`
	TimeValue              Float  `json:"timeValue"`
	ExpirationDate         int64  `json:"expirationDate"`
	DaysToExpiration       int    `json:"daysToExpiration"`
	InTheMoney             bool   `json:"inTheMoney"`
	Multiplier             Float  `json:"multiplier"`
	StrikePrice            Float  `json:"strikePrice"`
	ExpirationType         string `json:"expirationType"`
}

// ExpDateMap is keyed by "YYYY-MM-DD:DTE", then by strike string.
type ExpDateMap map[string]map[string][]RawContract

// RawChain is the chains endpoint response.
type RawChain struct {
	Symbol          string     `json:"symbol"`
	Status          string     `json:"status"`
	UnderlyingPrice float64    `json:"underlyingPrice"`
	CallExpDateMap  ExpDateMap `json:"callExpDateMap"`
	PutExpDateMap   ExpDateMap `json:"putExpDateMap"`
}

// OrderSpec is the order payload accepted by the TD orders endpoints.
type OrderSpec struct {
	OrderType          string         `json:"orderType"`
	Session            string         `json:"session"`
	Duration           string         `json:"duration"`
	Price              string         `json:"price"`
	OrderStrategyType  string         `json:"orderStrategyType"`
	OrderLegCollection []OrderLegSpec `json:"orderLegCollection"`
}

type OrderLegSpec struct {
	Instruction string     `json:"instruction"`
	Quantity    int        `json:"quantity"`
	Instrument  Instrument `json:"instrument"`
}

type Instrument struct {
	Symbol    string `json:"symbol"`
	AssetType string `json:"assetType"`
}

package tdameritrade

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"earnings/internal/types"
)

// TD option symbols look like AAPL_091721C150 or SPY_121721P452.5.
var optionSymbolRe = regexp.MustCompile(`^([A-Z0-9./]+)_(\d{6})([CP])(\d+(?:\.\d+)?)$`)

// OptionSymbol is a decoded TD option symbol.
type OptionSymbol struct {
	Underlying string
	Expiration time.Time
	Type       types.OptionType
	Strike     float64
}

// ParseOptionSymbol decodes UNDERLYING_MMDDYY{C|P}STRIKE.
func ParseOptionSymbol(symbol string) (OptionSymbol, error) {
	m := optionSymbolRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(symbol)))
	if m == nil {
		return OptionSymbol{}, fmt.Errorf("not an option symbol: %q", symbol)
	}

	exp, err := time.Parse("010206", m[2])
	if err != nil {
		return OptionSymbol{}, fmt.Errorf("option symbol %q: bad expiration: %w", symbol, err)
	}
	strike, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return OptionSymbol{}, fmt.Errorf("option symbol %q: bad strike: %w", symbol, err)
	}

	typ := types.Call
	if m[3] == "P" {
		typ = types.Put
	}
	return OptionSymbol{Underlying: m[1], Expiration: exp, Type: typ, Strike: strike}, nil
}

// ExpirationLabel formats a date the way positions are displayed, e.g. 17SEP21.
func ExpirationLabel(t time.Time) string {
	return strings.ToUpper(t.Format("02Jan06"))
}

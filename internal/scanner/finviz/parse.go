package finviz

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var capExponent = map[byte]float64{'K': 3, 'M': 6, 'B': 9, 'T': 12}

// ParseMarketCap converts "10.42B" style values to billions. "-" means
// unknown and returns ok=false.
func ParseMarketCap(s string) (billions float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, false, nil
	}
	exp, found := capExponent[s[len(s)-1]]
	if !found {
		return 0, false, fmt.Errorf("unknown market cap suffix in %q", s)
	}
	v, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, false, fmt.Errorf("bad market cap %q: %w", s, err)
	}
	return v * math.Pow(10, exp) / 1e9, true, nil
}

// ParseChange converts "-1.23%" to -0.0123.
func ParseChange(s string) (float64, error) {
	v, err := parseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return 0, err
	}
	return v / 100, nil
}

// SplitEarningsDate splits "Sep 01/a" into the date and AMC/BMO.
func SplitEarningsDate(s string) (date, timing string) {
	date, suffix, _ := strings.Cut(strings.TrimSpace(s), "/")
	switch suffix {
	case "a":
		timing = "AMC"
	case "b":
		timing = "BMO"
	default:
		timing = suffix
	}
	return strings.TrimSpace(date), timing
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

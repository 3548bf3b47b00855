package tdameritrade

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"earnings/internal/logger"
	"earnings/internal/types"
)

type rawQuote struct {
	Symbol                    string  `json:"symbol"`
	Mark                      float64 `json:"mark"`
	MarkChangeInDouble        float64 `json:"markChangeInDouble"`
	MarkPercentChangeInDouble float64 `json:"markPercentChangeInDouble"`
	TotalVolume               int64   `json:"totalVolume"`
}

// GetQuotes returns quotes for symbols in the order they were requested.
// Symbols the API does not know are skipped with a warning.
func (td *TDAmeritrade) GetQuotes(ctx context.Context, symbols []string) ([]types.Quote, error) {
	if len(symbols) == 0 {
		return nil, errors.New("no symbols requested")
	}

	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	resp, err := td.api.GET(ctx, "/marketdata/quotes", url.Values{"symbol": {strings.Join(upper, ",")}})
	if err != nil {
		return nil, fmt.Errorf("get quotes: %w", err)
	}

	var raw map[string]rawQuote
	if err := resp.ParseJSON(&raw); err != nil {
		return nil, err
	}

	quotes := make([]types.Quote, 0, len(upper))
	for _, sym := range upper {
		q, ok := raw[sym]
		if !ok {
			logger.Warn(ctx, "No quote returned", "symbol", sym)
			continue
		}
		quotes = append(quotes, types.Quote{
			Symbol:        sym,
			Mark:          q.Mark,
			MarkChange:    q.MarkChangeInDouble,
			MarkPctChange: q.MarkPercentChangeInDouble,
			Volume:        q.TotalVolume,
		})
	}
	return quotes, nil
}

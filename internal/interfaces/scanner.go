package interfaces

import (
	"context"

	"earnings/internal/types"
)

type EarningsScanner interface {
	// Earnings lists today's reports, largest market cap first.
	Earnings(ctx context.Context) ([]types.Earning, error)
}

package interfaces

import (
	"context"
	"time"
)

// EodSummarizer turns a day of journaled order actions into a CSV report.
type EodSummarizer interface {
	// SummarizeDay returns "" when nothing was journaled on day.
	SummarizeDay(ctx context.Context, day time.Time) (csvPath string, err error)
	SummarizeToday(ctx context.Context) (csvPath string, err error)
}

package eodobs

import (
	"context"
	"time"

	"earnings/internal/interfaces"
	"earnings/internal/logger"
)

type observableSummarizer struct {
	next interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableSummarizer)(nil)

// Wrap adds a span and log lines around each summary.
func Wrap(s interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableSummarizer{next: s}
}

func (o *observableSummarizer) SummarizeDay(ctx context.Context, day time.Time) (string, error) {
	date := day.Format("2006-01-02")
	return observe(ctx, "eod.SummarizeDay", date, func(ctx context.Context) (string, error) {
		return o.next.SummarizeDay(ctx, day)
	})
}

func (o *observableSummarizer) SummarizeToday(ctx context.Context) (string, error) {
	return observe(ctx, "eod.SummarizeToday", "today", o.next.SummarizeToday)
}

func observe(ctx context.Context, name, date string, summarize func(context.Context) (string, error)) (string, error) {
	op := logger.StartOperation(ctx, name, "date", date)
	ctx = op.GetContext()

	csvPath, err := summarize(ctx)
	if err != nil {
		op.EndWithError(err)
		return "", err
	}
	op.End("csv_path", csvPath)

	if csvPath == "" {
		logger.Info(ctx, "Nothing journaled, no EOD summary", "date", date)
	} else {
		logger.Info(ctx, "EOD summary written", "date", date, "csv_path", csvPath)
	}
	return csvPath, nil
}

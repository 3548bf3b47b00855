package eod

import (
	"earnings/internal/interfaces"
	"earnings/internal/tradelog"
)

// NewSummarizer reports on journal and writes CSVs to <journal dir>/eod.
func NewSummarizer(journal *tradelog.Journal) interfaces.EodSummarizer {
	return newSummarizer(journal)
}

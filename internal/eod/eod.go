package eod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"earnings/internal/tradelog"
)

const contractMultiplier = 100

type summarizer struct {
	journal *tradelog.Journal
	outDir  string
	now     func() time.Time
}

func newSummarizer(j *tradelog.Journal) *summarizer {
	return &summarizer{journal: j, outDir: filepath.Join(j.Dir(), "eod"), now: time.Now}
}

// money renders dollar amounts with two decimals in the CSV.
type money float64

func (m money) MarshalCSV() (string, error) {
	return strconv.FormatFloat(float64(m), 'f', 2, 64), nil
}

// aggRow is one underlying's activity for the day.
type aggRow struct {
	Underlying      string `csv:"underlying"`
	Placed          int    `csv:"placed"`
	Replaced        int    `csv:"replaced"`
	Cancelled       int    `csv:"cancelled"`
	Failed          int    `csv:"failed"`
	ContractsOpened int    `csv:"contracts_opened"`
	ContractsClosed int    `csv:"contracts_closed"`
	Credit          money  `csv:"credit"`
	Debit           money  `csv:"debit"`
}

// underlying reads AAPL out of AAPL_091721C150; equity symbols pass through.
func underlying(symbols []string) string {
	if len(symbols) == 0 {
		return ""
	}
	u, _, _ := strings.Cut(symbols[0], "_")
	return u
}

func (s *summarizer) csvPath(t time.Time) string {
	return filepath.Join(s.outDir, t.Format("2006-01-02")+".csv")
}

// aggregate folds a day's journal per underlying. Action counts include
// every successful action; contracts and premium come only from orders
// still standing at the end of the day, so a replaced order counts once
// and a cancelled one not at all.
func aggregate(entries []tradelog.Entry) map[string]*aggRow {
	aggs := map[string]*aggRow{}
	row := func(u string) *aggRow {
		if u == "" {
			u = "UNKNOWN"
		}
		r := aggs[u]
		if r == nil {
			r = &aggRow{Underlying: u}
			aggs[u] = r
		}
		return r
	}

	live := map[string]tradelog.Entry{}
	owner := map[string]string{}
	for _, e := range entries {
		u := underlying(e.Symbols)
		if u == "" {
			u = owner[e.OrderID]
			if u == "" {
				u = owner[e.ReplacedID]
			}
		}
		if e.Error != "" {
			row(u).Failed++
			continue
		}

		switch e.Action {
		case tradelog.Place:
			row(u).Placed++
			live[e.OrderID] = e
		case tradelog.Replace:
			row(u).Replaced++
			delete(live, e.ReplacedID)
			live[e.OrderID] = e
		case tradelog.Cancel:
			row(u).Cancelled++
			delete(live, e.OrderID)
		}
		if e.OrderID != "" && u != "" {
			owner[e.OrderID] = u
		}
	}

	for _, e := range live {
		r := row(underlying(e.Symbols))
		contracts := e.Qty * len(e.Symbols)
		value := money(e.Price * float64(e.Qty) * contractMultiplier)
		if e.ToOpen {
			r.ContractsOpened += contracts
			r.Credit += value
		} else {
			r.ContractsClosed += contracts
			r.Debit += value
		}
	}
	return aggs
}

// SummarizeDay writes the day's order activity to eod/YYYY-MM-DD.csv under
// the journal directory. Days without journal entries produce no file and
// an empty path.
func (s *summarizer) SummarizeDay(ctx context.Context, t time.Time) (string, error) {
	entries, err := s.journal.Read(t)
	if err != nil {
		return "", fmt.Errorf("read journal: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	aggs := aggregate(entries)
	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]*aggRow, 0, len(keys)+1)
	total := &aggRow{Underlying: "TOTAL"}
	for _, k := range keys {
		r := aggs[k]
		rows = append(rows, r)
		total.Placed += r.Placed
		total.Replaced += r.Replaced
		total.Cancelled += r.Cancelled
		total.Failed += r.Failed
		total.ContractsOpened += r.ContractsOpened
		total.ContractsClosed += r.ContractsClosed
		total.Credit += r.Credit
		total.Debit += r.Debit
	}
	rows = append(rows, total)

	outPath := s.csvPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := gocsv.Marshal(rows, out); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, nil
}

func (s *summarizer) SummarizeToday(ctx context.Context) (string, error) {
	return s.SummarizeDay(ctx, s.now())
}

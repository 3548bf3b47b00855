package finviz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"earnings/internal/cache"
	"earnings/internal/interfaces"
	"earnings/internal/logger"
	"earnings/internal/types"
)

// ErrMissingCredentials means FINVIZ_EMAIL or FINVIZ_PASSWORD is unset.
var ErrMissingCredentials = errors.New("finviz credentials missing: set FINVIZ_EMAIL and FINVIZ_PASSWORD")

const (
	loginPath    = "/login_submit.ashx"
	screenerPath = "/screener.ashx"

	// Screener columns: No., Ticker, Market Cap, Price, Change, Earnings Date.
	screenerColumns = "0,1,6,65,66,68"
	columnsPerRow   = 6
	rowSelector     = "td.screener-body-table-nw"
)

type Config struct {
	BaseURL  string
	Email    string
	Password string

	// Timing keeps only AMC or BMO reports.
	Timing               string
	MinMarketCapBillions float64
	MinPrice             int
	MinRelativeVolume    int

	Timeout  time.Duration
	CacheDir string
	CacheTTL time.Duration
}

// Scanner lists the day's earnings reports from the Finviz screener.
type Scanner struct {
	cfg   Config
	cache *cache.Cache
	now   func() time.Time
}

var _ interfaces.EarningsScanner = (*Scanner)(nil)

func New(cfg Config) (*Scanner, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finviz.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Timing = strings.ToUpper(cfg.Timing)
	if cfg.Timing == "" {
		cfg.Timing = "AMC"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Scanner{cfg: cfg, now: time.Now}
	if cfg.CacheDir != "" && cfg.CacheTTL > 0 {
		c, err := cache.New(cfg.CacheDir, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		s.cache = c
	}
	return s, nil
}

// Earnings returns today's large cap reports for the configured timing,
// largest market cap first.
func (s *Scanner) Earnings(ctx context.Context) ([]types.Earning, error) {
	op := logger.StartOperation(ctx, "finviz.Earnings", "timing", s.cfg.Timing)
	ctx = op.GetContext()

	fetch := func() ([]byte, error) {
		rows, err := s.scrape(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(Clean(ctx, rows))
	}

	var (
		data []byte
		hit  bool
		err  error
	)
	if s.cache != nil {
		key := cache.Key("finviz", "earnings", s.now().Format("2006-01-02"), s.filters())
		if err := s.cache.CleanupExpired(); err != nil {
			logger.Warn(ctx, "Failed to clean scanner cache", "error", err)
		}
		data, hit, err = s.cache.GetOrFetch(key, fetch)
	} else {
		data, err = fetch()
	}
	if err != nil {
		op.EndWithError(err)
		return nil, err
	}

	var all []types.Earning
	if err := json.Unmarshal(data, &all); err != nil {
		op.EndWithError(err)
		return nil, fmt.Errorf("decode earnings: %w", err)
	}

	earnings := Filter(all, s.cfg.Timing, s.cfg.MinMarketCapBillions)
	op.End("cached", hit, "reports", len(all), "kept", len(earnings))
	return earnings, nil
}

func (s *Scanner) filters() string {
	return fmt.Sprintf("sh_price_o%d,sh_relvol_o%d", s.cfg.MinPrice, s.cfg.MinRelativeVolume)
}

// screenerURL builds the query for one signal, n_earningsbefore or n_earningsafter.
func (s *Scanner) screenerURL(signal string) string {
	q := url.Values{}
	q.Set("v", "152")
	q.Set("s", signal)
	q.Set("f", s.filters())
	q.Set("o", "-marketcap")
	q.Set("c", screenerColumns)
	return s.cfg.BaseURL + screenerPath + "?" + q.Encode()
}

// scrape logs in and pulls both the before-open and after-close screeners.
// The collector's cookie jar carries the session between requests.
func (s *Scanner) scrape(ctx context.Context) ([][]string, error) {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.cfg.Timeout)
	extensions.RandomUserAgent(c)

	var (
		rows     [][]string
		parseErr error
	)
	c.OnResponse(func(r *colly.Response) {
		if r.Request.URL.Path != screenerPath {
			return
		}
		got, err := ParseScreener(r.Body)
		if err != nil {
			parseErr = err
			return
		}
		logger.Debug(ctx, "Screener page parsed", "signal", r.Request.URL.Query().Get("s"), "rows", len(got))
		rows = append(rows, got...)
	})

	err := c.Post(s.cfg.BaseURL+loginPath, map[string]string{
		"email":    s.cfg.Email,
		"password": s.cfg.Password,
		"remember": "true",
	})
	if err != nil {
		return nil, fmt.Errorf("finviz login: %w", err)
	}

	for _, signal := range []string{"n_earningsbefore", "n_earningsafter"} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.Visit(s.screenerURL(signal)); err != nil {
			return nil, fmt.Errorf("finviz screener %s: %w", signal, err)
		}
	}
	c.Wait()

	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}

// ParseScreener extracts the rows of a screener page. Each row comes back
// as ticker, market cap, price, change and earnings date, with the row
// number dropped.
func ParseScreener(body []byte) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse screener html: %w", err)
	}

	var cells []string
	doc.Find(rowSelector).Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(td.Find("a").First().Text()))
	})

	var rows [][]string
	for n := 0; n+columnsPerRow <= len(cells); n += columnsPerRow {
		row := make([]string, columnsPerRow-1)
		copy(row, cells[n+1:n+columnsPerRow])
		rows = append(rows, row)
	}
	return rows, nil
}

// Clean converts raw screener rows into earnings. Rows that cannot be
// parsed are logged and skipped.
func Clean(ctx context.Context, rows [][]string) []types.Earning {
	out := make([]types.Earning, 0, len(rows))
	for _, row := range rows {
		e, err := cleanRow(row)
		if err != nil {
			logger.Warn(ctx, "Skipping screener row", "row", strings.Join(row, " "), "error", err)
			continue
		}
		out = append(out, e)
	}
	return out
}

func cleanRow(row []string) (types.Earning, error) {
	if len(row) != columnsPerRow-1 {
		return types.Earning{}, fmt.Errorf("expected %d columns, got %d", columnsPerRow-1, len(row))
	}

	price, err := parseFloat(row[2])
	if err != nil {
		return types.Earning{}, fmt.Errorf("price: %w", err)
	}
	change, err := ParseChange(row[3])
	if err != nil {
		return types.Earning{}, fmt.Errorf("change: %w", err)
	}
	mcap, _, err := ParseMarketCap(row[1])
	if err != nil {
		return types.Earning{}, fmt.Errorf("market cap: %w", err)
	}
	date, timing := SplitEarningsDate(row[4])

	return types.Earning{
		Symbol:    row[0],
		MarketCap: mcap,
		Price:     price,
		Change:    change,
		Date:      date,
		Timing:    timing,
	}, nil
}

// Filter keeps reports with the given timing (AMC, BMO or ALL) and a
// market cap above minCap billions, sorted by market cap descending.
// Unknown market caps never pass.
func Filter(all []types.Earning, timing string, minCap float64) []types.Earning {
	out := make([]types.Earning, 0, len(all))
	for _, e := range all {
		if (timing != "ALL" && e.Timing != timing) || e.MarketCap <= 0 || e.MarketCap <= minCap {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MarketCap > out[j].MarketCap })
	return out
}

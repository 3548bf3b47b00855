package finviz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"earnings/internal/types"
)

func screenerPage(rows ...[]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><tr><td class="table-top">No.</td><td class="table-top">Ticker</td></tr>`)
	for i, r := range rows {
		b.WriteString("<tr>")
		fmt.Fprintf(&b, `<td class="screener-body-table-nw"><a href="quote.ashx">%d</a></td>`, i+1)
		for _, cell := range r {
			fmt.Fprintf(&b, `<td class="screener-body-table-nw"><a href="quote.ashx"><span>%s</span></a></td>`, cell)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func TestParseScreener(t *testing.T) {
	page := screenerPage(
		[]string{"AAPL", "2.45T", "148.60", "1.23%", "Sep 01/a"},
		[]string{"XYZ", "-", "20.00", "-0.50%", "Sep 01/b"},
	)
	rows, err := ParseScreener([]byte(page))
	if err != nil {
		t.Fatalf("ParseScreener: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], "|") != "AAPL|2.45T|148.60|1.23%|Sep 01/a" {
		t.Errorf("unexpected row %v", rows[0])
	}
}

func TestParseMarketCap(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		ok      bool
		wantErr bool
	}{
		{"10.42B", 10.42, true, false},
		{"2.45T", 2450, true, false},
		{"850.5M", 0.8505, true, false},
		{"900K", 0.0009, true, false},
		{"-", 0, false, false},
		{"12X", 0, false, true},
	}
	for _, tt := range tests {
		got, ok, err := ParseMarketCap(tt.in)
		if (err != nil) != tt.wantErr || ok != tt.ok {
			t.Errorf("ParseMarketCap(%q) ok=%v err=%v", tt.in, ok, err)
			continue
		}
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("ParseMarketCap(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseChangeAndDate(t *testing.T) {
	c, err := ParseChange("-1.50%")
	if err != nil || c != -0.015 {
		t.Errorf("ParseChange = %v, %v", c, err)
	}
	if _, err := ParseChange("n/a"); err == nil {
		t.Error("expected error for non-numeric change")
	}

	date, timing := SplitEarningsDate("Sep 01/a")
	if date != "Sep 01" || timing != "AMC" {
		t.Errorf("SplitEarningsDate = %q, %q", date, timing)
	}
	if _, timing := SplitEarningsDate("Sep 01/b"); timing != "BMO" {
		t.Errorf("timing = %q, want BMO", timing)
	}
}

func TestCleanAndFilter(t *testing.T) {
	rows := [][]string{
		{"MSFT", "2.10T", "300.00", "0.10%", "Sep 01/a"},
		{"SMALL", "5.00B", "20.00", "1.00%", "Sep 01/a"},
		{"EARLY", "50.00B", "80.00", "1.00%", "Sep 01/b"},
		{"NOCAP", "-", "40.00", "1.00%", "Sep 01/a"},
		{"AAPL", "2.45T", "148.60", "1.23%", "Sep 01/a"},
		{"BAD", "10B", "abc", "1%", "Sep 01/a"},
		{"ORCL", "250.00B", "90.00", "-2.00%", "Sep 01/a"},
	}
	all := Clean(context.Background(), rows)
	if len(all) != 6 {
		t.Fatalf("expected 6 clean rows, got %d", len(all))
	}

	got := Filter(all, "AMC", 10)
	var syms []string
	for _, e := range got {
		syms = append(syms, e.Symbol)
	}
	if strings.Join(syms, ",") != "AAPL,MSFT,ORCL" {
		t.Errorf("filtered = %v", syms)
	}
	if got[2].Change != -0.02 || got[2].Date != "Sep 01" || got[2].Timing != "AMC" {
		t.Errorf("unexpected ORCL row %+v", got[2])
	}

	bmo := Filter(all, "BMO", 10)
	if len(bmo) != 1 || bmo[0].Symbol != "EARLY" {
		t.Errorf("BMO filter = %+v", bmo)
	}

	if both := Filter(all, "ALL", 10); len(both) != 4 || both[3].Symbol != "EARLY" {
		t.Errorf("ALL filter = %+v", both)
	}
}

type fakeFinviz struct {
	t        *testing.T
	logins   int32
	screens  int32
	sessions bool
}

func (f *fakeFinviz) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case loginPath:
		atomic.AddInt32(&f.logins, 1)
		if r.Method != http.MethodPost {
			f.t.Errorf("login method = %s", r.Method)
		}
		r.ParseForm()
		if r.PostForm.Get("email") != "me@example.com" || r.PostForm.Get("password") != "secret" || r.PostForm.Get("remember") != "true" {
			f.t.Errorf("unexpected login form %v", r.PostForm)
		}
		http.SetCookie(w, &http.Cookie{Name: ".ASPXAUTH", Value: "session", Path: "/"})
		w.Write([]byte("ok"))
	case screenerPath:
		atomic.AddInt32(&f.screens, 1)
		if c, err := r.Cookie(".ASPXAUTH"); err == nil && c.Value == "session" {
			f.sessions = true
		}
		q := r.URL.Query()
		if q.Get("v") != "152" || q.Get("f") != "sh_price_o15,sh_relvol_o1" || q.Get("o") != "-marketcap" || q.Get("c") != screenerColumns {
			f.t.Errorf("unexpected screener query %v", q)
		}
		if r.Header.Get("User-Agent") == "" {
			f.t.Error("missing user agent")
		}
		switch q.Get("s") {
		case "n_earningsbefore":
			w.Write([]byte(screenerPage([]string{"JPM", "450.00B", "160.00", "0.50%", "Sep 01/b"})))
		case "n_earningsafter":
			w.Write([]byte(screenerPage(
				[]string{"ORCL", "250.00B", "90.00", "-2.00%", "Sep 01/a"},
				[]string{"AAPL", "2.45T", "148.60", "1.23%", "Sep 01/a"},
			)))
		default:
			f.t.Errorf("unexpected signal %q", q.Get("s"))
		}
	default:
		http.NotFound(w, r)
	}
}

func TestScannerEarnings(t *testing.T) {
	fake := &fakeFinviz{t: t}
	server := httptest.NewServer(fake)
	defer server.Close()

	s, err := New(Config{
		BaseURL:              server.URL,
		Email:                "me@example.com",
		Password:             "secret",
		Timing:               "amc",
		MinMarketCapBillions: 10,
		MinPrice:             15,
		MinRelativeVolume:    1,
		Timeout:              5 * time.Second,
		CacheDir:             filepath.Join(t.TempDir(), "cache"),
		CacheTTL:             time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := s.Earnings(context.Background())
	if err != nil {
		t.Fatalf("Earnings: %v", err)
	}
	want := []types.Earning{
		{Symbol: "AAPL", MarketCap: 2450, Price: 148.6, Change: 0.0123, Date: "Sep 01", Timing: "AMC"},
		{Symbol: "ORCL", MarketCap: 250, Price: 90, Change: -0.02, Date: "Sep 01", Timing: "AMC"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d earnings, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Symbol != want[i].Symbol || got[i].Timing != want[i].Timing || got[i].Price != want[i].Price {
			t.Errorf("earning %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !fake.sessions {
		t.Error("screener requests should carry the login session cookie")
	}

	if _, err := s.Earnings(context.Background()); err != nil {
		t.Fatalf("second Earnings: %v", err)
	}
	if fake.logins != 1 || fake.screens != 2 {
		t.Errorf("second call should be served from cache: logins=%d screens=%d", fake.logins, fake.screens)
	}
}

func TestScannerLoginFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	s, err := New(Config{BaseURL: server.URL, Email: "a", Password: "b"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.Earnings(context.Background()); err == nil {
		t.Error("expected login error")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{Email: "a"}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

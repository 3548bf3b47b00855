package tradelog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"earnings/internal/logger"
)

type Action string

const (
	Place   Action = "PLACE"
	Replace Action = "REPLACE"
	Cancel  Action = "CANCEL"
)

const (
	journalExt = ".jsonl"
	dayLayout  = "2006-01-02"
)

// Entry is one line of the order journal.
type Entry struct {
	ID         string   `json:"id"`
	Time       string   `json:"time"`
	Action     Action   `json:"action"`
	OrderID    string   `json:"order_id,omitempty"`
	ReplacedID string   `json:"replaced_order_id,omitempty"` // order cancelled by a REPLACE
	Symbols    []string `json:"symbols,omitempty"`
	Price      float64  `json:"price,omitempty"`
	Qty        int      `json:"qty,omitempty"`
	ToOpen     bool     `json:"to_open"`
	Error      string   `json:"error,omitempty"`
}

// Journal appends order events to one JSON lines file per day.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func New(dir string) *Journal {
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, now: time.Now}
}

func (j *Journal) Dir() string {
	return j.dir
}

// Path is the journal file for the day containing t.
func (j *Journal) Path(t time.Time) string {
	return filepath.Join(j.dir, t.Format(dayLayout)+journalExt)
}

// journalClock feeds the journal's clock to zap so entry times and file
// names agree.
type journalClock struct {
	now func() time.Time
}

func (c journalClock) Now() time.Time { return c.now() }

func (c journalClock) NewTicker(d time.Duration) *time.Ticker { return time.NewTicker(d) }

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// Append assigns e an id and timestamp and writes it to today's file.
func (j *Journal) Append(e Entry) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	e.ID = uuid.NewString()
	e.Time = now.Format(time.RFC3339)

	p := j.Path(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return e, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return e, err
	}
	defer f.Close()

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(f), zapcore.InfoLevel)
	log := zap.New(core, zap.WithClock(journalClock{now: func() time.Time { return now }}))

	fields := []zap.Field{
		zap.String("id", e.ID),
		zap.String("action", string(e.Action)),
	}
	if e.OrderID != "" {
		fields = append(fields, zap.String("order_id", e.OrderID))
	}
	if e.ReplacedID != "" {
		fields = append(fields, zap.String("replaced_order_id", e.ReplacedID))
	}
	if len(e.Symbols) > 0 {
		fields = append(fields, zap.Strings("symbols", e.Symbols))
	}
	if e.Price != 0 {
		fields = append(fields, zap.Float64("price", e.Price))
	}
	if e.Qty != 0 {
		fields = append(fields, zap.Int("qty", e.Qty))
	}
	fields = append(fields, zap.Bool("to_open", e.ToOpen))
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}

	log.Info("", fields...)
	if err := log.Sync(); err != nil {
		return e, fmt.Errorf("sync journal: %w", err)
	}
	return e, nil
}

// Read returns the entries journaled on the day containing t, reading the
// gzipped file if the day was already compressed. A missing journal is
// not an error. Lines that do not parse are skipped with a warning.
func (j *Journal) Read(t time.Time) ([]Entry, error) {
	p := j.Path(t)
	var r io.Reader

	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		f, err = os.Open(p + ".gz")
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open %s.gz: %w", p, err)
		}
		defer gz.Close()
		r = gz
	} else if err != nil {
		return nil, err
	} else {
		defer f.Close()
		r = f
	}

	var entries []Entry
	skipped, lineNo, firstBad := 0, 0, 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			if skipped == 0 {
				firstBad = lineNo
			}
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if skipped > 0 {
		logger.Warn(context.Background(), "Skipped unreadable journal lines", "path", p, "skipped", skipped, "first_line", firstBad)
	}
	return entries, sc.Err()
}

// CompressOlder gzips journal files dated more than retentionDays ago.
func (j *Journal) CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, fe := range files {
		name := fe.Name()
		if fe.IsDir() || filepath.Ext(name) != journalExt {
			continue
		}
		day, err := time.ParseInLocation(dayLayout, strings.TrimSuffix(name, journalExt), now.Location())
		if err != nil || !day.Before(cutoff) {
			continue
		}
		if err := gzipFile(filepath.Join(j.dir, name)); err != nil {
			return fmt.Errorf("compress %s: %w", name, err)
		}
	}
	return nil
}

func gzipFile(p string) error {
	gzPath := p + ".gz"
	if _, err := os.Stat(gzPath); err == nil {
		return os.Remove(p)
	}

	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(gzPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(gzPath)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(p)
}

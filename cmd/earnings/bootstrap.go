package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"earnings/internal/broker/brokerobs"
	"earnings/internal/broker/tdameritrade"
	"earnings/internal/eod"
	"earnings/internal/eod/eodobs"
	"earnings/internal/executor"
	"earnings/internal/interfaces"
	"earnings/internal/logger"
	"earnings/internal/options"
	"earnings/internal/scanner/finviz"
	"earnings/internal/store"
	"earnings/internal/trace"
	"earnings/internal/tradelog"

	"github.com/joho/godotenv"
)

var errUsage = errors.New("usage")

// initializeSystem loads .env and sets up the logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// app holds what the commands share. The broker and scanner are built on
// first use so commands that do not need them run without credentials.
type app struct {
	cfg     *store.Config
	creds   store.Credentials
	journal *tradelog.Journal
	stdin   io.Reader
	stdout  io.Writer

	td     *tdameritrade.TDAmeritrade
	broker interfaces.Broker
}

func newApp(ctx context.Context, configPath string, stdin io.Reader, stdout io.Writer) (*app, error) {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		creds:   store.CredentialsFromEnv(),
		journal: tradelog.New(cfg.Journal.Dir),
		stdin:   stdin,
		stdout:  stdout,
	}
	a.compressOldJournals(ctx)
	return a, nil
}

// compressOldJournals gzips journal days past the configured retention.
func (a *app) compressOldJournals(ctx context.Context) {
	if a.cfg.Journal.RetentionDays <= 0 {
		return
	}
	if err := a.journal.CompressOlder(a.cfg.Journal.RetentionDays); err != nil {
		logger.Warn(ctx, "Failed to compress old journals", "error", err)
	}
}

func (a *app) tdClient() (*tdameritrade.TDAmeritrade, error) {
	if a.td != nil {
		return a.td, nil
	}
	if err := a.creds.RequireBroker(); err != nil {
		return nil, err
	}
	td, err := tdameritrade.New(tdameritrade.Params{
		APIKey:            a.creds.TDAPIKey,
		RedirectURI:       a.creds.TDRedirectURI,
		AccountID:         a.creds.TDAccountID,
		BaseURL:           a.cfg.Broker.BaseURL,
		AuthURL:           a.cfg.Broker.AuthURL,
		TokenPath:         a.cfg.Broker.TokenPath,
		Timeout:           time.Duration(a.cfg.Broker.TimeoutSeconds) * time.Second,
		RequestsPerMinute: a.cfg.Broker.RequestsPerMinute,
		Retries:           a.cfg.Broker.Retries,
	})
	if err != nil {
		return nil, err
	}
	a.td = td
	return td, nil
}

// brokerClient returns the TD client wrapped with observability middleware.
func (a *app) brokerClient() (interfaces.Broker, error) {
	if a.broker != nil {
		return a.broker, nil
	}
	td, err := a.tdClient()
	if err != nil {
		return nil, err
	}
	a.broker = brokerobs.Wrap(td)
	return a.broker, nil
}

func (a *app) strangler(target options.Target) (*options.Strangler, error) {
	brk, err := a.brokerClient()
	if err != nil {
		return nil, err
	}
	s := a.cfg.Strangle
	return options.NewStrangler(brk, options.Config{
		Target:                 target,
		Weeklies:               s.Weeklies,
		MinPremium:             s.MinPremium,
		ExpectedMoveMultiplier: s.ExpectedMoveMultiplier,
		MaxRelativeSpread:      s.MaxRelativeSpread,
	}), nil
}

func (a *app) scanner() (interfaces.EarningsScanner, error) {
	sc := a.cfg.Scanner
	s, err := finviz.New(finviz.Config{
		BaseURL:              sc.BaseURL,
		Email:                a.creds.FinvizEmail,
		Password:             a.creds.FinvizPassword,
		Timing:               sc.Timing,
		MinMarketCapBillions: sc.MinMarketCapBillions,
		MinPrice:             sc.MinPrice,
		MinRelativeVolume:    sc.MinRelativeVolume,
		Timeout:              time.Duration(sc.TimeoutSeconds) * time.Second,
		CacheDir:             sc.CacheDir,
		CacheTTL:             time.Duration(sc.CacheTTLMinutes) * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (a *app) executor() (*executor.Executor, error) {
	brk, err := a.brokerClient()
	if err != nil {
		return nil, err
	}
	return executor.New(brk, a.journal), nil
}

func (a *app) summarizer() interfaces.EodSummarizer {
	return eodobs.Wrap(eod.NewSummarizer(a.journal))
}

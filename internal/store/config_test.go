package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Broker.BaseURL != "https://api.tdameritrade.com/v1" {
		t.Errorf("unexpected broker base url: %s", cfg.Broker.BaseURL)
	}
	if cfg.Scanner.Timing != "AMC" {
		t.Errorf("expected AMC timing, got %s", cfg.Scanner.Timing)
	}
	if cfg.Scanner.MinMarketCapBillions != 10 {
		t.Errorf("expected 10B min market cap, got %.2f", cfg.Scanner.MinMarketCapBillions)
	}
	if cfg.Strangle.MinPremium != 1.00 {
		t.Errorf("expected min premium 1.00, got %.2f", cfg.Strangle.MinPremium)
	}
	if cfg.Strangle.ExpectedMoveMultiplier != 1.25 {
		t.Errorf("expected multiplier 1.25, got %.2f", cfg.Strangle.ExpectedMoveMultiplier)
	}
	if !cfg.Strangle.Weeklies {
		t.Error("expected weeklies enabled by default")
	}
	if cfg.Broker.RequestsPerMinute != 120 {
		t.Errorf("expected 120 requests per minute, got %d", cfg.Broker.RequestsPerMinute)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
broker:
  token_path: /tmp/td.json
scanner:
  timing: bmo
  min_market_cap_billions: 50
strangle:
  dte: 7
  weeklies: false
  min_premium: 2.5
  max_relative_spread: 0.2
  quantity: 3
journal:
  dir: journal
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Broker.TokenPath != "/tmp/td.json" {
		t.Errorf("unexpected token path: %s", cfg.Broker.TokenPath)
	}
	if cfg.Scanner.Timing != "BMO" {
		t.Errorf("expected timing upper-cased to BMO, got %s", cfg.Scanner.Timing)
	}
	if cfg.Scanner.MinMarketCapBillions != 50 {
		t.Errorf("unexpected min market cap: %.2f", cfg.Scanner.MinMarketCapBillions)
	}
	if cfg.Strangle.DTE != 7 || cfg.Strangle.Weeklies {
		t.Errorf("unexpected strangle expiration settings: dte=%d weeklies=%v", cfg.Strangle.DTE, cfg.Strangle.Weeklies)
	}
	if cfg.Strangle.MinPremium != 2.5 || cfg.Strangle.Quantity != 3 {
		t.Errorf("unexpected strangle params: %+v", cfg.Strangle)
	}
	if cfg.Journal.Dir != "journal" {
		t.Errorf("unexpected journal dir: %s", cfg.Journal.Dir)
	}
	// untouched sections still get defaults
	if cfg.Strangle.ExpectedMoveMultiplier != 1.25 {
		t.Errorf("expected default multiplier, got %.2f", cfg.Strangle.ExpectedMoveMultiplier)
	}
}

func TestLoadConfigKeepsExplicitZeros(t *testing.T) {
	path := writeConfig(t, `
scanner:
  min_market_cap_billions: 0
strangle:
  min_premium: 0
  weeklies: false
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Strangle.MinPremium != 0 {
		t.Errorf("expected min premium 0, got %.2f", cfg.Strangle.MinPremium)
	}
	if cfg.Scanner.MinMarketCapBillions != 0 {
		t.Errorf("expected min market cap 0, got %.2f", cfg.Scanner.MinMarketCapBillions)
	}
	if cfg.Strangle.Weeklies {
		t.Error("expected weeklies disabled")
	}
	if cfg.Strangle.Quantity != 1 || cfg.Scanner.MinPrice != 15 {
		t.Errorf("absent keys lost their defaults: quantity=%d min_price=%d", cfg.Strangle.Quantity, cfg.Scanner.MinPrice)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad timing", "scanner:\n  timing: NOON\n", "scanner.timing"},
		{"negative dte", "strangle:\n  dte: -1\n", "strangle.dte"},
		{"negative spread", "strangle:\n  max_relative_spread: -0.1\n", "max_relative_spread"},
		{"negative premium", "strangle:\n  min_premium: -1\n", "min_premium"},
		{"zero timeout", "broker:\n  timeout_seconds: 0\n", "timeout_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "broker: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCredentialsRequireBroker(t *testing.T) {
	t.Setenv("TD_API_KEY", "key")
	t.Setenv("TD_REDIRECT_URI", "")
	t.Setenv("TD_ACCOUNT_ID", "")

	err := CredentialsFromEnv().RequireBroker()
	if err == nil {
		t.Fatal("expected missing variables error")
	}
	if !strings.Contains(err.Error(), "TD_REDIRECT_URI") || !strings.Contains(err.Error(), "TD_ACCOUNT_ID") {
		t.Errorf("error should list missing variables, got %q", err)
	}

	t.Setenv("TD_REDIRECT_URI", "https://127.0.0.1")
	t.Setenv("TD_ACCOUNT_ID", "123")
	if err := CredentialsFromEnv().RequireBroker(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

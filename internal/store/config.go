package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Broker struct {
		BaseURL           string `yaml:"base_url"`
		AuthURL           string `yaml:"auth_url"`
		TokenPath         string `yaml:"token_path"`
		TimeoutSeconds    int    `yaml:"timeout_seconds"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
		Retries           int    `yaml:"retries"`
	} `yaml:"broker"`
	Scanner struct {
		BaseURL              string  `yaml:"base_url"`
		Timing               string  `yaml:"timing"`
		MinMarketCapBillions float64 `yaml:"min_market_cap_billions"`
		MinPrice             int     `yaml:"min_price"`
		MinRelativeVolume    int     `yaml:"min_relative_volume"`
		TimeoutSeconds       int     `yaml:"timeout_seconds"`
		CacheDir             string  `yaml:"cache_dir"`
		CacheTTLMinutes      int     `yaml:"cache_ttl_minutes"`
	} `yaml:"scanner"`
	Strangle struct {
		DTE                    int     `yaml:"dte"`
		Weeklies               bool    `yaml:"weeklies"`
		MinPremium             float64 `yaml:"min_premium"`
		ExpectedMoveMultiplier float64 `yaml:"expected_move_multiplier"`
		MaxRelativeSpread      float64 `yaml:"max_relative_spread"`
		Quantity               int     `yaml:"quantity"`
	} `yaml:"strangle"`
	Journal struct {
		Dir           string `yaml:"dir"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"journal"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Credentials are read from the environment only, never from config.yaml.
type Credentials struct {
	TDAPIKey       string
	TDRedirectURI  string
	TDAccountID    string
	FinvizEmail    string
	FinvizPassword string
}

func CredentialsFromEnv() Credentials {
	return Credentials{
		TDAPIKey:       os.Getenv("TD_API_KEY"),
		TDRedirectURI:  os.Getenv("TD_REDIRECT_URI"),
		TDAccountID:    os.Getenv("TD_ACCOUNT_ID"),
		FinvizEmail:    os.Getenv("FINVIZ_EMAIL"),
		FinvizPassword: os.Getenv("FINVIZ_PASSWORD"),
	}
}

// RequireBroker reports which TD variables are missing.
func (c Credentials) RequireBroker() error {
	var missing []string
	if c.TDAPIKey == "" {
		missing = append(missing, "TD_API_KEY")
	}
	if c.TDRedirectURI == "" {
		missing = append(missing, "TD_REDIRECT_URI")
	}
	if c.TDAccountID == "" {
		missing = append(missing, "TD_ACCOUNT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Scanner.Timing {
	case "AMC", "BMO", "ALL":
	default:
		return fmt.Errorf("invalid scanner.timing '%s': must be 'AMC', 'BMO' or 'ALL'", c.Scanner.Timing)
	}
	if c.Strangle.DTE < 0 {
		return fmt.Errorf("strangle.dte must be >= 0, got %d", c.Strangle.DTE)
	}
	if c.Strangle.MinPremium < 0 {
		return fmt.Errorf("strangle.min_premium must be >= 0, got %.2f", c.Strangle.MinPremium)
	}
	if c.Strangle.ExpectedMoveMultiplier <= 0 {
		return fmt.Errorf("strangle.expected_move_multiplier must be > 0, got %.2f", c.Strangle.ExpectedMoveMultiplier)
	}
	if c.Strangle.MaxRelativeSpread < 0 {
		return fmt.Errorf("strangle.max_relative_spread must be >= 0, got %.2f", c.Strangle.MaxRelativeSpread)
	}
	if c.Strangle.Quantity <= 0 {
		return fmt.Errorf("strangle.quantity must be > 0, got %d", c.Strangle.Quantity)
	}
	if c.Broker.RequestsPerMinute <= 0 {
		return errors.New("broker.requests_per_minute must be > 0")
	}
	if c.Broker.TimeoutSeconds <= 0 || c.Scanner.TimeoutSeconds <= 0 {
		return errors.New("broker.timeout_seconds and scanner.timeout_seconds must be > 0")
	}
	if c.Broker.Retries < 0 {
		return fmt.Errorf("broker.retries must be >= 0, got %d", c.Broker.Retries)
	}
	return nil
}

// Default returns the configuration used when no config.yaml is present.
// LoadConfig decodes on top of it, so absent keys keep these values and
// explicit zeros survive.
func Default() *Config {
	c := &Config{}
	c.Broker.BaseURL = "https://api.tdameritrade.com/v1"
	c.Broker.AuthURL = "https://auth.tdameritrade.com/auth"
	c.Broker.TokenPath = "token.json"
	c.Broker.TimeoutSeconds = 30
	c.Broker.RequestsPerMinute = 120
	c.Broker.Retries = 3

	c.Scanner.BaseURL = "https://finviz.com"
	c.Scanner.Timing = "AMC"
	c.Scanner.MinMarketCapBillions = 10
	c.Scanner.MinPrice = 15
	c.Scanner.MinRelativeVolume = 1
	c.Scanner.TimeoutSeconds = 30
	c.Scanner.CacheDir = "cache/finviz"
	c.Scanner.CacheTTLMinutes = 30

	c.Strangle.Weeklies = true
	c.Strangle.MinPremium = 1.00
	c.Strangle.ExpectedMoveMultiplier = 1.25
	c.Strangle.Quantity = 1

	c.Journal.Dir = "logs"
	return c
}

// LoadConfig reads path; a missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		c := Default()
		return c, c.Validate()
	}
	if err != nil {
		return nil, err
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.Scanner.Timing = strings.ToUpper(strings.TrimSpace(c.Scanner.Timing))

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return c, nil
}

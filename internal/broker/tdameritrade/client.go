package tdameritrade

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"earnings/internal/api"
	"earnings/internal/interfaces"
)

type Params struct {
	APIKey      string
	RedirectURI string
	AccountID   string

	BaseURL   string
	AuthURL   string
	TokenPath string

	Timeout           time.Duration
	RequestsPerMinute int
	Retries           int

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// TDAmeritrade talks to the TD Ameritrade REST API.
type TDAmeritrade struct {
	p    Params
	auth *Authenticator
	api  *api.Client
}

var _ interfaces.Broker = (*TDAmeritrade)(nil)

func New(p Params) (*TDAmeritrade, error) {
	if p.APIKey == "" {
		return nil, errors.New("tdameritrade: api key is required")
	}
	if p.BaseURL == "" {
		p.BaseURL = "https://api.tdameritrade.com/v1"
	}
	if p.AuthURL == "" {
		p.AuthURL = "https://auth.tdameritrade.com/auth"
	}
	if p.TokenPath == "" {
		p.TokenPath = "token.json"
	}
	if p.Timeout <= 0 {
		p.Timeout = 30 * time.Second
	}
	if p.RequestsPerMinute <= 0 {
		p.RequestsPerMinute = 120
	}
	if p.Retries <= 0 {
		p.Retries = 3
	}

	// Token and data requests share one bucket so refreshes count toward the limit.
	limiter := api.PerMinute(p.RequestsPerMinute)
	retry := api.DefaultRetryConfig()
	retry.MaxAttempts = p.Retries

	common := []api.ClientOption{
		api.WithBaseURL(p.BaseURL),
		api.WithTimeout(p.Timeout),
		api.WithLogging(true),
		api.WithRateLimiter(limiter),
		api.WithRetry(retry),
	}
	if p.HTTPClient != nil {
		hc := *p.HTTPClient
		hc.Timeout = p.Timeout
		common = append(common, api.WithHTTPClient(&hc))
	}

	tokenClient := api.NewClient(common...)
	auth := NewAuthenticator(p.APIKey, p.RedirectURI, p.AuthURL, tokenClient, NewTokenStore(p.TokenPath))

	dataClient := api.NewClient(append(common, api.WithTokenSource(auth.AccessToken))...)

	return &TDAmeritrade{p: p, auth: auth, api: dataClient}, nil
}

// Auth exposes the authenticator for the login flow.
func (td *TDAmeritrade) Auth() *Authenticator {
	return td.auth
}

func (td *TDAmeritrade) accountPath(suffix string) (string, error) {
	if td.p.AccountID == "" {
		return "", errors.New("tdameritrade: account id is required")
	}
	return fmt.Sprintf("/accounts/%s%s", td.p.AccountID, suffix), nil
}

package tdameritrade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"earnings/internal/api"
	"earnings/internal/logger"
)

var (
	// ErrNoToken means no token file exists yet; run the auth command.
	ErrNoToken = errors.New("no cached TD Ameritrade token: run `earnings auth` first")
	// ErrRefreshExpired means the 90 day refresh token lapsed and a new login is needed.
	ErrRefreshExpired = errors.New("TD Ameritrade refresh token expired: run `earnings auth` again")
)

const (
	accessTokenSkew    = 60 * time.Second
	refreshRenewWindow = 7 * 24 * time.Hour
	tokenEndpoint      = "/oauth2/token"
	defaultRefreshLife = 90 * 24 * time.Hour
	defaultAccessLife  = 30 * time.Minute
)

// Token is the cached OAuth token pair.
type Token struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	TokenType             string    `json:"token_type"`
	ExpiresAt             time.Time `json:"expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// tokenResponse is the body of /oauth2/token.
type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	RefreshToken          string `json:"refresh_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int64  `json:"expires_in"`
	RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
}

// apply merges a token response into t. A refresh without access_type=offline
// returns no refresh token, in which case the existing one is kept.
func (t *Token) apply(r tokenResponse, now time.Time) {
	t.AccessToken = r.AccessToken
	t.TokenType = r.TokenType
	accessLife := defaultAccessLife
	if r.ExpiresIn > 0 {
		accessLife = time.Duration(r.ExpiresIn) * time.Second
	}
	t.ExpiresAt = now.Add(accessLife)

	if r.RefreshToken != "" {
		t.RefreshToken = r.RefreshToken
		refreshLife := defaultRefreshLife
		if r.RefreshTokenExpiresIn > 0 {
			refreshLife = time.Duration(r.RefreshTokenExpiresIn) * time.Second
		}
		t.RefreshTokenExpiresAt = now.Add(refreshLife)
	}
}

// TokenStore persists the token as JSON on disk.
type TokenStore struct {
	path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

func (s *TokenStore) Path() string {
	return s.path
}

func (s *TokenStore) Load() (*Token, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var t Token
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", s.path, err)
	}
	if t.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return &t, nil
}

func (s *TokenStore) Save(t *Token) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o600)
}

// Authenticator hands out valid access tokens, refreshing them when needed.
type Authenticator struct {
	clientID    string
	redirectURI string
	authURL     string
	http        *api.Client
	store       *TokenStore

	mu    sync.Mutex
	token *Token
	now   func() time.Time
}

// NewAuthenticator builds an authenticator. httpClient must not carry a
// token source itself.
func NewAuthenticator(apiKey, redirectURI, authURL string, httpClient *api.Client, store *TokenStore) *Authenticator {
	return &Authenticator{
		clientID:    ClientID(apiKey),
		redirectURI: redirectURI,
		authURL:     authURL,
		http:        httpClient,
		store:       store,
		now:         time.Now,
	}
}

// ClientID is the OAuth client id TD expects for a consumer key.
func ClientID(apiKey string) string {
	if strings.HasSuffix(apiKey, "@AMER.OAUTHAP") {
		return apiKey
	}
	return apiKey + "@AMER.OAUTHAP"
}

// AuthorizationURL is the page the user opens to grant access.
func (a *Authenticator) AuthorizationURL() string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("redirect_uri", a.redirectURI)
	q.Set("client_id", a.clientID)
	return a.authURL + "?" + q.Encode()
}

// extractCode accepts either a bare authorization code or the full URL the
// browser was redirected to.
func extractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("redirect url has no code parameter")
	}
	return code, nil
}

// ExchangeCode trades an authorization code for a token pair and caches it.
func (a *Authenticator) ExchangeCode(ctx context.Context, codeOrRedirect string) (*Token, error) {
	code, err := extractCode(codeOrRedirect)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("access_type", "offline")
	form.Set("code", code)
	form.Set("client_id", a.clientID)
	form.Set("redirect_uri", a.redirectURI)

	tr, err := a.postToken(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	t := &Token{}
	t.apply(tr, a.now())
	if err := a.store.Save(t); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	a.token = t
	logger.Info(ctx, "TD Ameritrade token stored", "path", a.store.Path(), "refresh_expires", t.RefreshTokenExpiresAt.Format(time.RFC3339))
	return t, nil
}

// AccessToken returns a valid access token, refreshing it when it is about
// to expire. It matches api.TokenSource.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token == nil {
		t, err := a.store.Load()
		if err != nil {
			return "", err
		}
		a.token = t
	}

	now := a.now()
	if !a.token.RefreshTokenExpiresAt.IsZero() && !now.Before(a.token.RefreshTokenExpiresAt) {
		return "", ErrRefreshExpired
	}
	if a.token.AccessToken != "" && now.Add(accessTokenSkew).Before(a.token.ExpiresAt) {
		return a.token.AccessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", a.token.RefreshToken)
	form.Set("client_id", a.clientID)
	rotate := !a.token.RefreshTokenExpiresAt.IsZero() && now.Add(refreshRenewWindow).After(a.token.RefreshTokenExpiresAt)
	if rotate {
		form.Set("access_type", "offline")
	}

	tr, err := a.postToken(ctx, form)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	a.token.apply(tr, now)
	if err := a.store.Save(a.token); err != nil {
		logger.Warn(ctx, "Failed to persist refreshed token", "error", err)
	}
	logger.Debug(ctx, "Access token refreshed", "rotated_refresh_token", rotate)
	return a.token.AccessToken, nil
}

func (a *Authenticator) postToken(ctx context.Context, form url.Values) (tokenResponse, error) {
	var tr tokenResponse
	resp, err := a.http.POST(ctx, tokenEndpoint, form)
	if err != nil {
		return tr, err
	}
	if err := resp.ParseJSON(&tr); err != nil {
		return tr, err
	}
	if tr.AccessToken == "" {
		return tr, errors.New("token response has no access_token")
	}
	return tr, nil
}

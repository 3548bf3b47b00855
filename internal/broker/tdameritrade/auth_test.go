package tdameritrade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"earnings/internal/api"
)

type tokenServer struct {
	t     *testing.T
	forms []url.Values
	reply map[string]any
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != tokenEndpoint {
		s.t.Errorf("unexpected path %q", r.URL.Path)
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		s.t.Fatalf("parse form: %v", err)
	}
	s.forms = append(s.forms, r.PostForm)
	json.NewEncoder(w).Encode(s.reply)
}

func newTestAuth(t *testing.T, ts *tokenServer) (*Authenticator, *TokenStore, time.Time) {
	t.Helper()
	server := httptest.NewServer(ts)
	t.Cleanup(server.Close)

	store := NewTokenStore(filepath.Join(t.TempDir(), "tokens", "token.json"))
	a := NewAuthenticator("KEY", "https://localhost", "https://auth.example.com/auth",
		api.NewClient(api.WithBaseURL(server.URL)), store)
	now := time.Date(2021, 9, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	return a, store, now
}

func TestClientID(t *testing.T) {
	if got := ClientID("KEY"); got != "KEY@AMER.OAUTHAP" {
		t.Errorf("ClientID = %q", got)
	}
	if got := ClientID("KEY@AMER.OAUTHAP"); got != "KEY@AMER.OAUTHAP" {
		t.Errorf("ClientID should not double the suffix, got %q", got)
	}
}

func TestAuthorizationURL(t *testing.T) {
	a, _, _ := newTestAuth(t, &tokenServer{t: t})

	u, err := url.Parse(a.AuthorizationURL())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "auth.example.com" || u.Path != "/auth" {
		t.Errorf("unexpected url %s", u)
	}
	q := u.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != "KEY@AMER.OAUTHAP" || q.Get("redirect_uri") != "https://localhost" {
		t.Errorf("unexpected query %v", q)
	}
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"plain-code", "plain-code", false},
		{"https://localhost/?code=abc%2Fdef%3D", "abc/def=", false},
		{"  https://localhost?code=xyz&state=1 \n", "xyz", false},
		{"https://localhost/?code=", "", true},
		{"   ", "", true},
	}
	for _, tt := range tests {
		got, err := extractCode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("extractCode(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("extractCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExchangeCode(t *testing.T) {
	ts := &tokenServer{t: t, reply: map[string]any{
		"access_token":             "at-1",
		"refresh_token":            "rt-1",
		"token_type":               "Bearer",
		"expires_in":               1800,
		"refresh_token_expires_in": 7776000,
	}}
	a, store, now := newTestAuth(t, ts)

	tok, err := a.ExchangeCode(context.Background(), "https://localhost/?code=abc%2Bdef")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}

	form := ts.forms[0]
	if form.Get("grant_type") != "authorization_code" || form.Get("access_type") != "offline" {
		t.Errorf("unexpected grant: %v", form)
	}
	if form.Get("code") != "abc+def" || form.Get("client_id") != "KEY@AMER.OAUTHAP" || form.Get("redirect_uri") != "https://localhost" {
		t.Errorf("unexpected form: %v", form)
	}

	if !tok.ExpiresAt.Equal(now.Add(30*time.Minute)) || !tok.RefreshTokenExpiresAt.Equal(now.Add(90*24*time.Hour)) {
		t.Errorf("unexpected expiries %v / %v", tok.ExpiresAt, tok.RefreshTokenExpiresAt)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token file mode = %v", info.Mode().Perm())
	}
	saved, err := store.Load()
	if err != nil || saved.RefreshToken != "rt-1" {
		t.Errorf("Load() = %+v, %v", saved, err)
	}
}

func TestAccessToken(t *testing.T) {
	t.Run("missing token file", func(t *testing.T) {
		a, _, _ := newTestAuth(t, &tokenServer{t: t})
		if _, err := a.AccessToken(context.Background()); !errors.Is(err, ErrNoToken) {
			t.Errorf("expected ErrNoToken, got %v", err)
		}
	})

	t.Run("uses cached token", func(t *testing.T) {
		ts := &tokenServer{t: t}
		a, store, now := newTestAuth(t, ts)
		store.Save(&Token{AccessToken: "cached", RefreshToken: "rt", ExpiresAt: now.Add(10 * time.Minute), RefreshTokenExpiresAt: now.Add(60 * 24 * time.Hour)})

		got, err := a.AccessToken(context.Background())
		if err != nil || got != "cached" {
			t.Fatalf("AccessToken = %q, %v", got, err)
		}
		if len(ts.forms) != 0 {
			t.Errorf("token endpoint should not be called")
		}
	})

	t.Run("refreshes near expiry and keeps refresh token", func(t *testing.T) {
		ts := &tokenServer{t: t, reply: map[string]any{"access_token": "fresh", "expires_in": 1800}}
		a, store, now := newTestAuth(t, ts)
		refreshExp := now.Add(60 * 24 * time.Hour)
		store.Save(&Token{AccessToken: "stale", RefreshToken: "rt", ExpiresAt: now.Add(30 * time.Second), RefreshTokenExpiresAt: refreshExp})

		got, err := a.AccessToken(context.Background())
		if err != nil || got != "fresh" {
			t.Fatalf("AccessToken = %q, %v", got, err)
		}
		form := ts.forms[0]
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "rt" {
			t.Errorf("unexpected form %v", form)
		}
		if form.Get("access_type") != "" {
			t.Errorf("refresh token should not rotate yet")
		}

		saved, _ := store.Load()
		if saved.AccessToken != "fresh" || saved.RefreshToken != "rt" || !saved.RefreshTokenExpiresAt.Equal(refreshExp) {
			t.Errorf("unexpected saved token %+v", saved)
		}
	})

	t.Run("rotates refresh token within a week of expiry", func(t *testing.T) {
		ts := &tokenServer{t: t, reply: map[string]any{"access_token": "fresh", "refresh_token": "rt-2", "expires_in": 1800, "refresh_token_expires_in": 7776000}}
		a, store, now := newTestAuth(t, ts)
		store.Save(&Token{AccessToken: "stale", RefreshToken: "rt", ExpiresAt: now.Add(-time.Minute), RefreshTokenExpiresAt: now.Add(3 * 24 * time.Hour)})

		if _, err := a.AccessToken(context.Background()); err != nil {
			t.Fatalf("AccessToken: %v", err)
		}
		if ts.forms[0].Get("access_type") != "offline" {
			t.Errorf("expected access_type=offline, got %v", ts.forms[0])
		}
		saved, _ := store.Load()
		if saved.RefreshToken != "rt-2" || !saved.RefreshTokenExpiresAt.Equal(now.Add(90*24*time.Hour)) {
			t.Errorf("refresh token not rotated: %+v", saved)
		}
	})

	t.Run("expired refresh token", func(t *testing.T) {
		a, store, now := newTestAuth(t, &tokenServer{t: t})
		store.Save(&Token{AccessToken: "stale", RefreshToken: "rt", ExpiresAt: now.Add(-time.Hour), RefreshTokenExpiresAt: now.Add(-time.Minute)})

		if _, err := a.AccessToken(context.Background()); !errors.Is(err, ErrRefreshExpired) {
			t.Errorf("expected ErrRefreshExpired, got %v", err)
		}
	})
}

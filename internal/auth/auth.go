// Package auth manages the OAuth session with the storefront.
//
// A Token is persisted as JSON next to the catalog database. The
// Session refreshes it transparently shortly before expiry, so the
// rest of the program only ever sees a valid bearer token through the
// TokenSource interface it implements.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Public embed-client credentials used by the storefront's own
// downloader clients.
const (
	DefaultAuthURL      = "https://auth.gog.com/token"
	defaultClientID     = "46899977096215655"
	defaultClientSecret = "9d85c43b1482497dbbce61f6e4aa173a433796eeae2ca8c5f6129f2dc4de46d9"
	redirectURI         = "https://embed.gog.com/on_login_success?origin=client"
)

// expirySlack refreshes tokens slightly early so a token never expires
// mid-download.
const expirySlack = time.Minute

// ErrNotLoggedIn is returned when no stored token exists.
var ErrNotLoggedIn = errors.New("not logged in: run the login command first")

// LoginURL is the browser address where the user authenticates; the
// storefront then redirects to a page whose "code" query parameter is
// the authorization code LoginWithCode expects.
func LoginURL() string {
	return "https://auth.gog.com/auth?" + url.Values{
		"client_id":     {defaultClientID},
		"redirect_uri":  {redirectURI},
		"response_type": {"code"},
		"layout":        {"client2"},
	}.Encode()
}

// Token is the persisted OAuth state.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Valid reports whether the access token can still be used.
func (t Token) Valid() bool {
	return t.AccessToken != "" && time.Now().Before(t.Expiry.Add(-expirySlack))
}

// Session persists and refreshes a Token and implements
// transfer.TokenSource.
type Session struct {
	path    string
	authURL string
	client  *http.Client

	mu  sync.Mutex
	tok Token
}

// NewSession creates a session backed by the token file at path. The
// file may not exist yet; Token then fails with ErrNotLoggedIn until
// LoginWithCode succeeds.
func NewSession(path string) *Session {
	return &Session{
		path:    path,
		authURL: DefaultAuthURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetAuthURL overrides the token endpoint. Used by tests.
func (s *Session) SetAuthURL(u string) { s.authURL = u }

// Token returns a valid bearer token, refreshing it first if the
// stored one has expired.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok.AccessToken == "" {
		tok, err := s.load()
		if err != nil {
			return "", err
		}
		s.tok = tok
	}
	if s.tok.Valid() {
		return s.tok.AccessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.tok.AccessToken, nil
}

// LoginWithCode exchanges an authorization code from the browser login
// flow for a token and persists it.
func (s *Session) LoginWithCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.exchangeLocked(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	})
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.tok.RefreshToken == "" {
		return ErrNotLoggedIn
	}
	return s.exchangeLocked(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.tok.RefreshToken},
	})
}

func (s *Session) exchangeLocked(ctx context.Context, params url.Values) error {
	params.Set("client_id", defaultClientID)
	params.Set("client_secret", defaultClientSecret)

	u := s.authURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token request: HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("token response: %w", err)
	}
	if body.AccessToken == "" {
		return errors.New("token response contained no access token")
	}

	s.tok = Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	return s.save()
}

func (s *Session) load() (Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Token{}, ErrNotLoggedIn
		}
		return Token{}, err
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, fmt.Errorf("token file %s: %w", s.path, err)
	}
	return tok, nil
}

func (s *Session) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.tok, "", "  ")
	if err != nil {
		return err
	}
	// Token file is a credential; keep it owner-readable only.
	return os.WriteFile(s.path, data, 0600)
}

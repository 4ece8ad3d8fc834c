package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSession_NotLoggedIn(t *testing.T) {
	s := NewSession(filepath.Join(t.TempDir(), "token.json"))
	_, err := s.Token(context.Background())
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("Token() error = %v, want ErrNotLoggedIn", err)
	}
}

func TestSession_ValidTokenFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := Token{AccessToken: "stored", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
	data, _ := json.Marshal(tok)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	s := NewSession(path)
	got, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "stored" {
		t.Errorf("Token() = %q, want %q", got, "stored")
	}
}

func TestSession_RefreshesExpiredToken(t *testing.T) {
	var gotGrant, gotRefresh string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGrant = r.URL.Query().Get("grant_type")
		gotRefresh = r.URL.Query().Get("refresh_token")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh",
			"refresh_token": "next",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "token.json")
	tok := Token{AccessToken: "stale", RefreshToken: "old", Expiry: time.Now().Add(-time.Hour)}
	data, _ := json.Marshal(tok)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	s := NewSession(path)
	s.SetAuthURL(srv.URL)

	got, err := s.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "fresh" {
		t.Errorf("Token() = %q, want refreshed token", got)
	}
	if gotGrant != "refresh_token" || gotRefresh != "old" {
		t.Errorf("refresh request = (%q, %q)", gotGrant, gotRefresh)
	}

	// The refreshed token must be persisted for the next run.
	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var savedTok Token
	if err := json.Unmarshal(saved, &savedTok); err != nil {
		t.Fatal(err)
	}
	if savedTok.AccessToken != "fresh" || savedTok.RefreshToken != "next" {
		t.Errorf("persisted token = %+v", savedTok)
	}
}

func TestSession_LoginWithCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.URL.Query().Get("code"); got != "abc123" {
			t.Errorf("code = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "first",
			"refresh_token": "r1",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	s := NewSession(filepath.Join(t.TempDir(), "token.json"))
	s.SetAuthURL(srv.URL)

	if err := s.LoginWithCode(context.Background(), "abc123"); err != nil {
		t.Fatalf("LoginWithCode() error = %v", err)
	}
	got, err := s.Token(context.Background())
	if err != nil || got != "first" {
		t.Fatalf("Token() = (%q, %v), want the fresh login token", got, err)
	}
}

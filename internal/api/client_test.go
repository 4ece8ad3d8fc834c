package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmykflutterby/GogDownloader/internal/model"
)

const detailsJSON = `{
	"title": "Witcher 3",
	"downloads": [
		["English", {"windows": [
			{"name": "Installer", "manualUrl": "/downlink/witcher3/en1installer0", "size": 100, "md5": "abc"}
		]}],
		["Czech", {"windows": [
			{"name": "Installer", "manualUrl": "/downlink/witcher3/cz1installer0", "size": 50, "md5": "def"}
		], "linux": [
			{"name": "Installer", "manualUrl": "/downlink/witcher3/cz1installer1", "size": 60}
		]}]
	]
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(nil)
	c.SetBaseURL(srv.URL)
	return c
}

func TestClient_OwnedGames(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/data/games" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"owned": [1207664663, 1207658930]}`)
	}))

	ids, err := c.OwnedGames(context.Background())
	if err != nil {
		t.Fatalf("OwnedGames() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 1207664663 {
		t.Errorf("OwnedGames() = %v", ids)
	}
}

func TestClient_GameDetails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/gameDetails/42.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, detailsJSON)
	}))

	game, err := c.GameDetails(context.Background(), 42)
	if err != nil {
		t.Fatalf("GameDetails() error = %v", err)
	}
	if game.Title != "Witcher 3" || game.ID != 42 {
		t.Errorf("game = %+v", game)
	}
	if len(game.Downloads) != 3 {
		t.Fatalf("got %d downloads, want 3", len(game.Downloads))
	}

	first := game.Downloads[0]
	if first.Language != "English" || first.Platform != model.PlatformWindows {
		t.Errorf("first download = %+v", first)
	}
	if first.Size != 100 || first.MD5 != "abc" {
		t.Errorf("first download size/md5 = %d/%q", first.Size, first.MD5)
	}
	if first.URL != c.BaseURL()+"/downlink/witcher3/en1installer0" {
		t.Errorf("first download URL = %q", first.URL)
	}

	// The Linux file declared no hash; that must survive as empty, not "0".
	last := game.Downloads[2]
	if last.Platform != model.PlatformLinux || last.MD5 != "" {
		t.Errorf("last download = %+v", last)
	}
}

func TestClient_Games_Lazy(t *testing.T) {
	var detailCalls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/data/games":
			fmt.Fprint(w, `{"owned": [1, 2, 3]}`)
		default:
			detailCalls++
			fmt.Fprint(w, detailsJSON)
		}
	}))

	// Stopping the iteration early must stop fetching details: the
	// sequence is consumed one game at a time.
	stop := fmt.Errorf("stop")
	err := c.Games(context.Background(), func(g model.Game) error {
		return stop
	})
	if err != stop {
		t.Fatalf("Games() error = %v, want the callback error", err)
	}
	if detailCalls != 1 {
		t.Errorf("detail fetches = %d, want 1 (lazy iteration)", detailCalls)
	}
}

func TestClient_GameDetails_HTTPError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))

	if _, err := c.GameDetails(context.Background(), 42); err == nil {
		t.Fatal("GameDetails() should fail on HTTP 403")
	}
}

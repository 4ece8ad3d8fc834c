// Package api talks to the storefront's embed JSON API: the list of
// owned game ids and the per-game details with downloadable files.
// It is the fresh-fetch producer of catalog entries; the sqlite store
// in internal/catalog is the persisted one.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cmykflutterby/GogDownloader/internal/model"
	"github.com/cmykflutterby/GogDownloader/internal/transfer"
)

// DefaultBaseURL is the embed API endpoint.
const DefaultBaseURL = "https://embed.gog.com"

// Client fetches library data from the storefront API.
type Client struct {
	httpClient *http.Client
	tokens     transfer.TokenSource
	baseURL    string
	userAgent  string
}

// NewClient creates an API client authenticating through tokens.
func NewClient(tokens transfer.TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		tokens:     tokens,
		baseURL:    DefaultBaseURL,
		userAgent:  "GogDownloader",
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = strings.TrimRight(u, "/") }

// BaseURL returns the configured API endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

// OwnedGames returns the ids of all games in the user's library.
func (c *Client) OwnedGames(ctx context.Context) ([]int64, error) {
	var body struct {
		Owned []int64 `json:"owned"`
	}
	if err := c.get(ctx, "/user/data/games", &body); err != nil {
		return nil, err
	}
	return body.Owned, nil
}

// gameDetails mirrors the API response for one game. The downloads
// field is a list of two-element arrays: the store-local language name
// followed by a platform-to-files map.
type gameDetails struct {
	Title     string            `json:"title"`
	Downloads []json.RawMessage `json:"downloads"`
}

type fileDetails struct {
	Name      string `json:"name"`
	ManualURL string `json:"manualUrl"`
	Size      int64  `json:"size"`
	MD5       string `json:"md5"`
}

// GameDetails fetches one game's title and downloadable files.
func (c *Client) GameDetails(ctx context.Context, id int64) (model.Game, error) {
	var details gameDetails
	if err := c.get(ctx, fmt.Sprintf("/account/gameDetails/%d.json", id), &details); err != nil {
		return model.Game{}, err
	}

	game := model.Game{ID: id, Title: details.Title}
	for _, raw := range details.Downloads {
		downloads, err := c.decodeLanguageGroup(raw)
		if err != nil {
			return model.Game{}, fmt.Errorf("game %d: %w", id, err)
		}
		game.Downloads = append(game.Downloads, downloads...)
	}
	return game, nil
}

// decodeLanguageGroup unpacks one ["English", {"windows": [...]}] pair.
func (c *Client) decodeLanguageGroup(raw json.RawMessage) ([]model.Download, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return nil, fmt.Errorf("malformed download group")
	}
	var language string
	if err := json.Unmarshal(pair[0], &language); err != nil {
		return nil, fmt.Errorf("malformed download language: %w", err)
	}
	var byPlatform map[string][]fileDetails
	if err := json.Unmarshal(pair[1], &byPlatform); err != nil {
		return nil, fmt.Errorf("malformed download platforms: %w", err)
	}

	var out []model.Download
	for _, platform := range []model.Platform{model.PlatformWindows, model.PlatformMac, model.PlatformLinux} {
		for _, f := range byPlatform[string(platform)] {
			out = append(out, model.Download{
				Name:     f.Name,
				Language: language,
				Platform: platform,
				URL:      c.baseURL + f.ManualURL,
				Size:     f.Size,
				MD5:      f.MD5,
			})
		}
	}
	return out, nil
}

// Games yields every owned game one at a time, fetching details
// lazily so downloads can start before the whole library is known.
// Implements the download.Source interface.
func (c *Client) Games(ctx context.Context, fn func(model.Game) error) error {
	ids, err := c.OwnedGames(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		game, err := c.GameDetails(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(game); err != nil {
			return err
		}
	}
	return nil
}

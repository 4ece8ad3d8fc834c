package catalog

import (
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cmykflutterby/GogDownloader/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleGames() []model.Game {
	return []model.Game{
		{
			ID:    2,
			Title: "Beneath a Steel Sky",
			Downloads: []model.Download{
				{Name: "installer", Language: "English", Platform: model.PlatformWindows, URL: "https://x/bass.exe", Size: 90, MD5: "b1"},
			},
		},
		{
			ID:    1,
			Title: "Witcher 3",
			Downloads: []model.Download{
				{Name: "installer-en", Language: "English", Platform: model.PlatformWindows, URL: "https://x/w3en.exe", Size: 100, MD5: "abc"},
				{Name: "installer-cz", Language: "Czech", Platform: model.PlatformWindows, URL: "https://x/w3cz.exe", Size: 50, MD5: ""},
			},
		},
	}
}

func TestDB_UpsertAndIterate(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, g := range sampleGames() {
		if err := db.UpsertGame(ctx, g); err != nil {
			t.Fatalf("UpsertGame() error = %v", err)
		}
	}

	var titles []string
	var witcher model.Game
	err := db.Games(ctx, func(g model.Game) error {
		titles = append(titles, g.Title)
		if g.ID == 1 {
			witcher = g
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Games() error = %v", err)
	}

	// Ordered by title.
	if len(titles) != 2 || titles[0] != "Beneath a Steel Sky" || titles[1] != "Witcher 3" {
		t.Errorf("titles = %v", titles)
	}
	// Downloads keep catalog order and all fields.
	if len(witcher.Downloads) != 2 {
		t.Fatalf("witcher downloads = %d, want 2", len(witcher.Downloads))
	}
	first := witcher.Downloads[0]
	if first.Name != "installer-en" || first.Platform != model.PlatformWindows || first.Size != 100 || first.MD5 != "abc" {
		t.Errorf("first download = %+v", first)
	}
	if witcher.Downloads[1].MD5 != "" {
		t.Errorf("missing hash must round-trip as empty, got %q", witcher.Downloads[1].MD5)
	}
}

func TestDB_UpsertReplacesDownloads(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	g := sampleGames()[1]
	if err := db.UpsertGame(ctx, g); err != nil {
		t.Fatal(err)
	}

	g.Title = "The Witcher 3"
	g.Downloads = g.Downloads[:1]
	if err := db.UpsertGame(ctx, g); err != nil {
		t.Fatal(err)
	}

	var got model.Game
	if err := db.Games(ctx, func(g model.Game) error { got = g; return nil }); err != nil {
		t.Fatal(err)
	}
	if got.Title != "The Witcher 3" || len(got.Downloads) != 1 {
		t.Errorf("after re-upsert: %+v", got)
	}
}

func TestDB_Stats(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, g := range sampleGames() {
		if err := db.UpsertGame(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	games, files, bytes, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if games != 2 || files != 3 || bytes != 240 {
		t.Errorf("Stats() = (%d, %d, %d), want (2, 3, 240)", games, files, bytes)
	}
}

func TestDB_ExportCSV(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	for _, g := range sampleGames() {
		if err := db.UpsertGame(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	var buf strings.Builder
	if err := db.ExportCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("parse exported CSV: %v", err)
	}
	if len(records) != 4 { // header + 3 files
		t.Fatalf("got %d rows, want 4", len(records))
	}
	if records[0][0] != "game_id" {
		t.Errorf("header = %v", records[0])
	}
	// First data row is the title-ordered first game.
	if records[1][1] != "Beneath a Steel Sky" || records[1][5] != "90" {
		t.Errorf("first row = %v", records[1])
	}
	if records[3][6] != "" {
		t.Errorf("empty hash must export as empty string, got %q", records[3][6])
	}
}

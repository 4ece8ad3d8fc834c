package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/cmykflutterby/GogDownloader/internal/model"
)

// DB wraps a sql.DB connection to the catalog database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at path and runs schema
// migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{db: sqlDB}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// migrate creates all required tables if they do not already exist.
func (d *DB) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS games (
    id INTEGER PRIMARY KEY,
    title TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS downloads (
    game_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    language TEXT NOT NULL,
    platform TEXT NOT NULL,
    url TEXT NOT NULL,
    size INTEGER NOT NULL,
    md5 TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (game_id, position),
    FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
);
`
	_, err := d.db.Exec(schema)
	return err
}

// UpsertGame stores a game and its downloads, replacing any previous
// version of the same game.
func (d *DB) UpsertGame(ctx context.Context, g model.Game) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO games (id, title) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title`,
		g.ID, g.Title); err != nil {
		return fmt.Errorf("upsert game %d: %w", g.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM downloads WHERE game_id = ?`, g.ID); err != nil {
		return fmt.Errorf("clear downloads for game %d: %w", g.ID, err)
	}
	for i, dl := range g.Downloads {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO downloads (game_id, position, name, language, platform, url, size, md5)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, i, dl.Name, dl.Language, string(dl.Platform), dl.URL, dl.Size, dl.MD5); err != nil {
			return fmt.Errorf("insert download %d of game %d: %w", i, g.ID, err)
		}
	}
	return tx.Commit()
}

// Games yields every stored game, ordered by title, one at a time.
// The callback returning an error stops the iteration and Games
// returns that error. Implements the download.Source interface.
func (d *DB) Games(ctx context.Context, fn func(model.Game) error) error {
	rows, err := d.db.QueryContext(ctx, `SELECT id, title FROM games ORDER BY title, id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var g model.Game
		if err := rows.Scan(&g.ID, &g.Title); err != nil {
			return err
		}
		g.Downloads, err = d.downloads(ctx, g.ID)
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (d *DB) downloads(ctx context.Context, gameID int64) ([]model.Download, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT name, language, platform, url, size, md5
		 FROM downloads WHERE game_id = ? ORDER BY position`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Download
	for rows.Next() {
		var dl model.Download
		var platform string
		if err := rows.Scan(&dl.Name, &dl.Language, &platform, &dl.URL, &dl.Size, &dl.MD5); err != nil {
			return nil, err
		}
		dl.Platform = model.Platform(platform)
		out = append(out, dl)
	}
	return out, rows.Err()
}

// Stats returns the number of games and files stored and their total
// declared size in bytes.
func (d *DB) Stats(ctx context.Context) (games, files int, bytes int64, err error) {
	if err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&games); err != nil {
		return
	}
	err = d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM downloads`).Scan(&files, &bytes)
	return
}

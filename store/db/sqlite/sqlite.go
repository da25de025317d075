// ============================================================================
// SQLITE MOVIE STORE (Development / Small Catalogs)
// ============================================================================
// SQLite does NOT support vector search (no pgvector equivalent).
// The retrieval tier falls back to a full scan with in-process cosine
// scoring, which is fine for catalogs of a few tens of thousands of
// records.
//
// Embeddings and mood tags are stored as JSON text columns.
//
// For native vector search, use PostgreSQL.
// ============================================================================
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite movie store and ensures the schema exists.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent request handlers.
	db.SetMaxOpenConns(1)

	driver := &DB{db: db, profile: profile}
	if err := driver.migrate(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to migrate schema")
	}
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS movie (
			imdb_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			year INTEGER NOT NULL DEFAULT 0,
			tmdb_id INTEGER NOT NULL DEFAULT 0,
			poster_path TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			production_country TEXT NOT NULL DEFAULT '',
			director TEXT NOT NULL DEFAULT '',
			plot TEXT NOT NULL DEFAULT '',
			mood_tags TEXT NOT NULL DEFAULT '[]',
			embedding TEXT NOT NULL DEFAULT ''
		)
	`)
	return err
}

// ============================================================================
// POSTGRESQL MOVIE STORE (Production - Full Support)
// ============================================================================
// PostgreSQL is the primary store for production use.
//
// All features are fully supported:
// - Minimal-projection catalog scans
// - Batched key lookups
// - Native vector search (pgvector extension, cosine distance)
//
// When adding new store features, PostgreSQL is the reference
// implementation.
// ============================================================================
package postgres

import (
	"database/sql"
	"time"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the PostgreSQL movie store.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// Read-only catalog access from short-lived request handlers; a small
	// pool is plenty.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(2 * time.Hour)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

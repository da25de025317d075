package db

import (
	"github.com/pkg/errors"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/store"
	"github.com/relivre/popcorn/store/db/postgres"
	"github.com/relivre/popcorn/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// This project supports only PostgreSQL and SQLite movie stores.
//
// PostgreSQL: Full support for production use, native vector search.
// SQLite: Development and small catalogs; retrieval falls back to a full
// scan with in-process scoring.
// ============================================================================

// NewDBDriver creates a new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %q (only 'postgres' and 'sqlite' are supported)", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}

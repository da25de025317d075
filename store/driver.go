package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a movie store database driver must
// implement. The engine only reads; the ingestion pipeline that writes
// these records lives elsewhere.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// ScanMovies reads movie records with a minimal field projection
	// (plot excluded unless requested) and an optional record cap.
	ScanMovies(ctx context.Context, find *FindMovies) ([]*MovieRecord, error)

	// BatchGetMovies resolves full records for up to batchGetMaxKeys
	// identity keys in one round-trip. Unknown keys are skipped.
	BatchGetMovies(ctx context.Context, imdbIDs []string) ([]*MovieRecord, error)

	// VectorSearch performs approximate nearest-neighbor search inside
	// the database. Drivers without vector support return an error; the
	// retrieval tier treats that the same as an unconfigured sidecar.
	VectorSearch(ctx context.Context, embedding []float32, limit int) ([]*MovieHit, error)
}

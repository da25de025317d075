package store

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/plugin/ai/cache"
)

const (
	// batchGetMaxKeys caps one batched key lookup round-trip.
	batchGetMaxKeys = 100
	// batchGetConcurrency bounds in-flight lookup batches per request.
	batchGetConcurrency = 3
	// scanCacheKey is the single key under which a full scan is cached.
	scanCacheKey = "movies:full-scan"
	// scanCacheMax keeps at most one scan snapshot alive.
	scanCacheMax = 1
)

// Store provides read access to the movie catalog. Full scans are cached
// process-wide with a short TTL; the cache is best-effort and losing it
// only costs a re-scan.
type Store struct {
	profile *profile.Profile
	driver  Driver

	scanCache *cache.Cache[[]*MovieRecord]
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:    driver,
		profile:   profile,
		scanCache: cache.New[[]*MovieRecord](),
	}
}

// GetDriver returns the underlying driver.
func (s *Store) GetDriver() Driver {
	return s.driver
}

// Close releases the underlying driver.
func (s *Store) Close() error {
	return s.driver.Close()
}

// ScanMovies reads the catalog with the minimal scoring projection.
// maxScan caps the scan when positive; capped scans bypass the cache so a
// truncated snapshot never serves a later uncapped request.
func (s *Store) ScanMovies(ctx context.Context, maxScan int) ([]*MovieRecord, error) {
	if maxScan > 0 {
		limit := maxScan
		return s.driver.ScanMovies(ctx, &FindMovies{Limit: &limit})
	}

	if movies, ok := s.scanCache.Get(scanCacheKey, s.profile.ScanCacheTTL); ok {
		return movies, nil
	}

	movies, err := s.driver.ScanMovies(ctx, &FindMovies{})
	if err != nil {
		return nil, err
	}
	s.scanCache.Set(scanCacheKey, movies, scanCacheMax)
	return movies, nil
}

// BatchGetMovies resolves full records for the given identity keys,
// splitting them into bounded-concurrency batches of at most
// batchGetMaxKeys. Result order follows the input key order; unknown keys
// are dropped.
func (s *Store) BatchGetMovies(ctx context.Context, imdbIDs []string) ([]*MovieRecord, error) {
	keys := make([]string, 0, len(imdbIDs))
	for _, id := range imdbIDs {
		if id != "" {
			keys = append(keys, id)
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	batches := make([][]string, 0, (len(keys)+batchGetMaxKeys-1)/batchGetMaxKeys)
	for start := 0; start < len(keys); start += batchGetMaxKeys {
		end := start + batchGetMaxKeys
		if end > len(keys) {
			end = len(keys)
		}
		batches = append(batches, keys[start:end])
	}

	fetched := make([][]*MovieRecord, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchGetConcurrency)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			records, err := s.driver.BatchGetMovies(gctx, batch)
			if err != nil {
				return err
			}
			fetched[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*MovieRecord, len(keys))
	for _, records := range fetched {
		for _, m := range records {
			byID[m.ImdbID] = m
		}
	}

	ordered := make([]*MovieRecord, 0, len(byID))
	for _, key := range keys {
		if m, ok := byID[key]; ok {
			ordered = append(ordered, m)
			delete(byID, key)
		}
	}
	return ordered, nil
}

// VectorSearch delegates nearest-neighbor search to the driver.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]*MovieHit, error) {
	return s.driver.VectorSearch(ctx, embedding, limit)
}

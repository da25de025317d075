// Package retrieval produces the candidate movie set for one search:
// a vector-index lookup when an index is reachable, with a cached full
// catalog scan as the fallback tier.
package retrieval

import (
	"context"
	"log/slog"

	"github.com/relivre/popcorn/internal/redact"
	apperrors "github.com/relivre/popcorn/server/internal/errors"
	"github.com/relivre/popcorn/store"
)

// Retrieval paths reported back to the caller.
const (
	PathVector = "vector"
	PathScan   = "scan"
)

const (
	// vectorTopKFloor and vectorTopKFactor size the candidate pool
	// requested from the index: generous relative to the final topK so
	// hard-constraint filtering still leaves enough survivors.
	vectorTopKFloor  = 50
	vectorTopKFactor = 20
)

// Result is one retrieval outcome.
type Result struct {
	Movies []*store.MovieRecord
	// Path is which tier produced the candidates.
	Path string
	// VectorScores maps IMDb ID to the index's similarity score. Only
	// set on the vector path; candidates whose stored embedding is
	// missing fall back to this score.
	VectorScores map[string]float32
	// CountScanned is how many records the scan tier loaded. Zero on
	// the vector path.
	CountScanned int
}

// Retriever is the two-tier candidate source. A nil searcher degrades
// to scan-only operation.
type Retriever struct {
	store    *store.Store
	searcher VectorSearcher
	logger   *slog.Logger
}

// NewRetriever wires a retriever over the movie store and an optional
// vector searcher.
func NewRetriever(st *store.Store, searcher VectorSearcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: st, searcher: searcher, logger: logger}
}

// Retrieve resolves candidates for the query vector. Index failures and
// empty index answers degrade to the scan tier instead of failing the
// search; only the scan tier itself failing is fatal.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32, topK, maxScan int) (*Result, error) {
	if r.searcher != nil && len(vector) > 0 {
		result, err := r.retrieveVector(ctx, vector, topK)
		if err == nil && len(result.Movies) > 0 {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeContextCanceled, "retrieval canceled")
		}
		if err != nil {
			r.logger.Warn("vector retrieval failed, falling back to scan",
				slog.String("error", redact.Error(err)))
		} else {
			r.logger.Info("vector retrieval returned no candidates, falling back to scan")
		}
	}
	return r.retrieveScan(ctx, maxScan)
}

func (r *Retriever) retrieveVector(ctx context.Context, vector []float32, topK int) (*Result, error) {
	k := topK * vectorTopKFactor
	if k < vectorTopKFloor {
		k = vectorTopKFloor
	}

	hits, err := r.searcher.VectorSearch(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &Result{Path: PathVector}, nil
	}

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float32, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ImdbID)
		scores[hit.ImdbID] = hit.Score
	}

	movies, err := r.store.BatchGetMovies(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &Result{Movies: movies, Path: PathVector, VectorScores: scores}, nil
}

func (r *Retriever) retrieveScan(ctx context.Context, maxScan int) (*Result, error) {
	movies, err := r.store.ScanMovies(ctx, maxScan)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeContextCanceled, "retrieval canceled")
		}
		return nil, apperrors.StoreUnavailable("catalog scan failed", err)
	}
	return &Result{Movies: movies, Path: PathScan, CountScanned: len(movies)}, nil
}

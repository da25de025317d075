package sqlite

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/relivre/popcorn/store"
)

// scanProjection is the minimal field set for ranking and display. Plot
// is excluded: it dominates row size and never participates in scoring.
const scanProjection = `
	imdb_id, title, year, tmdb_id, poster_path,
	genre, tags, keywords, language, production_country, director,
	mood_tags, embedding`

// ScanMovies reads movie records with the minimal projection.
func (d *DB) ScanMovies(ctx context.Context, find *store.FindMovies) ([]*store.MovieRecord, error) {
	projection := scanProjection
	if find != nil && find.WithPlot {
		projection += ", plot"
	}

	query := "SELECT " + projection + " FROM movie"
	args := []any{}
	if find != nil && find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan movies")
	}
	defer rows.Close()

	withPlot := find != nil && find.WithPlot
	movies := []*store.MovieRecord{}
	for rows.Next() {
		movie, err := scanMovieRow(rows, withPlot)
		if err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movies, nil
}

// BatchGetMovies resolves full records (plot included) by identity key.
func (d *DB) BatchGetMovies(ctx context.Context, imdbIDs []string) ([]*store.MovieRecord, error) {
	if len(imdbIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(imdbIDs))
	args := make([]any, len(imdbIDs))
	for i, id := range imdbIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "SELECT " + scanProjection + ", plot FROM movie WHERE imdb_id IN (" +
		strings.Join(placeholders, ", ") + ")"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to batch get movies")
	}
	defer rows.Close()

	movies := []*store.MovieRecord{}
	for rows.Next() {
		movie, err := scanMovieRow(rows, true)
		if err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movies, nil
}

// VectorSearch is NOT supported for SQLite.
// The retrieval tier treats this the same as an unconfigured sidecar and
// falls back to a full scan.
func (d *DB) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]*store.MovieHit, error) {
	return nil, errors.New("vector search requires PostgreSQL with the pgvector extension")
}

func scanMovieRow(rows interface{ Scan(...any) error }, withPlot bool) (*store.MovieRecord, error) {
	var movie store.MovieRecord
	var moodTagsJSON, embeddingJSON string

	dest := []any{
		&movie.ImdbID, &movie.Title, &movie.Year, &movie.TmdbID, &movie.PosterPath,
		&movie.Genre, &movie.Tags, &movie.Keywords, &movie.Language,
		&movie.ProductionCountry, &movie.Director,
		&moodTagsJSON, &embeddingJSON,
	}
	if withPlot {
		dest = append(dest, &movie.Plot)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, "failed to scan movie row")
	}

	if moodTagsJSON != "" && moodTagsJSON != "[]" {
		var tags []string
		if err := json.Unmarshal([]byte(moodTagsJSON), &tags); err != nil {
			// Legacy rows stored delimited text instead of JSON.
			tags = store.SplitMoodTags(moodTagsJSON)
		}
		movie.MoodTags = store.NormalizeMoodTags(tags)
	}

	if embeddingJSON != "" {
		if err := json.Unmarshal([]byte(embeddingJSON), &movie.Embedding); err != nil {
			return nil, errors.Wrapf(err, "failed to decode embedding for %s", movie.ImdbID)
		}
	}

	return &movie, nil
}

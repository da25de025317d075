package postgres

import (
	"context"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/relivre/popcorn/store"
)

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
		query += " LIMIT $1"
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

	query := "SELECT " + scanProjection + ", plot FROM movie WHERE imdb_id = ANY($1)"

	rows, err := d.db.QueryContext(ctx, query, pq.Array(imdbIDs))
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

// VectorSearch performs vector similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity), so
// ordering by distance ascending yields the most similar rows first.
func (d *DB) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]*store.MovieHit, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT
			imdb_id,
			1 - (embedding <=> $1) AS score
		FROM movie
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`

	vector := pgvector.NewVector(embedding)
	rows, err := d.db.QueryContext(ctx, query, vector, vector, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	hits := []*store.MovieHit{}
	for rows.Next() {
		var hit store.MovieHit
		if err := rows.Scan(&hit.ImdbID, &hit.Score); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector hit")
		}
		hits = append(hits, &hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}

func scanMovieRow(rows interface{ Scan(...any) error }, withPlot bool) (*store.MovieRecord, error) {
	var movie store.MovieRecord
	var moodTags pq.StringArray
	var vector *pgvector.Vector

	dest := []any{
		&movie.ImdbID, &movie.Title, &movie.Year, &movie.TmdbID, &movie.PosterPath,
		&movie.Genre, &movie.Tags, &movie.Keywords, &movie.Language,
		&movie.ProductionCountry, &movie.Director,
		&moodTags, &vector,
	}
	if withPlot {
		dest = append(dest, &movie.Plot)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, "failed to scan movie row")
	}

	if len(moodTags) > 0 {
		movie.MoodTags = store.NormalizeMoodTags(moodTags)
	}
	if vector != nil {
		movie.Embedding = vector.Slice()
	}

	return &movie, nil
}

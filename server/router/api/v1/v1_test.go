package v1

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/server/queryengine"
	"github.com/relivre/popcorn/server/ranking"
	"github.com/relivre/popcorn/server/retrieval"
	"github.com/relivre/popcorn/server/search"
	"github.com/relivre/popcorn/store"
)

type stubTextService struct {
	completeReply string
	embedding     []float32
}

func (s *stubTextService) Complete(context.Context, string) (string, error) {
	return s.completeReply, nil
}

func (s *stubTextService) Embedding(context.Context, string) ([]float32, error) {
	return s.embedding, nil
}

func (s *stubTextService) EmbeddingModel() string { return "stub-embedding" }

type fakeDriver struct {
	movies []*store.MovieRecord
}

func (f *fakeDriver) GetDB() *sql.DB { return nil }
func (f *fakeDriver) Close() error   { return nil }

func (f *fakeDriver) ScanMovies(context.Context, *store.FindMovies) ([]*store.MovieRecord, error) {
	return f.movies, nil
}

func (f *fakeDriver) BatchGetMovies(context.Context, []string) ([]*store.MovieRecord, error) {
	return f.movies, nil
}

func (f *fakeDriver) VectorSearch(context.Context, []float32, int) ([]*store.MovieHit, error) {
	return nil, nil
}

func newTestService(t *testing.T) *APIV1Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	prof := profile.Default()
	prof.Version = "test"

	svc := &stubTextService{embedding: []float32{1, 0, 0}}
	queries, err := queryengine.NewEngine(svc, logger, queryengine.Options{
		TranslationCacheTTL: time.Hour,
		TranslationCacheMax: 100,
	})
	require.NoError(t, err)

	st := store.New(&fakeDriver{movies: []*store.MovieRecord{
		{ImdbID: "tt0111161", Title: "The Shawshank Redemption", Year: 1994, Embedding: []float32{1, 0, 0}},
		{ImdbID: "tt0068646", Title: "The Godfather", Year: 1972, Embedding: []float32{0, 1, 0}},
	}}, prof)

	engine := search.NewEngine(
		queries,
		search.NewEmbedder(svc, 3, time.Hour, 100),
		retrieval.NewRetriever(st, nil, logger),
		ranking.NewScorer(ranking.DefaultWeights()),
		logger,
	)
	return NewAPIV1Service(prof, st, engine, logger)
}

func doRequest(t *testing.T, s *APIV1Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	s.Register(e)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleSearch(t *testing.T) {
	s := newTestService(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/search", `{"query":"a prison drama","topK":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "a prison drama", resp.Query)
	require.Equal(t, 1, resp.TopK)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "tt0111161", resp.Results[0].ImdbID)
}

func TestHandleSearchMissingQuery(t *testing.T) {
	s := newTestService(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/search", `{"topK":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Error)
	require.Equal(t, "INVALID_ARGUMENT", resp.Code)
}

func TestHandleSearchMalformedBody(t *testing.T) {
	s := newTestService(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/search", `{"query": `)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSearchTopKDefault(t *testing.T) {
	s := newTestService(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/search", `{"query":"a prison drama"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp search.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, search.DefaultTopK, resp.TopK)
}

func TestHandleHealthz(t *testing.T) {
	s := newTestService(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthzResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "test", resp.Version)
}

func TestStatusForCode(t *testing.T) {
	// Spot-check the interesting mappings.
	require.Equal(t, http.StatusBadGateway, statusForCode("LLM_UNAVAILABLE"))
	require.Equal(t, http.StatusUnprocessableEntity, statusForCode("EMBEDDING_INVALID"))
	require.Equal(t, http.StatusInternalServerError, statusForCode("SOMETHING_ELSE"))
}

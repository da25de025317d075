// Package search runs the full request pipeline: query understanding,
// embedding, candidate retrieval, ranking, and response assembly.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/relivre/popcorn/internal/redact"
	"github.com/relivre/popcorn/plugin/ai/timeout"
	"github.com/relivre/popcorn/server/internal/errors"
	"github.com/relivre/popcorn/server/queryengine"
	"github.com/relivre/popcorn/server/ranking"
	"github.com/relivre/popcorn/server/retrieval"
)

const (
	// TopK bounds: clients ask for 1..MaxTopK results.
	DefaultTopK = 5
	MaxTopK     = 20
)

// ClampTopK normalizes a requested result count into the supported
// range. Zero and negative values take the default.
func ClampTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	if topK > MaxTopK {
		return MaxTopK
	}
	return topK
}

// Request is one search invocation.
type Request struct {
	Query string
	// TopK is clamped into 1..MaxTopK; zero means DefaultTopK.
	TopK int
	// MaxScan caps the scan fallback tier; zero scans the full catalog.
	MaxScan int
}

// ResultItem is one ranked movie in the response.
type ResultItem struct {
	ImdbID            string  `json:"imdbId"`
	Title             string  `json:"title"`
	Year              int     `json:"year,omitempty"`
	TmdbID            int64   `json:"tmdbId,omitempty"`
	PosterPath        string  `json:"poster_path,omitempty"`
	Similarity        float32 `json:"similarity"`
	Score             float32 `json:"score"`
	LexicalBoost      float32 `json:"lexicalBoost"`
	MoodBoost         float32 `json:"moodBoost"`
	GenreBoost        float32 `json:"genreBoost"`
	GenrePenalty      float32 `json:"genrePenalty"`
	ProductionCountry string  `json:"productionCountry,omitempty"`
}

// HintFlags mirrors the boolean intent hints in the response.
type HintFlags struct {
	WantsJapanese  bool `json:"wantsJapanese"`
	WantsKorean    bool `json:"wantsKorean"`
	WantsEnglish   bool `json:"wantsEnglish"`
	WantsAnimation bool `json:"wantsAnimation"`
}

// Timings breaks the request latency down per stage, in milliseconds.
type Timings struct {
	Total       int64  `json:"total"`
	Translate   int64  `json:"translate"`
	Embed       int64  `json:"embed"`
	Vector      *int64 `json:"vector,omitempty"`
	FetchMovies int64  `json:"fetchMovies"`
	Score       int64  `json:"score"`
}

// Response is the full search answer.
type Response struct {
	Query             string       `json:"query"`
	QueryEnglish      string       `json:"queryEnglish,omitempty"`
	ExpandedQuery     string       `json:"expandedQuery"`
	HintLang          string       `json:"hintLang,omitempty"`
	HintFlags         HintFlags    `json:"hintFlags"`
	HintGenres        []string     `json:"hintGenres,omitempty"`
	HintExcludeGenres []string     `json:"hintExcludeGenres,omitempty"`
	TimingsMs         Timings      `json:"timingsMs"`
	CountScanned      *int         `json:"countScanned,omitempty"`
	Note              string       `json:"note,omitempty"`
	CountCandidates   int          `json:"countCandidates"`
	CountScored       int          `json:"countScored"`
	TopK              int          `json:"topK"`
	Results           []ResultItem `json:"results"`
}

// Engine wires the pipeline stages together. All stages are injected so
// tests can script each of them.
type Engine struct {
	queries   *queryengine.Engine
	embedder  *Embedder
	retriever *retrieval.Retriever
	scorer    *ranking.Scorer
	logger    *slog.Logger

	now func() time.Time
}

// NewEngine assembles a search engine from its stages.
func NewEngine(queries *queryengine.Engine, embedder *Embedder, retriever *retrieval.Retriever, scorer *ranking.Scorer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		queries:   queries,
		embedder:  embedder,
		retriever: retriever,
		scorer:    scorer,
		logger:    logger,
		now:       time.Now,
	}
}

// Search executes the pipeline for one request.
func (e *Engine) Search(ctx context.Context, req *Request) (*Response, error) {
	start := e.now()
	topK := ClampTopK(req.TopK)

	tTranslate := e.now()
	qc, err := e.queries.Understand(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	translateMs := e.sinceMs(tTranslate)

	tEmbed := e.now()
	vector, err := e.embedder.Embed(ctx, qc.Hints.ExpandedQuery)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeEmbeddingInvalid) {
			// An unusable query vector means we could not understand the
			// query, not that the system failed. Answer with nothing found.
			e.logger.Warn("unusable query embedding",
				slog.String("query", truncateForLog(qc.Original)),
				slog.String("error", redact.Error(err)))
			resp := e.assemble(qc, &retrieval.Result{}, &ranking.Outcome{}, topK)
			resp.Note = "query could not be interpreted into a usable embedding"
			resp.TimingsMs = Timings{
				Total:     e.sinceMs(start),
				Translate: translateMs,
				Embed:     e.sinceMs(tEmbed),
			}
			return resp, nil
		}
		return nil, err
	}
	embedMs := e.sinceMs(tEmbed)

	tFetch := e.now()
	retrieved, err := e.retriever.Retrieve(ctx, vector, topK, req.MaxScan)
	if err != nil {
		return nil, err
	}
	fetchMs := e.sinceMs(tFetch)

	tScore := e.now()
	ranked := e.scorer.Rank(vector, retrieved.Movies, &qc.Hints, topK, retrieved.VectorScores)
	scoreMs := e.sinceMs(tScore)

	resp := e.assemble(qc, retrieved, ranked, topK)
	resp.TimingsMs = Timings{
		Total:       e.sinceMs(start),
		Translate:   translateMs,
		Embed:       embedMs,
		FetchMovies: fetchMs,
		Score:       scoreMs,
	}
	if retrieved.Path == retrieval.PathVector {
		// Vector latency is folded into the fetch stage; surfacing it
		// separately still tells operators which tier served the query.
		resp.TimingsMs.Vector = &fetchMs
	}

	e.logger.Info("search completed",
		slog.String("query", truncateForLog(qc.Original)),
		slog.String("path", retrieved.Path),
		slog.Int("candidates", resp.CountCandidates),
		slog.Int("scored", resp.CountScored),
		slog.Int64("totalMs", resp.TimingsMs.Total))

	return resp, nil
}

func (e *Engine) assemble(qc *queryengine.QueryContext, retrieved *retrieval.Result, ranked *ranking.Outcome, topK int) *Response {
	resp := &Response{
		Query:         qc.Original,
		ExpandedQuery: qc.Hints.ExpandedQuery,
		HintLang:      qc.Hints.WantLang,
		HintFlags: HintFlags{
			WantsJapanese:  qc.Hints.WantsJapanese,
			WantsKorean:    qc.Hints.WantsKorean,
			WantsEnglish:   qc.Hints.WantsEnglish,
			WantsAnimation: qc.Hints.WantsAnimation,
		},
		HintGenres:        qc.Hints.RequiredGenres,
		HintExcludeGenres: qc.Hints.ExcludedGenres,
		CountCandidates:   ranked.CountCandidates,
		CountScored:       ranked.CountScored,
		TopK:              topK,
		Results:           make([]ResultItem, 0, len(ranked.Top)),
	}
	if qc.English != qc.Original {
		resp.QueryEnglish = qc.English
	}
	if retrieved.Path == retrieval.PathScan {
		scanned := retrieved.CountScanned
		resp.CountScanned = &scanned
	}

	for _, sm := range ranked.Top {
		m := sm.Movie
		resp.Results = append(resp.Results, ResultItem{
			ImdbID:            m.ImdbID,
			Title:             m.Title,
			Year:              m.Year,
			TmdbID:            m.TmdbID,
			PosterPath:        m.PosterPath,
			Similarity:        sm.Similarity,
			Score:             sm.Score,
			LexicalBoost:      sm.LexicalBoost,
			MoodBoost:         sm.MoodBoost,
			GenreBoost:        sm.GenreBoost,
			GenrePenalty:      sm.GenrePenalty,
			ProductionCountry: m.ProductionCountry,
		})
	}
	return resp
}

func truncateForLog(s string) string {
	runes := []rune(s)
	if len(runes) <= timeout.MaxTruncateLength {
		return s
	}
	return string(runes[:timeout.MaxTruncateLength]) + "..."
}

func (e *Engine) sinceMs(t time.Time) int64 {
	return e.now().Sub(t).Milliseconds()
}

// TranslationCacheSize exposes translation cache occupancy for health
// reporting.
func (e *Engine) TranslationCacheSize() int {
	return e.queries.TranslationCacheSize()
}

// EmbeddingCacheSize exposes embedding cache occupancy for health
// reporting.
func (e *Engine) EmbeddingCacheSize() int {
	return e.embedder.CacheSize()
}

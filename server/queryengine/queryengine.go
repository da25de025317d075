// Package queryengine turns a raw movie-search query into a structured
// QueryContext: normalized text, an effective English form, and the
// hints that later drive filtering and ranking.
package queryengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/relivre/popcorn/internal/redact"
	"github.com/relivre/popcorn/plugin/ai"
	apperrors "github.com/relivre/popcorn/server/internal/errors"
)

// Engine is the query-understanding front of the search pipeline.
// Stateless apart from the translation cache; safe for concurrent use.
type Engine struct {
	tables     *Tables
	translator *Translator
	svc        ai.TextService
	logger     *slog.Logger
}

// Options configure a query engine.
type Options struct {
	// KeywordTablePath overrides the embedded keyword tables.
	KeywordTablePath string

	TranslationCacheTTL time.Duration
	TranslationCacheMax int
}

// NewEngine builds an engine over the given text service. The service
// may be nil for offline use; non-English queries are then rejected and
// the remote mood stage never runs.
func NewEngine(svc ai.TextService, logger *slog.Logger, opts Options) (*Engine, error) {
	tables, err := LoadTables(opts.KeywordTablePath)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tables:     tables,
		translator: NewTranslator(svc, opts.TranslationCacheTTL, opts.TranslationCacheMax),
		svc:        svc,
		logger:     logger,
	}, nil
}

// Tables exposes the compiled keyword tables, mainly for tests.
func (e *Engine) Tables() *Tables {
	return e.tables
}

// TranslationCacheSize reports the translation cache occupancy.
func (e *Engine) TranslationCacheSize() int {
	return e.translator.CacheSize()
}

// Understand resolves a raw query into a QueryContext. Translation
// failures are fatal for non-English input since embedding untranslated
// CJK text retrieves garbage; mood inference failures are not, the
// query still works without the soft signal.
func (e *Engine) Understand(ctx context.Context, raw string) (*QueryContext, error) {
	original := NormalizeQueryText(raw)
	if original == "" {
		return nil, apperrors.InvalidArgument("query must not be empty")
	}

	qc := &QueryContext{Original: original, English: original}
	if LooksNonEnglish(original) {
		if e.svc == nil {
			return nil, apperrors.LLMUnavailable("translation service not configured", nil)
		}
		translation, err := e.translator.Translate(ctx, original)
		if err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeContextCanceled, "query understanding canceled")
			}
			return nil, apperrors.LLMUnavailable("query translation failed", err)
		}
		qc.English = translation.English
		qc.DetectedLanguage = translation.Language
	}

	qc.Hints = e.tables.buildHints(qc.Original, qc.English)

	mood, err := e.tables.InferMood(ctx, e.svc, qc.Original+" "+qc.English)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeContextCanceled, "query understanding canceled")
		}
		e.logger.Warn("mood classification unavailable, continuing without mood signal",
			slog.String("error", redact.Error(err)))
	}
	qc.Hints.MoodWant = mood.Want
	qc.Hints.MoodAvoid = mood.Avoid

	return qc, nil
}

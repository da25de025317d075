package queryengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/relivre/popcorn/plugin/ai"
	"github.com/relivre/popcorn/plugin/ai/cache"
	"github.com/relivre/popcorn/plugin/ai/timeout"
)

// Translation is one resolved (source language, English text) pair.
type Translation struct {
	Language string
	English  string
}

// Translator converts non-English queries to English for embedding.
// Results are cached by normalized query text so repeated popular
// queries cost one model call.
type Translator struct {
	svc      ai.TextService
	cache    *cache.Cache[Translation]
	cacheTTL time.Duration
	cacheMax int
}

// NewTranslator wires a translator over the given text service. The
// translator owns its cache; callers only choose its TTL and capacity.
func NewTranslator(svc ai.TextService, ttl time.Duration, maxEntries int) *Translator {
	return &Translator{
		svc:      svc,
		cache:    cache.New[Translation](),
		cacheTTL: ttl,
		cacheMax: maxEntries,
	}
}

const translatePromptTemplate = `Translate this movie-search query to English.

Return ONLY a JSON object of the form {"language": "<iso code>", "english": "<translation>"}.
If the query already is English, echo it with language "en".

Query: %s`

// Translate resolves the effective English text for a query. English
// input short-circuits without a model call. Model replies that are not
// the requested JSON are still used verbatim as the translation; a
// well-formed English sentence beats failing the request.
func (t *Translator) Translate(ctx context.Context, query string) (Translation, error) {
	normalized := NormalizeQueryText(query)
	if normalized == "" {
		return Translation{}, errors.New("empty query")
	}
	if !LooksNonEnglish(normalized) {
		return Translation{Language: "en", English: normalized}, nil
	}

	if hit, ok := t.cache.Get(normalized, t.cacheTTL); ok {
		return hit, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout.TranslateTimeout)
	defer cancel()

	reply, err := t.svc.Complete(ctx, fmt.Sprintf(translatePromptTemplate, normalized))
	if err != nil {
		return Translation{}, errors.Wrap(err, "translation failed")
	}

	translation := parseTranslationReply(reply, normalized)
	t.cache.Set(normalized, translation, t.cacheMax)
	return translation, nil
}

// CacheSize reports how many translations are currently cached.
func (t *Translator) CacheSize() int {
	return t.cache.Size()
}

func parseTranslationReply(reply, fallback string) Translation {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start >= 0 && end > start {
		var parsed struct {
			Language string `json:"language"`
			English  string `json:"english"`
		}
		if err := json.Unmarshal([]byte(reply[start:end+1]), &parsed); err == nil {
			english := NormalizeQueryText(parsed.English)
			if english == "" {
				return Translation{English: fallback}
			}
			return Translation{
				Language: NormalizeLanguageCode(parsed.Language),
				English:  english,
			}
		}
	}

	// Non-JSON reply: models occasionally answer with the bare
	// translation, which is exactly what we need.
	if raw := NormalizeQueryText(reply); raw != "" && !LooksNonEnglish(raw) {
		return Translation{English: raw}
	}
	return Translation{English: fallback}
}

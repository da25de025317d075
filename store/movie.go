package store

import (
	"strings"
)

// MoodTagCount is the fixed size of a movie's mood tag set.
const MoodTagCount = 5

// MoodVocabulary is the closed set of viewer-experience tags. Tags
// describe how a movie feels to watch and who it suits, never plot or
// genre. Every intake path must normalize against this list.
var MoodVocabulary = []string{
	"uplifting", "heartwarming", "healing", "comforting", "feel-good",
	"relaxing", "lighthearted", "funny", "romantic", "nostalgic",
	"emotional", "bittersweet", "thought-provoking", "inspiring", "tense",
	"dark", "scary", "gritty", "melancholic", "thrilling",
	"cozy", "epic", "family-friendly", "whimsical",
}

// moodFallbackPool pads undersized tag sets so every stored set has
// exactly MoodTagCount entries.
var moodFallbackPool = []string{
	"emotional", "thought-provoking", "feel-good", "lighthearted", "epic",
}

var moodVocabularySet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(MoodVocabulary))
	for _, tag := range MoodVocabulary {
		set[tag] = struct{}{}
	}
	return set
}()

// IsMoodTag reports whether tag belongs to the vocabulary.
func IsMoodTag(tag string) bool {
	_, ok := moodVocabularySet[strings.ToLower(strings.TrimSpace(tag))]
	return ok
}

// SplitMoodTags turns a loosely delimited tag string into individual
// tags. Legacy records stored tags as comma/space/pipe separated text.
func SplitMoodTags(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', ';', '|':
			return true
		}
		return false
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

// NormalizeMoodTags maps arbitrary input tags onto exactly MoodTagCount
// vocabulary-valid tags: lowercased, deduplicated, out-of-vocabulary tags
// dropped, oversized sets truncated, undersized sets padded from the
// fallback pool.
func NormalizeMoodTags(raw []string) []string {
	out := make([]string, 0, MoodTagCount)
	seen := make(map[string]struct{}, MoodTagCount)

	appendTag := func(tag string) {
		if len(out) >= MoodTagCount {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, r := range raw {
		tag := strings.ToLower(strings.TrimSpace(r))
		if _, ok := moodVocabularySet[tag]; ok {
			appendTag(tag)
		}
	}
	for _, tag := range moodFallbackPool {
		if len(out) >= MoodTagCount {
			break
		}
		appendTag(tag)
	}
	// The pool has MoodTagCount distinct entries, but input tags can
	// overlap all of them; top up from the vocabulary in that case.
	for _, tag := range MoodVocabulary {
		if len(out) >= MoodTagCount {
			break
		}
		appendTag(tag)
	}
	return out
}

// MovieRecord is a movie as the engine reads it. The record is owned by
// the external data store and is read-only here; the enrichment pipeline
// that writes it is out of scope.
type MovieRecord struct {
	// ImdbID is the stable identity key.
	ImdbID string
	Title  string
	Year   int

	// Display passthrough fields.
	TmdbID     int64
	PosterPath string

	// Short descriptive fields used for filtering and lexical boosts.
	Genre             string
	Tags              string
	Keywords          string
	Language          string
	ProductionCountry string
	Director          string

	// Plot is large and excluded from scan projections.
	Plot string

	// Embedding is the fixed-length vector, nil when not yet computed.
	Embedding []float32

	// MoodTags holds exactly MoodTagCount vocabulary tags when present.
	MoodTags []string
}

// SearchText joins the record's short descriptive fields into one
// lowercased haystack. Plot is intentionally excluded: it inflates scan
// payloads and adds noise to token matching.
func (m *MovieRecord) SearchText() string {
	parts := make([]string, 0, 6)
	for _, s := range []string{
		m.Title, m.Genre, m.Keywords, m.Language, m.ProductionCountry, m.Director,
	} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Scorable reports whether the record can participate in similarity
// scoring: it needs a title, an identity key, and an embedding (records
// arriving from the vector tier with a precomputed score are handled
// upstream).
func (m *MovieRecord) Scorable() bool {
	return m != nil && m.Title != "" && m.ImdbID != "" && len(m.Embedding) > 0
}

// FindMovies narrows a store scan.
type FindMovies struct {
	// Limit caps the number of records returned. Nil scans everything.
	Limit *int
	// WithPlot includes the large plot field in the projection.
	WithPlot bool
}

// MovieHit is a vector-tier result: an identity key with a similarity
// score, to be resolved into a full record by batched lookup.
type MovieHit struct {
	ImdbID string
	Score  float32
}

// Package ranking filters candidates against hard constraints and
// orders the survivors by a weighted blend of semantic similarity and
// small rerank signals.
package ranking

import (
	"sort"
	"strings"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/server/queryengine"
	"github.com/relivre/popcorn/store"
)

// Weights are the rerank signal magnitudes. Similarity stays the
// dominant term; every boost is capped so signals refine the ordering
// rather than overrule it.
type Weights struct {
	// LexicalBoost is added per matched lexical term, up to LexicalCap.
	LexicalBoost float32
	LexicalCap   float32

	// MoodBoost is added per matched wanted mood tag, up to MoodCap.
	// MoodAvoidPenalty is subtracted per matched avoided tag, down to
	// -MoodCap.
	MoodBoost        float32
	MoodAvoidPenalty float32
	MoodCap          float32

	// GenreBoost is added per matched required genre, up to GenreCap.
	GenreBoost float32
	GenreCap   float32

	// ExcludedGenrePenalty is subtracted per matched excluded genre.
	ExcludedGenrePenalty float32
	// MissedGenrePenalty is subtracted once when genres were asked for
	// and none matched.
	MissedGenrePenalty float32
}

// DefaultWeights returns the production tuning.
func DefaultWeights() Weights {
	return Weights{
		LexicalBoost:         0.02,
		LexicalCap:           0.12,
		MoodBoost:            0.03,
		MoodAvoidPenalty:     0.03,
		MoodCap:              0.12,
		GenreBoost:           0.06,
		GenreCap:             0.14,
		ExcludedGenrePenalty: 0.22,
		MissedGenrePenalty:   0.10,
	}
}

// WeightsFromProfile reads the rerank tuning out of the runtime
// configuration.
func WeightsFromProfile(p *profile.Profile) Weights {
	return Weights{
		LexicalBoost:         p.LexicalBoost,
		LexicalCap:           p.LexicalCap,
		MoodBoost:            p.MoodBoost,
		MoodAvoidPenalty:     p.MoodAvoidPenalty,
		MoodCap:              p.MoodCap,
		GenreBoost:           p.GenreBoost,
		GenreCap:             p.GenreCap,
		ExcludedGenrePenalty: p.ExcludedGenrePenalty,
		MissedGenrePenalty:   p.MissedGenrePenalty,
	}
}

// Relaxation thresholds: strict filtering only holds when it leaves
// enough survivors relative to the requested topK.
const (
	genreStrictFloor  = 40
	genreStrictFactor = 8

	generalStrictFloor  = 50
	generalStrictFactor = 10
)

// ScoredMovie is one ranked candidate with its score breakdown.
type ScoredMovie struct {
	Movie *store.MovieRecord

	Similarity   float32
	LexicalBoost float32
	MoodBoost    float32
	GenreBoost   float32
	GenrePenalty float32
	Score        float32
}

// Outcome is the full ranking result for one query.
type Outcome struct {
	// Top holds the best topK candidates in descending score order.
	Top []*ScoredMovie
	// CountCandidates is the pool size after filtering and relaxation.
	CountCandidates int
	// CountScored is how many pool members were actually scorable.
	CountScored int
}

// Scorer ranks candidates under a fixed weight tuning. Stateless and
// safe for concurrent use.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// matchesGenreToken reports whether the movie's searchable text carries
// the genre. Sci-fi needs its own spelling variants since catalogs write
// it three different ways.
func matchesGenreToken(text, genre string) bool {
	if genre == "sci-fi" {
		return strings.Contains(text, "sci-fi") ||
			strings.Contains(text, "science fiction") ||
			strings.Contains(text, "scifi")
	}
	return strings.Contains(text, strings.ToLower(genre))
}

// MatchesHints applies the hard constraints: language evidence,
// animation, and excluded genres. Japanese and Korean intent require
// positive evidence; incomplete metadata is treated as a miss there,
// because returning an unrelated country is worse than returning less.
func MatchesHints(movie *store.MovieRecord, hints *queryengine.Hints) bool {
	if movie == nil {
		return false
	}

	if hints.WantLang != "" {
		langCode := queryengine.NormalizeLanguageCode(movie.Language)
		country := strings.ToLower(movie.ProductionCountry)

		switch hints.WantLang {
		case "ja":
			if langCode != "ja" && !strings.Contains(country, "japan") {
				return false
			}
		case "ko":
			if langCode != "ko" && !strings.Contains(country, "korea") {
				return false
			}
		default:
			// Other language intents only filter when the language is
			// actually known.
			if langCode != "" && langCode != hints.WantLang {
				return false
			}
		}
	}

	text := movie.SearchText()

	if hints.WantsAnimation {
		if !strings.Contains(text, "animation") && !strings.Contains(text, "anime") {
			return false
		}
	}

	for _, genre := range hints.ExcludedGenres {
		if genre != "" && matchesGenreToken(text, genre) {
			return false
		}
	}

	return true
}

func matchesAnyRequiredGenre(movie *store.MovieRecord, required []string) bool {
	if len(required) == 0 {
		return true
	}
	text := movie.SearchText()
	for _, genre := range required {
		if genre != "" && matchesGenreToken(text, genre) {
			return true
		}
	}
	return false
}

func minThreshold(floor, factor, topK int) int {
	if v := topK * factor; v < floor {
		return v
	}
	return floor
}

// selectCandidates applies filtering with staged relaxation. Hard
// constraints (language, animation) never relax: returning fewer or no
// results beats returning irrelevant ones. A genre ask relaxes to the
// hard-filtered pool when strict matching leaves too few survivors; if
// nothing at all was asked, a too-strict pool relaxes to every
// candidate and the rerank signals sort it out.
func (s *Scorer) selectCandidates(candidates []*store.MovieRecord, hints *queryengine.Hints, topK int) []*store.MovieRecord {
	filteredHard := make([]*store.MovieRecord, 0, len(candidates))
	for _, m := range candidates {
		if MatchesHints(m, hints) {
			filteredHard = append(filteredHard, m)
		}
	}

	hasHardConstraints := hints.WantsAnimation || hints.WantLang != ""
	wantsGenres := len(hints.RequiredGenres) > 0

	if wantsGenres {
		filteredGenres := make([]*store.MovieRecord, 0, len(filteredHard))
		for _, m := range filteredHard {
			if matchesAnyRequiredGenre(m, hints.RequiredGenres) {
				filteredGenres = append(filteredGenres, m)
			}
		}
		if len(filteredGenres) >= minThreshold(genreStrictFloor, genreStrictFactor, topK) {
			return filteredGenres
		}
		return filteredHard
	}
	if hasHardConstraints {
		return filteredHard
	}
	if len(filteredHard) >= minThreshold(generalStrictFloor, generalStrictFactor, topK) {
		return filteredHard
	}
	return candidates
}

// Rank filters, scores, and orders candidates, returning the top topK.
// vectorScores supplies index similarities for candidates whose stored
// embedding is missing; it may be nil.
func (s *Scorer) Rank(queryVector []float32, candidates []*store.MovieRecord, hints *queryengine.Hints, topK int, vectorScores map[string]float32) *Outcome {
	pool := s.selectCandidates(candidates, hints, topK)

	scored := make([]*ScoredMovie, 0, len(pool))
	for _, m := range pool {
		if m == nil || m.Title == "" || m.ImdbID == "" {
			continue
		}

		var similarity float32
		switch {
		case len(m.Embedding) > 0:
			similarity = CosineSimilarity(queryVector, m.Embedding)
		default:
			vs, ok := vectorScores[m.ImdbID]
			if !ok {
				continue
			}
			similarity = vs
		}

		sm := s.score(m, similarity, hints)
		scored = append(scored, sm)
	}

	// Stable: equal scores keep retrieval order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	top := scored
	if len(top) > topK {
		top = top[:topK]
	}
	return &Outcome{
		Top:             top,
		CountCandidates: len(pool),
		CountScored:     len(scored),
	}
}

func (s *Scorer) score(m *store.MovieRecord, similarity float32, hints *queryengine.Hints) *ScoredMovie {
	text := m.SearchText()

	var lexical float32
	for _, term := range hints.LexicalTerms {
		if term != "" && strings.Contains(text, strings.ToLower(term)) {
			lexical += s.weights.LexicalBoost
		}
	}
	if lexical > s.weights.LexicalCap {
		lexical = s.weights.LexicalCap
	}

	var mood float32
	if len(hints.MoodWant) > 0 || len(hints.MoodAvoid) > 0 {
		tags := make(map[string]bool, len(m.MoodTags))
		for _, tag := range m.MoodTags {
			tags[strings.ToLower(tag)] = true
		}
		var up, down float32
		for _, tag := range hints.MoodWant {
			if tags[tag] {
				up += s.weights.MoodBoost
			}
		}
		for _, tag := range hints.MoodAvoid {
			if tags[tag] {
				down += s.weights.MoodAvoidPenalty
			}
		}
		if up > s.weights.MoodCap {
			up = s.weights.MoodCap
		}
		if down > s.weights.MoodCap {
			down = s.weights.MoodCap
		}
		mood = up - down
	}

	var genreBoost, genrePenalty float32
	for _, genre := range hints.ExcludedGenres {
		if genre != "" && matchesGenreToken(text, genre) {
			genrePenalty -= s.weights.ExcludedGenrePenalty
		}
	}
	if len(hints.RequiredGenres) > 0 {
		matched := 0
		for _, genre := range hints.RequiredGenres {
			if genre != "" && matchesGenreToken(text, genre) {
				matched++
			}
		}
		if matched > 0 {
			genreBoost = float32(matched) * s.weights.GenreBoost
			if genreBoost > s.weights.GenreCap {
				genreBoost = s.weights.GenreCap
			}
		} else {
			genrePenalty -= s.weights.MissedGenrePenalty
		}
	}

	return &ScoredMovie{
		Movie:        m,
		Similarity:   similarity,
		LexicalBoost: lexical,
		MoodBoost:    mood,
		GenreBoost:   genreBoost,
		GenrePenalty: genrePenalty,
		Score:        similarity + lexical + mood + genreBoost + genrePenalty,
	}
}

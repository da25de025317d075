package ranking

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/server/queryengine"
	"github.com/relivre/popcorn/store"
)

func movie(id, title string, mutate func(*store.MovieRecord)) *store.MovieRecord {
	m := &store.MovieRecord{
		ImdbID:    id,
		Title:     title,
		Embedding: []float32{1, 0, 0},
	}
	if mutate != nil {
		mutate(m)
	}
	return m
}

func ids(top []*ScoredMovie) []string {
	out := make([]string, 0, len(top))
	for _, sm := range top {
		out = append(out, sm.Movie.ImdbID)
	}
	return out
}

func TestMatchesHintsLanguageEvidence(t *testing.T) {
	ja := &queryengine.Hints{WantLang: "ja", WantsJapanese: true}

	tests := []struct {
		name  string
		movie *store.MovieRecord
		want  bool
	}{
		{
			name:  "language metadata",
			movie: movie("tt1", "Totoro", func(m *store.MovieRecord) { m.Language = "Japanese" }),
			want:  true,
		},
		{
			name:  "country metadata",
			movie: movie("tt2", "Your Name", func(m *store.MovieRecord) { m.ProductionCountry = "Japan" }),
			want:  true,
		},
		{
			name:  "no evidence is a miss",
			movie: movie("tt3", "Unknown Origin", nil),
			want:  false,
		},
		{
			name:  "wrong language",
			movie: movie("tt4", "Amelie", func(m *store.MovieRecord) { m.Language = "French" }),
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MatchesHints(tt.movie, ja))
		})
	}

	// Less common language intents only filter on known metadata.
	fr := &queryengine.Hints{WantLang: "fr"}
	require.True(t, MatchesHints(movie("tt5", "No Metadata", nil), fr))
	require.False(t, MatchesHints(movie("tt6", "Seven Samurai", func(m *store.MovieRecord) { m.Language = "Japanese" }), fr))
}

func TestMatchesHintsAnimation(t *testing.T) {
	hints := &queryengine.Hints{WantsAnimation: true}

	anime := movie("tt1", "Spirited Away", func(m *store.MovieRecord) { m.Genre = "Animation, Fantasy" })
	liveAction := movie("tt2", "Heat", func(m *store.MovieRecord) { m.Genre = "Crime, Drama" })

	require.True(t, MatchesHints(anime, hints))
	require.False(t, MatchesHints(liveAction, hints))
}

func TestMatchesHintsExcludedGenres(t *testing.T) {
	hints := &queryengine.Hints{ExcludedGenres: []string{"horror"}}

	require.False(t, MatchesHints(movie("tt1", "The Shining", func(m *store.MovieRecord) { m.Genre = "Horror, Drama" }), hints))
	require.True(t, MatchesHints(movie("tt2", "Paddington", func(m *store.MovieRecord) { m.Genre = "Family, Comedy" }), hints))
}

func TestMatchesGenreTokenSciFiVariants(t *testing.T) {
	for _, text := range []string{"sci-fi adventure", "science fiction epic", "classic scifi"} {
		require.True(t, matchesGenreToken(text, "sci-fi"), text)
	}
	require.False(t, matchesGenreToken("space documentary", "sci-fi"))
}

func TestRankOrdersBySimilarity(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	query := []float32{1, 0, 0}
	candidates := []*store.MovieRecord{
		movie("tt1", "Far", func(m *store.MovieRecord) { m.Embedding = []float32{0, 1, 0} }),
		movie("tt2", "Near", func(m *store.MovieRecord) { m.Embedding = []float32{0.9, 0.1, 0} }),
		movie("tt3", "Exact", nil),
	}

	out := scorer.Rank(query, candidates, &queryengine.Hints{}, 2, nil)
	require.Equal(t, []string{"tt3", "tt2"}, ids(out.Top))
	require.Equal(t, 3, out.CountCandidates)
	require.Equal(t, 3, out.CountScored)
}

func TestRankLexicalBoostCapped(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	hints := &queryengine.Hints{
		LexicalTerms: []string{"japan", "japanese", "ja", "anime", "animation", "tokyo", "ghibli"},
	}
	m := movie("tt1", "Ghibli Collection", func(m *store.MovieRecord) {
		m.Keywords = "japan japanese ja anime animation tokyo ghibli"
	})

	out := scorer.Rank([]float32{1, 0, 0}, []*store.MovieRecord{m}, hints, 1, nil)
	require.Len(t, out.Top, 1)
	// Seven matches at 0.02 each would be 0.14; the cap holds it at 0.12.
	require.InDelta(t, 0.12, out.Top[0].LexicalBoost, 1e-6)
}

func TestRankMoodSignals(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	hints := &queryengine.Hints{
		MoodWant:  []string{"relaxing", "cozy"},
		MoodAvoid: []string{"scary"},
	}

	wanted := movie("tt1", "Calm", func(m *store.MovieRecord) { m.MoodTags = []string{"relaxing", "cozy", "healing", "feel-good", "lighthearted"} })
	avoided := movie("tt2", "Grim", func(m *store.MovieRecord) { m.MoodTags = []string{"scary", "dark", "tense", "gritty", "thrilling"} })

	out := scorer.Rank([]float32{1, 0, 0}, []*store.MovieRecord{avoided, wanted}, hints, 2, nil)
	require.Equal(t, []string{"tt1", "tt2"}, ids(out.Top))
	require.InDelta(t, 0.06, out.Top[0].MoodBoost, 1e-6)
	require.InDelta(t, -0.03, out.Top[1].MoodBoost, 1e-6)
}

func TestRankGenreBoostAndMissPenalty(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	hints := &queryengine.Hints{RequiredGenres: []string{"comedy", "romance"}}

	both := movie("tt1", "Rom Com", func(m *store.MovieRecord) { m.Genre = "Comedy, Romance" })
	one := movie("tt2", "Just Laughs", func(m *store.MovieRecord) { m.Genre = "Comedy" })
	neither := movie("tt3", "War Epic", func(m *store.MovieRecord) { m.Genre = "War" })

	// Three candidates are below the strict-genre threshold, so the pool
	// relaxes and the non-matching movie stays in, penalized.
	out := scorer.Rank([]float32{1, 0, 0}, []*store.MovieRecord{neither, one, both}, hints, 2, nil)
	require.Equal(t, 3, out.CountScored)
	require.Equal(t, []string{"tt1", "tt2"}, ids(out.Top))
	require.InDelta(t, 0.12, out.Top[0].GenreBoost, 1e-6)
	require.InDelta(t, 0.06, out.Top[1].GenreBoost, 1e-6)
}

func TestRankGenreStrictWhenEnoughMatches(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	hints := &queryengine.Hints{RequiredGenres: []string{"comedy"}}

	var candidates []*store.MovieRecord
	// topK 1 needs min(40, 8) = 8 genre matches to stay strict.
	for i := 0; i < 8; i++ {
		candidates = append(candidates, movie(fmt.Sprintf("tt%d", i), fmt.Sprintf("Comedy %d", i), func(m *store.MovieRecord) { m.Genre = "Comedy" }))
	}
	candidates = append(candidates, movie("tt100", "Drama", func(m *store.MovieRecord) { m.Genre = "Drama" }))

	out := scorer.Rank([]float32{1, 0, 0}, candidates, hints, 1, nil)
	require.Equal(t, 8, out.CountCandidates)
	require.NotContains(t, ids(out.Top), "tt100")
}

func TestRankHardConstraintsNeverRelax(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	hints := &queryengine.Hints{WantLang: "ja", WantsJapanese: true}

	candidates := []*store.MovieRecord{
		movie("tt1", "French Film", func(m *store.MovieRecord) { m.Language = "French" }),
		movie("tt2", "Another French Film", func(m *store.MovieRecord) { m.Language = "French" }),
	}

	out := scorer.Rank([]float32{1, 0, 0}, candidates, hints, 5, nil)
	require.Empty(t, out.Top)
	require.Zero(t, out.CountCandidates)
}

func TestRankGeneralRelaxationWithoutConstraints(t *testing.T) {
	scorer := NewScorer(DefaultWeights())

	// An excluded genre filters hard, but with no language/animation/
	// genre ask a too-small pool falls back to every candidate.
	hints := &queryengine.Hints{ExcludedGenres: []string{"horror"}}
	candidates := []*store.MovieRecord{
		movie("tt1", "Scream", func(m *store.MovieRecord) { m.Genre = "Horror" }),
		movie("tt2", "Paddington", func(m *store.MovieRecord) { m.Genre = "Family" }),
	}

	out := scorer.Rank([]float32{1, 0, 0}, candidates, hints, 5, nil)
	require.Equal(t, 2, out.CountCandidates)

	// The re-included horror movie carries the exclusion penalty.
	var horror *ScoredMovie
	for _, sm := range out.Top {
		if sm.Movie.ImdbID == "tt1" {
			horror = sm
		}
	}
	require.NotNil(t, horror)
	require.InDelta(t, -0.22, horror.GenrePenalty, 1e-6)
	require.Equal(t, "tt2", out.Top[0].Movie.ImdbID)
}

func TestRankSkipsUnscorable(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	candidates := []*store.MovieRecord{
		movie("", "No ID", nil),
		movie("tt2", "", nil),
		movie("tt3", "No Vector", func(m *store.MovieRecord) { m.Embedding = nil }),
		movie("tt4", "Fine", nil),
	}

	out := scorer.Rank([]float32{1, 0, 0}, candidates, &queryengine.Hints{}, 10, nil)
	require.Equal(t, []string{"tt4"}, ids(out.Top))
	require.Equal(t, 1, out.CountScored)
}

func TestRankVectorScoreFallback(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	m := movie("tt1", "Index Only", func(m *store.MovieRecord) { m.Embedding = nil })

	out := scorer.Rank([]float32{1, 0, 0}, []*store.MovieRecord{m}, &queryengine.Hints{}, 1, map[string]float32{"tt1": 0.83})
	require.Len(t, out.Top, 1)
	require.InDelta(t, 0.83, out.Top[0].Similarity, 1e-6)
}

func TestRankStableOnTies(t *testing.T) {
	scorer := NewScorer(DefaultWeights())
	candidates := []*store.MovieRecord{
		movie("tt1", "First", nil),
		movie("tt2", "Second", nil),
		movie("tt3", "Third", nil),
	}

	out := scorer.Rank([]float32{1, 0, 0}, candidates, &queryengine.Hints{}, 3, nil)
	require.Equal(t, []string{"tt1", "tt2", "tt3"}, ids(out.Top))
}

func TestWeightsFromProfile(t *testing.T) {
	require.Equal(t, DefaultWeights(), WeightsFromProfile(profile.Default()))

	tuned := profile.Default()
	tuned.MoodBoost = 0.05
	tuned.ExcludedGenrePenalty = 0.5
	w := WeightsFromProfile(tuned)
	require.Equal(t, float32(0.05), w.MoodBoost)
	require.Equal(t, float32(0.5), w.ExcludedGenrePenalty)
}

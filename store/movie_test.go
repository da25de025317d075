package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMoodTags(t *testing.T) {
	t.Run("AlwaysExactlyFive", func(t *testing.T) {
		tests := []struct {
			name string
			in   []string
		}{
			{"empty", nil},
			{"one valid", []string{"uplifting"}},
			{"five valid", []string{"uplifting", "healing", "funny", "cozy", "dark"}},
			{"too many", []string{"uplifting", "healing", "funny", "cozy", "dark", "tense", "epic"}},
			{"garbage only", []string{"explosions", "car-chase", "oscar-winner"}},
			{"mixed", []string{"UPLIFTING", "explosions", " healing ", ""}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				out := NormalizeMoodTags(tt.in)
				require.Len(t, out, MoodTagCount)
				for _, tag := range out {
					assert.True(t, IsMoodTag(tag), "tag %q must be in vocabulary", tag)
				}
			})
		}
	})

	t.Run("KeepsValidInputFirst", func(t *testing.T) {
		out := NormalizeMoodTags([]string{"scary", "tense", "dark"})
		assert.Equal(t, "scary", out[0])
		assert.Equal(t, "tense", out[1])
		assert.Equal(t, "dark", out[2])
	})

	t.Run("TruncatesOversized", func(t *testing.T) {
		out := NormalizeMoodTags([]string{"uplifting", "healing", "funny", "cozy", "dark", "tense"})
		assert.Equal(t, []string{"uplifting", "healing", "funny", "cozy", "dark"}, out)
	})

	t.Run("Deduplicates", func(t *testing.T) {
		out := NormalizeMoodTags([]string{"funny", "Funny", "FUNNY"})
		assert.Equal(t, "funny", out[0])
		assert.NotEqual(t, "funny", out[1])
	})

	t.Run("PadsWhenInputOverlapsPool", func(t *testing.T) {
		// Input consumes the whole fallback pool; padding must still
		// reach five distinct tags.
		out := NormalizeMoodTags(moodFallbackPool[:3])
		require.Len(t, out, MoodTagCount)
		seen := map[string]bool{}
		for _, tag := range out {
			assert.False(t, seen[tag], "tag %q duplicated", tag)
			seen[tag] = true
		}
	})
}

func TestSplitMoodTags(t *testing.T) {
	assert.Equal(t, []string{"funny", "cozy", "dark"}, SplitMoodTags("funny, cozy | dark"))
	assert.Equal(t, []string{"uplifting"}, SplitMoodTags("uplifting"))
	assert.Empty(t, SplitMoodTags("  ,; |"))
}

func TestMovieRecord_SearchText(t *testing.T) {
	m := &MovieRecord{
		Title:             "Spirited Away",
		Genre:             "Animation, Fantasy",
		Keywords:          "spirits bathhouse",
		Language:          "Japanese",
		ProductionCountry: "Japan",
		Director:          "Hayao Miyazaki",
		Plot:              "SHOULD-NOT-APPEAR plot text",
	}

	text := m.SearchText()
	assert.Contains(t, text, "spirited away")
	assert.Contains(t, text, "animation")
	assert.Contains(t, text, "japan")
	assert.NotContains(t, text, "should-not-appear")
}

func TestMovieRecord_Scorable(t *testing.T) {
	valid := &MovieRecord{ImdbID: "tt0245429", Title: "Spirited Away", Embedding: []float32{0.1, 0.2}}
	assert.True(t, valid.Scorable())

	assert.False(t, (&MovieRecord{Title: "No ID", Embedding: []float32{1}}).Scorable())
	assert.False(t, (&MovieRecord{ImdbID: "tt1", Embedding: []float32{1}}).Scorable())
	assert.False(t, (&MovieRecord{ImdbID: "tt1", Title: "No Vector"}).Scorable())
	assert.False(t, (*MovieRecord)(nil).Scorable())
}

package queryengine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustLoadTables(t *testing.T) *Tables {
	t.Helper()
	tables, err := LoadTables("")
	require.NoError(t, err)
	return tables
}

func TestDetectGenreIntents(t *testing.T) {
	tables := mustLoadTables(t)

	tests := []struct {
		name     string
		query    string
		required []string
		excluded []string
	}{
		{
			name:     "explicit genre",
			query:    "a good horror movie",
			required: []string{"horror"},
		},
		{
			name:     "cjk genre",
			query:    "好看的喜劇",
			required: []string{"comedy"},
		},
		{
			name:     "negated genre",
			query:    "不要恐怖",
			excluded: []string{"horror"},
		},
		{
			name:     "light mood excludes heavy genres",
			query:    "想看輕鬆的電影",
			excluded: []string{"crime", "horror", "thriller", "war"},
		},
		{
			name:     "explicit ask survives light exclusion",
			query:    "relaxing thriller please",
			required: []string{"thriller"},
			excluded: []string{"crime", "horror", "war"},
		},
		{
			name:     "sci-fi spelling variants",
			query:    "some scifi tonight",
			required: []string{"sci-fi"},
		},
		{
			name:  "no intent",
			query: "something to watch",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tables.detectGenreIntents(tt.query)
			require.Equal(t, tt.required, got.required)
			require.Equal(t, tt.excluded, got.excluded)
		})
	}
}

func TestDetectGenreIntentsWordBoundary(t *testing.T) {
	tables := mustLoadTables(t)

	// "warm" must not trigger the war genre.
	got := tables.detectGenreIntents("a warm heartwarming story")
	require.NotContains(t, got.required, "war")
}

func TestBuildHintsLanguageAndAnimation(t *testing.T) {
	tables := mustLoadTables(t)

	hints := tables.buildHints("日本動畫片", "japanese animation")
	require.Equal(t, "ja", hints.WantLang)
	require.True(t, hints.WantsJapanese)
	require.False(t, hints.WantsKorean)
	require.True(t, hints.WantsAnimation)
	require.Contains(t, hints.LexicalTerms, "japan")
	require.Contains(t, hints.LexicalTerms, "anime")
}

func TestBuildHintsExpandedQuery(t *testing.T) {
	tables := mustLoadTables(t)

	hints := tables.buildHints("日本動畫片", "animation film")
	// Expansion adds "japanese" and "anime" but never repeats a token the
	// effective text already carries.
	require.Contains(t, hints.ExpandedQuery, "animation film")
	require.Contains(t, hints.ExpandedQuery, "japanese")
	require.Contains(t, hints.ExpandedQuery, "anime")
	require.Equal(t, 1, countOccurrences(hints.ExpandedQuery, "animation"))
}

func TestBuildHintsEnglishPassthrough(t *testing.T) {
	tables := mustLoadTables(t)

	hints := tables.buildHints("a quiet drama", "a quiet drama")
	require.Empty(t, hints.WantLang)
	require.False(t, hints.WantsAnimation)
	require.Equal(t, []string{"drama"}, hints.RequiredGenres)
	require.Equal(t, "a quiet drama", hints.ExpandedQuery)
}

func countOccurrences(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}

package queryengine

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestTranslator(svc *stubTextService) *Translator {
	return NewTranslator(svc, 6*time.Hour, 500)
}

func TestTranslateEnglishShortCircuits(t *testing.T) {
	svc := &stubTextService{}
	tr := newTestTranslator(svc)

	got, err := tr.Translate(context.Background(), "  a relaxing   movie ")
	require.NoError(t, err)
	require.Equal(t, Translation{Language: "en", English: "a relaxing movie"}, got)
	require.Zero(t, svc.completeCalls)
	require.Zero(t, tr.CacheSize())
}

func TestTranslateNonEnglish(t *testing.T) {
	svc := &stubTextService{completeReply: `{"language":"Japanese","english":"japanese animation"}`}
	tr := newTestTranslator(svc)

	got, err := tr.Translate(context.Background(), "日本動畫片")
	require.NoError(t, err)
	require.Equal(t, "ja", got.Language)
	require.Equal(t, "japanese animation", got.English)
	require.Equal(t, 1, svc.completeCalls)
}

func TestTranslateCachesByNormalizedText(t *testing.T) {
	svc := &stubTextService{completeReply: `{"language":"zh","english":"relaxing movie"}`}
	tr := newTestTranslator(svc)
	ctx := context.Background()

	first, err := tr.Translate(ctx, "想看放鬆的電影")
	require.NoError(t, err)

	// Same query with different surrounding whitespace hits the cache.
	second, err := tr.Translate(ctx, "  想看放鬆的電影  ")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, svc.completeCalls)
	require.Equal(t, 1, tr.CacheSize())
}

func TestTranslateRawReplyFallback(t *testing.T) {
	svc := &stubTextService{completeReply: "a relaxing movie without horror"}
	tr := newTestTranslator(svc)

	got, err := tr.Translate(context.Background(), "想看放鬆不要恐怖")
	require.NoError(t, err)
	require.Equal(t, "a relaxing movie without horror", got.English)
	require.Empty(t, got.Language)
}

func TestTranslateUnusableReplyKeepsOriginal(t *testing.T) {
	svc := &stubTextService{completeReply: "翻訳できません"}
	tr := newTestTranslator(svc)

	got, err := tr.Translate(context.Background(), "想看放鬆的電影")
	require.NoError(t, err)
	require.Equal(t, "想看放鬆的電影", got.English)
}

func TestTranslateErrorNotCached(t *testing.T) {
	svc := &stubTextService{completeErr: errors.New("boom")}
	tr := newTestTranslator(svc)
	ctx := context.Background()

	_, err := tr.Translate(ctx, "想看放鬆的電影")
	require.Error(t, err)
	require.Zero(t, tr.CacheSize())

	// Next attempt retries the model instead of serving a failure.
	svc.completeErr = nil
	svc.completeReply = `{"language":"zh","english":"relaxing movie"}`
	got, err := tr.Translate(ctx, "想看放鬆的電影")
	require.NoError(t, err)
	require.Equal(t, "relaxing movie", got.English)
	require.Equal(t, 2, svc.completeCalls)
}

func TestParseTranslationReply(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		fallback string
		want     Translation
	}{
		{
			name:  "clean json",
			reply: `{"language":"ja","english":"spirited away"}`,
			want:  Translation{Language: "ja", English: "spirited away"},
		},
		{
			name:  "json wrapped in prose",
			reply: "Here it is: {\"language\":\"korean\",\"english\":\"korean thriller\"}",
			want:  Translation{Language: "ko", English: "korean thriller"},
		},
		{
			name:     "empty english falls back to raw check",
			reply:    `{"language":"ja","english":""}`,
			fallback: "原文",
			want:     Translation{English: "原文"},
		},
		{
			name:  "bare english sentence",
			reply: "a heartwarming family film",
			want:  Translation{English: "a heartwarming family film"},
		},
		{
			name:     "cjk reply keeps the fallback",
			reply:    "看不懂",
			fallback: "原文",
			want:     Translation{English: "原文"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseTranslationReply(tt.reply, tt.fallback))
		})
	}
}

// Package profile carries the runtime configuration for the popcorn
// server. Values are bound from POPCORN_* environment variables and an
// optional YAML config file by the CLI layer.
package profile

import (
	"time"

	"github.com/pkg/errors"

	"github.com/relivre/popcorn/internal/redact"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string `mapstructure:"mode"`
	// Addr is the binding address for the server.
	Addr string `mapstructure:"addr"`
	// Port is the binding port for the server.
	Port int `mapstructure:"port"`

	// Driver is the movie store driver (sqlite or postgres).
	Driver string `mapstructure:"driver"`
	// DSN points to the movie store.
	DSN string `mapstructure:"dsn"`

	// AIAPIKey authenticates against the OpenAI-compatible API.
	AIAPIKey string `mapstructure:"ai_api_key"`
	// AIBaseURL overrides the API endpoint (default: api.openai.com).
	AIBaseURL string `mapstructure:"ai_base_url"`
	// ChatModel handles translation and mood classification.
	ChatModel string `mapstructure:"chat_model"`
	// EmbeddingModel produces query vectors.
	EmbeddingModel string `mapstructure:"embedding_model"`
	// EmbeddingDim is the store's fixed embedding dimension.
	EmbeddingDim int `mapstructure:"embedding_dim"`

	// VectorServiceURL is the vector-similarity sidecar endpoint. Empty
	// disables the vector-first retrieval path.
	VectorServiceURL string `mapstructure:"vector_service_url"`

	// KeywordTablePath overrides the embedded keyword tables.
	KeywordTablePath string `mapstructure:"keyword_table_path"`

	// Cache tuning.
	TranslationCacheTTL time.Duration `mapstructure:"translation_cache_ttl"`
	TranslationCacheMax int           `mapstructure:"translation_cache_max"`
	EmbeddingCacheTTL   time.Duration `mapstructure:"embedding_cache_ttl"`
	EmbeddingCacheMax   int           `mapstructure:"embedding_cache_max"`
	ScanCacheTTL        time.Duration `mapstructure:"scan_cache_ttl"`

	// Rerank signal tuning. Defaults match the empirical production
	// values; deployments can override any of them individually.
	LexicalBoost         float32 `mapstructure:"lexical_boost"`
	LexicalCap           float32 `mapstructure:"lexical_cap"`
	MoodBoost            float32 `mapstructure:"mood_boost"`
	MoodAvoidPenalty     float32 `mapstructure:"mood_avoid_penalty"`
	MoodCap              float32 `mapstructure:"mood_cap"`
	GenreBoost           float32 `mapstructure:"genre_boost"`
	GenreCap             float32 `mapstructure:"genre_cap"`
	ExcludedGenrePenalty float32 `mapstructure:"excluded_genre_penalty"`
	MissedGenrePenalty   float32 `mapstructure:"missed_genre_penalty"`

	// Version is the build version, set at link time.
	Version string `mapstructure:"-"`
}

// Default returns a profile with production defaults applied.
func Default() *Profile {
	return &Profile{
		Mode:                "prod",
		Addr:                "",
		Port:                8081,
		Driver:              "sqlite",
		DSN:                 "popcorn.db",
		ChatModel:           "gpt-4o-mini",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDim:        1536,
		TranslationCacheTTL: 6 * time.Hour,
		TranslationCacheMax: 500,
		EmbeddingCacheTTL:   6 * time.Hour,
		EmbeddingCacheMax:   500,
		ScanCacheTTL:        5 * time.Minute,

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

// IsDev reports whether the profile is running in development mode.
func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Validate checks the profile for misconfiguration that should stop
// startup rather than surface as request failures later.
func (p *Profile) Validate() error {
	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port: %d", p.Port)
	}
	switch p.Driver {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("unsupported store driver: %q", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("store DSN is required")
	}
	if p.AIAPIKey == "" {
		return errors.New("AI API key is required (POPCORN_AI_API_KEY)")
	}
	if !redact.LooksLikeAPIKey(p.AIAPIKey) {
		return errors.New("AI API key is set but does not look like a valid key")
	}
	if p.EmbeddingDim <= 0 {
		return errors.Errorf("invalid embedding dimension: %d", p.EmbeddingDim)
	}
	return nil
}

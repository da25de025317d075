// Package timeout defines centralized timeout constants for the search
// pipeline's remote operations.
package timeout

import "time"

const (
	// SearchTimeout bounds one full search request end to end.
	SearchTimeout = 30 * time.Second

	// TranslateTimeout is the timeout for one translation completion.
	TranslateTimeout = 15 * time.Second

	// EmbeddingTimeout is the timeout for embedding generation.
	EmbeddingTimeout = 15 * time.Second

	// VectorSearchTimeout is the timeout for one sidecar index query.
	VectorSearchTimeout = 10 * time.Second

	// MaxTruncateLength is the maximum length for truncating query text
	// in logs.
	MaxTruncateLength = 200
)

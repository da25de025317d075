package redact

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestSecrets(t *testing.T) {
	t.Run("RedactsKey", func(t *testing.T) {
		out := Secrets("request failed: bearer sk-proj-abcdef1234567890 rejected")
		assert.NotContains(t, out, "sk-proj-abcdef1234567890")
		assert.Contains(t, out, "sk-***REDACTED***")
	})

	t.Run("LeavesPlainTextAlone", func(t *testing.T) {
		assert.Equal(t, "connection refused", Secrets("connection refused"))
	})

	t.Run("ShortPrefixNotRedacted", func(t *testing.T) {
		// "sk-fi" genre tokens and similar short strings must survive.
		assert.Equal(t, "sk-fi", Secrets("sk-fi"))
	})
}

func TestError(t *testing.T) {
	assert.Equal(t, "", Error(nil))

	err := errors.New("status 401: key sk-abcdefghijklmnop invalid")
	assert.NotContains(t, Error(err), "sk-abcdefghijklmnop")
}

func TestLooksLikeAPIKey(t *testing.T) {
	assert.True(t, LooksLikeAPIKey("sk-proj-abcdefghijklmnopqrstuvwx"))
	assert.False(t, LooksLikeAPIKey(""))
	assert.False(t, LooksLikeAPIKey("<NEW_KEY>"))
	assert.False(t, LooksLikeAPIKey("sk-short"))
	assert.False(t, LooksLikeAPIKey("not-a-key"))
}

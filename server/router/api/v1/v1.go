// Package v1 exposes the search pipeline over HTTP.
package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/internal/redact"
	"github.com/relivre/popcorn/plugin/ai/timeout"
	apperrors "github.com/relivre/popcorn/server/internal/errors"
	"github.com/relivre/popcorn/internal/observability"
	"github.com/relivre/popcorn/server/search"
	"github.com/relivre/popcorn/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Engine  *search.Engine

	logger *slog.Logger
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, engine *search.Engine, logger *slog.Logger) *APIV1Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIV1Service{
		Profile: profile,
		Store:   store,
		Engine:  engine,
		logger:  logger,
	}
}

// Register mounts the API routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealthz)
	e.POST("/api/v1/search", s.handleSearch)
}

type searchRequestBody struct {
	Query   string `json:"query"`
	TopK    int    `json:"topK"`
	MaxScan int    `json:"maxScan"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *APIV1Service) handleSearch(c echo.Context) error {
	rc := observability.NewRequestContext(s.logger)

	var body searchRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "request body must be JSON",
			Code:  string(apperrors.ErrCodeInvalidArgument),
		})
	}
	if body.Query == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: "query is required",
			Code:  string(apperrors.ErrCodeInvalidArgument),
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.SearchTimeout)
	defer cancel()

	resp, err := s.Engine.Search(ctx, &search.Request{
		Query:   body.Query,
		TopK:    body.TopK,
		MaxScan: body.MaxScan,
	})
	if err != nil {
		code := apperrors.GetCodeFromError(err, apperrors.ErrCodeStoreUnavailable)
		rc.Error("search failed",
			slog.String(observability.LogFieldErrorCode, string(code)),
			slog.String("error", redact.Error(err)))
		return c.JSON(statusForCode(code), errorResponse{
			Error: redact.Error(err),
			Code:  string(code),
		})
	}

	rc.Info("search served",
		slog.Int("results", len(resp.Results)),
		slog.Int64("totalMs", resp.TimingsMs.Total))
	return c.JSON(http.StatusOK, resp)
}

// statusForCode maps pipeline error codes onto HTTP statuses. Upstream
// model failures surface as bad-gateway so callers can tell them apart
// from our own faults.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case apperrors.ErrCodeEmbeddingInvalid:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeLLMUnavailable:
		return http.StatusBadGateway
	case apperrors.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeContextCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

type healthzResponse struct {
	Status               string `json:"status"`
	Version              string `json:"version,omitempty"`
	TranslationCacheSize int    `json:"translationCacheSize"`
	EmbeddingCacheSize   int    `json:"embeddingCacheSize"`
}

func (s *APIV1Service) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, healthzResponse{
		Status:               "ok",
		Version:              s.Profile.Version,
		TranslationCacheSize: s.Engine.TranslationCacheSize(),
		EmbeddingCacheSize:   s.Engine.EmbeddingCacheSize(),
	})
}

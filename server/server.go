// Package server assembles the HTTP server around the search pipeline.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/plugin/ai"
	"github.com/relivre/popcorn/plugin/ai/timeout"
	"github.com/relivre/popcorn/server/middleware"
	"github.com/relivre/popcorn/server/queryengine"
	"github.com/relivre/popcorn/server/ranking"
	"github.com/relivre/popcorn/server/retrieval"
	apiv1 "github.com/relivre/popcorn/server/router/api/v1"
	"github.com/relivre/popcorn/server/search"
	"github.com/relivre/popcorn/store"
)

// Per-client rate defaults. Generous for interactive use, tight enough
// to keep one client from starving the model quota.
const (
	rateLimitPerSecond = 5
	rateLimitBurst     = 10
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	logger     *slog.Logger
}

// NewServer wires the full pipeline from the profile: text service,
// query engine, embedder, retriever, scorer, and the HTTP surface.
func NewServer(ctx context.Context, prof *profile.Profile, st *store.Store, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var textService ai.TextService
	if prof.AIAPIKey != "" {
		provider, err := ai.NewProvider(&ai.Config{
			BaseURL:        prof.AIBaseURL,
			APIKey:         prof.AIAPIKey,
			EmbeddingModel: prof.EmbeddingModel,
			ChatModel:      prof.ChatModel,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create AI provider")
		}
		textService = provider
	}

	queries, err := queryengine.NewEngine(textService, logger, queryengine.Options{
		KeywordTablePath:    prof.KeywordTablePath,
		TranslationCacheTTL: prof.TranslationCacheTTL,
		TranslationCacheMax: prof.TranslationCacheMax,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create query engine")
	}

	var searcher retrieval.VectorSearcher
	switch {
	case prof.VectorServiceURL != "":
		searcher = retrieval.NewVectorServiceClient(prof.VectorServiceURL, timeout.VectorSearchTimeout)
	case prof.Driver == "postgres":
		searcher = st
	}

	engine := search.NewEngine(
		queries,
		search.NewEmbedder(textService, prof.EmbeddingDim, prof.EmbeddingCacheTTL, prof.EmbeddingCacheMax),
		retrieval.NewRetriever(st, searcher, logger),
		ranking.NewScorer(ranking.WeightsFromProfile(prof)),
		logger,
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
	}))
	e.Use(middleware.NewRateLimiter(rateLimitPerSecond, rateLimitBurst).Middleware())

	apiv1.NewAPIV1Service(prof, st, engine, logger).Register(e)

	return &Server{
		Profile:    prof,
		Store:      st,
		echoServer: e,
		logger:     logger,
	}, nil
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	s.logger.Info("search server listening",
		slog.String("addr", addr),
		slog.String("mode", s.Profile.Mode),
		slog.String("driver", s.Profile.Driver))
	return s.echoServer.Start(addr)
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shut down http server", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		s.logger.Error("failed to close store", slog.String("error", err.Error()))
	}
	s.logger.Info("search server stopped")
}

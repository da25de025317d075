package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relivre/popcorn/internal/profile"
	"github.com/relivre/popcorn/server"
	"github.com/relivre/popcorn/internal/observability"
	"github.com/relivre/popcorn/store"
	"github.com/relivre/popcorn/store/db"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "popcorn",
	Short: "Mood-aware movie search server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the search server",
	RunE: func(_ *cobra.Command, _ []string) error {
		prof, err := loadProfile()
		if err != nil {
			return err
		}
		logger := observability.NewLogger(prof.IsDev())
		slog.SetDefault(logger)

		if err := prof.Validate(); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(prof)
		if err != nil {
			return fmt.Errorf("failed to create store driver: %w", err)
		}
		st := store.New(dbDriver, prof)

		srv, err := server.NewServer(ctx, prof, st, logger)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sig
			srv.Shutdown(ctx)
			cancel()
		}()

		if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
			return err
		}
		<-ctx.Done()
		return nil
	},
}

func loadProfile() (*profile.Profile, error) {
	prof := profile.Default()
	if err := viper.Unmarshal(prof); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	prof.Version = version
	return prof, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := profile.Default()

	rootCmd.PersistentFlags().String("mode", defaults.Mode, `server mode, "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", defaults.Addr, "binding address")
	rootCmd.PersistentFlags().Int("port", defaults.Port, "binding port")
	rootCmd.PersistentFlags().String("driver", defaults.Driver, `movie store driver, "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", defaults.DSN, "movie store DSN")
	rootCmd.PersistentFlags().String("vector-service-url", "", "vector search sidecar URL")
	rootCmd.PersistentFlags().String("keyword-table-path", "", "override path for keyword tables")

	for flagName, key := range map[string]string{
		"mode":               "mode",
		"addr":               "addr",
		"port":               "port",
		"driver":             "driver",
		"dsn":                "dsn",
		"vector-service-url": "vector_service_url",
		"keyword-table-path": "keyword_table_path",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	// Env-only keys need a registered default for Unmarshal to see them.
	viper.SetDefault("ai_api_key", "")
	viper.SetDefault("ai_base_url", "")
	viper.SetDefault("chat_model", defaults.ChatModel)
	viper.SetDefault("embedding_model", defaults.EmbeddingModel)
	viper.SetDefault("embedding_dim", defaults.EmbeddingDim)
	viper.SetDefault("translation_cache_ttl", defaults.TranslationCacheTTL)
	viper.SetDefault("translation_cache_max", defaults.TranslationCacheMax)
	viper.SetDefault("embedding_cache_ttl", defaults.EmbeddingCacheTTL)
	viper.SetDefault("embedding_cache_max", defaults.EmbeddingCacheMax)
	viper.SetDefault("scan_cache_ttl", defaults.ScanCacheTTL)
	viper.SetDefault("lexical_boost", defaults.LexicalBoost)
	viper.SetDefault("lexical_cap", defaults.LexicalCap)
	viper.SetDefault("mood_boost", defaults.MoodBoost)
	viper.SetDefault("mood_avoid_penalty", defaults.MoodAvoidPenalty)
	viper.SetDefault("mood_cap", defaults.MoodCap)
	viper.SetDefault("genre_boost", defaults.GenreBoost)
	viper.SetDefault("genre_cap", defaults.GenreCap)
	viper.SetDefault("excluded_genre_penalty", defaults.ExcludedGenrePenalty)
	viper.SetDefault("missed_genre_penalty", defaults.MissedGenrePenalty)

	viper.SetEnvPrefix("popcorn")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"parley-server/internal/config"
	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/chat"
	"parley-server/internal/domain/conversation"
	"parley-server/internal/infrastructure/auth"
	"parley-server/internal/infrastructure/database"
	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/infrastructure/observability"
	"parley-server/internal/infrastructure/provider"
	conversationrepo "parley-server/internal/infrastructure/repository/conversation"
	"parley-server/internal/interfaces/httpserver"
)

func main() {
	loadEnvFiles()

	root := &cobra.Command{
		Use:          "parley-server",
		Short:        "Streaming chat backend with persisted conversations",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, log)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg)

			db, err := connectDatabase(cfg)
			if err != nil {
				return err
			}
			return database.AutoMigrate(cmd.Context(), db, log)
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return err
	}

	models, err := settings.CatalogModels()
	if err != nil {
		return err
	}
	cat, err := catalog.New(models)
	if err != nil {
		return fmt.Errorf("build model catalog: %w", err)
	}

	providerConfigs, err := settings.ProviderConfigs(os.Getenv)
	if err != nil {
		return err
	}
	registry, err := provider.NewRegistry(providerConfigs, log)
	if err != nil {
		return err
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	authValidator, err := auth.NewValidator(ctx, auth.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		HMACSecret: cfg.AuthHMACSecret,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize auth: %w", err)
	}

	repository := conversationrepo.NewRepository(db)
	cache := conversation.NewListingCacheWithTTL(cfg.ListingCacheTTL)
	conversations := conversation.NewService(repository, cache, log)
	chatEngine := chat.NewEngine(registry, conversations, log)

	server := httpserver.New(cfg, log, chatEngine, conversations, cat, authValidator)

	if err := server.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("server exited cleanly")
	return nil
}

func connectDatabase(cfg *config.Config) (*gorm.DB, error) {
	return database.Connect(database.Config{
		DSN:             cfg.DBPostgresqlDSN,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}

package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"focusbot/internal/config"
	"focusbot/internal/db"
	"focusbot/internal/handler"
	"focusbot/internal/messaging"
	"focusbot/internal/pomodoro"
	"focusbot/internal/repository"
	"focusbot/internal/router"
	"focusbot/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the session scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (defaults to PORT)")
	return cmd
}

func serve(cfg config.Config) error {
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer database.Close()

	if _, err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	templates, closeTemplates, err := openTemplateStore(cfg, database)
	if err != nil {
		return err
	}
	defer closeTemplates()

	memberRepo := repository.NewMemberRepository(database)
	banRepo := repository.NewBanRepository(database)
	scheduler := pomodoro.NewScheduler(cfg.SweepTick, cfg.SweepGranularity)

	authService := service.NewAuthService(memberRepo, cfg.JWTSecret, cfg.TokenTTL, cfg.AdminMembers)
	pomodoroService := service.NewPomodoroService(service.PomodoroServiceConfig{
		Scheduler:  scheduler,
		Feed:       messaging.NewFeed(messaging.DefaultChannelCapacity),
		Templates:  templates,
		Members:    memberRepo,
		Bans:       banRepo,
		OutboxSize: cfg.OutboxSize,
	})

	gin.SetMode(gin.ReleaseMode)
	engine := router.New(
		authService,
		handler.NewAuthHandler(authService),
		handler.NewChannelHandler(pomodoroService),
		cfg.CORSOrigins,
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("template_store", cfg.TemplateStore).Msg("focusbot listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return errors.Wrap(err, "run server")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown failed")
	}
	log.Info().Int("live_sessions", scheduler.Len()).Msg("focusbot stopped")
	return nil
}

// openTemplateStore picks the settings template backend named by
// TEMPLATE_STORE.
func openTemplateStore(cfg config.Config, database *sql.DB) (repository.TemplateStore, func(), error) {
	switch cfg.TemplateStore {
	case config.TemplateStoreSQLite:
		return repository.NewTemplateRepository(database), func() {}, nil
	case config.TemplateStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, errors.Wrapf(err, "connect to redis at %s", cfg.RedisAddr)
		}
		return repository.NewRedisTemplateStore(client), func() { _ = client.Close() }, nil
	default:
		return nil, nil, errors.Errorf("unknown TEMPLATE_STORE %q", cfg.TemplateStore)
	}
}

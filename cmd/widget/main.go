package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"squad-tracker/internal/config"
	"squad-tracker/internal/constants"
	fxmodules "squad-tracker/internal/fx"
	"squad-tracker/internal/middleware"
	"squad-tracker/internal/server"
	"squad-tracker/internal/session"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runWidget),
	).Run()
}

func runWidget(
	lc fx.Lifecycle,
	apiServer *server.Server,
	sess *session.Session,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	requestIDMiddleware := middleware.RequestID(logger)
	mux.Handle("/api/", requestIDMiddleware(c.Handler(apiServer.Handler())))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: mux,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sess.Start(ctx); err != nil {
				return err
			}
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("widget server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down widget")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			if err := sess.Stop(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("session loop did not stop cleanly")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database")
			}
			logger.Info().Msg("widget stopped gracefully")
			return nil
		},
	})
}

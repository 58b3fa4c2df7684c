package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/freddez/eplumber/internal/pkg/application"
	"github.com/freddez/eplumber/internal/pkg/infrastructure/router"
	"github.com/freddez/eplumber/internal/pkg/presentation/api"
	"github.com/freddez/eplumber/internal/pkg/presentation/web"
)

const serviceName string = "eplumber"

func main() {
	serviceVersion := buildinfo.SourceVersion()
	_, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := application.Bootstrap(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap eplumber")
	}

	go orch.Run(ctx)

	r := setupRouter(logger, orch)

	bindAddress := env.GetVariableOrDefault(logger, "EPLUMBER_HTTP_PORT", "0.0.0.0:8000")

	srv := &http.Server{Addr: bindAddress, Handler: r}
	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}

func setupRouter(logger zerolog.Logger, orch *application.Orchestrator) *chi.Mux {
	r := router.New(serviceName)

	api.RegisterHandlers(logger, r, orch.Registry, func() any { return orch.Evaluator.Snapshot() }, orch.History, orch.ConfigHandle)
	web.RegisterHandlers(r, http.Dir(staticDir(logger)))

	return r
}

func staticDir(logger zerolog.Logger) string {
	return env.GetVariableOrDefault(logger, "EPLUMBER_WEB_ROOT", "internal/pkg/presentation/web/static")
}

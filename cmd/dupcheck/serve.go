package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/totegamma/caselaw-dupcheck/internal/present/rest"
	accesslog "github.com/totegamma/caselaw-dupcheck/internal/present/rest/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the periodic reconciler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.config.Server.EnableTrace {
		cleanup, err := setupTraceProvider(ctx, a.config.Server.TraceEndpoint, "dupcheck", version)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if a.config.Server.EnableTrace {
		e.Use(otelecho.Middleware("dupcheck", otelecho.WithSkipper(func(c echo.Context) bool {
			return c.Path() == "/metrics"
		})))
	}
	e.Use(accesslog.AccessLog(a.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	var events rest.EventStream
	if a.signal != nil {
		events = a.signal
	}
	handler := rest.NewHandler(a.reconciler.Config(), a.relations, a.reconciler, a.scheduler, events)
	handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go a.scheduler.Start(ctx)

	go func() {
		a.logger.Info("listening", slog.String("addr", a.config.Server.ListenAddr))
		if err := e.Start(a.config.Server.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// Package server hosts the HTTP surface: the JSON API under /api/v1,
// the chat-app webhooks, health, and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dharmateja03/CalBot/internal/profile"
	"github.com/dharmateja03/CalBot/plugin/chat_apps/channels"
	apiv1 "github.com/dharmateja03/CalBot/server/router/api/v1"
	"github.com/dharmateja03/CalBot/server/service/scheduler"
	"github.com/dharmateja03/CalBot/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	engine     *scheduler.Engine
	apiService *apiv1.APIV1Service
}

// NewServer assembles the HTTP server and its routes around an
// already-constructed scheduling engine.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store, engine *scheduler.Engine, channelRouter *channels.ChannelRouter) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.Log(context.Background(), level, "http request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"err", v.Error,
			)
			return nil
		},
	}))

	s := &Server{
		Profile:    profile,
		Store:      store,
		echoServer: e,
		engine:     engine,
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": profile.Version,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.apiService = apiv1.NewAPIV1Service(profile, store, engine)
	s.apiService.RegisterRoutes(e)

	if channelRouter != nil {
		channelRouter.RegisterWebhooks(e)
	}

	return s, nil
}

// Start begins serving in a background goroutine. Startup errors other
// than a clean close are reported on the returned channel path via
// logging; the caller blocks on its own signal handling.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server listening", "address", address, "mode", s.Profile.Mode)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped unexpectedly", "err", err)
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and stops background loops.
func (s *Server) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down http server", "err", err)
	}
	s.engine.Shutdown()
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "err", err)
	}
	slog.Info("server shut down")
}

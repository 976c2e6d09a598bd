package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	middleware "github.com/oapi-codegen/echo-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/controller"
	"github.com/rryowa/gymsession/internal/metrics"
	"github.com/rryowa/gymsession/internal/service"
	"github.com/rryowa/gymsession/internal/util"
)

const (
	shutdownTimeout = 5 * time.Second
)

type API struct {
	server          *echo.Echo
	log             *zap.SugaredLogger
	gracefulTimeout time.Duration
}

// NewAPI builds the development auth server with every route mounted.
func NewAPI(
	c *controller.Controller,
	authService *service.AuthService,
	gatherer prometheus.Gatherer,
	l *zap.SugaredLogger,
	sc *util.ServerConfig,
) (*API, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.Addr = sc.ServerAddr
	e.Server.WriteTimeout = sc.WriteTimeout
	e.Server.ReadTimeout = sc.ReadTimeout
	e.Server.IdleTimeout = sc.IdleTimeout
	e.HTTPErrorHandler = ErrorHandler(l)

	a := &API{
		server:          e,
		log:             l,
		gracefulTimeout: sc.GracefulTimeout,
	}

	swagger, err := controller.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}
	swagger.Servers = nil

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestLoggerWithConfig(GetLoggerMiddlewareConfig(a)))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))

	g := e.Group("/api")
	// Bearer checks run in BearerAuthMiddleware; the validator only
	// enforces request shapes.
	g.Use(middleware.OapiRequestValidatorWithOptions(swagger, &middleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}))
	controller.RegisterHandlers(g, c, BearerAuthMiddleware(authService))

	return a, nil
}

// Handler exposes the router for in-process servers.
func (a *API) Handler() http.Handler {
	return a.server
}

func (a *API) Run(ctxBackground context.Context) {
	ctx, stop := signal.NotifyContext(ctxBackground, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.ListenGracefulShutdown(ctx)
}

func (a *API) ListenGracefulShutdown(ctx context.Context) {
	go func() {
		err := a.server.Start(a.server.Server.Addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()
	a.log.Infof("Listening on: %s", a.server.Server.Addr)

	<-ctx.Done()
	a.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Errorf("shutdown: %v", err)
	}

	longShutdown := make(chan struct{}, 1)

	go func() {
		time.Sleep(a.gracefulTimeout)
		longShutdown <- struct{}{}
	}()

	select {
	case <-shutdownCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			a.log.Info("server shutdown completed")
		} else {
			a.log.Errorf("server shutdown: %v", ctx.Err())
		}
	case <-longShutdown:
		a.log.Infof("finished")
	}
}

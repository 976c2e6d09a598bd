package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/api"
	"github.com/rryowa/gymsession/internal/controller"
	"github.com/rryowa/gymsession/internal/metrics"
	"github.com/rryowa/gymsession/internal/service"
	"github.com/rryowa/gymsession/internal/storage/memory"
	"github.com/rryowa/gymsession/internal/util"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	plainUsers := util.NewStubUsers()
	if len(plainUsers) == 0 {
		logger.Fatal("STUB_USERS is empty; expected name:password pairs")
	}
	users, err := service.HashUsers(plainUsers)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	tokenConfig := util.NewTokenConfig()

	tokenService := service.NewTokenService(tokenConfig)
	refreshSessions := memory.NewRefreshSessionRepository(logger)
	authService := service.NewAuthService(
		tokenService,
		refreshSessions,
		users,
		tokenConfig.RotateRefresh,
		metrics.NewIssuerMetrics(reg),
		logger,
	)

	ctrl := controller.NewController(logger, authService)

	apiServer, err := api.NewAPI(ctrl, authService, reg, logger, util.NewServerConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	logger.Infow("Auth stub configured", "users", len(users), "rotate_refresh", tokenConfig.RotateRefresh, "access_ttl", tokenConfig.AccessTTL)

	apiServer.Run(ctx)
}

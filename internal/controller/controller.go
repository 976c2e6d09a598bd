package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/models"
	"github.com/rryowa/gymsession/internal/service"
	"github.com/rryowa/gymsession/internal/util"
)

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *service.AuthService
}

func NewController(logger *zap.SugaredLogger, authService *service.AuthService) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
	}
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/token/).
func (c *Controller) ObtainToken(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "malformed request body")
	}

	pair, err := c.authService.Login(ctx.Request().Context(), req.Username, req.Password, ctx.Request().UserAgent(), ctx.RealIP())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pair)
}

// (POST /api/token/refresh/).
func (c *Controller) RefreshToken(ctx echo.Context) error {
	var req models.TokenRefreshRequest
	if err := ctx.Bind(&req); err != nil {
		return util.NewResponseError(http.StatusBadRequest, "malformed request body")
	}

	resp, err := c.authService.Refresh(ctx.Request().Context(), req.RefreshToken, ctx.Request().UserAgent(), ctx.RealIP())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

// (GET /api/dashboard/).
func (c *Controller) Dashboard(ctx echo.Context) error {
	username, ok := ctx.Get(models.MwUsernameKey).(string)
	if !ok || username == "" {
		return util.NewResponseError(http.StatusUnauthorized, "Authentication credentials were not provided.")
	}

	return ctx.JSON(http.StatusOK, models.DashboardResponse{
		Username:       username,
		TotalAthletes:  42,
		ActiveAthletes: 37,
		TotalShelves:   6,
	})
}

// DetailFor maps handler errors to a status and a DRF style detail message.
func DetailFor(err error) (int, string) {
	var respErr util.ResponseError
	switch {
	case errors.As(err, &respErr):
		return respErr.Status, respErr.Msg
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "No active account found with the given credentials"
	case errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrRefreshTokenNotFoundOrUsed):
		return http.StatusUnauthorized, "Token is invalid or expired"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/models"
	"github.com/rryowa/gymsession/internal/service"
)

// BearerAuthMiddleware validates the access token in the Authorization header
// and stores the username and raw token in the echo context.
func BearerAuthMiddleware(authService *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(models.AuthorizationHeader)
			token, ok := strings.CutPrefix(header, models.BearerPrefix)
			if !ok || token == "" {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="api"`)
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
			}

			username, err := authService.Authenticate(token)
			if err != nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="api"`)
				return err
			}

			c.Set(models.MwUsernameKey, username)
			c.Set(models.MwTokenKey, token)

			return next(c)
		}
	}
}

func GetLoggerMiddlewareConfig(a *API) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogError:     true,
		LogRequestID: true,
		LogLatency:   true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if id := c.Request().Header.Get(models.RequestIDHeader); id != "" {
				fields = append(fields, "request_id", id)
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				a.log.Errorw("Request", fields...)
			} else {
				a.log.Infow("Request", fields...)
			}
			return nil
		},
	}
}

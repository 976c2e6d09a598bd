package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/controller"
	"github.com/rryowa/gymsession/internal/models"
)

func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, detail := controller.DetailFor(err)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status, detail = he.Code, fmt.Sprint(he.Message)
		}

		if status >= http.StatusInternalServerError {
			log.Errorw("unhandled error", "error", err, "uri", c.Request().RequestURI)
		}

		if err := c.JSON(status, models.ErrorResponse{Detail: detail}); err != nil {
			log.Errorw("failed to write json response", "error", err)
		}
	}
}

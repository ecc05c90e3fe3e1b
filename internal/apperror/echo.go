package apperror

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/riveredge/platform/pkg/logger"
	"go.uber.org/zap"
)

// HTTPErrorHandler converts taxonomy errors to the {"detail": ...} envelope.
// Install it as the echo.HTTPErrorHandler so no handler writes statuses itself.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	detail := "internal server error"

	var appErr *Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		status = appErr.HTTPStatus()
		detail = appErr.Message
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			detail = msg
		} else {
			detail = http.StatusText(httpErr.Code)
		}
	default:
		logger.FromEcho(c).Error("Unhandled error", zap.Error(err))
	}

	if status >= 500 && appErr != nil {
		logger.FromEcho(c).Error("Dependency failure", zap.Error(err))
	}

	if writeErr := c.JSON(status, echo.Map{"detail": detail}); writeErr != nil {
		logger.FromEcho(c).Error("Failed to write error response", zap.Error(writeErr))
	}
}

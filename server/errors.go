package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// kindForStatus names echo errors that carry no apperror kind.
func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperror.KindValidation.String()
	case http.StatusUnauthorized:
		return apperror.KindUnauthenticated.String()
	case http.StatusForbidden:
		return apperror.KindForbidden.String()
	case http.StatusNotFound:
		return apperror.KindNotFound.String()
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return "error"
	}
}

// ErrorHandler renders apperror and echo errors as
// {"error": {"kind", "message"}}. Store failures are logged with their cause
// and answered with a generic message.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			logger.Warn("error after response was committed", zap.Error(err), zap.String("path", c.Path()))
			return
		}

		status := http.StatusInternalServerError
		body := ErrorBody{Kind: "internal", Message: http.StatusText(http.StatusInternalServerError)}

		var appErr *apperror.Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			status = apperror.HTTPStatus(appErr.Kind)
			body = ErrorBody{Kind: appErr.Kind.String(), Message: apperror.PublicMessage(err)}
			if appErr.Kind == apperror.KindStore {
				logger.Error("request failed with storage error",
					zap.String("method", c.Request().Method),
					zap.String("path", c.Path()),
					zap.Error(err))
			}
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = ErrorBody{Kind: kindForStatus(status), Message: fmt.Sprint(httpErr.Message)}
			if status >= http.StatusInternalServerError {
				logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
			}
		default:
			logger.Error("unhandled request error",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, ErrorResponse{Error: body})
		}
		if writeErr != nil {
			logger.Error("failed to write error response", zap.Error(writeErr))
		}
	}
}

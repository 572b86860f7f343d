package presenter

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/leaflog/leaflog"
	"github.com/leaflog/leaflog/internal/domain"
)

// Every endpoint answers HTTP 200 with the envelope; failure lives in
// the body, not the status line. Clients check OK and branch on the
// error code.

func OK(c echo.Context, payload any) error {
	return c.JSON(http.StatusOK, leaflog.OKResponse(payload))
}

func Err(c echo.Context, code, message string) error {
	return c.JSON(http.StatusOK, leaflog.ErrResponse(code, message))
}

// CodeFor maps a domain error to its envelope error code.
func CodeFor(err error) string {
	var tokenErr domain.TokenError
	var recogErr domain.RecognitionError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return leaflog.ErrCodeNotFound
	case errors.Is(err, domain.ErrNotImplemented):
		return leaflog.ErrCodeNotImplemented
	case errors.As(err, &tokenErr):
		return leaflog.ErrCodeTokenFailed
	case errors.As(err, &recogErr):
		return leaflog.ErrCodeRecognitionFailed
	default:
		return leaflog.ErrCodeDBError
	}
}

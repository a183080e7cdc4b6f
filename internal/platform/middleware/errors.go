package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorBody is the JSON shape of every error response. Message, Code and
// Detail are blanked in production.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"requestId,omitempty"`
}

// Redact strips the diagnostic fields.
func (b ErrorBody) Redact() ErrorBody {
	b.Message = ""
	b.Code = ""
	b.Detail = ""
	return b
}

// WriteError writes body with status unless the response is already committed.
func WriteError(c echo.Context, status int, body ErrorBody) error {
	if c.Response().Committed {
		return nil
	}
	if body.RequestID == "" {
		body.RequestID, _ = c.Get("request_id").(string)
	}
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return c.JSON(status, body)
}

// ErrorHandler renders echo errors that escaped the handlers (routing misses,
// auth and rate limit rejections, recovered panics) in the ErrorBody shape.
func ErrorHandler(logger zerolog.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		status := http.StatusInternalServerError
		body := ErrorBody{Error: http.StatusText(status)}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			body.Error = http.StatusText(status)
			body.Message = fmt.Sprintf("%v", he.Message)
			if he.Internal != nil {
				body.Detail = he.Internal.Error()
			}
		} else {
			body.Message = err.Error()
		}
		body.Retryable = status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout

		if status >= 500 {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}
		if production {
			body = body.Redact()
		}
		if werr := WriteError(c, status, body); werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on each request context. Store queries
// inherit it, so an expired request also cancels its in-flight queries. The
// handler runs on the calling goroutine; if it returns after the deadline
// without having written a response, a retryable 504 is written.
//
// Export downloads can take longer than a JSON report; paths in skip are
// left without a deadline.
func RequestTimeout(timeout time.Duration, skip ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, p := range skip {
				if c.Path() == p {
					return next(c)
				}
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return WriteError(c, http.StatusGatewayTimeout, ErrorBody{
					Error:     http.StatusText(http.StatusGatewayTimeout),
					Message:   "request processing exceeded the allowed time limit",
					Retryable: true,
				})
			}
			return err
		}
	}
}

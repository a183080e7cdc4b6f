package wellness

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidRange is returned for a malformed, inverted or oversized range.
var ErrInvalidRange = errors.New("invalid date range")

// ConfigurationError means the service cannot reach a store at all. It is
// not retryable.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// UpstreamError wraps a failed store call. The caller may retry; the service
// itself never does.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *UpstreamError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) || pgconn.Timeout(e.Err)
}

func (e *UpstreamError) Retryable() bool { return true }

// SQLState returns the Postgres error code and detail, if the store sent one.
func (e *UpstreamError) SQLState() (code, detail string) {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgErr.Code, pgErr.Detail
	}
	return "", ""
}

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// ErrUnknownReport is returned for a report id that does not exist or cannot
// be exported.
var ErrUnknownReport = errors.New("unknown report")

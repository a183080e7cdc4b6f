package db

import (
	"context"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const BranchKey contextKey = "branch_schema"

// BranchHeader selects the branch schema for a request.
const BranchHeader = "X-Branch"

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidSchema reports whether name is a plain, unquoted identifier.
func ValidSchema(name string) bool {
	return schemaPattern.MatchString(name)
}

// BranchMiddleware resolves which branch schema the request reads from and
// stores it on the request context.
func BranchMiddleware(defaultSchema string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			schema := extractBranch(c, defaultSchema)
			if !ValidSchema(schema) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid branch identifier")
			}

			ctx := WithBranch(c.Request().Context(), schema)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("branch", schema)

			return next(c)
		}
	}
}

func extractBranch(c echo.Context, defaultSchema string) string {
	if b := c.Request().Header.Get(BranchHeader); b != "" {
		return b
	}
	if b := c.QueryParam("branch"); b != "" {
		return b
	}
	return defaultSchema
}

// WithBranch returns ctx carrying schema.
func WithBranch(ctx context.Context, schema string) context.Context {
	return context.WithValue(ctx, BranchKey, schema)
}

// BranchFromContext returns the request's branch schema, or fallback.
func BranchFromContext(ctx context.Context, fallback string) string {
	if s, ok := ctx.Value(BranchKey).(string); ok && s != "" {
		return s
	}
	return fallback
}

// Table returns the quoted, schema-qualified name of table.
func Table(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

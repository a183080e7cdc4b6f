package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin        = "admin"
	RoleReportViewer = "report_viewer"
	RoleReportExport = "report_export"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireBranch rejects requests for a branch the token does not list. It
// must run after the branch has been resolved onto the echo context.
func RequireBranch() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			branch, _ := c.Get("branch").(string)
			if BranchAllowed(BranchesFromContext(c.Request().Context()), branch) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("no access to branch %q", branch))
		}
	}
}

// BranchAllowed reports whether branch is in allowed. An empty list allows
// every branch.
func BranchAllowed(allowed []string, branch string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, b := range allowed {
		if b == branch || b == "*" {
			return true
		}
	}
	return false
}

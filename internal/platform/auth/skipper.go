package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication. Only infrastructure probes and the API
// description are public; every report endpoint requires a token outside
// development.
var publicPaths = map[string]bool{
	"/health":           true,
	"/health/db":        true,
	"/metrics":          true,
	"/api/openapi.json": true,
}

// AuthSkipper returns true for requests whose path should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path bypasses auth.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}

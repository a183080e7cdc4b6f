package openapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/him/wellness/internal/platform/reporting"
)

// SpecPath is where the generated document is served. It is public.
const SpecPath = "/api/openapi.json"

// Generator builds an OpenAPI 3.0 spec from the report catalog.
type Generator struct {
	reports []reporting.ReportDefinition
	version string
	baseURL string
}

// NewGenerator creates a new OpenAPI spec generator.
func NewGenerator(reports []reporting.ReportDefinition, version, baseURL string) *Generator {
	return &Generator{reports: reports, version: version, baseURL: baseURL}
}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	paths := make(map[string]interface{})

	paths["/api/v1/reports"] = map[string]interface{}{
		"get": map[string]interface{}{
			"summary":     "List report definitions",
			"operationId": "listReports",
			"tags":        []string{"catalog"},
			"responses": map[string]interface{}{
				"200": map[string]interface{}{"description": "Report catalog"},
			},
		},
	}

	for _, r := range g.reports {
		params := g.buildParameters(r.Parameters)
		paths[r.Path] = map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     r.Name,
				"description": r.Description,
				"operationId": operationID("get", r.ID),
				"tags":        []string{"reports"},
				"parameters":  params,
				"responses":   g.buildResponses("application/json", "Report data"),
			},
		}
		if r.Exportable {
			paths[r.Path+"/export"] = map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Export " + r.Name + " as XLSX",
					"operationId": operationID("export", r.ID),
					"tags":        []string{"exports"},
					"parameters":  params,
					"responses": g.buildResponses(
						"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "Workbook"),
				},
			}
		}
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "HIM Wellness Reporting API",
			"version":     g.version,
			"description": "Read-only clinic operations reports",
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Error": buildErrorSchema(),
			},
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]interface{}{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
		"security": []map[string][]string{{"bearerAuth": {}}},
	}
}

// buildParameters maps report parameter names to query parameters. The
// branch selector applies to every report.
func (g *Generator) buildParameters(names []string) []map[string]interface{} {
	result := make([]map[string]interface{}, 0, len(names)+1)
	for _, n := range names {
		result = append(result, map[string]interface{}{
			"name":        n,
			"in":          "query",
			"schema":      map[string]interface{}{"type": "string", "format": "date"},
			"description": "Inclusive range bound; both bounds are required for the range to apply",
		})
	}
	result = append(result, map[string]interface{}{
		"name":   "X-Branch",
		"in":     "header",
		"schema": map[string]interface{}{"type": "string", "pattern": "^[a-zA-Z_][a-zA-Z0-9_]*$"},
	})
	return result
}

func (g *Generator) buildResponses(contentType, description string) map[string]interface{} {
	errorRef := map[string]interface{}{
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
	withDesc := func(desc string) map[string]interface{} {
		out := map[string]interface{}{"description": desc}
		for k, v := range errorRef {
			out[k] = v
		}
		return out
	}
	return map[string]interface{}{
		"200": map[string]interface{}{
			"description": description,
			"content":     map[string]interface{}{contentType: map[string]interface{}{}},
		},
		"400": withDesc("Invalid date range"),
		"503": withDesc("Reporting store unavailable (retryable)"),
		"504": withDesc("Reporting store timed out (retryable)"),
	}
}

func buildErrorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"error", "retryable"},
		"properties": map[string]interface{}{
			"error":     map[string]string{"type": "string"},
			"message":   map[string]string{"type": "string"},
			"code":      map[string]string{"type": "string"},
			"detail":    map[string]string{"type": "string"},
			"retryable": map[string]string{"type": "boolean"},
			"requestId": map[string]string{"type": "string"},
		},
	}
}

// operationID turns "daily-sales" into "getDailySales".
func operationID(verb, id string) string {
	var b strings.Builder
	b.WriteString(verb)
	for _, part := range strings.Split(id, "-") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

// RegisterRoutes serves the spec.
func (g *Generator) RegisterRoutes(e *echo.Echo) {
	e.GET(SpecPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
}

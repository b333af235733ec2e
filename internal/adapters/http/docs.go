package http

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// DefaultOpenAPIPath is where the API document lives relative to the repo root.
const DefaultOpenAPIPath = "api/openapi.yaml"

var swaggerUI = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}} {{.Version}}</title>
  <meta name="description" content="{{.Summary}}">
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}nav{padding:8px 16px;font:13px monospace}</style>
</head>
<body>
  <nav>{{range .Operations}}<div>{{.Method}} {{.Path}}{{if .Summary}} - {{.Summary}}{{end}}</div>{{end}}</nav>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`))

// Operation is one documented route of the proximity API.
type Operation struct {
	Method  string `json:"method"`
	Path    string `json:"path"`
	ID      string `json:"operation_id,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// apiDocs is the OpenAPI document loaded once at startup.
type apiDocs struct {
	raw        []byte
	doc        *openapi3.T
	operations []Operation
}

func loadAPIDocs(path string) (*apiDocs, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := (&openapi3.Loader{}).LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return &apiDocs{raw: raw, doc: doc, operations: listOperations(doc)}, nil
}

// listOperations flattens the document's paths, ordered by path then method.
func listOperations(doc *openapi3.T) []Operation {
	var ops []Operation
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			ops = append(ops, Operation{Method: method, Path: path, ID: op.OperationID, Summary: op.Summary})
		}
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path != ops[j].Path {
			return ops[i].Path < ops[j].Path
		}
		return ops[i].Method < ops[j].Method
	})
	return ops
}

// summary is the first line of the document description.
func (d *apiDocs) summary() string {
	line, _, _ := strings.Cut(strings.TrimSpace(d.doc.Info.Description), "\n")
	return line
}

// SetupDocs registers Swagger UI at /docs along with the OpenAPI document
// as YAML and JSON and a flat operation index at /docs/operations.
// A missing or invalid document leaves the routes answering 404.
func SetupDocs(app *fiber.App, path string) {
	if path == "" {
		path = DefaultOpenAPIPath
	}
	docs, err := loadAPIDocs(path)
	if err != nil {
		slog.Warn("api docs unavailable", "path", path, "error", err)
		missing := func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "api docs not available"})
		}
		app.Get("/docs", missing)
		app.Get("/docs/*", missing)
		return
	}

	page := struct {
		Title, Version, Summary string
		Operations              []Operation
	}{docs.doc.Info.Title, docs.doc.Info.Version, docs.summary(), docs.operations}

	var html strings.Builder
	if err := swaggerUI.Execute(&html, page); err != nil {
		slog.Warn("render api docs", "error", err)
		return
	}
	rendered := html.String()

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(rendered)
	})
	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "application/yaml")
		return c.Send(docs.raw)
	})
	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		return c.JSON(docs.doc)
	})
	app.Get("/docs/operations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"title":      docs.doc.Info.Title,
			"version":    docs.doc.Info.Version,
			"operations": docs.operations,
		})
	})
}

package http_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	handler "github.com/samirrijal/geofence/internal/adapters/http"
)

// findOpenAPISpec locates the openapi.yaml file by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	dir, _ := os.Getwd()

	// Look for api/openapi.yaml by going up directories
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

// TestOpenAPISpec validates the OpenAPI specification is valid.
func TestOpenAPISpec(t *testing.T) {
	// Load the spec file
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	// Parse YAML spec
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	// Validate the spec
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	// Check that key paths exist
	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/proximity/validate",
		"/v1/proximity/nearest",
		"/v1/proximity/indexed",
		"/v1/targets",
		"/v1/targets/{id}",
		"/v1/locate",
		"/graphql",
	}

	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found in spec", path)
		}
	}

	// Verify key schemas exist
	expectedSchemas := []string{
		"Target",
		"TargetMatch",
		"ValidateRequest",
		"ValidationResult",
		"NearestResult",
		"IndexedResult",
		"Coordinate",
		"APIError",
		"ProximityError",
		"Pagination",
	}

	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI spec valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPIInfo verifies spec metadata.
func TestOpenAPIInfo(t *testing.T) {
	specPath := findOpenAPISpec(t)
	data, err := os.ReadFile(specPath)
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	if spec.Info.Title != "Geofence Proximity API" {
		t.Errorf("expected title 'Geofence Proximity API', got %q", spec.Info.Title)
	}

	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}

	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}

	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}

	t.Logf("OpenAPI Info: %s v%s @ %s", spec.Info.Title, spec.Info.Version, spec.Servers[0].URL)
}

// TestOpenAPIErrorKinds keeps the documented error kinds in step with the handlers.
func TestOpenAPIErrorKinds(t *testing.T) {
	data, err := os.ReadFile(findOpenAPISpec(t))
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}
	spec, err := (&openapi3.Loader{}).LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI spec: %v", err)
	}

	pe := spec.Components.Schemas["ProximityError"]
	if pe == nil || pe.Value == nil {
		t.Fatal("ProximityError schema missing")
	}
	var kindSchema *openapi3.SchemaRef
	for _, s := range append([]*openapi3.SchemaRef{pe}, pe.Value.AllOf...) {
		if s.Value != nil && s.Value.Properties["error_kind"] != nil {
			kindSchema = s.Value.Properties["error_kind"]
		}
	}
	if kindSchema == nil {
		t.Fatal("error_kind property missing")
	}

	documented := map[string]bool{}
	for _, v := range kindSchema.Value.Enum {
		if s, ok := v.(string); ok {
			documented[s] = true
		}
	}
	for _, kind := range []string{
		handler.KindInvalidCoordinate,
		handler.KindMissingField,
		handler.KindTargetNotFound,
		handler.KindInternalComputation,
		handler.KindMalformedRequest,
		handler.KindLocationUnavailable,
	} {
		if !documented[kind] {
			t.Errorf("error kind %s is not documented", kind)
		}
	}
}

func TestDocs_ServeOwnDocument(t *testing.T) {
	deps := makeDeps(t)
	deps.OpenAPIPath = findOpenAPISpec(t)
	app := setupApp(deps)

	status, page := get(t, app, "/docs")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	for _, want := range []string{
		"<title>Geofence Proximity API 1.0.0</title>",
		"POST /v1/proximity/validate - Validate a position against one target",
		"GET /v1/proximity/indexed",
		"/docs/openapi.json",
	} {
		if !strings.Contains(string(page), want) {
			t.Errorf("docs page missing %q", want)
		}
	}

	status, body := get(t, app, "/docs/operations")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var index struct {
		Title      string              `json:"title"`
		Operations []handler.Operation `json:"operations"`
	}
	if err := json.Unmarshal(body, &index); err != nil {
		t.Fatalf("decode operations: %v", err)
	}
	if index.Title != "Geofence Proximity API" {
		t.Errorf("expected the geofence title, got %q", index.Title)
	}
	seen := map[string]bool{}
	for i, op := range index.Operations {
		seen[op.Method+" "+op.Path] = true
		if i > 0 && index.Operations[i-1].Path > op.Path {
			t.Errorf("operations not ordered by path: %s after %s", op.Path, index.Operations[i-1].Path)
		}
	}
	for _, want := range []string{"POST /v1/proximity/validate", "GET /v1/proximity/nearest", "GET /v1/targets/{id}", "POST /graphql"} {
		if !seen[want] {
			t.Errorf("operation %s not listed", want)
		}
	}

	status, body = get(t, app, "/docs/openapi.json")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	doc, err := (&openapi3.Loader{}).LoadFromData(body)
	if err != nil {
		t.Fatalf("served json does not load: %v", err)
	}
	if doc.Paths.Find("/v1/proximity/validate") == nil {
		t.Error("served json lost the validate path")
	}

	if status, _ := get(t, app, "/docs/openapi.yaml"); status != 200 {
		t.Errorf("expected yaml at 200, got %d", status)
	}
}

func TestDocs_MissingDocument(t *testing.T) {
	deps := makeDeps(t)
	deps.OpenAPIPath = filepath.Join(t.TempDir(), "openapi.yaml")
	app := setupApp(deps)

	for _, path := range []string{"/docs", "/docs/operations", "/docs/openapi.yaml"} {
		if status, _ := get(t, app, path); status != 404 {
			t.Errorf("%s: expected 404, got %d", path, status)
		}
	}
}

package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// loadSpec loads and validates the OpenAPI document.
func loadSpec(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()

	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromFile(filepath.Join("..", "..", "docs", "api", "openapi.yaml"))
	if err != nil {
		t.Fatalf("Failed to load OpenAPI spec: %v", err)
	}

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI spec validation failed: %v", err)
	}

	router, err := gorillamux.NewRouter(spec)
	if err != nil {
		t.Fatalf("Failed to create router from spec: %v", err)
	}

	return spec, router
}

func TestContract_DocumentedPaths(t *testing.T) {
	t.Parallel()

	spec, _ := loadSpec(t)
	for _, path := range []string{"/api/login", "/api/register", "/api/health", "/readyz", "/api/events"} {
		if spec.Paths.Find(path) == nil {
			t.Errorf("Expected path %s not found in spec", path)
		}
	}
}

// TestContract_Responses drives the in-process router and validates every
// exchange against the OpenAPI document.
func TestContract_Responses(t *testing.T) {
	t.Parallel()

	_, specRouter := loadSpec(t)
	app := newTestApp(t)

	// Order matters: the duplicate register relies on the one before it.
	cases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/api/health", "", http.StatusOK},
		{"readyz", http.MethodGet, "/readyz", "", http.StatusOK},
		{"login success", http.MethodPost, "/api/login", `{"email":"user@example.com","password":"password123"}`, http.StatusOK},
		{"login missing fields", http.MethodPost, "/api/login", `{"email":"","password":""}`, http.StatusBadRequest},
		{"login unknown user", http.MethodPost, "/api/login", `{"email":"ghost@x.com","password":"password123"}`, http.StatusUnauthorized},
		{"login wrong password", http.MethodPost, "/api/login", `{"email":"user@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"register success", http.MethodPost, "/api/register", `{"name":"Ann","email":"ann@x.com","password":"secret1","confirm":"secret1"}`, http.StatusCreated},
		{"register duplicate", http.MethodPost, "/api/register", `{"name":"Ann","email":"ANN@x.com","password":"secret1","confirm":"secret1"}`, http.StatusConflict},
		{"register invalid", http.MethodPost, "/api/register", `{"name":"Ann","email":"ann","password":"secret1","confirm":"secret1"}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			req := httptest.NewRequest(tc.method, tc.path, body)
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}

			route, pathParams, err := specRouter.FindRoute(req)
			if err != nil {
				t.Fatalf("Could not find route in spec: %v", err)
			}

			requestValidationInput := &openapi3filter.RequestValidationInput{
				Request:    req,
				PathParams: pathParams,
				Route:      route,
			}
			if err := openapi3filter.ValidateRequest(context.Background(), requestValidationInput); err != nil {
				t.Fatalf("Request validation failed: %v", err)
			}

			rec := httptest.NewRecorder()
			app.router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}

			responseValidationInput := &openapi3filter.ResponseValidationInput{
				RequestValidationInput: requestValidationInput,
				Status:                 rec.Code,
				Header:                 rec.Header(),
				Body:                   io.NopCloser(bytes.NewReader(rec.Body.Bytes())),
				Options:                &openapi3filter.Options{IncludeResponseStatus: true},
			}
			if err := openapi3filter.ValidateResponse(context.Background(), responseValidationInput); err != nil {
				t.Errorf("Response validation failed: %v", err)
			}
		})
	}
}

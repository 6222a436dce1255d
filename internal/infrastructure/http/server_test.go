package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mrops-br/products-func/internal/app/service"
	"github.com/mrops-br/products-func/internal/infrastructure/config"
	"github.com/mrops-br/products-func/internal/infrastructure/http/handler"
	"github.com/mrops-br/products-func/internal/infrastructure/repository"
	"github.com/mrops-br/products-func/internal/infrastructure/repository/memory"
	"github.com/mrops-br/products-func/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, routePrefix string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	telem, err := telemetry.NewNoOpTelemetry(&config.OTLPConfig{ServiceName: "products-func"}, logger)
	require.NoError(t, err)

	tracer := telem.TracerProvider.Tracer(telemetry.InstrumentationName)
	meter := telem.MeterProvider.Meter(telemetry.InstrumentationName)
	repo := repository.NewProductRepository(memory.NewTable(0, tracer, logger), tracer, logger)
	svc := service.NewProductService(repo, tracer, meter, logger)

	cfg := &config.ServerConfig{Host: "127.0.0.1", Port: 8080, RoutePrefix: routePrefix, MaxBodyBytes: 1024}
	cfg.Timeout.Read = time.Second
	cfg.Timeout.Write = time.Second
	cfg.Timeout.Idle = time.Second
	cfg.Timeout.ReadHeader = time.Second

	srv := NewServer(cfg, config.MetricsConfig{DurationMilliseconds: true}, handler.NewProductHandler(svc, logger), logger, telem)
	return srv.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestServer_ProductRoutes(t *testing.T) {
	testCases := []struct {
		name   string
		prefix string
		path   string
	}{
		{name: "bare route", prefix: "/api", path: "/product"},
		{name: "prefixed route", prefix: "/api", path: "/api/product"},
		{name: "prefix with trailing slash", prefix: "/api/", path: "/api/product"},
		{name: "no prefix", prefix: "", path: "/product"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			h := newTestServer(t, tc.prefix)

			// when
			created := do(h, http.MethodPost, tc.path, `{"PartitionKey":"p1","Id":"abc123","Name":"Widget"}`)
			listed := do(h, http.MethodGet, tc.path, "")

			// then
			require.Equal(t, http.StatusOK, created.Code)
			assert.NotEmpty(t, created.Header().Get("Content-Type"))
			require.Equal(t, http.StatusOK, listed.Code)
			var products []map[string]any
			require.NoError(t, json.Unmarshal(listed.Body.Bytes(), &products))
			require.Len(t, products, 1)
			assert.Equal(t, "abc123", products[0]["Id"])
		})
	}
}

func TestServer_PrefixNotMountedWhenEmpty(t *testing.T) {
	h := newTestServer(t, "")

	rec := do(h, http.MethodGet, "/api/product", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Health(t *testing.T) {
	rec := do(newTestServer(t, "/api"), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	// given
	h := newTestServer(t, "/api")
	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/product", `{"PartitionKey":"p1"}`).Code)

	// when
	rec := do(h, http.MethodGet, "/metrics", "")

	// then
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "products_created")
	assert.Contains(t, body, "products_operations")
	assert.Contains(t, body, "http_server_active_requests")
	assert.Contains(t, body, "http_server_request_duration_ms")
}

func TestServer_MetricsIgnoreUnknownPaths(t *testing.T) {
	// given
	h := newTestServer(t, "/api")
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/product", "").Code)
	for _, path := range []string{"/random-0", "/random-1"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		req.Host = "spoofed-host.example:4242"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	// when
	rec := do(h, http.MethodGet, "/metrics", "")

	// then
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `http_route="/api/product"`)
	assert.Contains(t, body, `http_route="unmatched"`)
	assert.NotContains(t, body, "random-0")
	assert.NotContains(t, body, "random-1")
	assert.NotContains(t, body, "spoofed-host")
	assert.NotContains(t, body, `server_port="4242"`)
}

func TestServer_BodyLimit(t *testing.T) {
	h := newTestServer(t, "/api")

	rec := do(h, http.MethodPost, "/product", `{"Name":"`+strings.Repeat("x", 2048)+`"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, "/api")

	notFound := do(h, http.MethodGet, "/products", "")
	notAllowed := do(h, http.MethodDelete, "/product", "")

	assert.Equal(t, http.StatusNotFound, notFound.Code)
	assert.Contains(t, notFound.Body.String(), `"not_found"`)
	assert.Equal(t, http.StatusMethodNotAllowed, notAllowed.Code)
	assert.Contains(t, notAllowed.Body.String(), `"method_not_allowed"`)
}

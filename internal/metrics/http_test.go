package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetricsRouter(t *testing.T) (*gin.Engine, *Provider) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider, err := NewProvider("boltgate_test")
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "boltgate_test"))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "OK"}) }
	router.GET("/api/boltcard/:cardId", ok)
	router.GET("/api/vouchers/:id/lnurlw", ok)
	router.GET("/api/cards/:id", ok)
	router.GET("/health", ok)
	return router, provider
}

func TestHTTPMetricsMiddleware_TapRouteUsesPattern(t *testing.T) {
	router, provider := newMetricsRouter(t)

	const idHash = "9f2c4e6a8b0d1f3e5a7c9e1b3d5f7a9c"
	const p = "4E2E289D945A66BB13377A728884E867"
	const c = "E19CCB1FED8892CE"

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/boltcard/"+idHash+"?p="+p+"&c="+c, nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := scrape(t, provider)
	assert.Contains(t, body, `path="/api/boltcard/:cardId"`)
	assert.Contains(t, body, `surface="lnurl"`)
	assert.NotContains(t, body, idHash)
	assert.NotContains(t, body, p)
	assert.NotContains(t, body, c)
}

func TestHTTPMetricsMiddleware_Surfaces(t *testing.T) {
	router, provider := newMetricsRouter(t)

	for _, path := range []string{"/api/vouchers/charge-1/lnurlw", "/api/cards/card-1", "/health", "/nope/secret"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, provider)
	assert.Contains(t, body, `path="/api/vouchers/:id/lnurlw"`)
	assert.Contains(t, body, `path="/api/cards/:id"`)
	assert.Contains(t, body, `surface="admin"`)
	assert.Contains(t, body, `surface="infra"`)
	assert.Contains(t, body, `path="unknown"`)
	assert.NotContains(t, body, "charge-1")
	assert.NotContains(t, body, "/nope/secret")
}

func TestRouteSurface(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/api/boltcard/:cardId", want: SurfaceLNURL},
		{path: "/api/boltcard/callback", want: SurfaceLNURL},
		{path: "/api/boltcard/topup/:cardId/callback", want: SurfaceLNURL},
		{path: "/api/boltcard/reset/:cardId", want: SurfaceAdmin},
		{path: "/api/vouchers/callback", want: SurfaceLNURL},
		{path: "/api/vouchers/:id/status", want: SurfaceLNURL},
		{path: "/api/vouchers/0192c0de/lnurlw", want: SurfaceLNURL},
		{path: "/api/vouchers", want: SurfaceAdmin},
		{path: "/api/vouchers/:id", want: SurfaceAdmin},
		{path: "/api/cards/:id/adjust", want: SurfaceAdmin},
		{path: "/health", want: SurfaceInfra},
		{path: "", want: SurfaceInfra},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, RouteSurface(tt.path))
		})
	}
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/api/boltcard/:cardId", routeLabel("/api/boltcard/:cardId"))
	assert.Equal(t, "unknown", routeLabel(""))
}

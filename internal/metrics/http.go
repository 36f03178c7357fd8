package metrics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Route surfaces used as the surface label.
const (
	SurfaceLNURL = "lnurl"
	SurfaceAdmin = "admin"
	SurfaceInfra = "infra"
)

const unmatchedRoute = "unknown"

// RouteSurface classifies a request path or gin route pattern. LNURL routes are called by
// wallets without credentials, admin routes require the admin token and everything else
// is infrastructure.
func RouteSurface(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/boltcard/reset/"):
		return SurfaceAdmin
	case strings.HasPrefix(path, "/api/boltcard/"):
		return SurfaceLNURL
	case path == "/api/vouchers/callback":
		return SurfaceLNURL
	case strings.HasPrefix(path, "/api/vouchers/") &&
		(strings.HasSuffix(path, "/status") || strings.HasSuffix(path, "/lnurlw")):
		return SurfaceLNURL
	case strings.HasPrefix(path, "/api/"):
		return SurfaceAdmin
	}
	return SurfaceInfra
}

// HTTPMetricsMiddleware records request counts and durations labelled with method, route
// pattern, surface and status code. The path label is always the gin route pattern, so card
// id hashes, voucher ids and tap parameters never become label values.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	meter := meterProvider.Meter(namespace)

	requests, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	durations, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := routeLabel(c.FullPath())
		surface := RouteSurface(c.FullPath())
		if route == unmatchedRoute {
			surface = RouteSurface(c.Request.URL.Path)
		}

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", route),
			attribute.String("surface", surface),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		requests.Add(c.Request.Context(), 1, attrs)
		durations.Record(c.Request.Context(), time.Since(start).Seconds(), attrs)
	}
}

// routeLabel returns the route pattern, or "unknown" when no route matched.
func routeLabel(fullPath string) string {
	if fullPath == "" {
		return unmatchedRoute
	}
	return fullPath
}

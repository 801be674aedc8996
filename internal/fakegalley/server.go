// Package fakegalley serves the slice of the galley and brig HTTP surface the
// contract checks touch, backed by in-memory state. It is a test double for
// the harness, not an implementation of either service.
package fakegalley

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	// Domain is reported in qualified ids (default: example.com)
	Domain string
	// VersionHeader, when set, selects the API version as an alternative to the path prefix
	VersionHeader string
	// BodySizeLimit is an echo size string (default: 1M)
	BodySizeLimit string
	// Logger receives one line per request (default: slog.Default())
	Logger *slog.Logger
}

const versionKey = "api_version"

var versionPrefix = regexp.MustCompile(`^/v(\d+)(/.*)$`)

// New creates a new fake galley server with empty state
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bodySizeLimit := cfg.BodySizeLimit
	if bodySizeLimit == "" {
		bodySizeLimit = "1M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests handled by the service.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	registry.MustRegister(duration)
	// A vector without children is not exposed at all
	duration.WithLabelValues(http.MethodGet, "/i/status", "200")

	handler := NewHandler(newState(cfg.Domain))

	e.Pre(versionMiddleware(cfg.VersionHeader))

	// Global middleware stack (order matters)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			logger.Debug("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodySizeLimit))
	e.Use(durationMiddleware(duration))

	// Internal routes
	e.GET("/i/status", handler.Status)
	e.HEAD("/i/status", handler.Status)
	e.GET("/i/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	e.POST("/i/users", handler.CreateUser)
	e.DELETE("/i/users/:uid", handler.DeleteUser)
	e.DELETE("/i/conversations/:cnv", handler.DeleteConversation)

	// User-scoped routes
	e.POST("/connections", handler.CreateConnection, requireUser)
	e.PUT("/connections/:uid", handler.UpdateConnection, requireUser)
	e.POST("/conversations", handler.CreateConversation, requireUser)
	e.GET("/conversations/:cnv", handler.GetConversation, requireUser)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Counts returns the number of stored users and conversations.
func (s *Server) Counts() (users, conversations int) {
	return s.handler.state.counts()
}

// versionMiddleware strips a /v{n} path prefix, or reads the version header,
// and stores the selected API version in the context. Unversioned requests get 0.
func versionMiddleware(header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			version := 0
			if m := versionPrefix.FindStringSubmatch(req.URL.Path); m != nil {
				version, _ = strconv.Atoi(m[1])
				req.URL.Path = m[2]
				req.URL.RawPath = ""
			} else if header != "" {
				if v, err := strconv.Atoi(req.Header.Get(header)); err == nil && v > 0 {
					version = v
				}
			}
			c.Set(versionKey, version)
			return next(c)
		}
	}
}

func apiVersion(c echo.Context) int {
	v, _ := c.Get(versionKey).(int)
	return v
}

// requireUser rejects requests that did not pass through the authenticating gateway.
func requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("Z-User") == "" {
			return errorJSON(c, http.StatusUnauthorized, "missing-auth", "Z-User header required")
		}
		return next(c)
	}
}

func durationMiddleware(h *prometheus.HistogramVec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(seconds float64) {
				h.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(c.Response().Status)).Observe(seconds)
			}))
			defer timer.ObserveDuration()
			return next(c)
		}
	}
}

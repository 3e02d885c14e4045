package serverapp

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"joinwise/internal/config"
	"joinwise/internal/engine"
	"joinwise/internal/logging"
	"joinwise/internal/observability"
)

func buildRouter(cfg *config.Config, logger *logging.Logger, db *sql.DB, eng *engine.Engine, meterProvider *observability.MeterProvider) http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware(logger))

	if cfg.Server.CORSEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposedHeaders:   cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		}))
		logger.Info("CORS enabled", slog.Any("allowed_origins", cfg.Server.CORSAllowedOrigins))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/suggestions", suggestionsHandler(eng))
		r.Post("/compile", compileHandler(eng))
		r.Post("/invalidations", invalidationsHandler(eng))
	})

	r.Get("/healthz", healthHandler(db, cfg.Server.HealthCheckTimeout))

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return r
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}
	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/v1/suggestions", "/v1/compile", "/v1/invalidations", "/healthz", "/metrics":
		return rawPath
	default:
		return "/*"
	}
}

// requestIDMiddleware tags each request with an ID, reusing the caller's
// X-Request-ID when present, and stores a request-scoped logger in context.
func requestIDMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := logging.WithRequestIDContext(r.Context(), requestID)
			ctx = logging.WithLogger(ctx, logger.WithRequestID(requestID))
			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

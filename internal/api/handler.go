package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loglens/loglens/internal/auth"
	"github.com/loglens/loglens/internal/catalog"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/dashboard"
	"github.com/loglens/loglens/internal/observability"
	"github.com/loglens/loglens/internal/query"
)

type ReadinessCheck func(ctx context.Context) error

type QueryRunner interface {
	Run(ctx context.Context, request query.Request) (query.Job, query.ResultSet, error)
}

type SeverityReader interface {
	Severity(ctx context.Context) (dashboard.Severity, error)
}

type TableCatalog interface {
	GetTable(ctx context.Context, database, name string) (catalog.Table, error)
	ListTables(ctx context.Context, database string) ([]catalog.Table, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Queries           QueryRunner
	History           *query.History
	Dashboard         SeverityReader
	Catalog           TableCatalog
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	h := &handlers{cfg: cfg, deps: deps}
	protected := map[string]http.Handler{
		"POST /v1/query":                       auth.RequireRole(auth.RoleQueryRunner, http.HandlerFunc(h.query)),
		"GET /v1/queries":                      auth.RequireRole(auth.RoleViewer, http.HandlerFunc(h.history)),
		"GET /v1/dashboard/severity":           auth.RequireRole(auth.RoleViewer, http.HandlerFunc(h.severity)),
		"GET /v1/tables":                       auth.RequireRole(auth.RoleViewer, http.HandlerFunc(h.listTables)),
		"GET /v1/tables/{table}/default-query": auth.RequireRole(auth.RoleViewer, http.HandlerFunc(h.defaultQuery)),
	}
	for pattern, handler := range protected {
		mux.Handle(pattern, protect(cfg, deps, handler))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.Middleware(deps.Logger),
	}
	return chain(mux, middlewares...)
}

func protect(cfg config.Config, deps Dependencies, next http.Handler) http.Handler {
	if !cfg.Auth.Required {
		return next
	}
	if deps.AuthMiddleware == nil {
		if deps.Logger != nil {
			deps.Logger.Error("auth required but auth middleware missing")
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
		})
	}
	return deps.AuthMiddleware(next)
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"request_id": observability.RequestIDFromContext(ctx),
	})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querypilot/querypilot/internal/assistant"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/conn"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/query"
	"github.com/querypilot/querypilot/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// Pipeline is the function-call boundary the HTTP layer drives.
type Pipeline interface {
	Connect(ctx context.Context, details conn.Details) (assistant.SchemaSummary, error)
	UpdateModel(ctx context.Context, details conn.Details) (assistant.SchemaSummary, error)
	Translate(ctx context.Context, in assistant.TranslateInput) (assistant.TranslateOutput, error)
	Execute(ctx context.Context, statement string, details conn.Details) (query.Result, error)
	Explain(ctx context.Context, statement string, details *conn.Details) (nl2sql.Explanation, error)
	Snapshot(ctx context.Context, details conn.Details) (schema.Snapshot, bool, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Pipeline          Pipeline
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Welcome to QueryPilot"})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
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
			writeDetail(w, http.StatusServiceUnavailable, "Not ready: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	routes := map[string]http.HandlerFunc{
		"/connect":         func(w http.ResponseWriter, r *http.Request) { handleConnect(deps, w, r) },
		"/update_model":    func(w http.ResponseWriter, r *http.Request) { handleUpdateModel(deps, w, r) },
		"/translate_query": func(w http.ResponseWriter, r *http.Request) { handleTranslateQuery(deps, w, r) },
		"/execute_query":   func(w http.ResponseWriter, r *http.Request) { handleExecuteQuery(deps, w, r) },
		"/explain_query":   func(w http.ResponseWriter, r *http.Request) { handleExplainQuery(deps, w, r) },
		"/schema":          func(w http.ResponseWriter, r *http.Request) { handleSchema(deps, w, r) },
	}
	for path, handler := range routes {
		guarded := requirePipeline(deps, handler)
		mux.HandleFunc("POST "+path, guarded)
		mux.HandleFunc("POST "+path+"/{$}", guarded)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares, CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	return chain(mux, middlewares...)
}

func requirePipeline(deps Dependencies, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Pipeline == nil {
			writeDetail(w, http.StatusNotImplemented, "query pipeline is not configured")
			return
		}
		next(w, r)
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

// CheckAIKey reports not ready when no model API key is configured. Requests still start
// without one and fail at translation time.
func CheckAIKey(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.AI.APIKey == "" {
			return errors.New("ai api key is not configured")
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

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

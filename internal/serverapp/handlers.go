package serverapp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"joinwise/internal/engine"
	"joinwise/internal/inference"
	"joinwise/internal/logging"
	"joinwise/internal/model"
)

type suggestionsRequest struct {
	DataSourceID string `json:"data_source_id"`
	SchemaName   string `json:"schema_name"`
	ForceRefresh bool   `json:"force_refresh"`
}

type suggestionsResponse struct {
	Suggestions []inference.JoinSuggestion `json:"suggestions"`
	Count       int                        `json:"count"`
}

type compileRequest struct {
	DataSourceID string            `json:"data_source_id"`
	SchemaName   string            `json:"schema_name"`
	Model        *model.QueryModel `json:"model"`
}

type invalidationRequest struct {
	DataSourceID string `json:"data_source_id"`
	SchemaName   string `json:"schema_name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func suggestionsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req suggestionsRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if req.DataSourceID == "" || req.SchemaName == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "data_source_id and schema_name are required"})
			return
		}

		suggestions, err := eng.GetJoinSuggestions(r.Context(), req.DataSourceID, req.SchemaName, req.ForceRefresh)
		if err != nil {
			logging.FromContext(r.Context()).Error("failed to compute join suggestions",
				slog.String("data_source_id", req.DataSourceID),
				slog.String("schema", req.SchemaName),
				slog.String("error", err.Error()),
			)
			// Generic message to avoid leaking internal details
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to compute join suggestions"})
			return
		}

		writeJSON(w, http.StatusOK, suggestionsResponse{
			Suggestions: suggestions,
			Count:       len(suggestions),
		})
	}
}

func compileHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req compileRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if req.DataSourceID == "" || req.SchemaName == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "data_source_id and schema_name are required"})
			return
		}
		if req.Model == nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "model is required"})
			return
		}

		outcome, err := eng.ValidateAndCompile(r.Context(), req.Model, req.DataSourceID, req.SchemaName)
		if err != nil {
			logging.FromContext(r.Context()).Error("compilation failed",
				slog.String("data_source_id", req.DataSourceID),
				slog.String("schema", req.SchemaName),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "compilation failed"})
			return
		}

		if len(outcome.ValidationErrors) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, outcome)
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	}
}

func invalidationsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req invalidationRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if req.DataSourceID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "data_source_id is required"})
			return
		}

		// An omitted schema_name drops every schema of the data source.
		if req.SchemaName == "" {
			eng.InvalidateDataSource(r.Context(), req.DataSourceID)
		} else {
			eng.InvalidateSchema(r.Context(), req.DataSourceID, req.SchemaName)
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// healthHandler returns an HTTP handler for health checks
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())

		w.Header().Set("Content-Type", "application/json")

		// Check database connectivity with a short timeout
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}

// decodeRequest decodes a JSON body, replying 400 and returning false on
// malformed input.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

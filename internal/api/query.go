package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/loglens/loglens/internal/aggregate"
	"github.com/loglens/loglens/internal/config"
	"github.com/loglens/loglens/internal/query"
)

type handlers struct {
	cfg  config.Config
	deps Dependencies
}

type queryRequest struct {
	SQL      string `json:"sql"`
	Database string `json:"database"`
	// GroupBy, when set, aggregates the result on that column.
	GroupBy string `json:"group_by"`
}

type queryResponse struct {
	JobID      string             `json:"job_id"`
	Polls      int                `json:"polls"`
	Columns    []string           `json:"columns"`
	Rows       [][]string         `json:"rows"`
	RowCount   int                `json:"row_count"`
	DurationMs int64              `json:"duration_ms"`
	Buckets    []aggregate.Bucket `json:"buckets,omitempty"`
	Series     *aggregate.Series  `json:"series,omitempty"`
}

type historyItem struct {
	SQL        string    `json:"sql"`
	JobID      string    `json:"job_id"`
	Rows       int       `json:"rows"`
	ExecutedAt time.Time `json:"executed_at"`
	DurationMs int64     `json:"duration_ms"`
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	if h.deps.Queries == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query executor is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	start := time.Now()
	job, rs, err := h.deps.Queries.Run(r.Context(), query.Request{SQL: request.SQL, Database: request.Database})
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	elapsed := time.Since(start)
	if h.deps.History != nil {
		h.deps.History.Record(query.HistoryEntry{
			SQL:        request.SQL,
			JobID:      job.ID,
			Rows:       len(rs.Rows),
			ExecutedAt: start.UTC(),
			Duration:   elapsed,
		})
	}

	response := queryResponse{
		JobID:      job.ID,
		Polls:      job.Polls,
		Columns:    rs.Headers,
		Rows:       rs.Rows,
		RowCount:   len(rs.Rows),
		DurationMs: elapsed.Milliseconds(),
	}
	if request.GroupBy != "" {
		buckets, err := aggregate.Aggregate(rs, request.GroupBy)
		if err != nil {
			writeError(r.Context(), w, http.StatusUnprocessableEntity, aggregationErrorCode(err), err.Error(), false, map[string]any{"job_id": job.ID})
			return
		}
		series := aggregate.NewSeries(buckets)
		response.Buckets = buckets
		response.Series = &series
	}
	if response.Rows == nil {
		response.Rows = [][]string{}
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "query history is not configured", false, nil)
		return
	}
	entries := h.deps.History.List()
	items := make([]historyItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, historyItem{
			SQL:        entry.SQL,
			JobID:      entry.JobID,
			Rows:       entry.Rows,
			ExecutedAt: entry.ExecutedAt,
			DurationMs: entry.Duration.Milliseconds(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": items})
}

// writeQueryError maps executor failures onto HTTP statuses.
func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	details := map[string]any{"details": err.Error()}

	var rejected *query.RejectedStatementError
	var jobErr *query.JobError
	var timeoutErr *query.TimeoutError
	switch {
	case errors.As(err, &rejected):
		writeError(ctx, w, http.StatusBadRequest, "STATEMENT_REJECTED", "statement contains a forbidden keyword", false, map[string]any{"keyword": rejected.Keyword})
	case errors.As(err, &jobErr) && errors.Is(err, query.ErrQueryFailed):
		writeError(ctx, w, http.StatusBadGateway, "QUERY_FAILED", "query failed", false, map[string]any{"job_id": jobErr.JobID, "reason": jobErr.Reason})
	case errors.As(err, &jobErr) && errors.Is(err, query.ErrQueryCancelled):
		writeError(ctx, w, http.StatusConflict, "QUERY_CANCELLED", "query was cancelled", true, map[string]any{"job_id": jobErr.JobID, "reason": jobErr.Reason})
	case errors.As(err, &timeoutErr):
		writeError(ctx, w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "query did not finish in time", true, map[string]any{"job_id": timeoutErr.JobID, "last_state": timeoutErr.LastState})
	case errors.Is(err, query.ErrAborted):
		writeError(ctx, w, http.StatusServiceUnavailable, "QUERY_ABORTED", "query was aborted", true, details)
	case errors.Is(err, query.ErrService):
		writeError(ctx, w, http.StatusBadGateway, "QUERY_SERVICE_ERROR", "query service request failed", true, details)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "QUERY_ERROR", "query execution failed", false, details)
	}
}

func aggregationErrorCode(err error) string {
	switch {
	case errors.Is(err, aggregate.ErrColumnNotFound):
		return "GROUP_COLUMN_NOT_FOUND"
	case errors.Is(err, aggregate.ErrMalformedCount):
		return "MALFORMED_COUNT"
	default:
		return "AGGREGATION_FAILED"
	}
}

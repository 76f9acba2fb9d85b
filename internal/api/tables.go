package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/loglens/loglens/internal/aggregate"
	"github.com/loglens/loglens/internal/catalog"
	"github.com/loglens/loglens/internal/dashboard"
	"github.com/loglens/loglens/internal/storage"
)

func (h *handlers) database(r *http.Request) string {
	if db := strings.TrimSpace(r.URL.Query().Get("database")); db != "" {
		return db
	}
	return h.cfg.Query.Database
}

func (h *handlers) listTables(w http.ResponseWriter, r *http.Request) {
	if h.deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TABLES_NOT_CONFIGURED", "catalog dependency is not configured", false, nil)
		return
	}
	database := h.database(r)
	if err := storage.ValidateName(database, "database"); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DATABASE", err.Error(), false, nil)
		return
	}
	tables, err := h.deps.Catalog.ListTables(r.Context(), database)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CATALOG_ERROR", "failed to list tables", true, map[string]any{"details": err.Error()})
		return
	}
	items := make([]map[string]any, 0, len(tables))
	for _, table := range tables {
		items = append(items, map[string]any{
			"table_name": table.Name,
			"location":   table.Location,
			"format":     table.Format,
			"created_at": table.CreatedAt,
			"updated_at": table.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database": database,
		"tables":   items,
	})
}

func (h *handlers) defaultQuery(w http.ResponseWriter, r *http.Request) {
	if h.deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TABLES_NOT_CONFIGURED", "catalog dependency is not configured", false, nil)
		return
	}
	database := h.database(r)
	name := r.PathValue("table")
	for field, value := range map[string]string{"database": database, "table": name} {
		if err := storage.ValidateName(value, field); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_"+strings.ToUpper(field), err.Error(), false, nil)
			return
		}
	}
	table, err := h.deps.Catalog.GetTable(r.Context(), database, name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table not found", false, map[string]any{"database": database, "table": name})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "CATALOG_ERROR", "failed to load table", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database": table.Database,
		"table":    table.Name,
		"sql":      dashboard.DefaultQuery(table.Database, table.Name),
	})
}

func (h *handlers) severity(w http.ResponseWriter, r *http.Request) {
	if h.deps.Dashboard == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DASHBOARD_NOT_CONFIGURED", "dashboard is not configured", false, nil)
		return
	}
	severity, err := h.deps.Dashboard.Severity(r.Context())
	if err != nil {
		if errors.Is(err, aggregate.ErrColumnNotFound) || errors.Is(err, aggregate.ErrMalformedCount) {
			writeError(r.Context(), w, http.StatusUnprocessableEntity, aggregationErrorCode(err), err.Error(), false, nil)
			return
		}
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, severity)
}

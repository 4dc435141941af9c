// Package api exposes the HTTP surface: upload, schema, query, insights,
// export, table removal, history, and health.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"querydesk/internal/domain"
	"querydesk/internal/export"
	"querydesk/internal/ingest"
	"querydesk/internal/insights"
	"querydesk/internal/registry"
	"querydesk/internal/service"
)

// Pinger is the store liveness check used by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers carries the wired services behind the HTTP surface.
type Handlers struct {
	uploads   *ingest.Service
	registry  *registry.Registry
	queries   *service.QueryService
	insights  *insights.Generator
	exports   *export.Service
	store     Pinger
	maxUpload int64
	logger    *slog.Logger
}

func NewHandlers(
	uploads *ingest.Service,
	reg *registry.Registry,
	queries *service.QueryService,
	gen *insights.Generator,
	exports *export.Service,
	store Pinger,
	maxUploadBytes int64,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		uploads:   uploads,
		registry:  reg,
		queries:   queries,
		insights:  gen,
		exports:   exports,
		store:     store,
		maxUpload: maxUploadBytes,
		logger:    logger.With("component", "api"),
	}
}

type uploadResponse struct {
	Table    string                    `json:"table"`
	Columns  []export.ColumnDescriptor `json:"columns"`
	RowCount int64                     `json:"row_count"`
	Replaced bool                      `json:"replaced"`
}

// handleUpload accepts a multipart CSV under the "file" field.
func (h *Handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, h.logger, domain.ErrUpload("cannot parse multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, domain.ErrUpload("missing file field"))
		return
	}
	defer file.Close() //nolint:errcheck

	table, replaced, err := h.uploads.Upload(r.Context(), header.Filename, file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	desc := export.DescribeTable(table)
	writeJSON(w, http.StatusCreated, uploadResponse{
		Table:    table.Name,
		Columns:  desc.Columns,
		RowCount: table.RowCount,
		Replaced: replaced,
	})
}

func (h *Handlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, export.DescribeSchema(h.registry.Snapshot()))
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	SQL       string           `json:"sql"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
}

func (h *Handlers) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeBadRequest(w, "question is required")
		return
	}

	out, err := h.queries.Run(r.Context(), req.Question)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		SQL:       out.SQL,
		Columns:   out.Result.Columns,
		Rows:      out.Result.Rows,
		RowCount:  out.Result.RowCount,
		Truncated: out.Result.Truncated,
	})
}

type insightsRequest struct {
	SQL     string           `json:"sql"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func (h *Handlers) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res := &domain.QueryResult{Columns: req.Columns, Rows: req.Rows, RowCount: len(req.Rows)}
	summary, err := h.insights.Summarize(r.Context(), req.SQL, res)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *Handlers) handleExportTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "tableName")
	table, ok := h.registry.Lookup(name)
	if !ok {
		writeError(w, h.logger, domain.ErrNotFound("table %q not found", name))
		return
	}

	artifact, err := h.exports.ExportTable(r.Context(), table)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeArtifact(w, artifact)
}

type exportResultsRequest struct {
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	Filename string           `json:"filename"`
}

func (h *Handlers) handleExportResults(w http.ResponseWriter, r *http.Request) {
	var req exportResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	res := &domain.QueryResult{Columns: req.Columns, Rows: req.Rows, RowCount: len(req.Rows)}
	artifact, err := h.exports.ExportResult(res, req.Filename)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeArtifact(w, artifact)
}

func (h *Handlers) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "tableName")
	if err := h.uploads.Remove(r.Context(), name); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.queries.History(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeArtifact(w http.ResponseWriter, a *domain.ExportArtifact) {
	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(a.Data)
}

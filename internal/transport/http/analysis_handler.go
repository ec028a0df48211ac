// Package http serves the analysis results to the external dashboard.
// It is transport only; rendering stays with the dashboard.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"muniquery/internal/analysis"
	apierrors "muniquery/internal/errors"
	"muniquery/internal/exporter"
	"muniquery/internal/filter"
	"muniquery/pkg/contracts/domain"
)

// AnalysisHandler handles analysis-related HTTP requests
type AnalysisHandler struct {
	service *analysis.Service
	logger  *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *analysis.Service, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		logger:  logger.With(slog.String("component", "analysis_handler")),
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/analyses", h.ListAnalyses)
	r.Get("/analyses/{id}", h.RunAnalysis)
	r.Get("/analyses/{id}/csv", h.DownloadCSV)
	r.Get("/metadata", h.GetMetadata)
	r.Get("/maturity-profile", h.GetMaturityProfile)

	return r
}

// analysisSummary describes one available analysis.
type analysisSummary struct {
	ID      analysis.ID `json:"id"`
	Title   string      `json:"title"`
	Columns []string    `json:"columns"`
}

// ListAnalyses returns the five available analyses.
func (h *AnalysisHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	defs := analysis.Definitions()
	summaries := make([]analysisSummary, len(defs))
	for i, def := range defs {
		summaries[i] = analysisSummary{ID: def.ID, Title: def.Title, Columns: def.Columns}
	}
	render.JSON(w, r, summaries)
}

// RunAnalysis executes one analysis with the filters from the query
// string and returns the rows together with the generated SQL.
func (h *AnalysisHandler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	params, err := filterParams(r)
	if err != nil {
		apierrors.RenderError(w, r, err)
		return
	}

	result, err := h.service.Run(r.Context(), analysis.ID(chi.URLParam(r, "id")), params)
	if err != nil {
		apierrors.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// DownloadCSV executes one analysis and serves the result as a CSV
// attachment.
func (h *AnalysisHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	params, err := filterParams(r)
	if err != nil {
		apierrors.RenderError(w, r, err)
		return
	}

	id := analysis.ID(chi.URLParam(r, "id"))
	result, err := h.service.Run(r.Context(), id, params)
	if err != nil {
		apierrors.RenderError(w, r, err)
		return
	}

	serveCSV(w, fmt.Sprintf("%s.csv", id), result.Data)
}

// metadataResponse is the dataset extent plus the capability flag.
type metadataResponse struct {
	Live     bool     `json:"live"`
	MinDate  string   `json:"min_date,omitempty"`
	MaxDate  string   `json:"max_date,omitempty"`
	States   []string `json:"states"`
	RowLimit struct {
		Min     int `json:"min"`
		Max     int `json:"max"`
		Default int `json:"default"`
	} `json:"row_limit"`
}

// GetMetadata returns the observed date bounds, the known states and
// whether the live data source is in use.
func (h *AnalysisHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	bounds, err := h.service.Bounds(r.Context())
	if err != nil {
		apierrors.RenderError(w, r, err)
		return
	}

	resp := metadataResponse{
		Live:   h.service.Live(),
		States: bounds.KnownStates,
	}
	if !bounds.MinDate.IsZero() {
		resp.MinDate = bounds.MinDate.Format(domain.DateLayout)
		resp.MaxDate = bounds.MaxDate.Format(domain.DateLayout)
	}
	resp.RowLimit.Min = filter.MinRowLimit
	resp.RowLimit.Max = filter.MaxRowLimit
	resp.RowLimit.Default = filter.DefaultRowLimit

	render.JSON(w, r, resp)
}

// GetMaturityProfile serves the fallback-only derived maturity table.
func (h *AnalysisHandler) GetMaturityProfile(w http.ResponseWriter, r *http.Request) {
	params, err := filterParams(r)
	if err != nil {
		apierrors.RenderError(w, r, err)
		return
	}

	result, err := h.service.MaturityProfile(r.Context(), params)
	if err != nil {
		apierrors.RenderError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// filterParams parses the raw filter selections from the query string.
// Validation proper happens in the filter package; this only parses
// shapes.
func filterParams(r *http.Request) (filter.Params, error) {
	var params filter.Params
	q := r.URL.Query()

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			return params, apierrors.NewInvalidFilterSet(fmt.Sprintf("malformed from date %q", raw), err).WithContext("field", "from")
		}
		params.DateFrom = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			return params, apierrors.NewInvalidFilterSet(fmt.Sprintf("malformed to date %q", raw), err).WithContext("field", "to")
		}
		params.DateTo = to
	}
	if raw := q.Get("states"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				params.States = append(params.States, strings.ToUpper(s))
			}
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, apierrors.NewInvalidFilterSet(fmt.Sprintf("malformed row limit %q", raw), err).WithContext("field", "limit")
		}
		params.RowLimit = limit
	}
	return params, nil
}

// serveCSV writes a result set as a CSV attachment.
func serveCSV(w http.ResponseWriter, filename string, rs *domain.ResultSet) {
	data, err := exporter.MarshalCSV(rs)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

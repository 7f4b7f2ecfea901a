package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ppiankov/riskprobe/internal/connector"
	"github.com/ppiankov/riskprobe/internal/model"
	"github.com/ppiankov/riskprobe/internal/pipeline"
)

const (
	maxBodyBytes      = 64 << 10
	defaultMaxResults = 10
	maxSearchResults  = 20
)

// Analyzer runs the analysis pipeline
type Analyzer interface {
	Analyze(ctx context.Context, profile model.SubjectProfile, opts pipeline.Options) (*model.AnalysisResult, error)
}

// Handler wires the HTTP endpoints to the pipeline and connectors
type Handler struct {
	analyzer Analyzer
	sources  *connector.Registry
	logger   *slog.Logger
}

// NewHandler constructs a handler with its dependencies
func NewHandler(analyzer Analyzer, sources *connector.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{analyzer: analyzer, sources: sources, logger: logger}
}

// Register mounts the analysis and evidence-source endpoints on the router
func (h *Handler) Register(r chi.Router) {
	r.Post("/analyze-subject", h.HandleAnalyze)
	r.Post("/analyze-subject/evidence-enhanced", h.HandleAnalyzeEnhanced)
	r.Get("/evidence-source/stats", h.HandleSourceStats)
	r.Post("/evidence-source/search", h.HandleSourceSearch)
}

// analyzeRequest is the subject profile payload
type analyzeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Region      string `json:"region,omitempty"`
	Industry    string `json:"industry,omitempty"`
}

func (r analyzeRequest) profile() model.SubjectProfile {
	return model.SubjectProfile{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		Region:      strings.TrimSpace(r.Region),
		Industry:    strings.TrimSpace(r.Industry),
	}
}

// HandleAnalyze handles POST /analyze-subject
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, pipeline.Options{})
}

// HandleAnalyzeEnhanced handles POST /analyze-subject/evidence-enhanced
func (h *Handler) HandleAnalyzeEnhanced(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, pipeline.Options{Enhanced: true})
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request, opts pipeline.Options) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)
	start := time.Now()

	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.analyzer.Analyze(ctx, req.profile(), opts)
	if err != nil {
		switch {
		case pipeline.IsInputError(err):
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		case connector.IsQuotaExhausted(err):
			h.logger.ErrorContext(ctx, "analysis aborted, evidence quota exhausted",
				"request_id", requestID,
				"error", err,
			)
			writeUnavailable(w)
		default:
			h.logger.ErrorContext(ctx, "analysis failed",
				"request_id", requestID,
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "internal_error", "")
		}
		return
	}

	h.logger.InfoContext(ctx, "subject analyzed",
		"request_id", requestID,
		"analysis_id", result.RequestID,
		"enhanced", opts.Enhanced,
		"fraud_score", result.FraudScore,
		"risk_level", result.RiskLevel,
		"degraded", result.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, result)
}

// HandleSourceStats handles GET /evidence-source/stats
func (h *Handler) HandleSourceStats(w http.ResponseWriter, r *http.Request) {
	stats := h.sources.Stats()
	if stats == nil {
		stats = []connector.StatsSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": stats})
}

// searchRequest is the raw connector passthrough payload
type searchRequest struct {
	Query      string `json:"query"`
	Source     string `json:"source,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
	Region     string `json:"region,omitempty"`
}

// HandleSourceSearch handles POST /evidence-source/search
func (h *Handler) HandleSourceSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required")
		return
	}

	source := h.sources.Primary()
	if req.Source != "" {
		var ok bool
		if source, ok = h.sources.Get(req.Source); !ok {
			writeError(w, http.StatusNotFound, "not_found", "unknown source "+req.Source)
			return
		}
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	resp, err := source.Search(ctx, req.Query, connector.SearchOptions{MaxResults: maxResults, Region: req.Region})
	if err != nil {
		h.logger.WarnContext(ctx, "source search failed",
			"request_id", middleware.GetReqID(ctx),
			"source", source.ID(),
			"category", connector.GetCategory(err),
			"error", err,
		)
		if connector.IsQuotaExhausted(err) {
			writeUnavailable(w)
			return
		}
		writeError(w, http.StatusBadGateway, "bad_gateway", string(connector.GetCategory(err)))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body, writing a 400 on failure
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		msg := "invalid JSON body"
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			msg = "request body too large"
		case errors.Is(err, io.EOF):
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, "bad_request", msg)
		return false
	}
	return true
}

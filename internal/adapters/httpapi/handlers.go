package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"herdbook/internal/core"
	"herdbook/internal/reports"
	"herdbook/pkg/domain"
)

const maxBodyBytes = 1 << 20

type handler struct {
	svc        *core.Service
	exporter   *reports.Exporter
	logger     core.Logger
	retryAfter time.Duration
}

type relationshipRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type seasonalAnalyzeRequest struct {
	Species    string                    `json:"species"`
	Aggregates []domain.MonthlyAggregate `json:"aggregates"`
}

type recommendationExportRequest struct {
	Depth       int    `json:"depth"`
	Environment string `json:"env"`
}

type seasonalExportRequest struct {
	Species string `json:"species"`
}

func (h *handler) listRecommendations(w http.ResponseWriter, r *http.Request) {
	q, err := recommendationQuery(r.URL.Query().Get("depth"), r.URL.Query().Get("env"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.svc.Recommend(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if recs == nil {
		recs = []domain.BreedingRecommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (h *handler) classifyRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.A) == "" || strings.TrimSpace(req.B) == "" {
		writeError(w, http.StatusBadRequest, "both a and b are required")
		return
	}
	verdict, err := h.svc.ClassifyRelationship(r.Context(), req.A, req.B)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verdict": verdict})
}

func (h *handler) generationDepth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "animalID")
	depth, err := h.svc.DetectGenerationDepth(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"animal": id, "generation_depth": depth})
}

func (h *handler) syncDepths(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.SyncGenerationDepths(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sync": report})
}

func (h *handler) seasonalTrends(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.svc.SeasonalTrends(r.Context(), r.URL.Query().Get("species"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": analysis})
}

func (h *handler) analyzeSeasonal(w http.ResponseWriter, r *http.Request) {
	var req seasonalAnalyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analysis": h.svc.AnalyzeSeasonalTrends(req.Species, req.Aggregates)})
}

func (h *handler) exportRecommendations(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeError(w, http.StatusNotImplemented, "report export not configured")
		return
	}
	var req recommendationExportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	q, err := recommendationQuery(strconv.Itoa(req.Depth), req.Environment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.svc.Recommend(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	params := map[string]string{"depth": strconv.Itoa(q.MaxDepth)}
	if q.Environment != "" {
		params["env"] = string(q.Environment)
	}
	record, err := h.exporter.ExportRecommendations(r.Context(), recs, params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"report": record})
}

func (h *handler) exportSeasonal(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		writeError(w, http.StatusNotImplemented, "report export not configured")
		return
	}
	var req seasonalExportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	analysis, err := h.svc.SeasonalTrends(r.Context(), req.Species)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	record, err := h.exporter.ExportSeasonal(r.Context(), analysis, map[string]string{"species": req.Species})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"report": record})
}

// recommendationQuery parses the depth and environment parameters. Empty
// values keep the service defaults.
func recommendationQuery(depth, env string) (core.RecommendationQuery, error) {
	var q core.RecommendationQuery
	if depth = strings.TrimSpace(depth); depth != "" {
		n, err := strconv.Atoi(depth)
		if err != nil || n < 0 {
			return q, errors.New("depth must be a non-negative integer")
		}
		q.MaxDepth = n
	}
	if strings.TrimSpace(env) != "" {
		class, err := core.ParseEnvironmentClass(env)
		if err != nil {
			return q, err
		}
		q.Environment = class
	}
	return q, nil
}

// writeServiceError maps service failures to status codes. Storage
// failures never turn into an empty success.
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	var notFound domain.ErrNotFound
	var violation domain.RuleViolationError
	switch {
	case domain.IsUnauthenticated(err):
		writeError(w, http.StatusUnauthorized, "storage session expired; sign in again")
	case domain.IsRetryable(err):
		w.Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter.Seconds())))
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable; retry shortly")
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &violation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      violation.Error(),
			"violations": violation.Result.Violations,
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the body.
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/resume-screener/internal/core/domain"
	"github.com/kirillkom/resume-screener/internal/core/ports"
	"github.com/kirillkom/resume-screener/internal/core/usecase"
)

// ShortlistExporter produces the shortlist workbook for download.
type ShortlistExporter interface {
	ExportShortlistXLSX(ctx context.Context) ([]byte, error)
}

type Router struct {
	orchestrator ports.ProcessingOrchestrator
	review       *usecase.ReviewService
	jobCtx       ports.JobContext
	exporter     ShortlistExporter

	rateLimitRPS   int
	rateLimitBurst int
	maxConcurrent  int
}

type RouterOption func(*Router)

// WithTrafficControl enables the per-instance rate limit and backpressure
// gate. Zero values leave the respective guard disabled.
func WithTrafficControl(rps, burst, maxConcurrent int) RouterOption {
	return func(rt *Router) {
		rt.rateLimitRPS = rps
		rt.rateLimitBurst = burst
		rt.maxConcurrent = maxConcurrent
	}
}

func NewRouter(
	orchestrator ports.ProcessingOrchestrator,
	review *usecase.ReviewService,
	jobCtx ports.JobContext,
	exporter ShortlistExporter,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		orchestrator: orchestrator,
		review:       review,
		jobCtx:       jobCtx,
		exporter:     exporter,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)

	mux.HandleFunc("/api/candidates", rt.listCandidates)
	mux.HandleFunc("/api/candidate/", rt.getCandidate)
	mux.HandleFunc("/api/swipe", rt.swipe)
	mux.HandleFunc("/api/undo", rt.undo)
	mux.HandleFunc("/api/restart", rt.restart)
	mux.HandleFunc("/api/saved", rt.savedCandidates)
	mux.HandleFunc("/api/saved/order", rt.updateOrder)
	mux.HandleFunc("/api/customize", rt.customize)
	mux.HandleFunc("/api/export", rt.exportShortlist)

	mux.HandleFunc("/api/process/start", rt.processStart)
	mux.HandleFunc("/api/process/stop", rt.processStop)
	mux.HandleFunc("/api/process/status", rt.processStatus)
	mux.HandleFunc("/api/process/batch", rt.processBatch)
	mux.HandleFunc("/api/process/failed", rt.processFailed)
	mux.HandleFunc("/api/process/retry/", rt.processRetry)
	mux.HandleFunc("/api/process/config", rt.processConfig)

	var handler http.Handler = mux
	if rt.maxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.maxConcurrent, 50*time.Millisecond)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	views, err := rt.review.ListCandidates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": views})
}

func (rt *Router) getCandidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/candidate/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "candidate id is required"})
		return
	}

	view, err := rt.review.GetCandidate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (rt *Router) swipe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		CandidateID string `json:"candidate_id"`
		Decision    string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.CandidateID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "candidate_id is required"})
		return
	}

	if err := rt.review.Decide(r.Context(), req.CandidateID, domain.Decision(req.Decision)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (rt *Router) undo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	candidateID, err := rt.review.UndoLast(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"candidate_id": candidateID})
}

func (rt *Router) restart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := rt.review.Restart(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restarted"})
}

func (rt *Router) savedCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	views, err := rt.review.SavedCandidates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": views})
}

func (rt *Router) updateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Order []string `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	applied, err := rt.review.UpdateOrder(r.Context(), req.Order)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

func (rt *Router) customize(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		description, err := rt.jobCtx.JobDescription(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"job_description": description})
	case http.MethodPost:
		var req struct {
			JobDescription string `json:"job_description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if err := rt.review.UpdateJobDescription(r.Context(), req.JobDescription); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) exportShortlist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	payload, err := rt.exporter.ExportShortlistXLSX(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("shortlisted_candidates_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (rt *Router) processStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rt.orchestrator.StartCycle()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (rt *Router) processStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rt.orchestrator.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (rt *Router) processStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	status := rt.orchestrator.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Active:         status.Active,
		Status:         status.Status,
		Processed:      status.Processed,
		Total:          status.Total,
		QueueSizes:     status.QueueSizes,
		Config:         configResponse(status.Config),
		NewlyCompleted: rt.orchestrator.DrainNewlyCompleted(),
	})
}

func (rt *Router) processBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		CandidateIDs []string `json:"candidate_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.CandidateIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "candidate_ids is required"})
		return
	}

	profiles, err := rt.orchestrator.ForceProcess(r.Context(), req.CandidateIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

func (rt *Router) processFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	items := rt.orchestrator.FailedItems()
	if items == nil {
		items = []domain.RetryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"failed": items})
}

func (rt *Router) processRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/process/retry/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "candidate id is required"})
		return
	}

	if !rt.orchestrator.ManualRetry(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "candidate is not in the failed queue"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "requeued"})
}

func (rt *Router) processConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, configResponse(rt.orchestrator.Status().Config))
	case http.MethodPost, http.MethodPatch:
		var patch ports.ConfigPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		applied := rt.orchestrator.UpdateConfig(patch)
		writeJSON(w, http.StatusOK, configResponse(applied))
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

type statusResponse struct {
	Active         bool             `json:"active"`
	Status         string           `json:"status"`
	Processed      int              `json:"processed"`
	Total          int              `json:"total"`
	QueueSizes     ports.QueueSizes `json:"queue_sizes"`
	Config         configPayload    `json:"config"`
	NewlyCompleted []string         `json:"newly_completed"`
}

type configPayload struct {
	QuickTimeoutSeconds int `json:"quick_timeout_seconds"`
	LongTimeoutSeconds  int `json:"long_timeout_seconds"`
	MaxRetries          int `json:"max_retries"`
	BackoffBaseSeconds  int `json:"backoff_base_seconds"`
	BatchSize           int `json:"batch_size"`
}

func configResponse(cfg domain.RunConfig) configPayload {
	return configPayload{
		QuickTimeoutSeconds: int(cfg.QuickTimeout / time.Second),
		LongTimeoutSeconds:  int(cfg.LongTimeout / time.Second),
		MaxRetries:          cfg.MaxRetries,
		BackoffBaseSeconds:  int(cfg.BackoffBase / time.Second),
		BatchSize:           cfg.BatchSize,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

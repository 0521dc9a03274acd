package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/store"
)

const (
	maxBodyBytes         = 1 << 20
	defaultLookbackHours = 24
)

type handlers struct {
	jobs    JobService
	metrics MetricsSource
}

type createJobResponse struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) createJob(w http.ResponseWriter, r *http.Request) {
	var req model.GenerationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := validateRequest(req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	job, err := h.jobs.Submit(r.Context(), req)
	if err != nil {
		zap.L().Error("api: submit job", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create job")
		return
	}
	respondJSON(w, http.StatusAccepted, createJobResponse{JobID: job.ID, Status: job.Status})
}

func validateRequest(req model.GenerationRequest) string {
	switch {
	case req.ProductURL == "":
		return "product_url is required"
	case req.Budget <= 0:
		return "budget must be greater than 0"
	}
	if _, err := model.ParseApproach(string(req.Approach)); err != nil {
		return "approach must be one of RICH_DATA, HYBRID, DISCOVERY_FIRST"
	}
	return ""
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	view, err := h.jobs.Status(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get job", zap.String("job_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not load job")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{Status: model.JobStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	jobs, err := h.jobs.List(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list jobs", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not list jobs")
		return
	}
	views := make([]model.JobView, len(jobs))
	for i := range jobs {
		views[i] = jobs[i].View()
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (h *handlers) getMetrics(w http.ResponseWriter, r *http.Request) {
	hours := defaultLookbackHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "hours must be a non-negative integer")
			return
		}
		hours = n
	}

	snap, err := h.metrics.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("api: collect metrics", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not collect metrics")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

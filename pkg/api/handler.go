// Package api serves run control and feature lookups over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/synaptica-ai/readmission/pkg/common/logger"
	"github.com/synaptica-ai/readmission/pkg/common/models"
	"github.com/synaptica-ai/readmission/pkg/runs"
	"github.com/synaptica-ai/readmission/pkg/storage"
)

type RunService interface {
	Trigger(ctx context.Context, input runs.TriggerInput) (models.PipelineRun, error)
	Get(ctx context.Context, id uuid.UUID) (models.PipelineRun, error)
	List(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

// FeatureCache is the online copy of the feature table.
type FeatureCache interface {
	Get(ctx context.Context, patientID int64) (models.PatientFeatureVector, error)
}

// GoldReader reads the persisted gold layer.
type GoldReader interface {
	FeaturesByPatient(ctx context.Context, patientID int64) (models.PatientFeatureVector, error)
	QualityMetrics(ctx context.Context) ([]models.QualityMetric, error)
}

type Handler struct {
	runs  RunService
	cache FeatureCache
	gold  GoldReader
}

// NewHandler wires the handlers. cache may be nil.
func NewHandler(runService RunService, cache FeatureCache, gold GoldReader) *Handler {
	return &Handler{runs: runService, cache: cache, gold: gold}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/runs", h.handleTriggerRun).Methods(http.MethodPost)
	r.HandleFunc("/runs", h.handleListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", h.handleGetRun).Methods(http.MethodGet)
	r.HandleFunc("/features/{patient_id}", h.handleGetFeatures).Methods(http.MethodGet)
	r.HandleFunc("/metrics/quality", h.handleQualityMetrics).Methods(http.MethodGet)
}

type triggerRunRequest struct {
	Source string                 `json:"source"`
	Params map[string]interface{} `json:"params"`
}

func (h *Handler) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	var req triggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	run, err := h.runs.Trigger(r.Context(), runs.TriggerInput{
		Trigger: runs.TriggerHTTP,
		Source:  req.Source,
		Params:  req.Params,
	})
	if errors.Is(err, runs.ErrInvalidSource) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to trigger run")
		http.Error(w, "failed to trigger run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"run": run})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	items, err := h.runs.List(r.Context(), parseLimit(r, 50))
	if err != nil {
		logger.Log.WithError(err).Error("failed to list runs")
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid run id", http.StatusBadRequest)
		return
	}
	run, err := h.runs.Get(r.Context(), id)
	if errors.Is(err, runs.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to get run")
		http.Error(w, "failed to get run", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

func (h *Handler) handleGetFeatures(w http.ResponseWriter, r *http.Request) {
	patientID, err := strconv.ParseInt(mux.Vars(r)["patient_id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid patient id", http.StatusBadRequest)
		return
	}

	if h.cache != nil {
		fv, err := h.cache.Get(r.Context(), patientID)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"features": fv, "source": "cache"})
			return
		}
		if !errors.Is(err, storage.ErrFeaturesNotFound) {
			logger.Log.WithError(err).Warn("feature cache unavailable, reading gold table")
		}
	}

	fv, err := h.gold.FeaturesByPatient(r.Context(), patientID)
	if errors.Is(err, storage.ErrFeaturesNotFound) {
		http.Error(w, "features not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Log.WithError(err).Error("failed to read features")
		http.Error(w, "failed to read features", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"features": fv, "source": "gold"})
}

func (h *Handler) handleQualityMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.gold.QualityMetrics(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to read quality metrics")
		http.Error(w, "failed to read quality metrics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": metrics})
}

// NewRouter mounts the API under /api/v1 next to /health and /metrics.
func NewRouter(h *Handler, metricsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(Recovery)
	router.Use(Logging)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"service": "readmission-pipeline",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods(http.MethodGet)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	h.Register(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func parseLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

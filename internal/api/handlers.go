package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/cukebrowser/internal/report"
	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

// RunStatus exposes a run still in progress.
type RunStatus interface {
	RunID() string
	SessionInfo() models.SessionInfo
	Outcomes() []models.ScenarioOutcome
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	reportsDir string
	run        RunStatus
	logger     *zap.Logger
}

// NewHandler serves the reports in reportsDir. run may be nil when no run is
// in progress.
func NewHandler(reportsDir string, run RunStatus, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		reportsDir: reportsDir,
		run:        run,
		logger:     logger.Named("api"),
	}
}

func (h *Handler) resultsFile() string {
	return filepath.Join(h.reportsDir, "results.json")
}

// loadFeatures writes the error response itself and returns false on failure.
func (h *Handler) loadFeatures(w http.ResponseWriter) ([]models.Feature, bool) {
	features, err := report.ReadResults(h.resultsFile())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "No results yet", http.StatusNotFound)
			return nil, false
		}
		h.logger.Warn("results unreadable", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return features, true
}

// GetSummary handles GET /v1/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	features, ok := h.loadFeatures(w)
	if !ok {
		return
	}

	summary := models.Summarize(features)
	if info, err := fileModTime(h.resultsFile()); err == nil {
		summary.GeneratedAt = info
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

type featureSummary struct {
	ID        string `json:"id"`
	URI       string `json:"uri"`
	Name      string `json:"name"`
	Scenarios int    `json:"scenarios"`
	Failed    int    `json:"failed"`
}

// ListFeatures handles GET /v1/features
func (h *Handler) ListFeatures(w http.ResponseWriter, r *http.Request) {
	features, ok := h.loadFeatures(w)
	if !ok {
		return
	}

	out := make([]featureSummary, 0, len(features))
	for _, f := range features {
		s := models.Summarize([]models.Feature{f})
		out = append(out, featureSummary{
			ID:        f.ID,
			URI:       f.URI,
			Name:      f.Name,
			Scenarios: s.Scenarios,
			Failed:    s.Failed,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// GetFeature handles GET /v1/features/{id}
func (h *Handler) GetFeature(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	features, ok := h.loadFeatures(w)
	if !ok {
		return
	}
	for _, f := range features {
		if f.ID == id {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(f)
			return
		}
	}
	http.Error(w, "Feature not found", http.StatusNotFound)
}

// GetRun handles GET /v1/run
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.run == nil {
		http.Error(w, "No run in progress", http.StatusNotFound)
		return
	}

	outcomes := h.run.Outcomes()
	failed := 0
	for _, o := range outcomes {
		if o.Failed {
			failed++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"runId":     h.run.RunID(),
		"session":   h.run.SessionInfo(),
		"scenarios": outcomes,
		"failed":    failed,
	})
}

func fileModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

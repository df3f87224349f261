package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shehryarbajwa/cukebrowser/internal/metrics"
	"github.com/shehryarbajwa/cukebrowser/internal/ratelimit"
	"github.com/shehryarbajwa/cukebrowser/pkg/models"
)

const resultsJSON = `[
  {"uri": "features/a.feature", "id": "cart", "name": "Cart", "elements": [
    {"name": "add", "type": "scenario", "steps": [{"keyword": "Given ", "name": "x", "result": {"status": "passed", "duration": 1000000}}]},
    {"name": "remove", "type": "scenario", "steps": [{"keyword": "Given ", "name": "y", "result": {"status": "failed", "error_message": "boom"}}]}
  ]},
  {"uri": "features/b.feature", "id": "search", "name": "Search", "elements": [
    {"name": "find", "type": "scenario", "steps": [{"keyword": "Given ", "name": "z", "result": {"status": "passed"}}]}
  ]}
]`

type fakeRun struct{}

func (fakeRun) RunID() string { return "run-1" }
func (fakeRun) SessionInfo() models.SessionInfo {
	return models.SessionInfo{ID: "fake-1", Browser: "chrome", State: models.StateActive, Created: 1}
}
func (fakeRun) Outcomes() []models.ScenarioOutcome {
	return []models.ScenarioOutcome{{Name: "a"}, {Name: "b", Failed: true, Error: "timed out"}}
}

func newServer(t *testing.T, withResults bool, run RunStatus) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	if withResults {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "results.json"), []byte(resultsJSON), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "cucumber-report.html"), []byte("<html>report</html>"), 0644))
	}
	rec := metrics.New()
	rec.SessionCreated("chrome")
	h := NewHandler(dir, run, zaptest.NewLogger(t))
	return h.SetupRoutes(nil, rec.Registry()), dir
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestGetSummary(t *testing.T) {
	srv, _ := newServer(t, true, nil)
	rr := get(t, srv, "/v1/summary")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	var summary models.RunSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Features)
	assert.Equal(t, 3, summary.Scenarios)
	assert.Equal(t, 1, summary.Failed)
	assert.WithinDuration(t, time.Now(), summary.GeneratedAt, time.Minute)
}

func TestSummaryWithoutResults(t *testing.T) {
	srv, _ := newServer(t, false, nil)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/v1/summary").Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/v1/features").Code)
}

func TestMalformedResults(t *testing.T) {
	srv, dir := newServer(t, false, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.json"), []byte("{"), 0644))
	assert.Equal(t, http.StatusInternalServerError, get(t, srv, "/v1/summary").Code)
}

func TestListAndGetFeatures(t *testing.T) {
	srv, _ := newServer(t, true, nil)

	rr := get(t, srv, "/v1/features")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []featureSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, featureSummary{ID: "cart", URI: "features/a.feature", Name: "Cart", Scenarios: 2, Failed: 1}, list[0])

	rr = get(t, srv, "/v1/features/search")
	require.Equal(t, http.StatusOK, rr.Code)
	var feature models.Feature
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feature))
	assert.Equal(t, "Search", feature.Name)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/v1/features/nope").Code)
}

func TestGetRun(t *testing.T) {
	srv, _ := newServer(t, false, nil)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/v1/run").Code)

	srv, _ = newServer(t, false, fakeRun{})
	rr := get(t, srv, "/v1/run")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		RunID   string             `json:"runId"`
		Session models.SessionInfo `json:"session"`
		Failed  int                `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, models.StateActive, body.Session.State)
	assert.Equal(t, 1, body.Failed)
}

func TestStaticReportsAndRedirect(t *testing.T) {
	srv, _ := newServer(t, true, nil)

	rr := get(t, srv, "/reports/cucumber-report.html")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "report")

	rr = get(t, srv, "/")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/reports/cucumber-report.html", rr.Header().Get("Location"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newServer(t, false, nil)
	rr := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `cukebrowser_sessions_created_total{browser="chrome"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServer(t, true, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/summary", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "GET, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rr.Body.String())
}

func TestRateLimit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.json"), []byte(resultsJSON), 0644))
	srv := NewHandler(dir, nil, nil).SetupRoutes(ratelimit.NewLimiter(60, 1), nil)

	first := get(t, srv, "/v1/summary")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "60", first.Header().Get("X-RateLimit-Limit"))

	second := get(t, srv, "/v1/summary")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/v1/summary", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Reports are not rate limited.
	assert.NotEqual(t, http.StatusTooManyRequests, get(t, srv, "/reports/results.json").Code)
}

package tuninghttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxdesk/internal/tuning"
)

type stubSource struct {
	snap tuning.ProgressSnapshot
}

func (s *stubSource) Progress() tuning.ProgressSnapshot { return s.snap }

func TestHandleProgress(t *testing.T) {
	src := &stubSource{snap: tuning.ProgressSnapshot{
		Stage:     "stage1",
		Done:      30,
		Total:     120,
		Failed:    2,
		BestScore: 1.42,
		HasBest:   true,
		Elapsed:   90 * time.Second,
		ETA:       270 * time.Second,
	}}
	srv, err := NewServer(":0", src)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tuning/progress", nil)
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "stage1", body["stage"])
	assert.InDelta(t, 30, body["done"].(float64), 1e-9)
	assert.InDelta(t, 120, body["total"].(float64), 1e-9)
	assert.InDelta(t, 1.42, body["best_score"].(float64), 1e-9)
	assert.InDelta(t, 90, body["elapsed_seconds"].(float64), 1e-9)
	assert.InDelta(t, 270, body["eta_seconds"].(float64), 1e-9)
}

func TestHandleResults(t *testing.T) {
	srv, err := NewServer("", &stubSource{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tuning/results", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	srv.SetSummary(&tuning.RunSummary{RunID: "run-1", GridSize: 12})
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tuning/results", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body["run_id"])
	assert.InDelta(t, 12, body["grid_size"].(float64), 1e-9)
}

func TestNewServerRequiresSource(t *testing.T) {
	_, err := NewServer(":0", nil)
	require.Error(t, err)
}

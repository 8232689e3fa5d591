package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxdesk/internal/tuning"
)

func TestWriteTuningChart(t *testing.T) {
	sum := &tuning.RunSummary{
		RunID:    "run-chart",
		GridSize: 3,
		Stage1: []tuning.Result{
			{Index: 1, Composite: 1.6, Scores: map[string]float64{"B": 1.6}},
			{Index: 0, Composite: 1.2, Scores: map[string]float64{"B": 1.2}},
			{Index: 2, Err: "boom"},
		},
		TopK: []tuning.Result{
			{Index: 1, Composite: 1.6},
		},
		Succeeded:  2,
		Failed:     1,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}

	path := filepath.Join(t.TempDir(), "out", "tuning.html")
	require.NoError(t, WriteTuningChart(path, sum))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "run-chart")
	assert.Contains(t, html, "echarts")
}

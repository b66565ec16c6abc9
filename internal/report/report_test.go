package report_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploykit/winject/internal/report"
)

func TestRecorderWritesReport(t *testing.T) {
	dir := t.TempDir()
	rec := report.NewRecorder(dir, "0a93")

	rec.Record(report.Step{Container: "boot", Index: 1, Action: "mount", Status: report.StepSucceeded})
	rec.Skip("install", "inject-model-drivers")
	rec.Record(report.Step{Container: "install", Index: 3, Action: "commit", Status: report.StepFailed, Error: "exit code 87"})
	require.NoError(t, rec.Finish("failed"))

	data, err := os.ReadFile(filepath.Join(dir, "report-0a93.json"))
	require.NoError(t, err)

	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "0a93", rep.RunID)
	assert.Equal(t, "failed", rep.Result)
	require.Len(t, rep.Steps, 3)
	assert.Equal(t, report.StepSkipped, rep.Steps[1].Status)
	assert.Equal(t, "exit code 87", rep.Steps[2].Error)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))
}

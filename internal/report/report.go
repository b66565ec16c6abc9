// Package report records what a servicing run did, step by step, into a JSON
// document in the workspace log directory. The report outlives the run so an
// operator can reconstruct which step failed against which container.
package report

import (
	"time"

	"github.com/deploykit/winject/internal/jsondb"
)

type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Step is one recorded pipeline action against one container index.
type Step struct {
	Container string        `json:"container"`
	Index     int           `json:"index,omitempty"`
	Action    string        `json:"action"`
	Status    StepStatus    `json:"status"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Result     string    `json:"result"`
	Steps      []Step    `json:"steps"`
}

// Recorder accumulates steps and persists the report. It is not safe for
// concurrent use; the pipeline is strictly sequential.
type Recorder struct {
	db     *jsondb.JSONDatabase
	report Report
}

func NewRecorder(dir, runID string) *Recorder {
	return &Recorder{
		db: jsondb.New(dir, 0644),
		report: Report{
			RunID:     runID,
			StartedAt: time.Now(),
		},
	}
}

func (r *Recorder) Record(step Step) {
	r.report.Steps = append(r.report.Steps, step)
}

// Skip records that an action was gated off, e.g. because a driver count was
// zero.
func (r *Recorder) Skip(container, action string) {
	r.Record(Step{Container: container, Action: action, Status: StepSkipped})
}

// Finish stamps the result and writes the report document, named after the
// run ID.
func (r *Recorder) Finish(result string) error {
	r.report.Result = result
	r.report.FinishedAt = time.Now()
	return r.db.Write("report-"+r.report.RunID, &r.report)
}

package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Run is one attempt at streaming a job to the plotter.
type Run struct {
	ID         string     `json:"id"`
	JobID      string     `json:"job_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Sent       int        `json:"sent"`
	Dispensed  int        `json:"dispensed"`
	Pauses     int        `json:"pauses"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// RunCounts are the totals recorded when a run ends.
type RunCounts struct {
	Sent      int
	Dispensed int
	Pauses    int
}

// StartRun records a new running attempt for jobID.
func (db *DB) StartRun(jobID string, startedAt time.Time) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		JobID:     jobID,
		StartedAt: startedAt,
		Status:    RunRunning,
	}
	_, err := db.Exec(`INSERT INTO runs (run_id, job_id, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.JobID, run.StartedAt.UnixNano(), run.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to start run for job %s: %w", jobID, err)
	}
	return run, nil
}

// FinishRun closes a run. A nil runErr marks it complete.
func (db *DB) FinishRun(runID string, finishedAt time.Time, counts RunCounts, runErr error) error {
	status, msg := RunComplete, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	res, err := db.Exec(`UPDATE runs
		SET finished_at = ?, sent = ?, dispensed = ?, pauses = ?, status = ?, error = ?
		WHERE run_id = ?`,
		finishedAt.UnixNano(), counts.Sent, counts.Dispensed, counts.Pauses, status, msg, runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// Runs lists the runs of a job, oldest first.
func (db *DB) Runs(jobID string) ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, job_id, started_at, finished_at, sent, dispensed, pauses, status, error
		FROM runs WHERE job_id = ? ORDER BY started_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.JobID, &started, &finished,
			&r.Sent, &r.Dispensed, &r.Pauses, &r.Status, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			t := time.Unix(0, finished.Int64)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

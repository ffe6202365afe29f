package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is one generated program and the parameters that produced it.
type Job struct {
	ID               string  `json:"id"`
	Source           string  `json:"source"`
	Rows             int     `json:"rows"`
	Cols             int     `json:"cols"`
	RegionSize       int     `json:"region_size"`
	Sharpness        float64 `json:"sharpness"`
	Seed             uint64  `json:"seed"`
	FeedRate         float64 `json:"feed_rate"`
	EngageHeight     float64 `json:"engage_height"`
	InstructionCount int     `json:"instruction_count"`
	GCode            string  `json:"-"`
	// Grid is the quantized identifier matrix, row-major.
	Grid      [][]int    `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	Colors    []JobColor `json:"colors,omitempty"`
}

// JobColor records how many cells of one paint a job uses.
type JobColor struct {
	ColorID int    `json:"color_id"`
	Name    string `json:"name"`
	Hex     string `json:"hex"`
	Cells   int    `json:"cells"`
}

// CreateJob stores job and its colours in one transaction. ID and
// CreatedAt are filled in when empty.
func (db *DB) CreateJob(job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	grid, err := json.Marshal(job.Grid)
	if err != nil {
		return fmt.Errorf("failed to encode grid: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO jobs (
			job_id, source, rows, cols, region_size, sharpness, seed,
			feed_rate, engage_height, instruction_count, gcode, grid, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Source, job.Rows, job.Cols, job.RegionSize, job.Sharpness, int64(job.Seed),
		job.FeedRate, job.EngageHeight, job.InstructionCount, job.GCode, string(grid), job.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	for _, c := range job.Colors {
		if _, err := tx.Exec(
			`INSERT INTO job_colors (job_id, color_id, name, hex, cells) VALUES (?, ?, ?, ?, ?)`,
			job.ID, c.ColorID, c.Name, c.Hex, c.Cells,
		); err != nil {
			return fmt.Errorf("failed to insert colour %d: %w", c.ColorID, err)
		}
	}
	return tx.Commit()
}

const jobColumns = `job_id, source, rows, cols, region_size, sharpness, seed,
	feed_rate, engage_height, instruction_count, gcode, grid, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		j       Job
		seed    int64
		grid    string
		created int64
	)
	if err := s.Scan(
		&j.ID, &j.Source, &j.Rows, &j.Cols, &j.RegionSize, &j.Sharpness, &seed,
		&j.FeedRate, &j.EngageHeight, &j.InstructionCount, &j.GCode, &grid, &created,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(grid), &j.Grid); err != nil {
		return nil, fmt.Errorf("job %s: bad grid: %w", j.ID, err)
	}
	j.Seed = uint64(seed)
	j.CreatedAt = time.Unix(0, created)
	return &j, nil
}

// GetJob returns the job with its colours, or ErrNotFound.
func (db *DB) GetJob(id string) (*Job, error) {
	job, err := scanJob(db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if job.Colors, err = db.JobColors(id); err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns the newest jobs first without their programs or
// colours. A limit below 1 defaults to 100.
func (db *DB) ListJobs(limit int) ([]Job, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		job.GCode = ""
		job.Grid = nil
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// JobColors returns the colours of a job in ascending identifier order.
func (db *DB) JobColors(jobID string) ([]JobColor, error) {
	rows, err := db.Query(
		`SELECT color_id, name, hex, cells FROM job_colors WHERE job_id = ? ORDER BY color_id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var colors []JobColor
	for rows.Next() {
		var c JobColor
		if err := rows.Scan(&c.ColorID, &c.Name, &c.Hex, &c.Cells); err != nil {
			return nil, err
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

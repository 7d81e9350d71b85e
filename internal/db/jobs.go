package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a compression job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
)

// Job is one stored compression request.
type Job struct {
	ID               string    `json:"jobId"`
	Status           JobStatus `json:"status"`
	ModelName        string    `json:"modelName"`
	InputSize        int64     `json:"inputSize"`
	Resolution       int       `json:"resolution"`
	Encoding         string    `json:"encoding,omitempty"`
	CompressionRatio float64   `json:"compressionRatio,omitempty"`
	ProcessingMs     float64   `json:"processingTime,omitempty"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	CompletedAt      time.Time `json:"completedAt,omitzero"`
}

// NewJob is the input to CreateJob.
type NewJob struct {
	ModelName  string
	InputSize  int64
	Resolution int
}

const jobColumns = `job_id, status, model_name, input_size, resolution, encoding,
	compression_ratio, processing_ms, error, created_unix_nanos, updated_unix_nanos,
	completed_unix_nanos`

// CreateJob inserts a pending job with a fresh UUID.
func (db *DB) CreateJob(j NewJob, now time.Time) (*Job, error) {
	job := &Job{
		ID:         uuid.New().String(),
		Status:     StatusPending,
		ModelName:  j.ModelName,
		InputSize:  j.InputSize,
		Resolution: j.Resolution,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := retryOnBusy(func() error {
		_, err := db.Exec(`INSERT INTO jobs (job_id, status, model_name, input_size, resolution,
			created_unix_nanos, updated_unix_nanos) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			job.ID, job.Status, job.ModelName, job.InputSize, job.Resolution,
			now.UnixNano(), now.UnixNano())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

// GetJob returns the job with the given id.
func (db *DB) GetJob(id string) (*Job, error) {
	row := db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns up to limit jobs, newest first.
func (db *DB) ListJobs(limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+jobColumns+` FROM jobs
		ORDER BY created_unix_nanos DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkProcessing moves a pending job to processing.
func (db *DB) MarkProcessing(id string, now time.Time) error {
	return db.transition(id, StatusPending, `status = ?, updated_unix_nanos = ?`,
		StatusProcessing, now.UnixNano())
}

// JobResult is the outcome stored with a completed job.
type JobResult struct {
	Encoding         string
	CompressionRatio float64
	ProcessingMs     float64
	ArtifactJSON     []byte
}

// MarkComplete stores the artifact of a processing job.
func (db *DB) MarkComplete(id string, res JobResult, now time.Time) error {
	return db.transition(id, StatusProcessing,
		`status = ?, encoding = ?, compression_ratio = ?, processing_ms = ?, artifact_json = ?,
		updated_unix_nanos = ?, completed_unix_nanos = ?`,
		StatusComplete, res.Encoding, res.CompressionRatio, res.ProcessingMs, string(res.ArtifactJSON),
		now.UnixNano(), now.UnixNano())
}

// MarkFailed records the error of a pending or processing job.
func (db *DB) MarkFailed(id string, cause error, now time.Time) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	var res sql.Result
	err := retryOnBusy(func() error {
		var err error
		res, err = db.Exec(`UPDATE jobs SET status = ?, error = ?, updated_unix_nanos = ?,
			completed_unix_nanos = ? WHERE job_id = ? AND status IN (?, ?)`,
			StatusFailed, msg, now.UnixNano(), now.UnixNano(), id, StatusPending, StatusProcessing)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark job %s failed: %w", id, err)
	}
	return db.checkTransition(id, res, "failed")
}

// transition applies an UPDATE guarded by the expected current status.
// args are the values for set; the id and expected status are appended.
func (db *DB) transition(id string, from JobStatus, set string, args ...interface{}) error {
	args = append(args, id, from)
	var res sql.Result
	err := retryOnBusy(func() error {
		var err error
		res, err = db.Exec(`UPDATE jobs SET `+set+` WHERE job_id = ? AND status = ?`, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return db.checkTransition(id, res, string(from))
}

func (db *DB) checkTransition(id string, res sql.Result, from string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	job, err := db.GetJob(id)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is %s, cannot move from %s", id, job.Status, from)
}

// GetArtifact returns the stored artifact JSON of a completed job.
func (db *DB) GetArtifact(id string) ([]byte, error) {
	var status JobStatus
	var artifact sql.NullString
	err := db.QueryRow(`SELECT status, artifact_json FROM jobs WHERE job_id = ?`, id).Scan(&status, &artifact)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact %s: %w", id, err)
	}
	if status != StatusComplete || !artifact.Valid {
		return nil, nil
	}
	return []byte(artifact.String), nil
}

// RecordEvent appends a pipeline stage event for a job.
func (db *DB) RecordEvent(id, stage string, at time.Time) error {
	return retryOnBusy(func() error {
		_, err := db.Exec(`INSERT INTO job_events (job_id, stage, event_unix_nanos) VALUES (?, ?, ?)`,
			id, stage, at.UnixNano())
		return err
	})
}

// JobEvent is one recorded stage of a job.
type JobEvent struct {
	Stage string    `json:"stage"`
	At    time.Time `json:"at"`
}

// ListEvents returns the stage events of a job in the order recorded.
func (db *DB) ListEvents(id string) ([]JobEvent, error) {
	rows, err := db.Query(`SELECT stage, event_unix_nanos FROM job_events
		WHERE job_id = ? ORDER BY event_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []JobEvent
	for rows.Next() {
		var e JobEvent
		var nanos int64
		if err := rows.Scan(&e.Stage, &nanos); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, nanos).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountJobsByStatus returns the number of jobs in each status.
func (db *DB) CountJobsByStatus() (map[JobStatus]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var s JobStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

// RatioPoint is the compression ratio of one completed job.
type RatioPoint struct {
	JobID     string
	ModelName string
	Encoding  string
	Ratio     float64
}

// CompletedRatios returns the ratios of up to limit most recent completed
// jobs, oldest first.
func (db *DB) CompletedRatios(limit int) ([]RatioPoint, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`SELECT job_id, model_name, encoding, compression_ratio FROM (
			SELECT job_id, model_name, encoding, compression_ratio, completed_unix_nanos
			FROM jobs WHERE status = ? ORDER BY completed_unix_nanos DESC LIMIT ?
		) ORDER BY completed_unix_nanos ASC`, StatusComplete, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratios: %w", err)
	}
	defer rows.Close()

	var out []RatioPoint
	for rows.Next() {
		var p RatioPoint
		if err := rows.Scan(&p.JobID, &p.ModelName, &p.Encoding, &p.Ratio); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		job               Job
		encoding, errText sql.NullString
		ratio, processing sql.NullFloat64
		created, updated  int64
		completed         sql.NullInt64
	)
	if err := s.Scan(&job.ID, &job.Status, &job.ModelName, &job.InputSize, &job.Resolution,
		&encoding, &ratio, &processing, &errText, &created, &updated, &completed); err != nil {
		return nil, err
	}
	job.Encoding = encoding.String
	job.CompressionRatio = ratio.Float64
	job.ProcessingMs = processing.Float64
	job.Error = errText.String
	job.CreatedAt = time.Unix(0, created).UTC()
	job.UpdatedAt = time.Unix(0, updated).UTC()
	if completed.Valid {
		job.CompletedAt = time.Unix(0, completed.Int64).UTC()
	}
	return &job, nil
}

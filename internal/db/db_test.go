package db

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func TestNewDB_AppliesPragmasAndMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	status, err := db.Status()
	require.NoError(t, err)
	latest, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)
	assert.Equal(t, MigrationStatus{Current: latest, Latest: latest}, status)

	// Reopening an up-to-date database is a no-op.
	db2, err := NewDB(path)
	require.NoError(t, err)
	db2.Close()
}

func TestMigrateDownAndUp(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown())
	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp())
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
}

func TestOpenNoMigrate(t *testing.T) {
	db, err := OpenNoMigrate(":memory:")
	require.NoError(t, err)
	defer db.Close()

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateForce(1))
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}

func TestJobLifecycle(t *testing.T) {
	db := newTestDB(t)

	job, err := db.CreateJob(NewJob{ModelName: "lattice", InputSize: 32768, Resolution: 32}, t0)
	require.NoError(t, err)
	assert.Len(t, job.ID, 36)
	assert.Equal(t, StatusPending, job.Status)

	require.NoError(t, db.MarkProcessing(job.ID, t0.Add(time.Second)))
	got, err := db.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.Equal(t, t0.Add(time.Second), got.UpdatedAt)

	art, err := db.GetArtifact(job.ID)
	require.NoError(t, err)
	assert.Nil(t, art)

	res := JobResult{Encoding: "crystal", CompressionRatio: 80, ProcessingMs: 12.5, ArtifactJSON: []byte(`{"version":"0.1.0"}`)}
	require.NoError(t, db.MarkComplete(job.ID, res, t0.Add(2*time.Second)))

	got, err = db.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Equal(t, "crystal", got.Encoding)
	assert.Equal(t, 80.0, got.CompressionRatio)
	assert.Equal(t, t0.Add(2*time.Second), got.CompletedAt)
	assert.Equal(t, t0, got.CreatedAt)

	art, err = db.GetArtifact(job.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"0.1.0"}`, string(art))

	// A completed job cannot fail or restart.
	assert.Error(t, db.MarkFailed(job.ID, errors.New("late"), t0))
	assert.Error(t, db.MarkProcessing(job.ID, t0))
}

func TestJobFailure(t *testing.T) {
	db := newTestDB(t)

	job, err := db.CreateJob(NewJob{ModelName: "bad", InputSize: 10, Resolution: 8}, t0)
	require.NoError(t, err)
	require.NoError(t, db.MarkFailed(job.ID, errors.New("voxelize: no points"), t0.Add(time.Second)))

	got, err := db.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "voxelize: no points", got.Error)

	// Completing requires processing first.
	assert.Error(t, db.MarkComplete(job.ID, JobResult{}, t0))
}

func TestGetJob_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = db.GetArtifact("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, db.MarkProcessing("missing", t0), ErrJobNotFound)
}

func TestListJobsAndCounts(t *testing.T) {
	db := newTestDB(t)

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := db.CreateJob(NewJob{ModelName: "m", InputSize: 1, Resolution: 8}, t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	require.NoError(t, db.MarkProcessing(ids[0], t0))

	jobs, err := db.ListJobs(10)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[2], jobs[0].ID, "newest first")

	jobs, err = db.ListJobs(1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	counts, err := db.CountJobsByStatus()
	require.NoError(t, err)
	assert.Equal(t, map[JobStatus]int{StatusPending: 2, StatusProcessing: 1}, counts)
}

func TestCompletedRatios(t *testing.T) {
	db := newTestDB(t)

	for i, ratio := range []float64{10, 20, 30} {
		job, err := db.CreateJob(NewJob{ModelName: "m", InputSize: 1, Resolution: 8}, t0)
		require.NoError(t, err)
		require.NoError(t, db.MarkProcessing(job.ID, t0))
		done := t0.Add(time.Duration(i+1) * time.Second)
		require.NoError(t, db.MarkComplete(job.ID, JobResult{Encoding: "ifs", CompressionRatio: ratio}, done))
	}

	points, err := db.CompletedRatios(2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 20.0, points[0].Ratio)
	assert.Equal(t, 30.0, points[1].Ratio)
}

func TestEvents(t *testing.T) {
	db := newTestDB(t)
	job, err := db.CreateJob(NewJob{ModelName: "m", InputSize: 1, Resolution: 8}, t0)
	require.NoError(t, err)

	require.NoError(t, db.RecordEvent(job.ID, "ready", t0))
	require.NoError(t, db.RecordEvent(job.ID, "packaged", t0.Add(time.Millisecond)))
	events, err := db.ListEvents(job.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "packaged", events[1].Stage)

	// Events must reference an existing job.
	assert.Error(t, db.RecordEvent("missing", "ready", t0))
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	_, err := db.CreateJob(NewJob{ModelName: "m", InputSize: 1, Resolution: 8}, t0)
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	// Debug routes may answer 403 to non-local callers, but must be registered.
	for _, endpoint := range []string{"/debug/jobs", "/debug/tailsql/"} {
		req := httptest.NewRequest(http.MethodGet, endpoint, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusNotFound, rec.Code, endpoint)
		if endpoint == "/debug/jobs" && rec.Code == http.StatusOK {
			assert.Contains(t, rec.Body.String(), "pending")
		}
	}
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (SQLITE_BUSY)")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryOnBusy(func() error {
		calls++
		return errors.New("syntax error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

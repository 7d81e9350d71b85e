package jobs

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/pipeline"
	"github.com/banshee-data/glyph.codec/internal/glyph/synth"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"github.com/banshee-data/glyph.codec/internal/monitoring"
	"github.com/banshee-data/glyph.codec/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func newCompressor() *pipeline.Compressor {
	cfg := pipeline.DefaultConfig()
	cfg.IFS.Seed = 1
	return pipeline.NewCompressor(cfg)
}

func waitForStatus(t *testing.T, store *db.DB, id string, want db.JobStatus) *db.Job {
	t.Helper()
	return testutil.WaitForStatus(t, store, id, want, 10*time.Second)
}

func TestRunner_CompletesGridJob(t *testing.T) {
	store := testutil.NewMemoryDB(t)
	r := NewRunner(store, newCompressor(), nil, Config{Workers: 2, QueueSize: 4})
	defer r.Close()

	body := testutil.GridFile(t, testutil.PeriodicGrid(t, 32, 8))

	job, err := r.Submit(Submission{ModelName: "lattice", Format: FormatGrid, Body: body})
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, job.Status)

	done := waitForStatus(t, store, job.ID, db.StatusComplete)
	assert.Equal(t, "crystal", done.Encoding)
	assert.Positive(t, done.CompressionRatio)

	blob, err := store.GetArtifact(job.ID)
	require.NoError(t, err)
	res, err := artifact.Unmarshal(blob)
	require.NoError(t, err)
	assert.Equal(t, "lattice", res.Metadata.ModelName)
	assert.Equal(t, int64(len(body)), res.Metadata.OriginalSize)

	events, err := store.ListEvents(job.ID)
	require.NoError(t, err)
	var stages []string
	for _, e := range events {
		stages = append(stages, e.Stage)
	}
	assert.Equal(t, []string{"ready", "crystalline_attempt", "accepted", "packaged"}, stages)
}

func TestRunner_CompletesASCJob(t *testing.T) {
	store := testutil.NewMemoryDB(t)
	r := NewRunner(store, newCompressor(), nil, Config{Workers: 1, QueueSize: 1})
	defer r.Close()

	g, err := synth.Sphere(16, 5)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, voxel.WriteASC(&buf, g.Points()))

	job, err := r.Submit(Submission{ModelName: "sphere", Format: FormatASC, Body: buf.Bytes(), Resolution: 16})
	require.NoError(t, err)
	done := waitForStatus(t, store, job.ID, db.StatusComplete)
	assert.Equal(t, 16, done.Resolution)
}

func TestRunner_FailsBadInput(t *testing.T) {
	store := testutil.NewMemoryDB(t)
	r := NewRunner(store, newCompressor(), nil, Config{Workers: 1, QueueSize: 2})
	defer r.Close()

	bad, err := r.Submit(Submission{ModelName: "junk", Format: FormatGrid, Body: []byte("not a grid")})
	require.NoError(t, err)
	failed := waitForStatus(t, store, bad.ID, db.StatusFailed)
	assert.Contains(t, failed.Error, "preprocessing failed")

	empty, err := r.Submit(Submission{ModelName: "empty", Format: FormatASC, Body: []byte("# nothing\n")})
	require.NoError(t, err)
	waitForStatus(t, store, empty.ID, db.StatusFailed)
}

func TestRunner_RejectsOversizedGrid(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.IFS.Seed = 1
	cfg.Resolution = 8
	cfg.MaxResolution = 16
	store := testutil.NewMemoryDB(t)
	r := NewRunner(store, pipeline.NewCompressor(cfg), nil, Config{Workers: 1, QueueSize: 2})
	defer r.Close()

	big, err := r.Submit(Submission{ModelName: "big", Format: FormatGrid, Body: testutil.GridFile(t, testutil.PeriodicGrid(t, 32, 8))})
	require.NoError(t, err)
	failed := waitForStatus(t, store, big.ID, db.StatusFailed)
	assert.Contains(t, failed.Error, "resolution too large")

	huge, err := r.Submit(Submission{ModelName: "huge", Format: FormatASC, Body: []byte("0 0 0\n1 1 1\n"), Resolution: 10000000})
	require.NoError(t, err)
	failed = waitForStatus(t, store, huge.ID, db.StatusFailed)
	assert.Contains(t, failed.Error, "resolution too large")
}

type panickingVoxelizer struct{}

func (panickingVoxelizer) Voxelize([]r3.Vec, int) (*voxel.Grid, error) {
	panic("voxelizer exploded")
}

func TestRunner_RecoversPanic(t *testing.T) {
	store := testutil.NewMemoryDB(t)
	comp := newCompressor().WithPreprocessors(panickingVoxelizer{}, nil)
	r := NewRunner(store, comp, nil, Config{Workers: 1, QueueSize: 2})
	defer r.Close()

	job, err := r.Submit(Submission{ModelName: "boom", Format: FormatASC, Body: []byte("0 0 0\n1 1 1\n"), Resolution: 8})
	require.NoError(t, err)
	failed := waitForStatus(t, store, job.ID, db.StatusFailed)
	assert.Contains(t, failed.Error, "compression panicked")
	assert.Contains(t, failed.Error, "voxelizer exploded")

	// The same worker keeps serving grid jobs.
	next, err := r.Submit(Submission{ModelName: "lattice", Format: FormatGrid, Body: testutil.GridFile(t, testutil.PeriodicGrid(t, 32, 8))})
	require.NoError(t, err)
	waitForStatus(t, store, next.ID, db.StatusComplete)
}

// gatedStore holds workers in MarkProcessing until the gate opens.
type gatedStore struct {
	*db.DB
	entered chan struct{}
	gate    chan struct{}
}

func (s *gatedStore) MarkProcessing(id string, now time.Time) error {
	s.entered <- struct{}{}
	<-s.gate
	return s.DB.MarkProcessing(id, now)
}

func TestRunner_QueueFull(t *testing.T) {
	store := &gatedStore{DB: testutil.NewMemoryDB(t), entered: make(chan struct{}, 4), gate: make(chan struct{})}
	r := NewRunner(store, newCompressor(), nil, Config{Workers: 1, QueueSize: 1})

	g, err := synth.Random(8, 0.2, 1)
	require.NoError(t, err)
	sub := Submission{ModelName: "m", Format: FormatGrid, Body: testutil.GridFile(t, g)}

	first, err := r.Submit(sub)
	require.NoError(t, err)
	<-store.entered // the worker holds the first job

	second, err := r.Submit(sub)
	require.NoError(t, err)

	_, err = r.Submit(sub)
	assert.ErrorIs(t, err, ErrQueueFull)

	close(store.gate)
	r.Close()

	for _, id := range []string{first.ID, second.ID} {
		job, err := store.GetJob(id)
		require.NoError(t, err)
		assert.Equal(t, db.StatusComplete, job.Status)
	}
	counts, err := store.CountJobsByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[db.StatusFailed])
}

func TestRunner_SubmitAfterClose(t *testing.T) {
	r := NewRunner(testutil.NewMemoryDB(t), newCompressor(), nil, Config{})
	r.Close()
	r.Close()

	_, err := r.Submit(Submission{ModelName: "late"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestJobJSON(t *testing.T) {
	job := db.Job{ID: "abc", Status: db.StatusPending, ModelName: "m"}
	b, err := json.Marshal(job)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"jobId":"abc"`)
	assert.NotContains(t, string(b), "completedAt")
}

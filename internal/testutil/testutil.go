// Package testutil holds fixtures shared by the job, API and CLI tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/synth"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// Do serves one request against h and returns the recorder.
func Do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

// NewMemoryDB opens a migrated in-memory job store closed at test cleanup.
func NewMemoryDB(t testing.TB) *db.DB {
	t.Helper()
	store, err := db.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// PeriodicGrid returns a cubic grid tiled with the default motif.
func PeriodicGrid(t testing.TB, resolution, period int) *voxel.Grid {
	t.Helper()
	g, err := synth.Periodic(resolution, period, nil)
	if err != nil {
		t.Fatalf("failed to build periodic grid: %v", err)
	}
	return g
}

// GridFile encodes g in the .vox format.
func GridFile(t testing.TB, g *voxel.Grid) []byte {
	t.Helper()
	b, err := voxel.Marshal(g)
	if err != nil {
		t.Fatalf("failed to encode grid: %v", err)
	}
	return b
}

// WaitForStatus polls the store until the job reaches want, failing the
// test after timeout.
func WaitForStatus(t testing.TB, store *db.DB, id string, want db.JobStatus, timeout time.Duration) *db.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		job, err := store.GetJob(id)
		if err != nil {
			t.Fatalf("failed to load job %s: %v", id, err)
		}
		if job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s is %s after %v, want %s (error %q)", id, job.Status, timeout, want, job.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

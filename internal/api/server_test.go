package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/pipeline"
	"github.com/banshee-data/glyph.codec/internal/httputil"
	"github.com/banshee-data/glyph.codec/internal/jobs"
	"github.com/banshee-data/glyph.codec/internal/monitoring"
	"github.com/banshee-data/glyph.codec/internal/testutil"
	"github.com/banshee-data/glyph.codec/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

type stubSubmitter struct {
	err error
}

func (s stubSubmitter) Submit(jobs.Submission) (*db.Job, error) {
	return nil, s.err
}

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	store := testutil.NewMemoryDB(t)

	cfg := pipeline.DefaultConfig()
	cfg.IFS.Seed = 1
	runner := jobs.NewRunner(store, pipeline.NewCompressor(cfg), nil, jobs.Config{Workers: 2, QueueSize: 8})
	t.Cleanup(runner.Close)
	return NewServer(store, runner), store
}

func completeJob(t *testing.T, store *db.DB, model, encoding string, ratio float64, now time.Time) string {
	t.Helper()
	job, err := store.CreateJob(db.NewJob{ModelName: model, InputSize: 1000, Resolution: 32}, now)
	require.NoError(t, err)
	require.NoError(t, store.MarkProcessing(job.ID, now))
	require.NoError(t, store.MarkComplete(job.ID, db.JobResult{
		Encoding:         encoding,
		CompressionRatio: ratio,
		ProcessingMs:     12,
		ArtifactJSON:     []byte(`{}`),
	}, now.Add(time.Second)))
	return job.ID
}

func TestClient_CompressPollArtifact(t *testing.T) {
	server, _ := setupTestServer(t)
	client := NewClient("http://glyph.test/", httputil.NewHandlerClient(server.ServeMux()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	body := testutil.GridFile(t, testutil.PeriodicGrid(t, 32, 8))

	sub, err := client.Submit(ctx, jobs.Submission{ModelName: "lattice", Format: jobs.FormatGrid, Body: body})
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, sub.Status)
	assert.NotEmpty(t, sub.JobID)

	job, err := client.Wait(ctx, sub.JobID, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, db.StatusComplete, job.Status, job.Error)
	assert.Equal(t, "crystal", job.Encoding)
	require.NotEmpty(t, job.Events)
	assert.Equal(t, "packaged", job.Events[len(job.Events)-1].Stage)

	res, err := client.Artifact(ctx, sub.JobID)
	require.NoError(t, err)
	assert.Equal(t, artifact.EncodingCrystal, res.Encoding)
	assert.Equal(t, "lattice", res.Metadata.ModelName)
	require.NotNil(t, res.Crystal())
	assert.Equal(t, [3]int{8, 8, 8}, res.Crystal().UnitCell.Shape)
}

func TestClient_ASCJobFallsBackToIFS(t *testing.T) {
	server, _ := setupTestServer(t)
	client := NewClient("http://glyph.test", httputil.NewHandlerClient(server.ServeMux()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	asc := "# two points\n0 0 0\n1 1 1\n"
	sub, err := client.Submit(ctx, jobs.Submission{ModelName: "pair", Format: jobs.FormatASC, Body: []byte(asc), Resolution: 8})
	require.NoError(t, err)

	job, err := client.Wait(ctx, sub.JobID, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, db.StatusComplete, job.Status, job.Error)
	assert.Equal(t, "ifs", job.Encoding)
	assert.Equal(t, 8, job.Resolution)
}

func TestClient_Errors(t *testing.T) {
	server, store := setupTestServer(t)
	hc := httputil.NewHandlerClient(server.ServeMux())
	client := NewClient("http://glyph.test", hc)
	ctx := context.Background()

	_, err := client.Job(ctx, "missing")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "missing")

	pending, err := store.CreateJob(db.NewJob{ModelName: "slow"}, time.Now())
	require.NoError(t, err)
	_, err = client.Artifact(ctx, pending.ID)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	_, err = client.Submit(ctx, jobs.Submission{ModelName: "", Body: []byte("x")})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, 3, hc.RequestCount())
}

func TestHandleCompress_BadRequests(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "/api/compress?model=a", "", http.StatusMethodNotAllowed},
		{"missing model", http.MethodPost, "/api/compress", "data", http.StatusBadRequest},
		{"path in model", http.MethodPost, "/api/compress?model=..%2Fetc", "data", http.StatusBadRequest},
		{"bad resolution", http.MethodPost, "/api/compress?model=a&resolution=x", "data", http.StatusBadRequest},
		{"zero resolution", http.MethodPost, "/api/compress?model=a&resolution=0", "data", http.StatusBadRequest},
		{"resolution above max", http.MethodPost, "/api/compress?model=a&resolution=257", "0 0 0\n1 1 1\n", http.StatusBadRequest},
		{"huge resolution", http.MethodPost, "/api/compress?model=m&resolution=10000000", "0 0 0\n1 1 1\n", http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/compress?model=a", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var resp map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

// countingSubmitter accepts every submission and remembers it.
type countingSubmitter struct {
	subs []jobs.Submission
}

func (s *countingSubmitter) Submit(sub jobs.Submission) (*db.Job, error) {
	s.subs = append(s.subs, sub)
	return &db.Job{ID: "job-1", Status: db.StatusPending}, nil
}

func TestHandleCompress_MaxResolution(t *testing.T) {
	sub := &countingSubmitter{}
	mux := NewServer(nil, sub).WithMaxResolution(16).ServeMux()

	post := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, target, strings.NewReader("0 0 0\n1 1 1\n"))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	w := post("/api/compress?model=m&resolution=17")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "at most 16")
	assert.Empty(t, sub.subs)

	w = post("/api/compress?model=m&resolution=16")
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, sub.subs, 1)
	assert.Equal(t, 16, sub.subs[0].Resolution)

	// Values below one keep the current limit.
	assert.Equal(t, pipeline.DefaultMaxResolution, NewServer(nil, sub).WithMaxResolution(0).maxResolution)
}

func TestHandleCompress_QueueSaturated(t *testing.T) {
	for _, err := range []error{jobs.ErrQueueFull, jobs.ErrClosed} {
		server := NewServer(nil, stubSubmitter{err: err})
		req := httptest.NewRequest(http.MethodPost, "/api/compress?model=a", strings.NewReader("data"))
		w := httptest.NewRecorder()
		server.ServeMux().ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	}

	server := NewServer(nil, stubSubmitter{err: fmt.Errorf("disk full")})
	req := httptest.NewRequest(http.MethodPost, "/api/compress?model=a", strings.NewReader("data"))
	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		contentType string
		want        jobs.Format
	}{
		{"text/plain", jobs.FormatASC},
		{"text/plain; charset=utf-8", jobs.FormatASC},
		{"application/octet-stream", jobs.FormatGrid},
		{"", jobs.FormatGrid},
		{"not a media type;;", jobs.FormatGrid},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/compress", nil)
		req.Header.Set("Content-Type", tt.contentType)
		assert.Equal(t, tt.want, formatOf(req), tt.contentType)
	}
}

func TestHandleListJobs(t *testing.T) {
	server, store := setupTestServer(t)
	mux := server.ServeMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completeJob(t, store, "first", "crystal", 40, base)
	completeJob(t, store, "second", "ifs", 3, base.Add(time.Minute))

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []db.Job
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].ModelName)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=-2", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/jobs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleArtifact_Download(t *testing.T) {
	server, store := setupTestServer(t)
	id := completeJob(t, store, "cube v2", "crystal", 10, time.Now())

	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/artifact", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{}`, w.Body.String())
	assert.Equal(t, `attachment; filename="cube_v2.agc"`, w.Header().Get("Content-Disposition"))
}

func TestHandleRatioChart(t *testing.T) {
	server, store := setupTestServer(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	completeJob(t, store, "lattice-model", "crystal", 42.5, base)
	completeJob(t, store, "blob-model", "ifs", 2.1, base.Add(time.Minute))

	w := httptest.NewRecorder()
	server.ServeMux().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/charts/ratios", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "Glyph compression ratios")
	assert.Contains(t, body, "lattice-model")
	assert.Contains(t, body, "blob-model")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "01234567", shortID("0123456789"))
}

func TestHandleVersion(t *testing.T) {
	server, _ := setupTestServer(t)
	w := testutil.Do(server.ServeMux(), http.MethodGet, "/api/version")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, version.Version, resp["version"])
	assert.Equal(t, artifact.FormatVersion, resp["formatVersion"])
}

func TestHandler_MountsAdminRoutes(t *testing.T) {
	server, _ := setupTestServer(t)
	h, err := server.Handler()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/", nil))
	assert.NotEqual(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=3", nil))

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[API]")
	assert.Contains(t, lines[0], "418")
	assert.Contains(t, lines[0], "/api/jobs?limit=3")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "100", statusCodeColor(100))
}

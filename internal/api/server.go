// Package api exposes the compression service over HTTP: job submission,
// job status and artifacts, a ratio chart and the admin debug routes.
package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/pipeline"
	"github.com/banshee-data/glyph.codec/internal/httputil"
	"github.com/banshee-data/glyph.codec/internal/jobs"
	"github.com/banshee-data/glyph.codec/internal/monitoring"
	"github.com/banshee-data/glyph.codec/internal/security"
	"github.com/banshee-data/glyph.codec/internal/version"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// MaxUploadBytes caps the body of a compress request.
const MaxUploadBytes = 64 << 20

var logf = monitoring.Component("API")

// Submitter queues compression jobs. *jobs.Runner implements it.
type Submitter interface {
	Submit(sub jobs.Submission) (*db.Job, error)
}

// Server serves the job API over a store and a submitter.
type Server struct {
	db            *db.DB
	runner        Submitter
	maxResolution int
}

func NewServer(store *db.DB, runner Submitter) *Server {
	return &Server{db: store, runner: runner, maxResolution: pipeline.DefaultMaxResolution}
}

// WithMaxResolution sets the largest resolution a compress request may ask
// for. Values below 1 are ignored.
func (s *Server) WithMaxResolution(n int) *Server {
	if n >= 1 {
		s.maxResolution = n
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		logf("[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.URL.RequestURI(), colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/compress", s.handleCompress)
	mux.HandleFunc("/api/jobs", s.handleListJobs)
	mux.HandleFunc("/api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("/api/jobs/{id}/artifact", s.handleArtifact)
	mux.HandleFunc("/api/charts/ratios", s.handleRatioChart)
	mux.HandleFunc("/api/version", s.handleVersion)
	return mux
}

// Handler returns the API routes plus the admin debug routes, wrapped in
// request logging.
func (s *Server) Handler() (http.Handler, error) {
	mux := s.ServeMux()
	if err := s.db.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	return LoggingMiddleware(mux), nil
}

// SubmitResponse is the body of an accepted compress request.
type SubmitResponse struct {
	JobID  string       `json:"jobId"`
	Status db.JobStatus `json:"status"`
}

// JobResponse is a job with its recorded pipeline stages.
type JobResponse struct {
	db.Job
	Events []db.JobEvent `json:"events"`
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}

	q := r.URL.Query()
	model := q.Get("model")
	if err := security.ValidateModelName(model); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid 'model' parameter: %v", err))
		return
	}
	resolution := 0
	if v := q.Get("resolution"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'resolution' parameter")
			return
		}
		if n > s.maxResolution {
			httputil.BadRequest(w, fmt.Sprintf("'resolution' must be at most %d", s.maxResolution))
			return
		}
		resolution = n
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("body exceeds %d bytes", tooBig.Limit))
			return
		}
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if len(body) == 0 {
		httputil.BadRequest(w, "empty body")
		return
	}

	job, err := s.runner.Submit(jobs.Submission{
		ModelName:  model,
		Format:     formatOf(r),
		Body:       body,
		Resolution: resolution,
	})
	switch {
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrClosed):
		httputil.ServiceUnavailable(w, err.Error())
		return
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("failed to submit job: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, SubmitResponse{JobID: job.ID, Status: job.Status})
}

// formatOf picks the submission format from the request content type.
// Plain text bodies are ASC point lists; anything else is a grid file.
func formatOf(r *http.Request) jobs.Format {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mt == "text/plain" {
		return jobs.FormatASC
	}
	return jobs.FormatGrid
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	list, err := s.db.ListJobs(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list jobs: %v", err))
		return
	}
	if list == nil {
		list = []db.Job{}
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	job, ok := s.lookupJob(w, r.PathValue("id"))
	if !ok {
		return
	}
	events, err := s.db.ListEvents(job.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load events: %v", err))
		return
	}
	if events == nil {
		events = []db.JobEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, JobResponse{Job: *job, Events: events})
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	job, ok := s.lookupJob(w, r.PathValue("id"))
	if !ok {
		return
	}
	blob, err := s.db.GetArtifact(job.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load artifact: %v", err))
		return
	}
	if blob == nil {
		httputil.Conflict(w, fmt.Sprintf("job %s is %s", job.ID, job.Status))
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", security.SanitizeFilename(job.ModelName)+artifact.Extension))
	httputil.WriteRawJSON(w, http.StatusOK, blob)
}

func (s *Server) lookupJob(w http.ResponseWriter, id string) (*db.Job, bool) {
	job, err := s.db.GetJob(id)
	if errors.Is(err, db.ErrJobNotFound) {
		httputil.NotFound(w, fmt.Sprintf("job %s not found", id))
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load job: %v", err))
		return nil, false
	}
	return job, true
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		httputil.BadRequest(w, "invalid 'limit' parameter")
		return 0, false
	}
	return n, true
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"version":       version.Version,
		"gitSha":        version.GitSHA,
		"buildTime":     version.BuildTime,
		"formatVersion": artifact.FormatVersion,
	})
}

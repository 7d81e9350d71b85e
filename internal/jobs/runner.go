// Package jobs runs compression requests asynchronously. Submissions are
// recorded as pending jobs, queued on a bounded channel and processed by a
// fixed pool of workers that move each job to complete or failed.
package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/glyph/pipeline"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
	"github.com/banshee-data/glyph.codec/internal/monitoring"
	"github.com/banshee-data/glyph.codec/internal/timeutil"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken.
	ErrQueueFull = errors.New("jobs: queue is full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("jobs: runner is closed")
	// ErrPanic marks a job whose compression panicked.
	ErrPanic = errors.New("jobs: compression panicked")
)

var logf = monitoring.Component("Jobs")

// Store is the job persistence the runner needs. *db.DB implements it.
type Store interface {
	CreateJob(j db.NewJob, now time.Time) (*db.Job, error)
	MarkProcessing(id string, now time.Time) error
	MarkComplete(id string, res db.JobResult, now time.Time) error
	MarkFailed(id string, cause error, now time.Time) error
	RecordEvent(id, stage string, at time.Time) error
}

// Format is the encoding of a submitted model.
type Format int

const (
	FormatGrid Format = iota // .vox grid file
	FormatASC                // ASCII point list
)

// Submission is one compression request.
type Submission struct {
	ModelName  string
	Format     Format
	Body       []byte
	Resolution int // point sources only; zero uses the pipeline default
}

// Config holds the runner settings.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per job; zero disables
}

type task struct {
	id  string
	sub Submission
}

// Runner owns the queue and worker pool.
type Runner struct {
	store   Store
	comp    *pipeline.Compressor
	clock   timeutil.Clock
	timeout time.Duration

	queue  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
}

// NewRunner starts cfg.Workers workers. Call Close to stop them.
func NewRunner(store Store, comp *pipeline.Compressor, clock timeutil.Clock, cfg Config) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		store:   store,
		comp:    comp,
		clock:   clock,
		timeout: cfg.Timeout,
		queue:   make(chan task, cfg.QueueSize),
		cancel:  cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	logf("started %d workers, queue size %d", cfg.Workers, cfg.QueueSize)
	return r
}

// Submit records a pending job and queues it. It never blocks: when the
// queue is full the job is marked failed and ErrQueueFull is returned.
func (r *Runner) Submit(sub Submission) (*db.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	job, err := r.store.CreateJob(db.NewJob{
		ModelName:  sub.ModelName,
		InputSize:  int64(len(sub.Body)),
		Resolution: sub.Resolution,
	}, r.clock.Now())
	if err != nil {
		return nil, err
	}

	select {
	case r.queue <- task{id: job.ID, sub: sub}:
		return job, nil
	default:
		if err := r.store.MarkFailed(job.ID, ErrQueueFull, r.clock.Now()); err != nil {
			logf("failed to mark job %s failed: %v", job.ID, err)
		}
		return nil, ErrQueueFull
	}
}

// Close stops accepting work, lets queued jobs finish and waits for the
// workers to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.cancel()
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for t := range r.queue {
		r.process(ctx, t)
	}
}

func (r *Runner) process(ctx context.Context, t task) {
	if err := r.store.MarkProcessing(t.id, r.clock.Now()); err != nil {
		logf("job %s: %v", t.id, err)
		return
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.safeCompress(ctx, t)
	if err != nil {
		logf("job %s (%s) failed: %v", t.id, t.sub.ModelName, err)
		if err := r.store.MarkFailed(t.id, err, r.clock.Now()); err != nil {
			logf("job %s: %v", t.id, err)
		}
		return
	}

	blob, err := artifact.Marshal(res)
	if err == nil {
		err = r.store.MarkComplete(t.id, db.JobResult{
			Encoding:         string(res.Encoding),
			CompressionRatio: res.Metadata.CompressionRatio,
			ProcessingMs:     res.Metadata.ProcessingTime,
			ArtifactJSON:     blob,
		}, r.clock.Now())
	}
	if err != nil {
		logf("job %s: failed to store result: %v", t.id, err)
		if err := r.store.MarkFailed(t.id, err, r.clock.Now()); err != nil {
			logf("job %s: %v", t.id, err)
		}
	}
}

// safeCompress reports a panic in the pipeline as a job failure.
func (r *Runner) safeCompress(ctx context.Context, t task) (res *artifact.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			logf("job %s: recovered panic: %v\n%s", t.id, p, debug.Stack())
			res, err = nil, fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	return r.compress(ctx, t)
}

func (r *Runner) compress(ctx context.Context, t task) (*artifact.Result, error) {
	observe := func(_ string, s pipeline.Stage) {
		if err := r.store.RecordEvent(t.id, s.String(), r.clock.Now()); err != nil {
			logf("job %s: failed to record %s: %v", t.id, s, err)
		}
	}
	size := int64(len(t.sub.Body))

	switch t.sub.Format {
	case FormatGrid:
		g, err := voxel.UnmarshalLimit(t.sub.Body, r.comp.MaxResolution())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pipeline.ErrPreprocess, err)
		}
		return r.comp.Compress(ctx, pipeline.Input{
			Name: t.sub.ModelName, Grid: g, OriginalSize: size, Observer: observe,
		})
	case FormatASC:
		points, err := voxel.ReadASC(bytes.NewReader(t.sub.Body))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pipeline.ErrPreprocess, err)
		}
		return r.comp.CompressSource(ctx, pipeline.Source{
			Name: t.sub.ModelName, Points: points, Resolution: t.sub.Resolution,
			OriginalSize: size, Observer: observe,
		})
	default:
		return nil, fmt.Errorf("unknown input format %d", t.sub.Format)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/glyph.codec/internal/api"
	"github.com/banshee-data/glyph.codec/internal/config"
	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/pipeline"
	"github.com/banshee-data/glyph.codec/internal/jobs"
)

// service is the job store, runner and HTTP handler behind `glyph serve`.
type service struct {
	db      *db.DB
	runner  *jobs.Runner
	handler http.Handler
}

func newService(dbPath string, tuning *config.TuningConfig) (*service, error) {
	store, err := db.NewDB(dbPath)
	if err != nil {
		return nil, err
	}
	comp := pipeline.NewCompressor(tuning.PipelineConfig())
	runner := jobs.NewRunner(store, comp, nil, jobs.Config{
		Workers:   tuning.GetWorkers(),
		QueueSize: tuning.GetJobQueueSize(),
		Timeout:   tuning.GetJobTimeout(),
	})
	h, err := api.NewServer(store, runner).WithMaxResolution(comp.MaxResolution()).Handler()
	if err != nil {
		runner.Close()
		store.Close()
		return nil, err
	}
	return &service{db: store, runner: runner, handler: h}, nil
}

// Close drains the runner before closing the store.
func (s *service) Close() error {
	s.runner.Close()
	return s.db.Close()
}

func (c *cli) runServe(args []string) error {
	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "Tuning config JSON")
	listen := fs.String("listen", ":8080", "Listen address")
	dbPath := fs.String("db", "glyph.db", "Job database path")
	if _, err := parseArgs(fs, args, 0, 0); err != nil {
		return err
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	svc, err := newService(*dbPath, tuning)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              *listen,
		Handler:           svc.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	return nil
}

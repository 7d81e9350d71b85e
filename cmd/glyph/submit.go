package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/glyph.codec/internal/api"
	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/httputil"
	"github.com/banshee-data/glyph.codec/internal/jobs"
)

func (c *cli) runSubmit(args []string) error {
	return c.submit(args, nil)
}

// submit uploads a model. hc overrides the HTTP client in tests.
func (c *cli) submit(args []string, hc httputil.HTTPClient) error {
	fs := newFlagSet("submit")
	server := fs.String("server", "http://localhost:8080", "glyph server URL")
	name := fs.String("name", "", "Model name (default: file name)")
	resolution := fs.Int("resolution", 0, "Voxel resolution for point files (default: server config)")
	wait := fs.Bool("wait", false, "Wait for the job to finish")
	poll := fs.Duration("poll", 500*time.Millisecond, "Poll interval with --wait")
	outDir := fs.String("out", "", "With --wait, save the artifact to this directory")
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return err
	}

	body, err := c.fsys.ReadFile(pos[0])
	if err != nil {
		return err
	}
	sub := jobs.Submission{ModelName: modelName(pos[0]), Format: jobs.FormatGrid, Body: body, Resolution: *resolution}
	if *name != "" {
		sub.ModelName = *name
	}
	if isPointFile(pos[0]) {
		sub.Format = jobs.FormatASC
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := api.NewClient(*server, hc)
	resp, err := client.Submit(ctx, sub)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "job %s %s\n", resp.JobID, resp.Status)
	if !*wait {
		return nil
	}

	job, err := client.Wait(ctx, resp.JobID, *poll)
	if err != nil {
		return err
	}
	if job.Status == db.StatusFailed {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	}
	fmt.Fprintf(c.out, "job %s %s: %s %.1fx in %.0fms\n",
		job.ID, job.Status, job.Encoding, job.CompressionRatio, job.ProcessingMs)

	if *outDir == "" {
		return nil
	}
	r, err := client.Artifact(ctx, job.ID)
	if err != nil {
		return err
	}
	path := artifact.PathFor(*outDir, pos[0])
	if err := artifact.Save(c.fsys, path, r); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "saved %s\n", path)
	return nil
}

package main

import (
	"context"
	"fmt"

	"github.com/banshee-data/glyph.codec/internal/glyph/lattice"
	"github.com/banshee-data/glyph.codec/internal/glyph/plots"
	"github.com/banshee-data/glyph.codec/internal/security"
)

func (c *cli) runInspect(args []string) error {
	fs := newFlagSet("inspect")
	configPath := fs.String("config", "", "Tuning config JSON")
	resolution := fs.Int("resolution", 0, "Voxel resolution for point files (default from config)")
	plotDir := fs.String("plots", "", "Write autocorrelation PNGs to this directory")
	pos, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return err
	}

	tuning, err := loadTuning(*configPath)
	if err != nil {
		return err
	}
	res := *resolution
	if res == 0 {
		res = tuning.GetResolution()
	}
	m, err := c.loadModel(pos[0])
	if err != nil {
		return err
	}
	g, err := m.toGrid(res)
	if err != nil {
		return err
	}

	cfg := tuning.LatticeConfig()
	a, err := lattice.NewDetector(cfg).Analyze(context.Background(), g)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "model:      %s\n", m.name)
	fmt.Fprintf(c.out, "grid:       %d³, %d occupied (%.2f%%)\n", g.Resolution, g.Occupied(), 100*g.Density())
	fmt.Fprintf(c.out, "peaks:      %d above %.2f\n", len(a.Peaks), cfg.PeakThreshold)
	for i, p := range a.Peaks {
		fmt.Fprintf(c.out, "  %d. offset (%g, %g, %g) amplitude %.3f\n", i+1, p.Offset.X, p.Offset.Y, p.Offset.Z, p.Amplitude)
	}

	threshold := tuning.GetConfidenceThreshold()
	if a.Lattice == nil {
		fmt.Fprintln(c.out, "lattice:    none")
	} else {
		l := a.Lattice
		fmt.Fprintf(c.out, "lattice:    %s, confidence %.3f\n", l.Type, l.Confidence)
		for i, v := range l.Vectors {
			fmt.Fprintf(c.out, "  a%d = (%g, %g, %g)\n", i+1, v.X, v.Y, v.Z)
		}
	}
	verdict := "ifs"
	if a.Lattice != nil && a.Lattice.Confidence >= threshold {
		verdict = "crystal"
	}
	fmt.Fprintf(c.out, "encoding:   %s (threshold %.2f)\n", verdict, threshold)

	if *plotDir != "" && a.Autocorrelation != nil {
		paths, err := plots.SaveAll(*plotDir, security.SanitizeFilename(m.name), a.Autocorrelation, cfg.PeakThreshold)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(c.out, "plot:       %s\n", p)
		}
	}
	return nil
}

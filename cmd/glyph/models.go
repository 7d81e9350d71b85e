package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/glyph.codec/internal/glyph/pipeline"
	"github.com/banshee-data/glyph.codec/internal/glyph/voxel"
)

// model is a loaded input file: either a grid or a point list.
type model struct {
	name   string
	size   int64
	grid   *voxel.Grid
	points []r3.Vec
}

func isPointFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc", ".xyz", ".txt":
		return true
	}
	return false
}

func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *cli) loadModel(path string) (*model, error) {
	b, err := c.fsys.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &model{name: modelName(path), size: int64(len(b))}
	if isPointFile(path) {
		m.points, err = voxel.ReadASC(bytes.NewReader(b))
	} else {
		m.grid, err = voxel.Unmarshal(b)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return m, nil
}

// source describes m to the compressor. Point lists are voxelized at
// resolution.
func (m *model) source(resolution int) pipeline.Source {
	return pipeline.Source{Name: m.name, Points: m.points, Resolution: resolution, OriginalSize: m.size}
}

// toGrid returns the grid of m, voxelizing and centring point lists.
func (m *model) toGrid(resolution int) (*voxel.Grid, error) {
	if m.grid != nil {
		return m.grid, nil
	}
	g, err := voxel.VoxelizePoints(m.points, resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: voxelize %s: %w", pipeline.ErrPreprocess, m.name, err)
	}
	g, err = voxel.Normalize(g)
	if err != nil {
		return nil, fmt.Errorf("%w: normalize %s: %w", pipeline.ErrPreprocess, m.name, err)
	}
	return g, nil
}

// writeGrid saves g as a point list for point-file extensions and as a
// .vox grid otherwise.
func (c *cli) writeGrid(path string, g *voxel.Grid) error {
	var b []byte
	if isPointFile(path) {
		var buf bytes.Buffer
		if err := voxel.WriteASC(&buf, g.Points()); err != nil {
			return err
		}
		b = buf.Bytes()
	} else {
		var err error
		if b, err = voxel.Marshal(g); err != nil {
			return err
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := c.fsys.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return c.fsys.WriteFile(path, b, 0o644)
}

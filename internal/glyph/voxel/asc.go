package voxel

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ReadASC parses an ASCII point cloud: one point per line as whitespace
// separated "X Y Z", optionally followed by extra columns which are ignored.
// Blank lines and lines starting with '#' are skipped.
func ReadASC(r io.Reader) ([]r3.Vec, error) {
	var points []r3.Vec
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("asc line %d: expected at least 3 columns, got %d", line, len(fields))
		}
		var xyz [3]float64
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, fmt.Errorf("asc line %d column %d: %w", line, i+1, err)
			}
			xyz[i] = v
		}
		points = append(points, r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read asc: %w", err)
	}
	return points, nil
}

// WriteASC writes points in the format read by ReadASC.
func WriteASC(w io.Writer, points []r3.Vec) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Exported points\n")
	fmt.Fprintf(bw, "# Format: X Y Z\n")
	for _, p := range points {
		fmt.Fprintf(bw, "%.6f %.6f %.6f\n", p.X, p.Y, p.Z)
	}
	return bw.Flush()
}

// Points returns the centre of every occupied voxel in model space.
func (g *Grid) Points() []r3.Vec {
	r := g.Resolution
	var pts []r3.Vec
	for x := 0; x < r; x++ {
		for y := 0; y < r; y++ {
			for z := 0; z < r; z++ {
				if !g.At(x, y, z) {
					continue
				}
				off := r3.Vec{X: float64(x) + 0.5, Y: float64(y) + 0.5, Z: float64(z) + 0.5}
				pts = append(pts, r3.Add(g.Min, r3.Scale(g.Pitch, off)))
			}
		}
	}
	return pts
}

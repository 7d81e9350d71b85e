package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/glyph.codec/internal/db"
	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"github.com/banshee-data/glyph.codec/internal/httputil"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var encodingColors = map[string]string{
	string(artifact.EncodingCrystal): "#26828e",
	string(artifact.EncodingIFS):     "#b5de2b",
}

// handleRatioChart renders the compression ratios of recent completed jobs
// as a bar chart, coloured by encoding.
func (s *Server) handleRatioChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	points, err := s.db.CompletedRatios(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load ratios: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := ratioChart(points).Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

func ratioChart(points []db.RatioPoint) *charts.Bar {
	x := make([]string, 0, len(points))
	y := make([]opts.BarData, 0, len(points))
	for _, p := range points {
		x = append(x, fmt.Sprintf("%s (%s)", p.ModelName, shortID(p.JobID)))
		y = append(y, opts.BarData{
			Name:      p.Encoding,
			Value:     p.Ratio,
			ItemStyle: &opts.ItemStyle{Color: encodingColors[p.Encoding]},
		})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  "Glyph compression ratios",
			Width:      "100%",
			Height:     "720px",
			AssetsHost: echartsAssetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Compression ratio",
			Subtitle: fmt.Sprintf("%d completed jobs", len(points)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ratio (x)"}),
	)
	bar.SetXAxis(x).
		AddSeries("ratio", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

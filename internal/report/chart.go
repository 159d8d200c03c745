package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
	"github.com/couchcryptid/covid-stats-etl/internal/observability"
)

// Fixed output dimensions in pixels.
const (
	ChartWidth  = 1200
	ChartHeight = 550
)

// ChartRenderer writes one PNG line chart per metric.
// It implements pipeline.Renderer.
type ChartRenderer struct {
	dir     string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewChartRenderer creates a renderer writing into dir.
func NewChartRenderer(dir string, logger *slog.Logger, metrics *observability.Metrics) *ChartRenderer {
	return &ChartRenderer{dir: dir, logger: logger, metrics: metrics}
}

// ChartPath returns where the chart for region and metric is written.
func ChartPath(dir, region string, m Metric) string {
	return filepath.Join(dir, fmt.Sprintf("covid19%s-%s.png", strings.ToLower(region), m.FileSuffix))
}

// Render overwrites the region's chart images with the given history. An
// empty history writes nothing.
func (r *ChartRenderer) Render(ctx context.Context, region domain.RegionSource, history []domain.StatRecord) error {
	if len(history) == 0 {
		r.logger.Info("no history to chart", "region", region.Code)
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create chart directory: %w", err)
	}

	title := "COVID-19 " + region.Name
	for _, s := range BuildSeries(history) {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := ChartPath(r.dir, region.Code, s.Metric)
		if err := writeChart(path, title, s); err != nil {
			return err
		}
		r.metrics.ChartsRendered.Inc()
		r.logger.Debug("chart written", "path", path, "points", len(s.Values))
	}
	r.logger.Info("charts rendered", "region", region.Code, "dir", r.dir, "points", len(history))
	return nil
}

func writeChart(path, title string, s Series) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := renderLine(f, title, s); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

// plotPoints lays a series out on an integer x axis with one labeled tick
// per record. go-chart derives the x range from the ticks and rejects a
// zero-width range, so a single record is drawn as a flat segment from x=0
// to x=1 with the second tick unlabeled.
func plotPoints(s Series) (xs, ys []float64, ticks []chart.Tick) {
	xs = make([]float64, len(s.Values))
	ys = append([]float64(nil), s.Values...)
	ticks = make([]chart.Tick, len(s.Values))
	for i := range s.Values {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: s.Labels[i]}
	}
	if len(s.Values) == 1 {
		xs = append(xs, 1)
		ys = append(ys, ys[0])
		ticks = append(ticks, chart.Tick{Value: 1})
	}
	return xs, ys, ticks
}

func renderLine(w io.Writer, title string, s Series) error {
	xs, ys, ticks := plotPoints(s)

	maxY := 0.0
	for _, v := range ys {
		maxY = max(maxY, v)
	}
	// An all-zero metric would otherwise give a zero-height y range.
	if maxY < 1 {
		maxY = 1
	}
	maxX := xs[len(xs)-1]

	graph := chart.Chart{
		Title:  title,
		Width:  ChartWidth,
		Height: ChartHeight,
		Background: chart.Style{
			FillColor: drawing.ColorWhite,
			Padding:   chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Ticks: ticks,
			Range: &chart.ContinuousRange{Min: 0, Max: maxX},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxY * 1.1},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    s.Metric.Title,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: s.Metric.Color,
					StrokeWidth: 3,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// Package report turns stored history into chart images and console output.
package report

import (
	"sort"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
)

// labelLayout renders record dates as chart labels, e.g. "3-18".
const labelLayout = "1-2"

// Metric is one charted statistic.
type Metric struct {
	Title      string
	FileSuffix string
	Color      drawing.Color
	value      func(domain.StatRecord) int64
}

// Metrics lists the charts produced for a region, in output order.
var Metrics = []Metric{
	{Title: "Positive Cases", FileSuffix: "positive_cases", Color: drawing.ColorRed, value: func(r domain.StatRecord) int64 { return r.TestedPositive }},
	{Title: "Tests Conducted", FileSuffix: "tests_conducted", Color: drawing.ColorFromHex("4B3EC4"), value: func(r domain.StatRecord) int64 { return r.TotalTested }},
	{Title: "Deaths", FileSuffix: "deaths", Color: drawing.ColorFromHex("222222"), value: func(r domain.StatRecord) int64 { return r.Died }},
}

// Series is the plotted data for one metric: one labeled point per record.
type Series struct {
	Metric Metric
	Labels []string
	Values []float64
}

// BuildSeries returns one Series per entry in Metrics. Points follow
// record date order; counts that were unknown at ingestion plot as 0.
func BuildSeries(history []domain.StatRecord) []Series {
	sorted := make([]domain.StatRecord, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordDate.Before(sorted[j].RecordDate)
	})

	labels := make([]string, len(sorted))
	for i, rec := range sorted {
		labels[i] = rec.RecordDate.Format(labelLayout)
	}

	out := make([]Series, 0, len(Metrics))
	for _, m := range Metrics {
		values := make([]float64, len(sorted))
		for i, rec := range sorted {
			values[i] = float64(m.value(rec))
		}
		out = append(out, Series{Metric: m, Labels: labels, Values: values})
	}
	return out
}

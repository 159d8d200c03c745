// Command validate checks a covidstats SQLite store for integrity: one row
// per region and date, canonical dates, non-negative counts, and tested
// totals that cover the positive count. With -chart-dir it also checks that
// each stored region's chart images exist at the expected size.
//
// Usage:
//
//	go run ./cmd/validate -db db/covid19stats.db [-chart-dir images] [-region MN]
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/covid-stats-etl/internal/adapter/sqlitestore"
	"github.com/couchcryptid/covid-stats-etl/internal/domain"
	"github.com/couchcryptid/covid-stats-etl/internal/report"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dbPath := flag.String("db", "db/covid19stats.db", "path to the SQLite store")
	chartDir := flag.String("chart-dir", "", "directory holding rendered charts (skip chart checks when empty)")
	region := flag.String("region", "", "only check this region")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	os.Exit(run(context.Background(), os.Stdout, *dbPath, *chartDir, strings.ToUpper(*region)))
}

func run(ctx context.Context, out io.Writer, dbPath, chartDir, region string) int {
	fmt.Fprintln(out, "=== COVID-19 Store Integrity Validation ===")
	fmt.Fprintln(out)

	store, err := sqlitestore.Open(ctx, dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	defer store.Close()

	records, err := store.All(ctx, region)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load records: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateUniqueness(ctx, store, records),
		validateCounts(records),
	}
	if chartDir != "" {
		phases = append(phases, validateCharts(chartDir, records))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d across %d regions\n", len(records), len(regionsOf(records)))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateUniqueness(ctx context.Context, store *sqlitestore.Store, records []domain.StatRecord) *phase {
	p := &phase{name: "Phase 1: One record per region and date"}

	seen := make(map[string]int, len(records))
	for _, r := range records {
		seen[r.Region+" "+r.Date()]++
	}
	for key, n := range seen {
		if n > 1 {
			p.errorf("%s: %d records", key, n)
		}
	}

	for _, r := range records {
		n, err := store.Count(ctx, r.Region, r.RecordDate)
		if err != nil {
			p.errorf("%s %s: %v", r.Region, r.Date(), err)
			continue
		}
		if n != 1 {
			p.errorf("%s %s: store counts %d rows", r.Region, r.Date(), n)
		}
	}
	return p
}

func validateCounts(records []domain.StatRecord) *phase {
	p := &phase{name: "Phase 2: Counts and dates"}
	for _, r := range records {
		checkRecord(p.errorf, r)
	}
	return p
}

func checkRecord(pf func(string, ...any), r domain.StatRecord) {
	id := r.Region + " " + r.Date()
	if r.Region == "" || r.Region != strings.ToUpper(r.Region) {
		pf("%s: region must be upper-case and non-empty", id)
	}
	if !r.RecordDate.Equal(r.RecordDate.Truncate(24 * time.Hour)) {
		pf("%s: record date is not a calendar day", id)
	}
	for name, v := range map[string]int64{
		"tested_positive": r.TestedPositive,
		"tested_negative": r.TestedNegative,
		"died":            r.Died,
		"total_tested":    r.TotalTested,
	} {
		if v < 0 {
			pf("%s: %s is negative (%d)", id, name, v)
		}
	}
	if r.TestPending != nil && *r.TestPending < 0 {
		pf("%s: test_pending is negative (%d)", id, *r.TestPending)
	}
	if r.TotalTested < r.TestedPositive {
		pf("%s: total_tested %d is below tested_positive %d", id, r.TotalTested, r.TestedPositive)
	}
}

func validateCharts(dir string, records []domain.StatRecord) *phase {
	p := &phase{name: "Phase 3: Chart images"}
	for _, region := range regionsOf(records) {
		for _, m := range report.Metrics {
			path := report.ChartPath(dir, region, m)
			checkChart(p, path)
		}
	}
	return p
}

func checkChart(p *phase, path string) {
	f, err := os.Open(path)
	if err != nil {
		p.errorf("%s: %v", path, err)
		return
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		p.errorf("%s: not a PNG: %v", path, err)
		return
	}
	if cfg.Width != report.ChartWidth || cfg.Height != report.ChartHeight {
		p.errorf("%s: %dx%d, want %dx%d", path, cfg.Width, cfg.Height, report.ChartWidth, report.ChartHeight)
	}
}

func regionsOf(records []domain.StatRecord) []string {
	set := make(map[string]struct{})
	for _, r := range records {
		set[r.Region] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

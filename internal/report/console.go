package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
)

// Console prints human-readable run output. It is not meant to be parsed.
type Console struct {
	w io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// PrintRecord writes the key fields of one ingested record.
func (c *Console) PrintRecord(rec domain.StatRecord) {
	pending := "unknown"
	if rec.TestPending != nil {
		pending = strconv.FormatInt(*rec.TestPending, 10)
	}
	fmt.Fprintf(c.w, "%s as of %s\n", rec.Region, rec.Date())
	fmt.Fprintf(c.w, "  Tested:   %d\n", rec.TotalTested)
	fmt.Fprintf(c.w, "  Positive: %d\n", rec.TestedPositive)
	fmt.Fprintf(c.w, "  Negative: %d\n", rec.TestedNegative)
	fmt.Fprintf(c.w, "  Pending:  %s\n", pending)
	fmt.Fprintf(c.w, "  Deaths:   %d\n", rec.Died)
}

// PrintDuplicate notes that a record was already stored.
func (c *Console) PrintDuplicate(region, date string) {
	fmt.Fprintf(c.w, "Record already created for %s on %s\n", region, date)
}

// PrintSummary writes the per-run totals.
func (c *Console) PrintSummary(mode string, stored, duplicates, failed int) {
	fmt.Fprintf(c.w, "%s: %d stored, %d already present, %d failed\n", mode, stored, duplicates, failed)
}

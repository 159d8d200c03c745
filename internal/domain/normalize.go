package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize converts one adapter's RawFacts into a StatRecord for region.
//
// On the HTML path tested_negative is derived as total minus positive and a
// pending count of 0 means unknown. On the feed path values pass through as
// reported: a literal pending 0 is kept, a null pending is unknown, and a
// null required count is stored as 0.
func Normalize(raw RawFacts, region string) (StatRecord, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return StatRecord{}, &DataIntegrityError{Field: "region", Reason: "missing"}
	}

	dateText, _ := raw.Values[FieldAsOfDate].(string)
	date, err := ParseReportDate(dateText)
	if err != nil {
		return StatRecord{}, &DataIntegrityError{Region: region, Field: "record_date", Reason: err.Error()}
	}

	c := counter{region: region, values: raw.Values}
	rec := StatRecord{
		Region:         region,
		TestedPositive: c.required(FieldTestedPositive),
		Died:           c.required(FieldDeaths),
		TotalTested:    c.required(FieldTestedTotal),
		RecordDate:     date,
	}

	switch raw.Source {
	case SourceHTML:
		rec.TestedNegative = rec.TotalTested - rec.TestedPositive
		if c.err == nil && rec.TestedNegative < 0 {
			c.err = &DataIntegrityError{
				Region: region,
				Field:  FieldTestedNegative,
				Reason: fmt.Sprintf("derived %d from total %d minus positive %d", rec.TestedNegative, rec.TotalTested, rec.TestedPositive),
			}
		}
		if p, ok := c.optional(FieldTestPending); ok && p != 0 {
			rec.TestPending = &p
		}
	case SourceFeed:
		rec.TestedNegative = c.required(FieldTestedNegative)
		if p, ok := c.optional(FieldTestPending); ok {
			rec.TestPending = &p
		}
	default:
		return StatRecord{}, &DataIntegrityError{Region: region, Field: "source", Reason: fmt.Sprintf("unknown source %q", raw.Source)}
	}

	if c.err != nil {
		return StatRecord{}, c.err
	}
	return rec, nil
}

// counter reads counts out of a raw value map, keeping the first error.
type counter struct {
	region string
	values map[string]any
	err    error
}

// required returns the count for field, treating an absent value as 0.
func (c *counter) required(field string) int64 {
	n, _ := c.optional(field)
	return n
}

// optional returns the count for field and whether a value was present.
func (c *counter) optional(field string) (int64, bool) {
	if c.err != nil {
		return 0, false
	}
	n, ok, err := toCount(c.values[field])
	if err == nil && n < 0 {
		err = fmt.Errorf("negative count %d", n)
	}
	if err != nil {
		c.err = &DataIntegrityError{Region: c.region, Field: field, Reason: err.Error()}
		return 0, false
	}
	return n, ok
}

func toCount(v any) (int64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case int64:
		return x, true, nil
	case int:
		return int64(x), true, nil
	case float64:
		return floatCount(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("not a number: %q", x.String())
		}
		return floatCount(f)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("not an integer: %q", x)
		}
		return n, true, nil
	default:
		return 0, false, fmt.Errorf("unsupported value type %T", v)
	}
}

func floatCount(f float64) (int64, bool, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, false, fmt.Errorf("not an integer: %v", f)
	}
	return int64(f), true, nil
}

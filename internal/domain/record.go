package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the canonical text form of a record date.
const DateLayout = "2006-01-02"

// Source identifies which adapter produced a RawFacts value.
type Source string

const (
	SourceHTML Source = "html"
	SourceFeed Source = "feed"
)

// Semantic field names carried in RawFacts.Values.
const (
	FieldAsOfDate       = "as_of_date"
	FieldTestedTotal    = "tested_total"
	FieldTestedPositive = "tested_positive"
	FieldTestedNegative = "tested_negative"
	FieldTestPending    = "test_pending"
	FieldDeaths         = "deaths"
	FieldRecovered      = "recovered"
)

// RawFacts is the untyped output of a source adapter for one region.
// Values hold int64, float64, json.Number, string or nil.
type RawFacts struct {
	Source Source
	Region string // empty for sources that do not name the region
	Values map[string]any
}

// StatRecord is one region's cumulative statistics as of a calendar day.
type StatRecord struct {
	Region         string    `json:"region"`
	TestedPositive int64     `json:"tested_positive"`
	TestedNegative int64     `json:"tested_negative"`
	TestPending    *int64    `json:"test_pending,omitempty"` // nil when unknown
	Died           int64     `json:"died"`
	TotalTested    int64     `json:"total_tested"`
	RecordDate     time.Time `json:"-"`
}

// Date returns the record date in canonical YYYY-MM-DD form.
func (r StatRecord) Date() string {
	return r.RecordDate.Format(DateLayout)
}

// MarshalJSON renders RecordDate as "record_date": "YYYY-MM-DD".
func (r StatRecord) MarshalJSON() ([]byte, error) {
	type alias StatRecord
	return json.Marshal(struct {
		alias
		RecordDate string `json:"record_date"`
	}{alias: alias(r), RecordDate: r.Date()})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *StatRecord) UnmarshalJSON(data []byte) error {
	type alias StatRecord
	aux := struct {
		*alias
		RecordDate string `json:"record_date"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d, err := time.Parse(DateLayout, aux.RecordDate)
	if err != nil {
		return fmt.Errorf("parse record_date: %w", err)
	}
	r.RecordDate = d
	return nil
}

// RegionSource names a region and the situation page that reports it.
type RegionSource struct {
	Code string `yaml:"region"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

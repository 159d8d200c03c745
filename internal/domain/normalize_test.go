package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRegion = "MN"

func htmlFacts(total, positive, deaths int64) RawFacts {
	return RawFacts{
		Source: SourceHTML,
		Values: map[string]any{
			FieldAsOfDate:       "March 18, 2020, 3:00 PM",
			FieldTestedTotal:    total,
			FieldTestedPositive: positive,
			FieldDeaths:         deaths,
			FieldTestPending:    int64(0),
			FieldRecovered:      int64(0),
		},
	}
}

func TestNormalize_HTML(t *testing.T) {
	rec, err := Normalize(htmlFacts(2762, 77, 0), " mn ")
	require.NoError(t, err)

	assert.Equal(t, testRegion, rec.Region)
	assert.Equal(t, "2020-03-18", rec.Date())
	assert.Equal(t, int64(2762), rec.TotalTested)
	assert.Equal(t, int64(77), rec.TestedPositive)
	assert.Equal(t, int64(2685), rec.TestedNegative)
	assert.Equal(t, rec.TotalTested, rec.TestedPositive+rec.TestedNegative)
	assert.Nil(t, rec.TestPending, "pending sentinel 0 must become unknown")
	assert.Equal(t, int64(0), rec.Died)
}

func TestNormalize_HTML_NegativeDerivedCount(t *testing.T) {
	_, err := Normalize(htmlFacts(100, 150, 0), testRegion)

	var integrity *DataIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, FieldTestedNegative, integrity.Field)
	assert.Equal(t, testRegion, integrity.Region)
}

func TestNormalize_Feed(t *testing.T) {
	raw := RawFacts{
		Source: SourceFeed,
		Region: "WA",
		Values: map[string]any{
			FieldAsOfDate:       "3/18 16:00",
			FieldTestedPositive: json.Number("1187"),
			FieldTestedNegative: json.Number("15918"),
			FieldTestPending:    json.Number("0"),
			FieldDeaths:         json.Number("66"),
			FieldTestedTotal:    json.Number("17105"),
		},
	}
	freezeClock(t, time.Date(2020, time.March, 19, 0, 0, 0, 0, time.UTC))

	rec, err := Normalize(raw, raw.Region)
	require.NoError(t, err)

	assert.Equal(t, "WA", rec.Region)
	assert.Equal(t, "2020-03-18", rec.Date())
	assert.Equal(t, int64(15918), rec.TestedNegative)
	require.NotNil(t, rec.TestPending, "literal 0 from the feed is a real zero")
	assert.Equal(t, int64(0), *rec.TestPending)
	assert.Equal(t, int64(66), rec.Died)
}

func TestNormalize_FeedNulls(t *testing.T) {
	raw := RawFacts{
		Source: SourceFeed,
		Region: "AS",
		Values: map[string]any{
			FieldAsOfDate:       "2020-03-18T16:00:00Z",
			FieldTestedPositive: json.Number("0"),
			FieldTestedNegative: nil,
			FieldTestPending:    nil,
			FieldDeaths:         nil,
			FieldTestedTotal:    float64(3),
		},
	}

	rec, err := Normalize(raw, raw.Region)
	require.NoError(t, err)
	assert.Nil(t, rec.TestPending)
	assert.Equal(t, int64(0), rec.TestedNegative)
	assert.Equal(t, int64(0), rec.Died)
	assert.Equal(t, int64(3), rec.TotalTested)
}

func TestNormalize_Rejects(t *testing.T) {
	base := func() RawFacts { return htmlFacts(10, 1, 0) }

	cases := []struct {
		name   string
		mutate func(*RawFacts)
		region string
		field  string
	}{
		{"empty region", func(*RawFacts) {}, "  ", "region"},
		{"negative deaths", func(r *RawFacts) { r.Values[FieldDeaths] = int64(-1) }, testRegion, FieldDeaths},
		{"fractional total", func(r *RawFacts) { r.Values[FieldTestedTotal] = 10.5 }, testRegion, FieldTestedTotal},
		{"text count", func(r *RawFacts) { r.Values[FieldTestedPositive] = "many" }, testRegion, FieldTestedPositive},
		{"unparseable date", func(r *RawFacts) { r.Values[FieldAsOfDate] = "soon" }, testRegion, "record_date"},
		{"missing date", func(r *RawFacts) { delete(r.Values, FieldAsOfDate) }, testRegion, "record_date"},
		{"unknown source", func(r *RawFacts) { r.Source = "csv" }, testRegion, "source"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := base()
			tc.mutate(&raw)
			_, err := Normalize(raw, tc.region)

			var integrity *DataIntegrityError
			require.ErrorAs(t, err, &integrity)
			assert.Equal(t, tc.field, integrity.Field)
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	dup := &DuplicateRecordError{Region: testRegion, RecordDate: time.Date(2020, 3, 18, 0, 0, 0, 0, time.UTC)}

	assert.True(t, IsDuplicate(dup))
	assert.True(t, IsDuplicate(errors.Join(errors.New("store"), dup)))
	assert.False(t, IsDuplicate(errors.New("record already stored for MN on 2020-03-18")))
	assert.Equal(t, "record already stored for MN on 2020-03-18", dup.Error())
}

func TestStatRecord_JSON(t *testing.T) {
	pending := int64(4)
	rec := StatRecord{Region: testRegion, TestedPositive: 77, TestPending: &pending, RecordDate: time.Date(2020, 3, 18, 0, 0, 0, 0, time.UTC)}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"record_date":"2020-03-18"`)
	assert.Contains(t, string(data), `"test_pending":4`)

	var back StatRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

// Package domain models daily COVID-19 testing statistics per US region.
//
// # Data Sources
//
// Two upstream sources feed the pipeline:
//
//   - A state health department situation page (HTML). The page carries no
//     structured data; figures live in paragraph and list-item prose such as
//     "Approximate number of patients tested: 1,234". The page does not report
//     pending tests or recoveries.
//   - The COVID Tracking Project states feed (JSON), one object per state with
//     state, positive, negative, pending, death, total and lastUpdateEt.
//
// Adapters hand their output to [Normalize] as [RawFacts]: a loosely typed
// field map tagged with the source it came from. Normalize is the only place
// where raw values become a [StatRecord].
//
// # Report Dates
//
// Sources phrase the as-of date freely:
//
//	"As of March 18, 2020, 3:00 PM"  →  2020-03-18
//	"3/18 16:00"                      →  2020-03-18 (year from the reference clock)
//	"2020-03-18T16:00:00Z"            →  2020-03-18
//
// Only the calendar date is kept. Records are keyed by (region, date) and
// the date is always stored as YYYY-MM-DD. See [ParseReportDate].
//
// # Unknown Values
//
// The HTML page never reports pending tests, so its sentinel 0 is stored as
// NULL. The feed reports pending explicitly, so a literal 0 there is a real
// zero. Negative tests on the HTML path are derived as total minus positive;
// a negative result means the page is inconsistent and the record is
// rejected with a [DataIntegrityError].
package domain

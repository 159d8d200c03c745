package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	asOfPrefixRe = regexp.MustCompile(`(?i)^\s*as\s+of\s+`)
	isoDateRe    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})`)
	// monthDateRe matches "March 18, 2020", "Mar. 18th" and "march 18 2020".
	// Only full or abbreviated month names count, so "market 12" is not March 12.
	monthDateRe = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s*(\d{4})\b)?`)
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}|\d{2}))?\b`)
)

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var errNoDate = errors.New("no recognizable date")

// ParseReportDate extracts the calendar date from a free-text as-of phrase
// and returns it as UTC midnight. Time of day and zone are discarded.
//
// Dates without a year take the year of the package clock; if that puts the
// date in the future it is moved back one year.
func ParseReportDate(text string) (time.Time, error) {
	s := strings.TrimSpace(asOfPrefixRe.ReplaceAllString(text, ""))
	if s == "" {
		return time.Time{}, errNoDate
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := monthDateRe.FindStringSubmatch(s); m != nil {
		month := monthsByPrefix[strings.ToLower(m[1][:3])]
		if m[3] == "" {
			return yearlessDate(month, atoi(m[2]))
		}
		return buildDate(atoi(m[3]), int(month), atoi(m[2]))
	}
	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		month, day := atoi(m[1]), atoi(m[2])
		switch len(m[3]) {
		case 0:
			return yearlessDate(time.Month(month), day)
		case 2:
			return buildDate(2000+atoi(m[3]), month, day)
		default:
			return buildDate(atoi(m[3]), month, day)
		}
	}
	if d, ok := relativeDate(s); ok {
		return d, nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w in %q", errNoDate, text)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func buildDate(year, month, day int) (time.Time, error) {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || int(d.Month()) != month || d.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}
	return d, nil
}

func yearlessDate(month time.Month, day int) (time.Time, error) {
	today := referenceToday()
	d, err := buildDate(today.Year(), int(month), day)
	if err != nil {
		return time.Time{}, err
	}
	if d.After(today) {
		return buildDate(today.Year()-1, int(month), day)
	}
	return d, nil
}

func relativeDate(s string) (time.Time, bool) {
	for _, w := range strings.Fields(strings.ToLower(s)) {
		switch strings.Trim(w, ".,;:") {
		case "today":
			return referenceToday(), true
		case "yesterday":
			return referenceToday().AddDate(0, 0, -1), true
		}
	}
	return time.Time{}, false
}

func referenceToday() time.Time {
	now := clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// atoi is only called on regexp digit groups.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

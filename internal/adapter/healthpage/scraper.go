// Package healthpage scrapes a state health department situation page.
//
// The page has no structured data. Each figure is found by locating the
// first paragraph or list item whose text contains a known marker phrase
// and keeping only the digits of that text, so "Positive: 1,234" and
// "Approximate number of patients tested: 1,234 (as reported)" both read
// as 1234.
package healthpage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
)

const asOfPhrase = "As of"

// marker locates one figure on the page.
type marker struct {
	field  string
	tag    string
	phrase string
}

var countMarkers = []marker{
	{field: domain.FieldTestedTotal, tag: "li", phrase: "Approximate number of patients tested"},
	{field: domain.FieldTestedPositive, tag: "li", phrase: "Positive:"},
	{field: domain.FieldDeaths, tag: "li", phrase: "Deaths:"},
}

// Scraper fetches and extracts a situation page.
// It implements pipeline.PageSource.
type Scraper struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewScraper creates a Scraper. A nil client uses http.DefaultClient.
func NewScraper(httpClient *http.Client, userAgent string, logger *slog.Logger) *Scraper {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Scraper{httpClient: httpClient, userAgent: userAgent, logger: logger}
}

// FetchAndExtract downloads url and extracts the as-of date, tests, positives
// and deaths. Pending and recovered are not published by the page and are
// returned as the sentinel 0.
func (s *Scraper) FetchAndExtract(ctx context.Context, url string) (domain.RawFacts, error) {
	doc, err := s.fetch(ctx, url)
	if err != nil {
		return domain.RawFacts{}, err
	}
	return Extract(doc, url)
}

// Extract reads the figures out of an already parsed page. url is only used
// in error messages.
func Extract(doc *goquery.Document, url string) (domain.RawFacts, error) {
	values := map[string]any{
		domain.FieldTestPending: int64(0),
		domain.FieldRecovered:   int64(0),
	}

	dateText, ok := findMarker(doc, "p", asOfPhrase)
	if !ok {
		return domain.RawFacts{}, &domain.SourceLayoutChangedError{URL: url, Marker: asOfPhrase, Reason: "marker not found"}
	}
	i := strings.Index(dateText, asOfPhrase)
	if i < 0 {
		return domain.RawFacts{}, &domain.SourceLayoutChangedError{URL: url, Marker: asOfPhrase, Reason: "marker not found"}
	}
	dateText = strings.TrimSpace(dateText[i+len(asOfPhrase):])
	if dateText == "" {
		return domain.RawFacts{}, &domain.SourceLayoutChangedError{URL: url, Marker: asOfPhrase, Reason: "no date after marker"}
	}
	values[domain.FieldAsOfDate] = dateText

	for _, m := range countMarkers {
		text, ok := findMarker(doc, m.tag, m.phrase)
		if !ok {
			return domain.RawFacts{}, &domain.SourceLayoutChangedError{URL: url, Marker: m.phrase, Reason: "marker not found"}
		}
		n, err := ExtractCount(text)
		if err != nil {
			return domain.RawFacts{}, &domain.SourceLayoutChangedError{URL: url, Marker: m.phrase, Reason: err.Error()}
		}
		values[m.field] = n
	}

	return domain.RawFacts{Source: domain.SourceHTML, Values: values}, nil
}

// ExtractCount drops every non-digit rune from text and parses the rest.
func ExtractCount(text string) (int64, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, text)
	if digits == "" {
		return 0, fmt.Errorf("no digits in %q", collapseSpace(text))
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", digits, err)
	}
	return n, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.SourceFetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &domain.SourceFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.SourceFetchError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &domain.SourceFetchError{URL: url, Err: fmt.Errorf("read page: %w", err)}
	}
	s.logger.Debug("situation page fetched", "url", url, "status", resp.StatusCode)
	return doc, nil
}

// findMarker returns the text of the first tag element containing phrase.
// The match is case-sensitive, unlike the :contains selector.
func findMarker(doc *goquery.Document, tag, phrase string) (string, bool) {
	var (
		text  string
		found bool
	)
	doc.Find(tag).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if t := sel.Text(); strings.Contains(t, phrase) {
			text, found = t, true
			return false
		}
		return true
	})
	return text, found
}

func collapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

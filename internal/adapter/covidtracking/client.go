// Package covidtracking reads the COVID Tracking Project all-states feed.
package covidtracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
)

// feedFields maps feed keys to domain field names.
var feedFields = map[string]string{
	"positive":     domain.FieldTestedPositive,
	"negative":     domain.FieldTestedNegative,
	"pending":      domain.FieldTestPending,
	"death":        domain.FieldDeaths,
	"total":        domain.FieldTestedTotal,
	"lastUpdateEt": domain.FieldAsOfDate,
}

// Client fetches the all-states feed.
// It implements pipeline.FeedSource.
type Client struct {
	feedURL    string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a feed client. A nil httpClient uses http.DefaultClient.
func NewClient(feedURL string, httpClient *http.Client, userAgent string, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{feedURL: feedURL, httpClient: httpClient, userAgent: userAgent, logger: logger}
}

// FetchAll returns one RawFacts per feed element, in feed order. Any
// transport, status or decoding failure fails the whole call.
func (c *Client) FetchAll(ctx context.Context) ([]domain.RawFacts, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, &domain.SourceFetchError{URL: c.feedURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.SourceFetchError{URL: c.feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.SourceFetchError{URL: c.feedURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.SourceFetchError{URL: c.feedURL, Err: fmt.Errorf("read feed: %w", err)}
	}

	facts, err := decodeFeed(body)
	if err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", c.feedURL, err)
	}
	c.logger.Debug("states feed fetched", "url", c.feedURL, "regions", len(facts))
	return facts, nil
}

func decodeFeed(body []byte) ([]domain.RawFacts, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after feed array")
	}

	facts := make([]domain.RawFacts, 0, len(rows))
	for i, row := range rows {
		state, ok := row["state"].(string)
		if !ok || state == "" {
			return nil, fmt.Errorf("element %d: missing state", i)
		}
		values := make(map[string]any, len(feedFields))
		for key, field := range feedFields {
			if v, ok := row[key]; ok {
				values[field] = v
			}
		}
		facts = append(facts, domain.RawFacts{Source: domain.SourceFeed, Region: state, Values: values})
	}
	return facts, nil
}

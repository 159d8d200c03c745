package covidtracking

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
)

const statesFeed = `[
  {"state":"AK","positive":6,"negative":400,"pending":null,"death":0,"total":406,"lastUpdateEt":"3/18 15:00"},
  {"state":"MN","positive":77,"negative":2685,"pending":0,"death":0,"total":2762,"lastUpdateEt":"3/18 16:00","checkTimeEt":"3/18 17:12"},
  {"state":"WA","positive":1187,"negative":15918,"death":66,"total":17105,"lastUpdateEt":"3/18 17:30"}
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFeedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchAll(t *testing.T) {
	srv := newFeedServer(t, http.StatusOK, statesFeed)
	c := NewClient(srv.URL, srv.Client(), "", discardLogger())

	facts, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, facts, 3)

	regions := []string{facts[0].Region, facts[1].Region, facts[2].Region}
	assert.Equal(t, []string{"AK", "MN", "WA"}, regions, "feed order is preserved")

	mn := facts[1]
	assert.Equal(t, domain.SourceFeed, mn.Source)
	assert.Equal(t, json.Number("77"), mn.Values[domain.FieldTestedPositive])
	assert.Equal(t, json.Number("2685"), mn.Values[domain.FieldTestedNegative])
	assert.Equal(t, json.Number("0"), mn.Values[domain.FieldTestPending])
	assert.Equal(t, json.Number("2762"), mn.Values[domain.FieldTestedTotal])
	assert.Equal(t, "3/18 16:00", mn.Values[domain.FieldAsOfDate])
	assert.NotContains(t, mn.Values, "checkTimeEt")

	assert.Contains(t, facts[0].Values, domain.FieldTestPending)
	assert.Nil(t, facts[0].Values[domain.FieldTestPending])
	assert.NotContains(t, facts[2].Values, domain.FieldTestPending)
}

func TestClient_FetchAll_HTTPError(t *testing.T) {
	srv := newFeedServer(t, http.StatusBadGateway, "")
	c := NewClient(srv.URL, srv.Client(), "", discardLogger())

	_, err := c.FetchAll(context.Background())

	var fetchErr *domain.SourceFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
}

func TestClient_FetchAll_Accepts2xx(t *testing.T) {
	srv := newFeedServer(t, http.StatusNonAuthoritativeInfo, statesFeed+"\n")
	facts, err := NewClient(srv.URL, srv.Client(), "", discardLogger()).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, facts, 3)
}

func TestClient_FetchAll_Malformed(t *testing.T) {
	cases := map[string]string{
		"truncated json":  `[{"state":"MN","positive":77`,
		"not an array":    `{"state":"MN"}`,
		"missing state":   `[{"state":"MN","positive":1},{"positive":2}]`,
		"non-string code": `[{"state":27,"positive":1}]`,
		"trailing data":   `[{"state":"MN","positive":77}]garbage`,
		"second array":    `[{"state":"MN","positive":77}][]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newFeedServer(t, http.StatusOK, body)
			facts, err := NewClient(srv.URL, srv.Client(), "", discardLogger()).FetchAll(context.Background())
			require.Error(t, err)
			assert.Nil(t, facts, "no partial results")
		})
	}
}

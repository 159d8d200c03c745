//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/covid-stats-etl/internal/adapter/covidtracking"
	"github.com/couchcryptid/covid-stats-etl/internal/adapter/kafka"
	"github.com/couchcryptid/covid-stats-etl/internal/adapter/sqlitestore"
	"github.com/couchcryptid/covid-stats-etl/internal/config"
	"github.com/couchcryptid/covid-stats-etl/internal/domain"
	"github.com/couchcryptid/covid-stats-etl/internal/observability"
	"github.com/couchcryptid/covid-stats-etl/internal/pipeline"
)

const testTopic = "test-covid-daily-stats"

const statesFeed = `[
  {"state":"MN","positive":77,"negative":2685,"pending":null,"death":0,"total":2762,"lastUpdateEt":"3/18 16:00"},
  {"state":"WA","positive":1187,"negative":15918,"pending":0,"death":66,"total":17105,"lastUpdateEt":"3/18 15:00"},
  {"state":"WI","positive":106,"negative":1577,"pending":23,"death":0,"total":1706,"lastUpdateEt":"3/18 14:00"}
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("covid-stats-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestAllRegionsPublishesStoredRecords runs all-regions ingestion against a
// local feed, a real SQLite store and a real broker, then runs it again to
// confirm duplicates are skipped and not republished.
func TestAllRegionsPublishesStoredRecords(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2020, 3, 19, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statesFeed))
	}))
	t.Cleanup(feed.Close)

	store, err := sqlitestore.Open(ctx, filepath.Join(t.TempDir(), "covid19stats.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Initialize(ctx))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic, KafkaEnabled: true}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	controller := pipeline.New(pipeline.Stages{
		Feed:      covidtracking.NewClient(feed.URL, feed.Client(), "covid-stats-etl/test", discardLogger()),
		Store:     store,
		Publisher: writer,
	}, discardLogger(), observability.NewMetricsForTesting())

	sum, err := controller.RunAllRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Stored)

	again, err := controller.RunAllRegions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Stored)
	assert.Equal(t, 3, again.Duplicates)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := make(map[string]domain.StatRecord)
	for len(got) < 3 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read published record")

		var rec domain.StatRecord
		require.NoError(t, json.Unmarshal(msg.Value, &rec))
		got[string(msg.Key)] = rec
	}

	require.Contains(t, got, "MN|2020-03-18")
	mn := got["MN|2020-03-18"]
	assert.Equal(t, int64(77), mn.TestedPositive)
	assert.Nil(t, mn.TestPending)

	require.Contains(t, got, "WA|2020-03-18")
	require.NotNil(t, got["WA|2020-03-18"].TestPending)
	assert.Equal(t, int64(0), *got["WA|2020-03-18"].TestPending)

	require.Contains(t, got, "WI|2020-03-18")

	// Nothing beyond the first run's three records was published.
	lag, err := consumer.ReadLag(ctx)
	require.NoError(t, err)
	assert.Zero(t, lag)
}
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
	"github.com/couchcryptid/covid-stats-etl/internal/observability"
)

// PageSource fetches and extracts one region's situation page.
type PageSource interface {
	FetchAndExtract(ctx context.Context, url string) (domain.RawFacts, error)
}

// FeedSource fetches the all-regions feed.
type FeedSource interface {
	FetchAll(ctx context.Context) ([]domain.RawFacts, error)
}

// RecordStore persists records. Append must return *domain.DuplicateRecordError
// for an existing (region, date).
type RecordStore interface {
	Append(ctx context.Context, rec domain.StatRecord) error
	All(ctx context.Context, region string) ([]domain.StatRecord, error)
}

// Renderer draws a region's history.
type Renderer interface {
	Render(ctx context.Context, region domain.RegionSource, history []domain.StatRecord) error
}

// Publisher forwards newly stored records downstream.
type Publisher interface {
	Publish(ctx context.Context, records []domain.StatRecord) error
}

// Console prints human-readable progress.
type Console interface {
	PrintRecord(rec domain.StatRecord)
	PrintDuplicate(region, date string)
}

// Stages groups the collaborators of a Controller. Pages is required for
// single-region runs and Feed for all-regions runs. Renderer, Publisher and
// Console are optional.
type Stages struct {
	Pages     PageSource
	Feed      FeedSource
	Store     RecordStore
	Renderer  Renderer
	Publisher Publisher
	Console   Console
}

// Run modes, used as log and metric labels.
const (
	ModeSingleRegion = "single-region"
	ModeAllRegions   = "all-regions"
)

// Controller runs fetch → normalize → store for one invocation.
type Controller struct {
	stages  Stages
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Controller.
func New(stages Stages, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{stages: stages, logger: logger, metrics: metrics}
}

// RunSingleRegion scrapes region's page, stores one record and re-renders
// the region's charts. A duplicate record is not an error: the outcome is
// StateDuplicateSkipped and charts are still rendered.
func (c *Controller) RunSingleRegion(ctx context.Context, region domain.RegionSource) (Outcome, error) {
	log := c.runLogger(ModeSingleRegion).With("region", region.Code)
	out := Outcome{Region: region.Code, State: StateStart}

	out.enter(log, StateFetching)
	start := time.Now()
	raw, err := c.stages.Pages.FetchAndExtract(ctx, region.URL)
	c.metrics.FetchDuration.WithLabelValues(string(domain.SourceHTML)).Observe(time.Since(start).Seconds())
	if err != nil {
		return c.failRun(log, ModeSingleRegion, out.fail(err))
	}

	out.enter(log, StateNormalizing)
	rec, err := domain.Normalize(raw, region.Code)
	if err != nil {
		return c.failRun(log, ModeSingleRegion, out.fail(err))
	}
	out.RecordDate = rec.RecordDate
	c.printRecord(rec)

	out.enter(log, StateStoring)
	if err := c.store(ctx, log, &out, rec); err != nil {
		return c.failRun(log, ModeSingleRegion, out)
	}
	if out.State == StateDone {
		c.publish(ctx, log, []domain.StatRecord{rec})
	}

	if c.stages.Renderer != nil {
		if err := c.render(ctx, region); err != nil {
			c.metrics.IngestFailures.WithLabelValues("rendering").Inc()
			c.metrics.Runs.WithLabelValues(ModeSingleRegion, "failed").Inc()
			log.Error("render charts failed", "error", err)
			return out, err
		}
	}

	c.succeedRun(log, ModeSingleRegion, "state", out.State, "record_date", rec.Date())
	return out, nil
}

// RunAllRegions ingests every region in the feed. A failed fetch fails the
// run. Normalization failures and duplicates are recorded per region and
// the remaining regions are still processed. Any other store error aborts
// the run and is returned with the outcomes gathered so far.
func (c *Controller) RunAllRegions(ctx context.Context) (Summary, error) {
	log := c.runLogger(ModeAllRegions)
	sum := Summary{Mode: ModeAllRegions}

	log.Debug("state transition", "state", StateFetching)
	start := time.Now()
	facts, err := c.stages.Feed.FetchAll(ctx)
	c.metrics.FetchDuration.WithLabelValues(string(domain.SourceFeed)).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.IngestFailures.WithLabelValues(string(StateFetching)).Inc()
		c.metrics.Runs.WithLabelValues(ModeAllRegions, "failed").Inc()
		log.Error("fetch feed failed", "error", err)
		return sum, err
	}
	log.Info("feed fetched", "regions", len(facts))

	stored := make([]domain.StatRecord, 0, len(facts))
	for _, raw := range facts {
		rlog := log.With("region", raw.Region)
		out := Outcome{Region: raw.Region, State: StateFetching}

		out.enter(rlog, StateNormalizing)
		rec, err := domain.Normalize(raw, raw.Region)
		if err != nil {
			c.metrics.IngestFailures.WithLabelValues(string(StateNormalizing)).Inc()
			rlog.Warn("region skipped", "error", err)
			sum.add(out.fail(err))
			continue
		}
		out.Region = rec.Region
		out.RecordDate = rec.RecordDate
		c.printRecord(rec)

		out.enter(rlog, StateStoring)
		if err := c.store(ctx, rlog, &out, rec); err != nil {
			sum.add(out)
			_, err = c.failRun(rlog, ModeAllRegions, out)
			return sum, err
		}
		if out.State == StateDone {
			stored = append(stored, rec)
		}
		sum.add(out)
	}

	c.publish(ctx, log, stored)
	c.succeedRun(log, ModeAllRegions, "stored", sum.Stored, "duplicates", sum.Duplicates, "failed", sum.Failed)
	return sum, nil
}

// store appends rec and sets out to Done or DuplicateSkipped. Any other
// error marks out Failed and is returned.
func (c *Controller) store(ctx context.Context, log *slog.Logger, out *Outcome, rec domain.StatRecord) error {
	err := c.stages.Store.Append(ctx, rec)
	var dup *domain.DuplicateRecordError
	switch {
	case err == nil:
		c.metrics.RecordsStored.Inc()
		out.enter(log, StateDone)
		log.Info("record stored", "record_date", rec.Date())
		return nil
	case errors.As(err, &dup):
		c.metrics.DuplicatesSkipped.Inc()
		out.enter(log, StateDuplicateSkipped)
		log.Info("record already stored, skipping", "record_date", dup.RecordDate.Format(domain.DateLayout))
		if c.stages.Console != nil {
			c.stages.Console.PrintDuplicate(dup.Region, dup.RecordDate.Format(domain.DateLayout))
		}
		return nil
	default:
		*out = out.fail(err)
		return err
	}
}

func (c *Controller) render(ctx context.Context, region domain.RegionSource) error {
	history, err := c.stages.Store.All(ctx, region.Code)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return c.stages.Renderer.Render(ctx, region, history)
}

// publish is best effort: records are already committed to the store.
func (c *Controller) publish(ctx context.Context, log *slog.Logger, records []domain.StatRecord) {
	if c.stages.Publisher == nil || len(records) == 0 {
		return
	}
	if err := c.stages.Publisher.Publish(ctx, records); err != nil {
		c.metrics.PublishErrors.Inc()
		log.Warn("publish records failed", "error", err, "records", len(records))
	}
}

func (c *Controller) printRecord(rec domain.StatRecord) {
	if c.stages.Console != nil {
		c.stages.Console.PrintRecord(rec)
	}
}

func (c *Controller) runLogger(mode string) *slog.Logger {
	return c.logger.With("run_id", uuid.NewString(), "mode", mode)
}

func (c *Controller) failRun(log *slog.Logger, mode string, out Outcome) (Outcome, error) {
	c.metrics.IngestFailures.WithLabelValues(string(out.Stage)).Inc()
	c.metrics.Runs.WithLabelValues(mode, "failed").Inc()
	log.Error("run failed", "stage", out.Stage, "error", out.Err)
	return out, out.Err
}

func (c *Controller) succeedRun(log *slog.Logger, mode string, args ...any) {
	c.metrics.Runs.WithLabelValues(mode, "success").Inc()
	c.metrics.LastSuccess.SetToCurrentTime()
	log.Info("run complete", args...)
}

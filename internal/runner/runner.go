// Package runner wires the fetch → filter → dedupe → format → notify →
// persist pipeline and owns its failure policy.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/sme-deals/internal/dedupe"
	"github.com/Checker-Finance/sme-deals/internal/metrics"
	"github.com/Checker-Finance/sme-deals/internal/publisher"
	"github.com/Checker-Finance/sme-deals/internal/report"
	"github.com/Checker-Finance/sme-deals/internal/sme"
	"github.com/Checker-Finance/sme-deals/internal/source"
	"github.com/Checker-Finance/sme-deals/pkg/model"
)

// Notifier delivers a rendered report. Satisfied by telegram.Notifier.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// EventPublisher emits run summaries for downstream analytics. Optional.
type EventPublisher interface {
	PublishScanCompleted(ctx context.Context, event publisher.ScanEvent) error
}

// Options configures a Runner.
type Options struct {
	LookbackDays      int
	MaxRowsPerSection int
	RetentionHorizon  time.Duration

	// Now overrides the clock in tests. Defaults to time.Now.
	Now func() time.Time
}

// Result summarizes one completed run.
type Result struct {
	RunID       uuid.UUID
	From, To    time.Time
	Fetched     int
	SME         int
	New         int
	Delivered   bool
	SourcesDown []string
	Duration    time.Duration
}

// Runner executes the pipeline. One Runner serves repeated runs in daemon
// mode; runs never overlap (the caller holds the run lock).
type Runner struct {
	logger    *zap.Logger
	sources   []source.Source
	store     dedupe.SeenStore
	notifier  Notifier
	publisher EventPublisher
	opts      Options
}

func New(logger *zap.Logger, sources []source.Source, store dedupe.SeenStore, notifier Notifier, pub EventPublisher, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		logger:    logger,
		sources:   sources,
		store:     store,
		notifier:  notifier,
		publisher: pub,
		opts:      opts,
	}
}

type fetchResult struct {
	src     source.Source
	records []model.DealRecord
	err     error
}

// RunOnce executes a single pipeline pass.
//
// Failure policy: a source going down is isolated (the run continues with
// the other's results); both going down skips notification entirely, leaves
// the seen set untouched and still counts as a successful run. Delivery
// failure is logged but the seen set is persisted regardless, since
// duplicates are worse than a missed alert. Only seen-set load/save failure
// fails the run.
func (r *Runner) RunOnce(ctx context.Context) (*Result, error) {
	start := r.opts.Now()
	defer metrics.ObserveScan(start)

	runID := uuid.New()
	to := dateOnly(start.UTC())
	offset := r.opts.LookbackDays
	if offset > 0 {
		offset--
	}
	from := to.AddDate(0, 0, -offset)

	log := r.logger.With(zap.String("run_id", runID.String()))
	log.Info("runner.started",
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")))

	// Fetch both exchanges concurrently; each may fail independently.
	results := make([]fetchResult, len(r.sources))
	var wg sync.WaitGroup
	for i, src := range r.sources {
		wg.Add(1)
		go func(i int, src source.Source) {
			defer wg.Done()
			records, err := src.Fetch(ctx, from, to)
			results[i] = fetchResult{src: src, records: records, err: err}
		}(i, src)
	}
	wg.Wait()

	var warnings []string
	var sourcesDown []string
	fetched := 0
	var smeRecords []model.DealRecord

	for _, res := range results {
		exchange := res.src.Exchange()
		if res.err != nil {
			kind := "unavailable"
			if errors.Is(res.err, source.ErrFormat) {
				kind = "format"
			}
			metrics.SourceErrorsTotal.WithLabelValues(string(exchange), kind).Inc()
			sourcesDown = append(sourcesDown, string(exchange))
			warnings = append(warnings, fmt.Sprintf("%s fetch failed: %v", exchange, res.err))
			log.Warn("runner.source_failed",
				zap.String("exchange", string(exchange)),
				zap.String("kind", kind),
				zap.Error(res.err))
			continue
		}

		fetched += len(res.records)
		for _, rec := range res.records {
			metrics.DealsFetchedTotal.WithLabelValues(string(rec.Exchange), string(rec.DealType)).Inc()
		}

		// SME classification, per exchange. Membership is best-effort.
		members := res.src.SMEMembers(ctx)
		for _, rec := range res.records {
			if sme.IsSME(exchange, rec.Symbol, members) {
				smeRecords = append(smeRecords, rec)
			}
		}
	}

	result := &Result{
		RunID:       runID,
		From:        from,
		To:          to,
		Fetched:     fetched,
		SME:         len(smeRecords),
		SourcesDown: sourcesDown,
	}

	// Both sources down: nothing to report and nobody to alarm. Log-only,
	// no seen-set mutation, successful exit.
	if len(sourcesDown) == len(r.sources) {
		log.Error("runner.all_sources_down", zap.Strings("sources", sourcesDown))
		result.Duration = r.opts.Now().Sub(start)
		r.publishEvent(ctx, result)
		return result, nil
	}

	// Dedupe against the persisted seen set.
	seen, err := r.store.Load(ctx)
	if err != nil {
		log.Error("runner.seen_load_failed", zap.Error(err))
		return nil, err
	}
	if pruned := seen.Prune(r.opts.RetentionHorizon, start); pruned > 0 {
		log.Info("runner.seen_pruned", zap.Int("dropped", pruned))
	}

	fresh := dedupe.FilterNew(smeRecords, seen, start)
	result.New = len(fresh)
	for _, rec := range fresh {
		metrics.DealsNewTotal.WithLabelValues(string(rec.Exchange)).Inc()
	}

	// Render and deliver. An empty report is still sent: operators need
	// proof of liveness from a cron job.
	text := report.Render(fresh, from, to, r.opts.MaxRowsPerSection, warnings)
	if err := r.notifier.Send(ctx, text); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		log.Error("runner.delivery_failed", zap.Error(err))
	} else {
		metrics.NotificationsTotal.WithLabelValues("sent").Inc()
		result.Delivered = true
	}

	// Persist even after delivery failure: re-sending duplicates next run
	// is worse than one missed alert.
	if err := r.store.Save(ctx, seen); err != nil {
		log.Error("runner.persist_failed", zap.Error(err))
		return nil, err
	}

	result.Duration = r.opts.Now().Sub(start)
	log.Info("runner.completed",
		zap.Int("fetched", result.Fetched),
		zap.Int("sme", result.SME),
		zap.Int("new", result.New),
		zap.Bool("delivered", result.Delivered),
		zap.Duration("duration", result.Duration))

	r.publishEvent(ctx, result)
	return result, nil
}

func (r *Runner) publishEvent(ctx context.Context, res *Result) {
	if r.publisher == nil {
		return
	}
	event := publisher.ScanEvent{
		RunID:       res.RunID,
		From:        res.From.Format("2006-01-02"),
		To:          res.To.Format("2006-01-02"),
		Fetched:     res.Fetched,
		SME:         res.SME,
		New:         res.New,
		Delivered:   res.Delivered,
		SourcesDown: res.SourcesDown,
		DurationMS:  res.Duration.Milliseconds(),
		Timestamp:   r.opts.Now().UTC(),
	}
	// Best-effort: the publisher logs its own failures.
	_ = r.publisher.PublishScanCompleted(ctx, event)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

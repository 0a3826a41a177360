package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinified/clinified/internal/config"
	"github.com/clinified/clinified/internal/platform/telemetry"
)

const (
	outcomePublished = "published"
	outcomeSkipped   = "skipped"
	outcomeFailed    = "failed"
)

// Result summarizes one source within a run.
type Result struct {
	ResourceType string `json:"resource_type"`
	Exported     int    `json:"exported"`
	Skipped      int    `json:"skipped"`
	Batches      int    `json:"batches"`
	Checkpoint   Cursor `json:"checkpoint"`
}

type Exporter struct {
	pub         Publisher
	checkpoints CheckpointStore
	cfg         config.SyncConfig
	metrics     *telemetry.Metrics
	logger      zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(pub Publisher, checkpoints CheckpointStore, cfg config.SyncConfig, metrics *telemetry.Metrics, logger zerolog.Logger) *Exporter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	return &Exporter{
		pub:         pub,
		checkpoints: checkpoints,
		cfg:         cfg,
		metrics:     metrics,
		logger:      logger.With().Str("component", "export").Logger(),
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run exports every source in order. It stops at the first source whose
// batch cannot be published; the results gathered so far are returned with
// the error.
func (e *Exporter) Run(ctx context.Context, sources ...Source) ([]Result, error) {
	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		res, err := e.exportSource(ctx, src)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (e *Exporter) exportSource(ctx context.Context, src Source) (Result, error) {
	rt := src.ResourceType()
	res := Result{ResourceType: rt}
	log := e.logger.With().Str("resource", rt).Logger()

	cur, err := e.checkpoints.Load(ctx, rt)
	if err != nil {
		return res, err
	}
	res.Checkpoint = cur

	for {
		records, err := src.ChangedSince(ctx, cur, e.cfg.BatchSize)
		if err != nil {
			return res, fmt.Errorf("list changed %s: %w", rt, err)
		}
		if len(records) == 0 {
			break
		}

		msgs, skipped := e.project(log, rt, records)
		if err := e.publish(ctx, log, rt, msgs); err != nil {
			return res, err
		}

		last := records[len(records)-1]
		next := Cursor{UpdatedAt: last.UpdatedAt, ID: last.ID}
		if err := e.checkpoints.Save(ctx, rt, next); err != nil {
			return res, err
		}
		cur = next
		res.Checkpoint = cur
		res.Batches++
		res.Exported += len(msgs)
		res.Skipped += skipped
		e.metrics.ExportRecords(rt, outcomePublished, len(msgs))
		e.metrics.ExportRecords(rt, outcomeSkipped, skipped)

		log.Debug().Int("published", len(msgs)).Int("skipped", skipped).
			Time("checkpoint_updated_at", cur.UpdatedAt).Str("checkpoint_id", cur.ID.String()).
			Msg("batch exported")

		if len(records) < e.cfg.BatchSize {
			break
		}
	}

	log.Info().Int("exported", res.Exported).Int("skipped", res.Skipped).Int("batches", res.Batches).
		Msg("export finished")
	return res, nil
}

// project builds one message per record. A record that cannot be projected
// is logged and skipped; it never fails the batch.
func (e *Exporter) project(log zerolog.Logger, rt string, records []Record) ([]Message, int) {
	msgs := make([]Message, 0, len(records))
	skipped := 0
	for _, r := range records {
		doc, err := r.Resource.ToFHIR()
		e.metrics.ObserveProjection(rt, err)
		if err == nil {
			var body []byte
			body, err = json.Marshal(doc)
			if err == nil {
				msgs = append(msgs, Message{
					Key:          rt + "/" + r.ID.String(),
					ResourceType: rt,
					TenantID:     r.TenantID,
					Body:         body,
				})
				continue
			}
		}
		skipped++
		log.Warn().Err(err).Str("id", r.ID.String()).Msg("record skipped")
	}
	return msgs, skipped
}

func (e *Exporter) publish(ctx context.Context, log zerolog.Logger, rt string, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	var err error
	for attempt := 1; attempt <= e.cfg.RetryAttempts; attempt++ {
		start := time.Now()
		err = e.pub.Publish(ctx, msgs)
		if err == nil {
			e.metrics.ExportBatch(outcomePublished, time.Since(start))
			return nil
		}
		e.metrics.ExportBatch(outcomeFailed, time.Since(start))
		log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", e.cfg.RetryAttempts).
			Msg("publish failed")

		if attempt < e.cfg.RetryAttempts {
			if serr := e.sleep(ctx, e.cfg.RetryDelay); serr != nil {
				return fmt.Errorf("publish %s batch: %w", rt, serr)
			}
		}
	}
	e.metrics.ExportRecords(rt, outcomeFailed, len(msgs))
	return fmt.Errorf("publish %s batch after %d attempts: %w", rt, e.cfg.RetryAttempts, err)
}

package scrapeintake

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/motorbase/dtckit/engine/domain"
	"github.com/motorbase/dtckit/pkg/natsutil"
)

// SubjectScraped is the NATS subject scrapers publish Row messages on.
const SubjectScraped = "dtckit.scraped.intake"

// SubjectMergeReport is the subject merge outcomes are published on.
const SubjectMergeReport = "dtckit.merge.report"

// MergeReport summarizes one merged batch for SubjectMergeReport
// consumers.
type MergeReport struct {
	Received int       `json:"received"`
	Added    int       `json:"added"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Rejected int       `json:"rejected"`
	MergedAt time.Time `json:"merged_at"`
}

// BatchHandler receives a prepared batch of candidate records.
type BatchHandler func(ctx context.Context, recs []domain.DiagnosticCode) error

// Watch subscribes to SubjectScraped and hands prepared batches to h,
// flushing whenever batchSize rows have accumulated or flushEvery
// elapses. It blocks until ctx is done; the final partial batch is
// flushed on shutdown.
func Watch(ctx context.Context, nc *nats.Conn, batchSize int, flushEvery time.Duration, h BatchHandler, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "watch")
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushEvery <= 0 {
		flushEvery = 30 * time.Second
	}

	rows := make(chan Row, batchSize*2)
	sub, err := natsutil.SubscribeJSON(nc, SubjectScraped, log, func(_ context.Context, r Row) {
		select {
		case rows <- r:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	return consume(ctx, rows, batchSize, flushEvery, h, log)
}

// consume batches rows into h until ctx is done. On shutdown, rows already
// buffered are drained into the final flush so a clean stop loses nothing.
func consume(ctx context.Context, rows <-chan Row, batchSize int, flushEvery time.Duration, h BatchHandler, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	var pending []Row
	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		batch := Prepare(pending)
		pending = pending[:0]
		if err := h(ctx, batch); err != nil {
			log.Error("batch handler failed", "records", len(batch), "err", err)
		}
	}

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drained := false
			for !drained {
				select {
				case r := <-rows:
					pending = append(pending, r)
				default:
					drained = true
				}
			}
			flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case r := <-rows:
			pending = append(pending, r)
			if len(pending) >= batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

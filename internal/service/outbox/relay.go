package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/pixwallet/internal/logger"
	"github.com/nkiryanov/pixwallet/internal/models"
)

type eventStore interface {
	ListUnpublished(ctx context.Context, limit int) ([]models.LedgerEvent, error)
	MarkPublished(ctx context.Context, eventID int64, at time.Time) error
}

type Observer interface {
	ObserveOutbox(published int, err error)
}

// Relay periodically moves unpublished ledger events to the publisher.
// Delivery is at least once: event published but not marked is published again on the next run.
type Relay struct {
	interval  time.Duration
	batchSize int

	store     eventStore
	publisher Publisher
	logger    logger.Logger
	observer  Observer

	now func() time.Time
}

func NewRelay(store eventStore, publisher Publisher, interval time.Duration, l logger.Logger, observer Observer) *Relay {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Relay{
		interval:  interval,
		batchSize: DefaultBatchSize,
		store:     store,
		publisher: publisher,
		logger:    l.WithGroup("outbox"),
		observer:  observer,
		now:       time.Now,
	}
}

// Run relays events until context is done. Returned channel is closed when relay stopped.
func (r *Relay) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	r.logger.Debug("Starting outbox relay", "interval", r.interval, "batch_size", r.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Debug("Outbox relay stopped by context")
				return

			case <-ticker.C:
				// Full batch means more events may be waiting
				for ctx.Err() == nil {
					n, err := r.RelayOnce(ctx)
					if err != nil {
						r.logger.Error("Failed to relay ledger events", "error", err)
						break
					}
					if n < r.batchSize {
						break
					}
				}
			}
		}
	}()

	return idleStopped
}

// RelayOnce publishes one batch of events and returns how many were published
func (r *Relay) RelayOnce(ctx context.Context) (published int, err error) {
	defer func() {
		if r.observer != nil {
			r.observer.ObserveOutbox(published, err)
		}
	}()

	events, err := r.store.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, events); err != nil {
		return 0, fmt.Errorf("publish events: %w", err)
	}

	at := r.now()
	for _, e := range events {
		if err := r.store.MarkPublished(ctx, e.ID, at); err != nil {
			return published, fmt.Errorf("mark event %d published: %w", e.ID, err)
		}
		published++
	}

	r.logger.Debug("Ledger events relayed", "count", published)
	return published, nil
}

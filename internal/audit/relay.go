package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Relay drains the Postgres outbox into Kafka. It runs until its context is
// cancelled; publish failures are logged and retried on the next tick so a
// broker outage never loses events.
type Relay struct {
	store    *PostgresStore
	client   *kgo.Client
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// NewRelay builds an outbox relay. The Kafka client should have its default
// produce topic configured.
func NewRelay(store *PostgresStore, client *kgo.Client, logger *slog.Logger) *Relay {
	return &Relay{
		store:    store,
		client:   client,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "audit relay drain failed", "error", err)
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	pending, err := r.store.pending(ctx, r.batch)
	if err != nil {
		return err
	}
	for _, row := range pending {
		rec := &kgo.Record{Key: []byte(row.action), Value: row.payload}
		if err := r.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
			// Leave the row pending; the next tick retries it.
			return err
		}
		if err := r.store.markPublished(ctx, row.id); err != nil {
			return err
		}
	}
	return nil
}

package indexstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

// ReloadEvent announces that a new index was published. Every searcher
// that receives one re-reads its own configured path; Fingerprint lets a
// searcher that already serves that content skip the read.
type ReloadEvent struct {
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Source      string    `json:"source,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// HandleReloadMessage returns a kafka.MessageHandler that reloads store for
// every ReloadEvent on the index-updates topic. Undecodable messages are
// logged and committed.
func HandleReloadMessage(store *Store) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ReloadEvent](value)
		if err != nil {
			logger.Error("failed to decode reload event", "error", err, "key", string(key))
			return nil
		}
		if event.Fingerprint != "" {
			if cur, err := store.Current(); err == nil && cur.Index.Fingerprint == event.Fingerprint {
				logger.Debug("reload event for the index already served", "source", event.Source)
				return nil
			}
		}
		snap, changed, err := store.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading index on event from %s: %w", event.Source, err)
		}
		logger.Info("reload event handled",
			"source", event.Source,
			"reason", event.Reason,
			"changed", changed,
			"fingerprint", short(snap.Index.Fingerprint),
		)
		return nil
	}
}

// AnnounceReload publishes a ReloadEvent for snap so other searchers pick up
// the same index.
func AnnounceReload(ctx context.Context, pub kafka.Publisher, snap *Snapshot, path, reason string) error {
	source, _ := os.Hostname()
	event := ReloadEvent{
		Path:        path,
		Fingerprint: snap.Index.Fingerprint,
		Reason:      reason,
		Source:      source,
		Timestamp:   time.Now().UTC(),
	}
	if err := pub.Publish(ctx, kafka.Event{Key: path, Value: event}); err != nil {
		return fmt.Errorf("announcing index reload: %w", err)
	}
	return nil
}

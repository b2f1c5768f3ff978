// Package worker persists board change events consumed from the queue.
package worker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"crmtriage/internal/models"
)

// SnapshotSaver persists the post-mutation state carried by a change event
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, event *models.ChangeEvent) (bool, error)
}

// SnapshotWriter is the queue handler that writes change events to the
// database
type SnapshotWriter struct {
	repo   SnapshotSaver
	logger zerolog.Logger
}

// NewSnapshotWriter creates a new snapshot writer
func NewSnapshotWriter(repo SnapshotSaver, logger zerolog.Logger) *SnapshotWriter {
	return &SnapshotWriter{repo: repo, logger: logger}
}

// Handle persists one event. Stale and repeated events are acknowledged
// without changes.
func (w *SnapshotWriter) Handle(ctx context.Context, event *models.ChangeEvent) error {
	if event.Message.ID != event.MessageID {
		return fmt.Errorf("event message id %q does not match snapshot id %q", event.MessageID, event.Message.ID)
	}

	applied, err := w.repo.SaveSnapshot(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to save snapshot of %s: %w", event.MessageID, err)
	}

	log := w.logger.Debug()
	if !applied {
		log = w.logger.Info()
	}
	log.
		Str("board", event.BoardID).
		Str("message_id", event.MessageID).
		Str("type", string(event.Type)).
		Int("version", event.Version).
		Bool("applied", applied).
		Msg("snapshot processed")
	return nil
}

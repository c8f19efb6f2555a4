package concepts

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ViewStore advances a concept's view counter.
type ViewStore interface {
	IncrementViewCount(ctx context.Context, id uuid.UUID) error
}

// ViewRecorder records completed playbacks. Fire-and-forget: failures are
// logged, never surfaced to the viewer, never retried.
type ViewRecorder struct {
	store  ViewStore
	logger *zap.Logger
}

// NewViewRecorder creates a view recorder.
func NewViewRecorder(store ViewStore, logger *zap.Logger) *ViewRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewRecorder{store: store, logger: logger}
}

// PlaybackEnded increments the concept's view counter.
func (r *ViewRecorder) PlaybackEnded(ctx context.Context, conceptID uuid.UUID) {
	if err := r.store.IncrementViewCount(ctx, conceptID); err != nil {
		r.logger.Warn("view count increment failed",
			zap.String("concept_id", conceptID.String()),
			zap.Error(err))
	}
}

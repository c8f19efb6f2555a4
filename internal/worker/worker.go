package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reelpost/backend/pkg/queue"
)

// ObjectDeleter removes one object from the media bucket.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// CleanupProcessor processes orphan-cleanup jobs: deletes media objects that
// were uploaded during a publish whose later step failed. Deletes are
// idempotent, so a retried job may re-delete already removed keys.
type CleanupProcessor struct {
	blobs  ObjectDeleter
	queue  *queue.Queue
	logger *zap.Logger
}

// NewCleanupProcessor creates an orphan cleanup processor.
func NewCleanupProcessor(blobs ObjectDeleter, q *queue.Queue, logger *zap.Logger) *CleanupProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupProcessor{blobs: blobs, queue: q, logger: logger}
}

// Process executes one cleanup job.
func (p *CleanupProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeOrphanCleanup {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.OrphanCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	failed := 0
	for _, key := range payload.Keys {
		if err := p.blobs.DeleteObject(ctx, key); err != nil {
			p.logger.Warn("orphan delete failed",
				zap.String("publish_id", payload.PublishID),
				zap.String("key", key),
				zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to delete %d of %d objects", failed, len(payload.Keys))
	}

	p.logger.Info("orphan cleanup completed",
		zap.String("publish_id", payload.PublishID),
		zap.String("stage", payload.Stage),
		zap.Int("deleted", len(payload.Keys)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *CleanupProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("cleanup worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}

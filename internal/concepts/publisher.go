package concepts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reelpost/backend/internal/models"
	"github.com/reelpost/backend/pkg/queue"
	"github.com/reelpost/backend/pkg/storage"
)

// Pipeline stage names reported in PublishError.
const (
	PublishStageThumbnail = "thumbnail"
	PublishStageVideo     = "video"
	PublishStageConcept   = "concept"
	PublishStageSfx       = "sfx"
)

// File is one binary payload in a submission.
type File struct {
	Name        string
	ContentType string // advisory; extension fallback when empty
	Size        int64
	Body        io.Reader
}

// Submission is the immutable input for one publish run. The orchestrator
// takes no ambient state beyond it.
type Submission struct {
	UserID      uuid.UUID
	PublishID   uuid.UUID // assigned if zero
	Title       string
	Description string
	Thumbnail   *File
	Video       *File
	Sfx         []File
}

// SfxResult is the per-item outcome for one sound-effect file. The caller
// decides what to surface; a failed item never flips the overall publish
// outcome once the concept row exists.
type SfxResult struct {
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// Result is the terminal outcome of a successful publish.
type Result struct {
	Concept *models.VideoConcept `json:"concept"`
	Sfx     []SfxResult          `json:"sfx"`
}

// ValidationError reports a missing required submission field. It is raised
// before any network or store call.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// PublishError is a terminal pipeline failure carrying the stage that failed.
type PublishError struct {
	Stage string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed at stage %s: %v", e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// BlobStore uploads one payload per call and returns a public URL.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// RecordStore creates the persisted entities.
type RecordStore interface {
	CreateConcept(ctx context.Context, c *models.VideoConcept) error
	CreateSfxAsset(ctx context.Context, a *models.SfxAsset) error
}

// CleanupQueue receives orphaned-object compensation jobs.
type CleanupQueue interface {
	EnqueueOrphanCleanup(ctx context.Context, payload queue.OrphanCleanupPayload) error
}

// ProgressFunc observes progress transitions during a publish.
type ProgressFunc func(Progress)

// Publisher executes the publish pipeline for one submission: thumbnail
// upload, video upload, concept create, then best-effort sound-effect
// upload+create pairs. Steps run strictly sequential; each network call is
// bounded by stepTimeout. There is no resume: a re-submitted form is a fully
// independent run.
type Publisher struct {
	blobs       BlobStore
	records     RecordStore
	cleanup     CleanupQueue // optional; nil disables compensation
	stepTimeout time.Duration
	logger      *zap.Logger
}

// NewPublisher creates a publisher. stepTimeout <= 0 falls back to 60s.
func NewPublisher(blobs BlobStore, records RecordStore, cleanup CleanupQueue, stepTimeout time.Duration, logger *zap.Logger) *Publisher {
	if stepTimeout <= 0 {
		stepTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{blobs: blobs, records: records, cleanup: cleanup, stepTimeout: stepTimeout, logger: logger}
}

// Publish runs the pipeline and reports the terminal outcome. Validation
// failures return *ValidationError with zero side effects. Thumbnail, video
// and concept-create failures return *PublishError and enqueue cleanup for
// any objects uploaded so far. Sound-effect failures are recorded per item in
// the result and do not fail the publish.
func (p *Publisher) Publish(ctx context.Context, sub Submission, onProgress ProgressFunc) (*Result, error) {
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	if err := sub.validate(); err != nil {
		return nil, err
	}
	if sub.PublishID == uuid.Nil {
		sub.PublishID = uuid.New()
	}
	publishID := sub.PublishID.String()

	tracker := NewProgress()
	var uploaded []string // object keys not yet referenced by any record

	fail := func(stage string, err error) (*Result, error) {
		tracker = tracker.Failed()
		onProgress(tracker)
		p.compensate(ctx, publishID, stage, uploaded)
		p.logger.Error("publish failed",
			zap.String("publish_id", publishID),
			zap.String("stage", stage),
			zap.Error(err))
		return nil, &PublishError{Stage: stage, Err: err}
	}

	tracker = tracker.UploadingThumbnail()
	onProgress(tracker)
	thumbKey := storage.ThumbnailKey(publishID, sub.Thumbnail.Name)
	thumbURL, err := p.upload(ctx, thumbKey, sub.Thumbnail)
	if err != nil {
		return fail(PublishStageThumbnail, err)
	}
	uploaded = append(uploaded, thumbKey)

	tracker = tracker.UploadingVideo()
	onProgress(tracker)
	videoKey := storage.VideoKey(publishID, sub.Video.Name)
	videoURL, err := p.upload(ctx, videoKey, sub.Video)
	if err != nil {
		return fail(PublishStageVideo, err)
	}
	uploaded = append(uploaded, videoKey)

	tracker = tracker.SavingConcept()
	onProgress(tracker)
	concept := &models.VideoConcept{
		UserID:       sub.UserID,
		Title:        strings.TrimSpace(sub.Title),
		Description:  strings.TrimSpace(sub.Description),
		ThumbnailURL: thumbURL,
		VideoURL:     videoURL,
	}
	if err := p.createConcept(ctx, concept); err != nil {
		return fail(PublishStageConcept, err)
	}
	// Thumbnail and video are referenced by the concept row now.
	uploaded = nil

	results := make([]SfxResult, 0, len(sub.Sfx))
	total := len(sub.Sfx)
	for i := range sub.Sfx {
		results = append(results, p.publishSfx(ctx, publishID, concept.ID, &sub.Sfx[i]))
		tracker = tracker.UploadingSfx(i+1, total)
		onProgress(tracker)
	}

	tracker = tracker.Done()
	onProgress(tracker)
	p.logger.Info("concept published",
		zap.String("publish_id", publishID),
		zap.String("concept_id", concept.ID.String()),
		zap.Int("sfx_total", total))
	return &Result{Concept: concept, Sfx: results}, nil
}

// publishSfx uploads one sound effect and creates its child record. Failures
// are logged and returned as the item's result; an uploaded object whose
// record create failed is handed to the cleanup queue.
func (p *Publisher) publishSfx(ctx context.Context, publishID string, conceptID uuid.UUID, f *File) SfxResult {
	res := SfxResult{Name: f.Name}
	key := storage.SfxKey(publishID, f.Name)
	url, err := p.upload(ctx, key, f)
	if err != nil {
		p.logger.Warn("sfx upload failed",
			zap.String("publish_id", publishID),
			zap.String("sfx_name", f.Name),
			zap.Error(err))
		res.Error = err.Error()
		return res
	}
	asset := &models.SfxAsset{VideoConceptID: conceptID, SfxURL: url, SfxName: f.Name}
	if err := p.createSfx(ctx, asset); err != nil {
		p.logger.Warn("sfx record create failed",
			zap.String("publish_id", publishID),
			zap.String("sfx_name", f.Name),
			zap.Error(err))
		res.Error = err.Error()
		p.compensate(ctx, publishID, PublishStageSfx, []string{key})
		return res
	}
	res.URL = url
	return res
}

func (p *Publisher) upload(ctx context.Context, key string, f *File) (string, error) {
	contentType := f.ContentType
	if contentType == "" {
		contentType = storage.ContentTypeForFilename(f.Name)
	}
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	return p.blobs.Upload(stepCtx, key, contentType, f.Body, f.Size)
}

func (p *Publisher) createConcept(ctx context.Context, c *models.VideoConcept) error {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	return p.records.CreateConcept(stepCtx, c)
}

func (p *Publisher) createSfx(ctx context.Context, a *models.SfxAsset) error {
	stepCtx, cancel := context.WithTimeout(ctx, p.stepTimeout)
	defer cancel()
	return p.records.CreateSfxAsset(stepCtx, a)
}

// compensate enqueues deletion of objects no record references. Best-effort:
// a failed enqueue is logged and dropped.
func (p *Publisher) compensate(ctx context.Context, publishID, stage string, keys []string) {
	if p.cleanup == nil || len(keys) == 0 {
		return
	}
	payload := queue.OrphanCleanupPayload{PublishID: publishID, Keys: keys, Stage: stage}
	if err := p.cleanup.EnqueueOrphanCleanup(ctx, payload); err != nil {
		p.logger.Warn("orphan cleanup enqueue failed",
			zap.String("publish_id", publishID),
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}

func (s *Submission) validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return &ValidationError{msg: "title is required"}
	}
	if strings.TrimSpace(s.Description) == "" {
		return &ValidationError{msg: "description is required"}
	}
	if s.Thumbnail == nil {
		return &ValidationError{msg: "thumbnail file is required"}
	}
	if s.Video == nil {
		return &ValidationError{msg: "video file is required"}
	}
	return nil
}

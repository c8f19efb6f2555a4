package concepts

import (
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/reelpost/backend/internal/middleware"
	"github.com/reelpost/backend/internal/models"
	"github.com/reelpost/backend/pkg/response"
	"github.com/reelpost/backend/pkg/storage"
)

// Handler handles video concept HTTP endpoints.
type Handler struct {
	repo        *Repository
	publisher   *Publisher // nil when media storage is not configured
	progress    *ProgressStore
	views       *ViewRecorder
	maxSfxFiles int
	logger      *zap.Logger
}

// NewHandler creates a concepts handler.
func NewHandler(repo *Repository, publisher *Publisher, progress *ProgressStore, views *ViewRecorder, maxSfxFiles int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxSfxFiles <= 0 {
		maxSfxFiles = 10
	}
	return &Handler{repo: repo, publisher: publisher, progress: progress, views: views, maxSfxFiles: maxSfxFiles, logger: logger}
}

// Publish handles POST /concepts (multipart). Fields: title, description,
// optional publish_id; files: thumbnail, video, sfx (repeatable). Runs the
// publish pipeline synchronously; progress can be polled at
// GET /publishes/:id/progress while the request is in flight.
func (h *Handler) Publish(c *gin.Context) {
	if h.publisher == nil {
		response.ServiceUnavailable(c, "media storage not configured")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	publishID := uuid.New()
	if raw := c.PostForm("publish_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid publish_id")
			return
		}
		publishID = id
	}

	thumbFH, _ := c.FormFile("thumbnail")
	videoFH, _ := c.FormFile("video")
	var sfxFHs []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		sfxFHs = form.File["sfx"]
	}
	if len(sfxFHs) > h.maxSfxFiles {
		response.BadRequest(c, fmt.Sprintf("too many sound effects (max %d)", h.maxSfxFiles))
		return
	}
	if msg := checkFileTypes(thumbFH, videoFH, sfxFHs); msg != "" {
		response.BadRequest(c, msg)
		return
	}

	var closers []multipart.File
	defer func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}()
	openFile := func(fh *multipart.FileHeader) (*File, error) {
		if fh == nil {
			return nil, nil
		}
		rc, err := fh.Open()
		if err != nil {
			return nil, err
		}
		closers = append(closers, rc)
		return &File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        rc,
		}, nil
	}

	thumb, err := openFile(thumbFH)
	if err != nil {
		response.Internal(c, "failed to read thumbnail")
		return
	}
	video, err := openFile(videoFH)
	if err != nil {
		response.Internal(c, "failed to read video")
		return
	}
	var sfx []File
	for _, fh := range sfxFHs {
		f, err := openFile(fh)
		if err != nil {
			response.Internal(c, "failed to read sound effect")
			return
		}
		sfx = append(sfx, *f)
	}

	sub := Submission{
		UserID:      userID,
		PublishID:   publishID,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Thumbnail:   thumb,
		Video:       video,
		Sfx:         sfx,
	}

	onProgress := func(p Progress) {
		if h.progress == nil {
			return
		}
		if err := h.progress.Set(c.Request.Context(), publishID.String(), p.Snapshot()); err != nil {
			h.logger.Warn("progress snapshot write failed",
				zap.String("publish_id", publishID.String()),
				zap.Error(err))
		}
	}

	result, err := h.publisher.Publish(c.Request.Context(), sub, onProgress)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			response.BadRequest(c, vErr.Error())
			return
		}
		var pubErr *PublishError
		if errors.As(err, &pubErr) {
			response.Internal(c, "publish failed at stage "+pubErr.Stage)
			return
		}
		response.Internal(c, "publish failed")
		return
	}

	response.Created(c, gin.H{
		"publish_id":  publishID,
		"concept":     result.Concept,
		"sfx_results": result.Sfx,
	})
}

// List handles GET /concepts. Optional ?owner_id= filters to one owner.
func (h *Handler) List(c *gin.Context) {
	var ownerID *uuid.UUID
	if raw := c.Query("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid owner_id")
			return
		}
		ownerID = &id
	}

	list, err := h.repo.List(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("list concepts failed", zap.Error(err))
		response.Internal(c, "failed to list concepts")
		return
	}
	if list == nil {
		list = []models.VideoConcept{}
	}
	response.OK(c, list)
}

// GetByID handles GET /concepts/:id. Returns the concept with its sound effects.
func (h *Handler) GetByID(c *gin.Context) {
	conceptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid concept id")
		return
	}

	concept, err := h.repo.GetByID(c.Request.Context(), conceptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "concept not found")
			return
		}
		h.logger.Error("get concept failed", zap.Error(err), zap.String("concept_id", conceptID.String()))
		response.Internal(c, "failed to load concept")
		return
	}

	sfx, err := h.repo.ListSfxByConcept(c.Request.Context(), conceptID)
	if err != nil {
		h.logger.Error("list sfx failed", zap.Error(err), zap.String("concept_id", conceptID.String()))
		response.Internal(c, "failed to load sound effects")
		return
	}

	response.OK(c, gin.H{"concept": concept, "sfx_assets": sfx})
}

// View handles POST /concepts/:id/view, called when playback ends. Always
// responds 204: view counting failures are never surfaced.
func (h *Handler) View(c *gin.Context) {
	conceptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid concept id")
		return
	}
	h.views.PlaybackEnded(c.Request.Context(), conceptID)
	response.NoContent(c)
}

// Progress handles GET /publishes/:id/progress.
func (h *Handler) Progress(c *gin.Context) {
	publishID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid publish id")
		return
	}
	if h.progress == nil {
		response.ServiceUnavailable(c, "progress tracking not configured")
		return
	}
	snap, err := h.progress.Get(c.Request.Context(), publishID.String())
	if err != nil {
		h.logger.Error("progress read failed", zap.Error(err), zap.String("publish_id", publishID.String()))
		response.Internal(c, "failed to read progress")
		return
	}
	if snap == nil {
		response.NotFound(c, "no progress for this publish id")
		return
	}
	response.OK(c, snap)
}

// checkFileTypes validates MIME types and sizes of present files. Presence
// itself is validated by the publisher before any side effect.
func checkFileTypes(thumb, video *multipart.FileHeader, sfx []*multipart.FileHeader) string {
	if thumb != nil {
		if thumb.Size > storage.MaxThumbnailSize {
			return "thumbnail exceeds size limit"
		}
		if !storage.ValidateFileType(storage.AllowedImageTypes, thumb.Header.Get("Content-Type"), thumb.Filename) {
			return "invalid thumbnail type: only jpg, png, webp allowed"
		}
	}
	if video != nil {
		if video.Size > storage.MaxVideoSize {
			return "video exceeds size limit"
		}
		if !storage.ValidateFileType(storage.AllowedVideoTypes, video.Header.Get("Content-Type"), video.Filename) {
			return "invalid video type: only mp4, mov, webm allowed"
		}
	}
	for _, f := range sfx {
		if f.Size > storage.MaxSfxSize {
			return "sound effect " + f.Filename + " exceeds size limit"
		}
		if !storage.ValidateFileType(storage.AllowedAudioTypes, f.Header.Get("Content-Type"), f.Filename) {
			return "invalid sound effect type for " + f.Filename + ": only mp3, wav, ogg allowed"
		}
	}
	return ""
}

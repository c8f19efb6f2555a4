package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoConcept is a published video concept. Thumbnail and video URLs are
// always present: the publish pipeline never inserts a row before both
// uploads resolved.
type VideoConcept struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url"`
	VideoURL     string    `json:"video_url"`
	ViewCount    int       `json:"view_count"`
	CreatedAt    time.Time `json:"created_at"`
	OwnerName    string    `json:"owner_name,omitempty"` // joined from users on reads
}

// SfxAsset is a sound-effect clip attached to a video concept. It is only
// ever created after its parent concept row exists.
type SfxAsset struct {
	ID             uuid.UUID `json:"id"`
	VideoConceptID uuid.UUID `json:"video_concept_id"`
	SfxURL         string    `json:"sfx_url"`
	SfxName        string    `json:"sfx_name"`
	CreatedAt      time.Time `json:"created_at"`
}

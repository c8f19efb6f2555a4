package concepts

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reelpost/backend/internal/models"
)

// Repository handles video concept and sound-effect asset persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a concept repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateConcept inserts a new video concept. Both URLs must already be
// resolved; the table rejects nulls.
func (r *Repository) CreateConcept(ctx context.Context, c *models.VideoConcept) error {
	const q = `INSERT INTO videos (user_id, title, description, thumbnail_url, video_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, view_count, created_at`
	return r.pool.QueryRow(ctx, q, c.UserID, c.Title, c.Description, c.ThumbnailURL, c.VideoURL).
		Scan(&c.ID, &c.ViewCount, &c.CreatedAt)
}

// CreateSfxAsset inserts a sound-effect asset referencing an existing concept.
func (r *Repository) CreateSfxAsset(ctx context.Context, a *models.SfxAsset) error {
	const q = `INSERT INTO sfx_assets (video_concept_id, sfx_url, sfx_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, a.VideoConceptID, a.SfxURL, a.SfxName).
		Scan(&a.ID, &a.CreatedAt)
}

// GetByID returns a concept by ID with the owner's display name.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.VideoConcept, error) {
	const q = `SELECT v.id, v.user_id, v.title, v.description, v.thumbnail_url, v.video_url, v.view_count, v.created_at, u.display_name
		FROM videos v JOIN users u ON u.id = v.user_id
		WHERE v.id = $1`
	var c models.VideoConcept
	err := r.pool.QueryRow(ctx, q, id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.ThumbnailURL, &c.VideoURL, &c.ViewCount, &c.CreatedAt, &c.OwnerName)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns concepts joined with the owner's display name, newest first.
// ownerID, when set, restricts the listing to one owner.
func (r *Repository) List(ctx context.Context, ownerID *uuid.UUID) ([]models.VideoConcept, error) {
	base := `SELECT v.id, v.user_id, v.title, v.description, v.thumbnail_url, v.video_url, v.view_count, v.created_at, u.display_name
		FROM videos v JOIN users u ON u.id = v.user_id`
	var args []interface{}
	var cond string
	if ownerID != nil {
		cond = " WHERE v.user_id = $1"
		args = append(args, *ownerID)
	}
	rows, err := r.pool.Query(ctx, base+cond+" ORDER BY v.created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.VideoConcept
	for rows.Next() {
		var c models.VideoConcept
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.ThumbnailURL, &c.VideoURL, &c.ViewCount, &c.CreatedAt, &c.OwnerName); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// ListSfxByConcept returns the sound-effect assets of a concept in creation order.
func (r *Repository) ListSfxByConcept(ctx context.Context, conceptID uuid.UUID) ([]models.SfxAsset, error) {
	const q = `SELECT id, video_concept_id, sfx_url, sfx_name, created_at
		FROM sfx_assets WHERE video_concept_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, conceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.SfxAsset
	for rows.Next() {
		var a models.SfxAsset
		if err := rows.Scan(&a.ID, &a.VideoConceptID, &a.SfxURL, &a.SfxName, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// IncrementViewCount atomically advances a concept's view counter by one.
// Server-side increment: concurrent playbacks each land their own increment.
func (r *Repository) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE videos SET view_count = view_count + 1 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

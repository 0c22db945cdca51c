package repository

import (
	"context"
	"errors"
	"fmt"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// selects an image row joined with its owner summary; mutations wrap their
// RETURNING clause in a CTE named "i" so the same projection applies
const imageProjection = `
	SELECT i.id, i.title, i.description, i.owner_id, i.asset_url, i.asset_remote_id,
	       i.likes, i.created_at, i.updated_at,
	       u.username, u.photo_url, u.photo_remote_id
`

const imageFromJoin = imageProjection + ` FROM images i JOIN users u ON u.id = i.owner_id`

// ImageRepository handles database operations for images
type ImageRepository struct {
	db *pgxpool.Pool
}

// NewImageRepository creates a new image repository
func NewImageRepository(db *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{db: db}
}

func scanImage(row rowScanner) (*models.Image, error) {
	var image models.Image
	owner := &models.ImageOwner{}
	err := row.Scan(
		&image.ID, &image.Title, &image.Description, &image.OwnerID,
		&image.Asset.URL, &image.Asset.RemoteID,
		&image.Likes, &image.CreatedAt, &image.UpdatedAt,
		&owner.Username, &owner.ProfilePhoto.URL, &owner.ProfilePhoto.RemoteID,
	)
	if err != nil {
		return nil, err
	}
	owner.ID = image.OwnerID
	image.Owner = owner
	if image.Likes == nil {
		image.Likes = []string{}
	}
	return &image, nil
}

func (r *ImageRepository) getOne(ctx context.Context, query string, args ...any) (*models.Image, error) {
	image, err := scanImage(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(apperrors.KindNotFound, "image not found", err)
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return image, nil
}

func (r *ImageRepository) getMany(ctx context.Context, query string, args ...any) ([]*models.Image, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get images: %w", err)
	}
	defer rows.Close()

	images := make([]*models.Image, 0)
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

// Create creates a new image
func (r *ImageRepository) Create(ctx context.Context, image *models.Image) error {
	query := `
		INSERT INTO images (id, title, description, owner_id, asset_url, asset_remote_id, likes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	likes := image.Likes
	if likes == nil {
		likes = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		image.ID, image.Title, image.Description, image.OwnerID,
		image.Asset.URL, image.Asset.RemoteID, likes,
		image.CreatedAt, image.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

// GetByID retrieves an image with its owner summary
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	return r.getOne(ctx, imageFromJoin+` WHERE i.id = $1`, id)
}

// FindPage returns one page of images, newest first. Pages start at 1.
func (r *ImageRepository) FindPage(ctx context.Context, page, size int) ([]*models.Image, error) {
	offset, ok := pageOffset(page, size)
	if !ok {
		return []*models.Image{}, nil
	}
	query := imageFromJoin + `
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT $1 OFFSET $2
	`
	return r.getMany(ctx, query, size, offset)
}

// Count returns the number of images
func (r *ImageRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM images`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return total, nil
}

// FindByOwner returns every image owned by a user, newest first
func (r *ImageRepository) FindByOwner(ctx context.Context, ownerID string) ([]*models.Image, error) {
	query := imageFromJoin + `
		WHERE i.owner_id = $1
		ORDER BY i.created_at DESC, i.id DESC
	`
	return r.getMany(ctx, query, ownerID)
}

// UpdateInfo sets the title and/or description and returns the stored image.
// A nil field is left unchanged.
func (r *ImageRepository) UpdateInfo(ctx context.Context, id string, title, description *string) (*models.Image, error) {
	query := `
		WITH i AS (
			UPDATE images
			SET title = COALESCE($2, title),
			    description = COALESCE($3, description),
			    updated_at = now()
			WHERE id = $1
			RETURNING *
		)` + imageProjection + ` FROM i JOIN users u ON u.id = i.owner_id`
	return r.getOne(ctx, query, id, title, description)
}

// UpdateAsset points the image at a new remote object
func (r *ImageRepository) UpdateAsset(ctx context.Context, id string, asset models.Asset) (*models.Image, error) {
	query := `
		WITH i AS (
			UPDATE images
			SET asset_url = $2, asset_remote_id = $3, updated_at = now()
			WHERE id = $1
			RETURNING *
		)` + imageProjection + ` FROM i JOIN users u ON u.id = i.owner_id`
	return r.getOne(ctx, query, id, asset.URL, asset.RemoteID)
}

// ToggleLike adds userID to the likes set if absent and removes it if present,
// in a single statement so concurrent toggles never lose an update.
func (r *ImageRepository) ToggleLike(ctx context.Context, id, userID string) (*models.Image, error) {
	query := `
		WITH i AS (
			UPDATE images
			SET likes = CASE
				WHEN $2 = ANY(likes) THEN array_remove(likes, $2)
				ELSE array_append(likes, $2)
			END
			WHERE id = $1
			RETURNING *
		)` + imageProjection + ` FROM i JOIN users u ON u.id = i.owner_id`
	return r.getOne(ctx, query, id, userID)
}

// Delete deletes an image by ID
func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("image not found")
	}
	return nil
}

// DeleteByOwner deletes every image owned by a user
func (r *ImageRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM images WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete images: %w", err)
	}
	return result.RowsAffected(), nil
}

// RemoveLikesBy drops userID from every likes set
func (r *ImageRepository) RemoveLikesBy(ctx context.Context, userID string) error {
	query := `UPDATE images SET likes = array_remove(likes, $1) WHERE $1 = ANY(likes)`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to remove likes: %w", err)
	}
	return nil
}

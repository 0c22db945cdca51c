package services

import (
	"context"

	"picshare-backend/internal/models"
)

// UserStore is the metadata gateway for users. Every read except the
// GetCredentials* pair leaves PasswordHash empty.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetCredentialsByEmail(ctx context.Context, email string) (*models.User, error)
	GetCredentialsByID(ctx context.Context, id string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id, username, bio string) (*models.User, error)
	UpdateProfilePhoto(ctx context.Context, id string, photo models.Asset) error
	UpdatePushToken(ctx context.Context, id string, pushToken *string) error
	Delete(ctx context.Context, id string) error
}

// ImageStore is the metadata gateway for images
type ImageStore interface {
	Create(ctx context.Context, image *models.Image) error
	GetByID(ctx context.Context, id string) (*models.Image, error)
	FindPage(ctx context.Context, page, size int) ([]*models.Image, error)
	Count(ctx context.Context) (int64, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*models.Image, error)
	UpdateInfo(ctx context.Context, id string, title, description *string) (*models.Image, error)
	UpdateAsset(ctx context.Context, id string, asset models.Asset) (*models.Image, error)
	ToggleLike(ctx context.Context, id, userID string) (*models.Image, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	RemoveLikesBy(ctx context.Context, userID string) error
}

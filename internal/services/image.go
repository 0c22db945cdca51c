package services

import (
	"context"
	"time"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/auth"
	"picshare-backend/internal/models"
	"picshare-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PageSize is the number of images per listing page
const PageSize = 8

// ImageService handles image-related business logic
type ImageService struct {
	images   ImageStore
	users    UserStore
	assets   *AssetManager
	notifier Notifier
	now      func() time.Time
}

// NewImageService creates a new image service. notifier may be nil.
func NewImageService(images ImageStore, users UserStore, assets *AssetManager, notifier Notifier) *ImageService {
	return &ImageService{
		images:   images,
		users:    users,
		assets:   assets,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateImageInput is a new image post with its staged file
type CreateImageInput struct {
	Title       string
	Description string
	File        storage.LocalFile
}

// Create uploads the staged file and stores a new image owned by the caller
func (s *ImageService) Create(ctx context.Context, identity *auth.Identity, in CreateImageInput) (*models.Image, error) {
	if err := auth.Authorize(identity, auth.ActionCreateImage, auth.Target{}); err != nil {
		return nil, err
	}

	owner, err := s.users.GetByID(ctx, identity.SubjectID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	image := &models.Image{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		OwnerID:     owner.ID,
		Likes:       []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = s.assets.Create(ctx, in.File, "images/"+owner.ID, func(ctx context.Context, asset models.Asset) error {
		image.Asset = asset
		return s.images.Create(ctx, image)
	})
	if err != nil {
		return nil, err
	}

	image.Owner = &models.ImageOwner{ID: owner.ID, Username: owner.Username, ProfilePhoto: owner.ProfilePhoto}

	log.Info().Str("image_id", image.ID).Str("user_id", owner.ID).Msg("Image created")
	return image, nil
}

// List returns one page of images, newest first
func (s *ImageService) List(ctx context.Context, page int) ([]*models.Image, error) {
	if err := auth.Authorize(nil, auth.ActionListImages, auth.Target{}); err != nil {
		return nil, err
	}
	return s.images.FindPage(ctx, page, PageSize)
}

// Get retrieves an image by ID
func (s *ImageService) Get(ctx context.Context, imageID string) (*models.Image, error) {
	if err := auth.Authorize(nil, auth.ActionReadImage, auth.Target{}); err != nil {
		return nil, err
	}
	return s.images.GetByID(ctx, imageID)
}

// Count returns the number of images
func (s *ImageService) Count(ctx context.Context) (int64, error) {
	if err := auth.Authorize(nil, auth.ActionCountImages, auth.Target{}); err != nil {
		return 0, err
	}
	return s.images.Count(ctx)
}

// Delete removes an image and its remote object, returning the deleted ID
func (s *ImageService) Delete(ctx context.Context, identity *auth.Identity, imageID string) (string, error) {
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return "", err
	}
	if err := auth.Authorize(identity, auth.ActionDeleteImage, auth.Target{OwnerID: image.OwnerID}); err != nil {
		return "", err
	}

	err = s.assets.Delete(ctx, image.Asset, func(ctx context.Context) error {
		return s.images.Delete(ctx, image.ID)
	})
	if err != nil {
		return "", err
	}

	log.Info().
		Str("image_id", image.ID).
		Str("user_id", identity.SubjectID).
		Bool("admin", identity.IsAdmin).
		Msg("Image deleted")

	notify(ctx, s.notifier, image.OwnerID, Event{
		Type:       EventImageDeleted,
		ImageID:    image.ID,
		ImageTitle: image.Title,
		ActorID:    identity.SubjectID,
	})
	return image.ID, nil
}

// UpdateInfo changes the title and/or description. Nil fields are kept.
func (s *ImageService) UpdateInfo(ctx context.Context, identity *auth.Identity, imageID string, title, description *string) (*models.Image, error) {
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(identity, auth.ActionUpdateImage, auth.Target{OwnerID: image.OwnerID}); err != nil {
		return nil, err
	}
	if title == nil && description == nil {
		return nil, apperrors.Validation("nothing to update")
	}
	return s.images.UpdateInfo(ctx, image.ID, title, description)
}

// ReplaceAsset swaps the image file. The previous remote object is
// deleted only once the new one is uploaded and referenced.
func (s *ImageService) ReplaceAsset(ctx context.Context, identity *auth.Identity, imageID string, file storage.LocalFile) (*models.Image, error) {
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(identity, auth.ActionReplaceImage, auth.Target{OwnerID: image.OwnerID}); err != nil {
		return nil, err
	}

	var updated *models.Image
	_, err = s.assets.Replace(ctx, image.Asset, file, "images/"+image.OwnerID, func(ctx context.Context, asset models.Asset) error {
		var err error
		updated, err = s.images.UpdateAsset(ctx, image.ID, asset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ToggleLike adds the caller to the likes of an image, or removes them if
// they already liked it.
func (s *ImageService) ToggleLike(ctx context.Context, identity *auth.Identity, imageID string) (*models.Image, error) {
	if err := auth.Authorize(identity, auth.ActionToggleLike, auth.Target{}); err != nil {
		return nil, err
	}

	image, err := s.images.ToggleLike(ctx, imageID, identity.SubjectID)
	if err != nil {
		return nil, err
	}

	if image.LikedBy(identity.SubjectID) {
		notify(ctx, s.notifier, image.OwnerID, Event{
			Type:       EventImageLiked,
			ImageID:    image.ID,
			ImageTitle: image.Title,
			ActorID:    identity.SubjectID,
		})
	}
	return image, nil
}

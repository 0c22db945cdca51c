package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/auth"
	"picshare-backend/internal/models"
	"picshare-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createImage(t *testing.T, f *fixture, owner *auth.Identity, title string) *models.Image {
	t.Helper()
	image, err := f.imageSvc.Create(context.Background(), owner, CreateImageInput{
		Title:       title,
		Description: "desc",
		File:        stageFile(t, "photo.png", pngBytes),
	})
	require.NoError(t, err)
	return image
}

func TestImageService_Create(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.register(t, "alice")

	image := createImage(t, f, alice, "sunset")
	assert.Equal(t, alice.SubjectID, image.OwnerID)
	require.NotNil(t, image.Owner)
	assert.Equal(t, "alice", image.Owner.Username)
	assert.Empty(t, image.Likes)
	require.True(t, image.Asset.HasRemote())

	stored, err := f.imageSvc.Get(context.Background(), image.ID)
	require.NoError(t, err)
	assert.Equal(t, image.Asset, stored.Asset)

	_, err = f.imageSvc.Create(context.Background(), nil, CreateImageInput{File: stageFile(t, "a.png", pngBytes)})
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))

	ghost := &auth.Identity{SubjectID: "ghost"}
	_, err = f.imageSvc.Create(context.Background(), ghost, CreateImageInput{File: stageFile(t, "a.png", pngBytes)})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestImageService_CreateUploadFailed(t *testing.T) {
	objects := new(mockObjectStore)
	objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("s3 unavailable")).Once()
	f := newFixture(t, objects)
	alice := f.register(t, "alice")
	file := stageFile(t, "a.png", pngBytes)

	_, err := f.imageSvc.Create(context.Background(), alice, CreateImageInput{Title: "t", File: file})
	assert.Equal(t, apperrors.KindUploadFailed, apperrors.KindOf(err))

	count, err := f.imageSvc.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "no metadata record is created")
	assert.True(t, fileExists(file.Path), "staged file remains for retry")
}

func TestImageService_ListPages(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.register(t, "alice")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	f.imageSvc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	for i := 0; i < 10; i++ {
		createImage(t, f, alice, fmt.Sprintf("img-%d", i))
	}

	first, err := f.imageSvc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, first, PageSize)
	assert.Equal(t, "img-9", first[0].Title)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].CreatedAt.After(first[i].CreatedAt))
	}

	second, err := f.imageSvc.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "img-1", second[0].Title)
	assert.Equal(t, "img-0", second[1].Title)

	defaulted, err := f.imageSvc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, defaulted[0].ID)
}

func TestImageService_DeleteAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	image := createImage(t, f, alice, "mine")
	objects := f.objects.(*storage.MemoryStore)

	_, err := f.imageSvc.Delete(context.Background(), bob, image.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	_, ok := objects.Get(*image.Asset.RemoteID)
	assert.True(t, ok, "denied delete has no side effects")

	deletedID, err := f.imageSvc.Delete(context.Background(), admin(), image.ID)
	require.NoError(t, err)
	assert.Equal(t, image.ID, deletedID)
	_, ok = objects.Get(*image.Asset.RemoteID)
	assert.False(t, ok, "remote object removed")

	_, err = f.imageSvc.Get(context.Background(), image.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	events := f.notifier.For(alice.SubjectID)
	require.Len(t, events, 1)
	assert.Equal(t, EventImageDeleted, events[0].Type)
}

func TestImageService_DeleteRemoteFailureKeepsMetadata(t *testing.T) {
	objects := new(mockObjectStore)
	objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("https://cdn/a.png", nil).Once()
	objects.On("Delete", mock.Anything, mock.Anything).Return(errors.New("unreachable")).Once()
	f := newFixture(t, objects)
	alice := f.register(t, "alice")
	image := createImage(t, f, alice, "keep me")

	_, err := f.imageSvc.Delete(context.Background(), alice, image.ID)
	assert.Equal(t, apperrors.KindDeleteFailed, apperrors.KindOf(err))

	stored, err := f.imageSvc.Get(context.Background(), image.ID)
	require.NoError(t, err)
	assert.Equal(t, image.Asset, stored.Asset)
	assert.Empty(t, f.notifier.For(alice.SubjectID))
}

func TestImageService_UpdateInfo(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	image := createImage(t, f, alice, "old")
	title := "new"

	_, err := f.imageSvc.UpdateInfo(context.Background(), bob, image.ID, &title, nil)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	_, err = f.imageSvc.UpdateInfo(context.Background(), alice, image.ID, nil, nil)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	updated, err := f.imageSvc.UpdateInfo(context.Background(), alice, image.ID, &title, nil)
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "desc", updated.Description)

	_, err = f.imageSvc.UpdateInfo(context.Background(), admin(), "missing", &title, nil)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestImageService_ReplaceAsset(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	image := createImage(t, f, alice, "pic")
	objects := f.objects.(*storage.MemoryStore)

	_, err := f.imageSvc.ReplaceAsset(context.Background(), bob, image.ID, stageFile(t, "b.png", pngBytes))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	updated, err := f.imageSvc.ReplaceAsset(context.Background(), alice, image.ID, stageFile(t, "b.png", pngBytes))
	require.NoError(t, err)
	require.True(t, updated.Asset.HasRemote())
	assert.NotEqual(t, *image.Asset.RemoteID, *updated.Asset.RemoteID)

	stored, err := f.imageSvc.Get(context.Background(), image.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Asset, stored.Asset)

	_, ok := objects.Get(*updated.Asset.RemoteID)
	assert.True(t, ok)
	_, ok = objects.Get(*image.Asset.RemoteID)
	assert.False(t, ok, "previous object is deleted")
	assert.Equal(t, 1, objects.Len())
}

func TestImageService_ToggleLike(t *testing.T) {
	f := newFixture(t, nil)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	image := createImage(t, f, alice, "pic")
	ctx := context.Background()

	liked, err := f.imageSvc.ToggleLike(ctx, bob, image.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.SubjectID}, liked.Likes)

	unliked, err := f.imageSvc.ToggleLike(ctx, bob, image.ID)
	require.NoError(t, err)
	assert.Empty(t, unliked.Likes, "toggling twice restores the original state")

	_, err = f.imageSvc.ToggleLike(ctx, alice, image.ID)
	require.NoError(t, err)

	events := f.notifier.For(alice.SubjectID)
	require.Len(t, events, 1, "only likes by others are notified")
	assert.Equal(t, EventImageLiked, events[0].Type)
	assert.Equal(t, bob.SubjectID, events[0].ActorID)

	_, err = f.imageSvc.ToggleLike(ctx, nil, image.ID)
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))
	_, err = f.imageSvc.ToggleLike(ctx, bob, "missing")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

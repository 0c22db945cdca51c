package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/models"
	"picshare-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAssetManager_Inspect(t *testing.T) {
	manager := NewAssetManager(storage.NewMemoryStore(""), 64, time.Second)

	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr bool
		ext     string
	}{
		{"png", "a.PNG", pngBytes, false, ".png"},
		{"extension from content", "noext", pngBytes, false, ".png"},
		{"client extension ignored", "evil.php", pngBytes, false, ".png"},
		{"misleading image extension", "photo.jpg", pngBytes, false, ".png"},
		{"text", "a.png", []byte("just some text"), true, ""},
		{"empty", "a.png", []byte{}, true, ""},
		{"too large", "a.png", append(append([]byte{}, pngBytes...), make([]byte, 64)...), true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inspection, err := manager.Inspect(stageFile(t, tt.file, tt.data))
			if tt.wantErr {
				assert.Equal(t, apperrors.KindInvalidPayload, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "image/png", inspection.ContentType)
			assert.Equal(t, tt.ext, inspection.Extension)
		})
	}
}

func TestAssetManager_CreateSucceeds(t *testing.T) {
	objects := storage.NewMemoryStore("https://cdn.test")
	manager := NewAssetManager(objects, 0, 0)
	file := stageFile(t, "cat.png", pngBytes)

	var persisted models.Asset
	asset, err := manager.Create(context.Background(), file, "images/u1", func(ctx context.Context, a models.Asset) error {
		persisted = a
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, asset.RemoteID)
	assert.True(t, strings.HasPrefix(*asset.RemoteID, "images/u1/"))
	assert.True(t, strings.HasSuffix(*asset.RemoteID, ".png"))
	assert.Equal(t, "https://cdn.test/"+*asset.RemoteID, asset.URL)
	assert.Equal(t, asset, persisted)
	assert.False(t, fileExists(file.Path), "staged file is removed once the asset is durable")

	_, ok := objects.Get(*asset.RemoteID)
	assert.True(t, ok)
}

func TestAssetManager_CreateUploadFailedKeepsStagedFile(t *testing.T) {
	objects := new(mockObjectStore)
	objects.On("Upload", mock.Anything, mock.Anything, int64(len(pngBytes)), "image/png").
		Return("", errors.New("connection reset")).Once()
	manager := NewAssetManager(objects, 0, time.Second)
	file := stageFile(t, "cat.png", pngBytes)

	persistCalled := false
	_, err := manager.Create(context.Background(), file, "images/u1", func(context.Context, models.Asset) error {
		persistCalled = true
		return nil
	})
	assert.Equal(t, apperrors.KindUploadFailed, apperrors.KindOf(err))
	assert.False(t, persistCalled)
	assert.True(t, fileExists(file.Path))
	objects.AssertExpectations(t)
}

func TestAssetManager_CreateTimeoutIsUploadFailed(t *testing.T) {
	objects := new(mockObjectStore)
	objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", context.DeadlineExceeded).Once()
	manager := NewAssetManager(objects, 0, time.Millisecond)

	_, err := manager.Create(context.Background(), stageFile(t, "cat.png", pngBytes), "images/u1", func(context.Context, models.Asset) error {
		return nil
	})
	assert.Equal(t, apperrors.KindUploadFailed, apperrors.KindOf(err))
	assert.ErrorContains(t, err, "timed out")
}

func TestAssetManager_CreatePersistenceFailedOrphansRemote(t *testing.T) {
	objects := storage.NewMemoryStore("")
	manager := NewAssetManager(objects, 0, time.Second)
	file := stageFile(t, "cat.png", pngBytes)

	_, err := manager.Create(context.Background(), file, "images/u1", func(context.Context, models.Asset) error {
		return errors.New("db down")
	})
	assert.Equal(t, apperrors.KindPersistenceFailed, apperrors.KindOf(err))
	assert.Equal(t, 1, objects.Len(), "remote object is left for reconciliation")
	assert.True(t, fileExists(file.Path))
}

func TestAssetManager_CreateSurvivesCanceledContext(t *testing.T) {
	objects := storage.NewMemoryStore("")
	manager := NewAssetManager(objects, 0, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := manager.Create(ctx, stageFile(t, "cat.png", pngBytes), "images/u1", func(ctx context.Context, _ models.Asset) error {
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, 1, objects.Len())
}

func TestAssetManager_ReplaceDeletesPreviousAfterPersist(t *testing.T) {
	objects := new(mockObjectStore)
	manager := NewAssetManager(objects, 0, time.Second)
	oldKey := "images/u1/old.png"
	previous := models.Asset{URL: "https://cdn/old.png", RemoteID: &oldKey}

	var order []string
	objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, "image/png").
		Run(func(mock.Arguments) { order = append(order, "upload") }).
		Return("https://cdn/new.png", nil).Once()
	objects.On("Delete", mock.Anything, oldKey).
		Run(func(mock.Arguments) { order = append(order, "delete-old") }).
		Return(nil).Once()

	asset, err := manager.Replace(context.Background(), previous, stageFile(t, "new.png", pngBytes), "images/u1",
		func(context.Context, models.Asset) error {
			order = append(order, "persist")
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/new.png", asset.URL)
	assert.NotEqual(t, oldKey, *asset.RemoteID)
	assert.Equal(t, []string{"upload", "persist", "delete-old"}, order)
	objects.AssertExpectations(t)
}

func TestAssetManager_ReplaceToleratesOldDeleteFailure(t *testing.T) {
	objects := new(mockObjectStore)
	manager := NewAssetManager(objects, 0, time.Second)
	oldKey := "profiles/u1/old.png"

	objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("https://cdn/new.png", nil).Once()
	objects.On("Delete", mock.Anything, oldKey).Return(errors.New("denied")).Once()

	asset, err := manager.Replace(context.Background(), models.Asset{URL: "x", RemoteID: &oldKey},
		stageFile(t, "new.png", pngBytes), "profiles/u1", func(context.Context, models.Asset) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/new.png", asset.URL)
	objects.AssertExpectations(t)
}

func TestAssetManager_ReplaceFailedPersistKeepsPrevious(t *testing.T) {
	objects := new(mockObjectStore)
	manager := NewAssetManager(objects, 0, time.Second)
	oldKey := "images/u1/old.png"

	objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("https://cdn/new.png", nil).Once()

	_, err := manager.Replace(context.Background(), models.Asset{URL: "x", RemoteID: &oldKey},
		stageFile(t, "new.png", pngBytes), "images/u1", func(context.Context, models.Asset) error { return errors.New("db down") })
	assert.Equal(t, apperrors.KindPersistenceFailed, apperrors.KindOf(err))
	objects.AssertNotCalled(t, "Delete", mock.Anything, oldKey)
}

func TestAssetManager_ReplaceDefaultPhotoSkipsDelete(t *testing.T) {
	objects := new(mockObjectStore)
	manager := NewAssetManager(objects, 0, time.Second)
	objects.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("https://cdn/new.png", nil).Once()

	_, err := manager.Replace(context.Background(), models.DefaultProfilePhoto(),
		stageFile(t, "me.png", pngBytes), "profiles/u1", func(context.Context, models.Asset) error { return nil })
	require.NoError(t, err)
	objects.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestAssetManager_Delete(t *testing.T) {
	key := "images/u1/a.png"
	existing := models.Asset{URL: "https://cdn/a.png", RemoteID: &key}

	t.Run("remote failure keeps metadata", func(t *testing.T) {
		objects := new(mockObjectStore)
		objects.On("Delete", mock.Anything, key).Return(errors.New("unreachable")).Once()
		manager := NewAssetManager(objects, 0, time.Second)

		removed := false
		err := manager.Delete(context.Background(), existing, func(context.Context) error {
			removed = true
			return nil
		})
		assert.Equal(t, apperrors.KindDeleteFailed, apperrors.KindOf(err))
		assert.False(t, removed)
	})

	t.Run("remote then metadata", func(t *testing.T) {
		objects := new(mockObjectStore)
		objects.On("Delete", mock.Anything, key).Return(nil).Once()
		manager := NewAssetManager(objects, 0, time.Second)

		removed := false
		err := manager.Delete(context.Background(), existing, func(context.Context) error {
			removed = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, removed)
		objects.AssertExpectations(t)
	})

	t.Run("metadata failure", func(t *testing.T) {
		objects := new(mockObjectStore)
		objects.On("Delete", mock.Anything, key).Return(nil).Once()
		manager := NewAssetManager(objects, 0, time.Second)

		err := manager.Delete(context.Background(), existing, func(context.Context) error { return errors.New("db down") })
		assert.Equal(t, apperrors.KindPersistenceFailed, apperrors.KindOf(err))
	})
}

func TestAssetManager_DeleteAllForOwnerIsBestEffort(t *testing.T) {
	objects := new(mockObjectStore)
	keys := []string{"images/u1/a.png", "images/u1/b.png", "profiles/u1/p.png"}
	objects.On("DeleteMany", mock.Anything, keys).
		Return(map[string]error{"images/u1/b.png": errors.New("denied")}, nil).Once()
	manager := NewAssetManager(objects, 0, time.Second)

	removed := false
	result, err := manager.DeleteAllForOwner(context.Background(), "u1", keys, func(context.Context) error {
		removed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, removed, "metadata is removed even when some remote deletes fail")
	assert.Equal(t, 2, result.Deleted)
	assert.Contains(t, result.Failed, "images/u1/b.png")

	objects = new(mockObjectStore)
	objects.On("DeleteMany", mock.Anything, keys).Return(nil, errors.New("unreachable")).Once()
	manager = NewAssetManager(objects, 0, time.Second)
	removed = false
	result, err = manager.DeleteAllForOwner(context.Background(), "u1", keys, func(context.Context) error {
		removed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, result.Deleted)
	assert.Len(t, result.Failed, 3)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/models"
	"picshare-backend/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// MaxUploadBytes is the default upload ceiling
	MaxUploadBytes = 5 << 20
	// DefaultRemoteTimeout bounds every call to the object store
	DefaultRemoteTimeout = 30 * time.Second
)

// PersistFunc writes the metadata record that references a freshly
// uploaded asset.
type PersistFunc func(ctx context.Context, asset models.Asset) error

// RemoveFunc removes the metadata record(s) of deleted assets.
type RemoveFunc func(ctx context.Context) error

// BatchResult reports the outcome of a best-effort batch delete
type BatchResult struct {
	Deleted int
	Failed  map[string]error
}

// AssetManager moves binary assets between the local staging area, the
// remote object store and the metadata store. The two stores share no
// transaction, so every operation runs a fixed sequence of steps and logs
// the orphans a failure between steps can leave behind.
type AssetManager struct {
	store    storage.ObjectStore
	maxBytes int64
	timeout  time.Duration
}

// NewAssetManager creates an asset manager. Non-positive limits fall back
// to the defaults.
func NewAssetManager(store storage.ObjectStore, maxBytes int64, timeout time.Duration) *AssetManager {
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &AssetManager{store: store, maxBytes: maxBytes, timeout: timeout}
}

// Inspection is what Inspect learned about a staged file
type Inspection struct {
	ContentType string
	Extension   string
}

// Inspect checks that a staged file is a non-empty image under the size
// ceiling.
func (m *AssetManager) Inspect(file storage.LocalFile) (Inspection, error) {
	info, err := os.Stat(file.Path)
	if err != nil {
		return Inspection{}, apperrors.Wrap(apperrors.KindInvalidPayload, "uploaded file is missing", err)
	}
	if info.Size() == 0 {
		return Inspection{}, apperrors.InvalidPayload("uploaded file is empty")
	}
	if info.Size() > m.maxBytes {
		return Inspection{}, apperrors.InvalidPayload(fmt.Sprintf("file exceeds the %d byte limit", m.maxBytes))
	}

	mtype, err := mimetype.DetectFile(file.Path)
	if err != nil {
		return Inspection{}, apperrors.Wrap(apperrors.KindInvalidPayload, "failed to read uploaded file", err)
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return Inspection{}, apperrors.InvalidPayload("only image files are allowed")
	}

	// the key extension follows the content, the client name is a fallback
	ext := mtype.Extension()
	if ext == "" {
		ext = file.Ext()
	}
	return Inspection{ContentType: mtype.String(), Extension: ext}, nil
}

// Create uploads a staged file and persists the metadata that references
// it. On UploadFailed the staged file is left in place. On
// PersistenceFailed the uploaded object is orphaned.
func (m *AssetManager) Create(ctx context.Context, file storage.LocalFile, keyPrefix string, persist PersistFunc) (models.Asset, error) {
	ctx = context.WithoutCancel(ctx)

	inspection, err := m.Inspect(file)
	if err != nil {
		return models.Asset{}, err
	}

	asset, err := m.upload(ctx, file, keyPrefix, inspection)
	if err != nil {
		return models.Asset{}, err
	}

	if err := persist(ctx, asset); err != nil {
		log.Error().
			Err(err).
			Str("remote_id", *asset.RemoteID).
			Str("url", asset.URL).
			Msg("Orphaned remote object: metadata write failed after upload")
		return models.Asset{}, apperrors.Wrap(apperrors.KindPersistenceFailed, "failed to save asset metadata", err)
	}

	m.discard(file)
	return asset, nil
}

// Replace uploads a staged file, persists the new reference and only then
// deletes the previous remote object. A failure deleting the previous
// object is logged and does not fail the call.
func (m *AssetManager) Replace(ctx context.Context, previous models.Asset, file storage.LocalFile, keyPrefix string, persist PersistFunc) (models.Asset, error) {
	ctx = context.WithoutCancel(ctx)

	asset, err := m.Create(ctx, file, keyPrefix, persist)
	if err != nil {
		return models.Asset{}, err
	}

	if previous.HasRemote() && *previous.RemoteID != *asset.RemoteID {
		if err := m.deleteRemote(ctx, *previous.RemoteID); err != nil {
			log.Warn().
				Err(err).
				Str("remote_id", *previous.RemoteID).
				Str("url", previous.URL).
				Msg("Orphaned remote object: failed to delete replaced asset")
		}
	}
	return asset, nil
}

// Delete removes the remote object and then the metadata. If the remote
// delete fails the metadata is kept and DeleteFailed is returned.
func (m *AssetManager) Delete(ctx context.Context, existing models.Asset, remove RemoveFunc) error {
	ctx = context.WithoutCancel(ctx)

	if existing.HasRemote() {
		if err := m.deleteRemote(ctx, *existing.RemoteID); err != nil {
			return err
		}
	}

	if err := remove(ctx); err != nil {
		if existing.HasRemote() {
			log.Error().
				Err(err).
				Str("remote_id", *existing.RemoteID).
				Msg("Orphaned metadata: remote object deleted but metadata removal failed")
		}
		return apperrors.Wrap(apperrors.KindPersistenceFailed, "failed to delete asset metadata", err)
	}
	return nil
}

// DeleteAllForOwner batch-deletes the remote objects of one owner and then
// removes the metadata regardless of individual remote failures, which are
// collected in the result and logged.
func (m *AssetManager) DeleteAllForOwner(ctx context.Context, ownerID string, remoteIDs []string, remove RemoveFunc) (BatchResult, error) {
	ctx = context.WithoutCancel(ctx)
	result := BatchResult{Failed: map[string]error{}}

	if len(remoteIDs) > 0 {
		remoteCtx, cancel := context.WithTimeout(ctx, m.timeout)
		failed, err := m.store.DeleteMany(remoteCtx, remoteIDs)
		cancel()
		if err != nil {
			for _, id := range remoteIDs {
				result.Failed[id] = err
			}
		} else {
			for id, keyErr := range failed {
				result.Failed[id] = keyErr
			}
		}
		result.Deleted = len(remoteIDs) - len(result.Failed)

		for id, keyErr := range result.Failed {
			log.Warn().
				Err(keyErr).
				Str("owner_id", ownerID).
				Str("remote_id", id).
				Msg("Orphaned remote object: batch delete failed")
		}
	}

	if err := remove(ctx); err != nil {
		return result, apperrors.Wrap(apperrors.KindPersistenceFailed, "failed to delete asset metadata", err)
	}
	return result, nil
}

func (m *AssetManager) upload(ctx context.Context, file storage.LocalFile, keyPrefix string, inspection Inspection) (models.Asset, error) {
	key := fmt.Sprintf("%s/%s%s", strings.TrimSuffix(keyPrefix, "/"), uuid.New().String(), inspection.Extension)

	f, err := os.Open(file.Path)
	if err != nil {
		return models.Asset{}, apperrors.Wrap(apperrors.KindInvalidPayload, "uploaded file is missing", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return models.Asset{}, apperrors.Wrap(apperrors.KindInvalidPayload, "failed to read uploaded file", err)
	}

	remoteCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	url, err := m.store.Upload(remoteCtx, key, f, info.Size(), inspection.ContentType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.Asset{}, apperrors.Wrap(apperrors.KindUploadFailed, "remote upload timed out", err)
		}
		return models.Asset{}, apperrors.Wrap(apperrors.KindUploadFailed, "failed to upload file", err)
	}

	log.Debug().Str("remote_id", key).Str("url", url).Msg("Asset uploaded")
	return models.Asset{URL: url, RemoteID: &key}, nil
}

func (m *AssetManager) deleteRemote(ctx context.Context, key string) error {
	remoteCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := m.store.Delete(remoteCtx, key); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Wrap(apperrors.KindDeleteFailed, "remote delete timed out", err)
		}
		return apperrors.Wrap(apperrors.KindDeleteFailed, "failed to delete file", err)
	}
	return nil
}

func (m *AssetManager) discard(file storage.LocalFile) {
	if err := storage.Discard(file); err != nil {
		log.Warn().Err(err).Str("path", file.Path).Msg("Failed to remove staged file")
	}
}

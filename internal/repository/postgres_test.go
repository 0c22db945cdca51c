//go:build integration

package repository

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: PICSHARE_TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/repository/
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("PICSHARE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PICSHARE_TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, Migrate(ctx, db))
	_, err = db.Exec(ctx, `TRUNCATE images, users`)
	require.NoError(t, err)
	return db
}

func newPgUser(t *testing.T, users *UserRepository, email string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     "user",
		Email:        email,
		PasswordHash: "hash",
		ProfilePhoto: models.DefaultProfilePhoto(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func newPgImage(t *testing.T, images *ImageRepository, ownerID, title string, createdAt time.Time) *models.Image {
	t.Helper()
	key := "images/" + ownerID + "/" + uuid.New().String() + ".png"
	image := &models.Image{
		ID:          uuid.New().String(),
		Title:       title,
		Description: "desc",
		OwnerID:     ownerID,
		Asset:       models.Asset{URL: "https://cdn.test/" + key, RemoteID: &key},
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, images.Create(context.Background(), image))
	return image
}

func TestUserRepository_Postgres(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(openTestPool(t))

	alice := newPgUser(t, users, "alice@x.com")

	err := users.Create(ctx, &models.User{ID: uuid.New().String(), Email: "alice@x.com", PasswordHash: "h", ProfilePhoto: models.DefaultProfilePhoto()})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	public, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, public.PasswordHash)
	assert.False(t, public.ProfilePhoto.HasRemote())

	creds, err := users.GetCredentialsByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", creds.PasswordHash)

	_, err = users.GetByID(ctx, uuid.New().String())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	require.NoError(t, users.Delete(ctx, alice.ID))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(users.Delete(ctx, alice.ID)))
}

func TestImageRepository_PostgresPaging(t *testing.T) {
	ctx := context.Background()
	db := openTestPool(t)
	users := NewUserRepository(db)
	images := NewImageRepository(db)
	owner := newPgUser(t, users, "owner@x.com")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		newPgImage(t, images, owner.ID, fmt.Sprintf("img-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	tests := []struct {
		name  string
		page  int
		first string
		size  int
	}{
		{"first page", 1, "img-9", 8},
		{"second page", 2, "img-1", 2},
		{"zero is first page", 0, "img-9", 8},
		{"past the end", 3, "", 0},
		{"largest page", math.MaxInt, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := images.FindPage(ctx, tt.page, 8)
			require.NoError(t, err)
			require.Len(t, page, tt.size)
			if tt.size > 0 {
				assert.Equal(t, tt.first, page[0].Title)
				require.NotNil(t, page[0].Owner)
				assert.Equal(t, owner.ID, page[0].Owner.ID)
			}
		})
	}

	count, err := images.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)
}

func TestImageRepository_PostgresUpdates(t *testing.T) {
	ctx := context.Background()
	db := openTestPool(t)
	users := NewUserRepository(db)
	images := NewImageRepository(db)
	owner := newPgUser(t, users, "owner@x.com")
	image := newPgImage(t, images, owner.ID, "original", time.Now().UTC())

	title := "renamed"
	updated, err := images.UpdateInfo(ctx, image.ID, &title, nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "desc", updated.Description)

	_, err = images.UpdateInfo(ctx, uuid.New().String(), &title, nil)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	liked, err := images.ToggleLike(ctx, image.ID, "fan")
	require.NoError(t, err)
	assert.Equal(t, []string{"fan"}, liked.Likes)
	unliked, err := images.ToggleLike(ctx, image.ID, "fan")
	require.NoError(t, err)
	assert.Empty(t, unliked.Likes)

	// an even number of toggles per user leaves no like behind
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := images.ToggleLike(ctx, image.ID, fmt.Sprintf("user-%d", i%5))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	stored, err := images.GetByID(ctx, image.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Likes)

	_, err = images.ToggleLike(ctx, image.ID, "fan")
	require.NoError(t, err)
	require.NoError(t, images.RemoveLikesBy(ctx, "fan"))
	stored, err = images.GetByID(ctx, image.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Likes)

	require.NoError(t, users.Delete(ctx, owner.ID))
	_, err = images.GetByID(ctx, image.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err), "images cascade with their owner")
}

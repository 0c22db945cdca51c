package services

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"picshare-backend/internal/auth"
	"picshare-backend/internal/repository"
	"picshare-backend/internal/storage"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

// stageFile writes data into a fresh staged file
func stageFile(t *testing.T, name string, data []byte) storage.LocalFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return storage.LocalFile{Path: path, OriginalName: name, Size: int64(len(data))}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// mockObjectStore lets a test fail individual remote calls
type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockObjectStore) DeleteMany(ctx context.Context, keys []string) (map[string]error, error) {
	args := m.Called(ctx, keys)
	failed, _ := args.Get(0).(map[string]error)
	return failed, args.Error(1)
}

// recordingNotifier keeps every delivered event
type recordingNotifier struct {
	mu     sync.Mutex
	events map[string][]Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: map[string][]Event{}}
}

func (n *recordingNotifier) Notify(ctx context.Context, recipientID string, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[recipientID] = append(n.events[recipientID], event)
	return nil
}

func (n *recordingNotifier) For(userID string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[userID]
}

type fixture struct {
	users    *repository.MemoryUserStore
	images   *repository.MemoryImageStore
	objects  storage.ObjectStore
	assets   *AssetManager
	tokens   *auth.TokenManager
	notifier *recordingNotifier
	userSvc  *UserService
	imageSvc *ImageService
}

func newFixture(t *testing.T, objects storage.ObjectStore) *fixture {
	t.Helper()
	if objects == nil {
		objects = storage.NewMemoryStore("")
	}
	f := &fixture{
		users:    repository.NewMemoryUserStore(),
		objects:  objects,
		tokens:   auth.NewTokenManager("test-secret-0123456789", time.Hour),
		notifier: newRecordingNotifier(),
	}
	f.images = repository.NewMemoryImageStore(f.users)
	f.assets = NewAssetManager(objects, MaxUploadBytes, time.Second)
	f.userSvc = NewUserService(f.users, f.images, f.assets, f.tokens)
	f.userSvc.bcryptCost = bcrypt.MinCost
	f.imageSvc = NewImageService(f.images, f.users, f.assets, f.notifier)
	return f
}

// register creates a user and returns the identity its token carries
func (f *fixture) register(t *testing.T, name string) *auth.Identity {
	t.Helper()
	res, err := f.userSvc.Register(context.Background(), RegisterInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	identity, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	return identity
}

func admin() *auth.Identity {
	return &auth.Identity{SubjectID: "admin-id", IsAdmin: true}
}

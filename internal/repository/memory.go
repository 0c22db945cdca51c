package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/models"
)

// MemoryUserStore keeps users in process memory. It backs the development
// mode and the service tests.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

// NewMemoryUserStore creates an empty user store
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*models.User), now: time.Now}
}

func copyUser(u *models.User, withPassword bool) *models.User {
	c := *u
	c.ProfilePhoto = copyAsset(u.ProfilePhoto)
	if u.PushToken != nil {
		token := *u.PushToken
		c.PushToken = &token
	}
	if !withPassword {
		c.PasswordHash = ""
	}
	return &c
}

func copyAsset(a models.Asset) models.Asset {
	if a.RemoteID == nil {
		return models.Asset{URL: a.URL}
	}
	id := *a.RemoteID
	return models.Asset{URL: a.URL, RemoteID: &id}
}

// Create stores a new user
func (s *MemoryUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return apperrors.Conflict("user already registered")
		}
	}
	s.users[user.ID] = copyUser(user, true)
	return nil
}

func (s *MemoryUserStore) get(id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return copyUser(user, false), nil
}

// GetCredentialsByEmail retrieves a user including the password hash
func (s *MemoryUserStore) GetCredentialsByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return copyUser(user, true), nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

// GetCredentialsByID retrieves a user including the password hash
func (s *MemoryUserStore) GetCredentialsByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return copyUser(user, true), nil
}

// EmailExists checks if an email is already registered
func (s *MemoryUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// List returns every user, newest first
func (s *MemoryUserStore) List(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, copyUser(user, false))
	}
	sort.Slice(users, func(i, j int) bool {
		return newerFirst(users[i].CreatedAt, users[i].ID, users[j].CreatedAt, users[j].ID)
	})
	return users, nil
}

// UpdateProfile updates the username and bio and returns the stored user
func (s *MemoryUserStore) UpdateProfile(ctx context.Context, id, username, bio string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.get(id)
	if err != nil {
		return nil, err
	}
	user.Username = username
	user.Bio = bio
	user.UpdatedAt = s.now()
	return copyUser(user, false), nil
}

// UpdateProfilePhoto points the user at a new profile photo
func (s *MemoryUserStore) UpdateProfilePhoto(ctx context.Context, id string, photo models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.get(id)
	if err != nil {
		return err
	}
	user.ProfilePhoto = copyAsset(photo)
	user.UpdatedAt = s.now()
	return nil
}

// UpdatePushToken updates the push token for a user
func (s *MemoryUserStore) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, err := s.get(id)
	if err != nil {
		return err
	}
	if pushToken == nil {
		user.PushToken = nil
	} else {
		token := *pushToken
		user.PushToken = &token
	}
	user.UpdatedAt = s.now()
	return nil
}

// Delete deletes a user by ID
func (s *MemoryUserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(id); err != nil {
		return err
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryUserStore) owner(id string) (*models.ImageOwner, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return &models.ImageOwner{ID: user.ID, Username: user.Username, ProfilePhoto: copyAsset(user.ProfilePhoto)}, true
}

// MemoryImageStore keeps images in process memory. Owner summaries are
// resolved against the user store on every read, like the SQL join.
type MemoryImageStore struct {
	mu     sync.RWMutex
	images map[string]*models.Image
	users  *MemoryUserStore
	now    func() time.Time
}

// NewMemoryImageStore creates an empty image store
func NewMemoryImageStore(users *MemoryUserStore) *MemoryImageStore {
	return &MemoryImageStore{images: make(map[string]*models.Image), users: users, now: time.Now}
}

func (s *MemoryImageStore) view(image *models.Image) *models.Image {
	c := *image
	c.Asset = copyAsset(image.Asset)
	c.Likes = slices.Clone(image.Likes)
	if c.Likes == nil {
		c.Likes = []string{}
	}
	c.Owner = nil
	if owner, ok := s.users.owner(image.OwnerID); ok {
		c.Owner = owner
	}
	return &c
}

func (s *MemoryImageStore) get(id string) (*models.Image, error) {
	image, ok := s.images[id]
	if !ok {
		return nil, apperrors.NotFound("image not found")
	}
	return image, nil
}

// sorted returns the images matching keep, newest first
func (s *MemoryImageStore) sorted(keep func(*models.Image) bool) []*models.Image {
	images := make([]*models.Image, 0, len(s.images))
	for _, image := range s.images {
		if keep(image) {
			images = append(images, image)
		}
	}
	sort.Slice(images, func(i, j int) bool {
		return newerFirst(images[i].CreatedAt, images[i].ID, images[j].CreatedAt, images[j].ID)
	})
	return images
}

// Create stores a new image
func (s *MemoryImageStore) Create(ctx context.Context, image *models.Image) error {
	if _, ok := s.users.owner(image.OwnerID); !ok {
		return apperrors.NotFound("user not found")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *image
	c.Asset = copyAsset(image.Asset)
	c.Likes = slices.Clone(image.Likes)
	c.Owner = nil
	s.images[image.ID] = &c
	return nil
}

// GetByID retrieves an image with its owner summary
func (s *MemoryImageStore) GetByID(ctx context.Context, id string) (*models.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	image, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return s.view(image), nil
}

// FindPage returns one page of images, newest first. Pages start at 1.
func (s *MemoryImageStore) FindPage(ctx context.Context, page, size int) ([]*models.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sorted(func(*models.Image) bool { return true })
	start, ok := pageOffset(page, size)
	if !ok || start >= len(all) {
		return []*models.Image{}, nil
	}
	end := min(start+size, len(all))
	result := make([]*models.Image, 0, end-start)
	for _, image := range all[start:end] {
		result = append(result, s.view(image))
	}
	return result, nil
}

// Count returns the number of images
func (s *MemoryImageStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.images)), nil
}

// FindByOwner returns every image owned by a user, newest first
func (s *MemoryImageStore) FindByOwner(ctx context.Context, ownerID string) ([]*models.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owned := s.sorted(func(image *models.Image) bool { return image.OwnerID == ownerID })
	result := make([]*models.Image, 0, len(owned))
	for _, image := range owned {
		result = append(result, s.view(image))
	}
	return result, nil
}

// UpdateInfo sets the title and/or description and returns the stored image
func (s *MemoryImageStore) UpdateInfo(ctx context.Context, id string, title, description *string) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if title != nil {
		image.Title = *title
	}
	if description != nil {
		image.Description = *description
	}
	image.UpdatedAt = s.now()
	return s.view(image), nil
}

// UpdateAsset points the image at a new remote object
func (s *MemoryImageStore) UpdateAsset(ctx context.Context, id string, asset models.Asset) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, err := s.get(id)
	if err != nil {
		return nil, err
	}
	image.Asset = copyAsset(asset)
	image.UpdatedAt = s.now()
	return s.view(image), nil
}

// ToggleLike adds or removes userID from the likes set under the store lock
func (s *MemoryImageStore) ToggleLike(ctx context.Context, id, userID string) (*models.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	image, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if i := slices.Index(image.Likes, userID); i >= 0 {
		image.Likes = slices.Delete(image.Likes, i, i+1)
	} else {
		image.Likes = append(image.Likes, userID)
	}
	return s.view(image), nil
}

// Delete deletes an image by ID
func (s *MemoryImageStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(id); err != nil {
		return err
	}
	delete(s.images, id)
	return nil
}

// DeleteByOwner deletes every image owned by a user
func (s *MemoryImageStore) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, image := range s.images {
		if image.OwnerID == ownerID {
			delete(s.images, id)
			n++
		}
	}
	return n, nil
}

// RemoveLikesBy drops userID from every likes set
func (s *MemoryImageStore) RemoveLikesBy(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, image := range s.images {
		image.Likes = slices.DeleteFunc(image.Likes, func(id string) bool { return id == userID })
	}
	return nil
}

func newerFirst(aTime time.Time, aID string, bTime time.Time, bID string) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

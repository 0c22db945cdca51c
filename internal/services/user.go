package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/auth"
	"picshare-backend/internal/models"
	"picshare-backend/internal/storage"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles user-related business logic
type UserService struct {
	users      UserStore
	images     ImageStore
	assets     *AssetManager
	tokens     *auth.TokenManager
	bcryptCost int
	now        func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users UserStore, images ImageStore, assets *AssetManager, tokens *auth.TokenManager) *UserService {
	return &UserService{
		users:      users,
		images:     images,
		assets:     assets,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// RegisterInput is a new account
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UpdateProfileInput carries the new profile fields and the current
// password as confirmation
type UpdateProfileInput struct {
	Username string
	Bio      string
	Password string
}

// AuthResult is returned by register and login
type AuthResult struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	ProfilePhoto models.Asset `json:"profile_photo"`
	Bio          string       `json:"bio"`
	Token        string       `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// subjectOf returns the subject of an identity, or "" for none
func subjectOf(identity *auth.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.SubjectID
}

func (s *UserService) authResult(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{
		ID:           user.ID,
		Username:     user.Username,
		ProfilePhoto: user.ProfilePhoto,
		Bio:          user.Bio,
		Token:        token,
	}, nil
}

// Register creates an account with the default profile photo and returns
// a token for it
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("user already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     strings.TrimSpace(in.Username),
		Email:        email,
		PasswordHash: string(hash),
		ProfilePhoto: models.DefaultProfilePhoto(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	return s.authResult(user)
}

// Login checks the credentials and returns a fresh token
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetCredentialsByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.New(apperrors.KindInvalidCredentials, "invalid email or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.New(apperrors.KindInvalidCredentials, "invalid email or password")
	}
	return s.authResult(user)
}

// ListAll returns every user. Admin only.
func (s *UserService) ListAll(ctx context.Context, identity *auth.Identity) ([]*models.User, error) {
	if err := auth.Authorize(identity, auth.ActionListUsers, auth.Target{}); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// GetProfile returns a user together with the images they own
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if err := auth.Authorize(nil, auth.ActionReadProfile, auth.Target{UserID: userID}); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	images, err := s.images.FindByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{User: user, Images: images}, nil
}

// UpdateProfile changes the username and bio once the current password is
// confirmed
func (s *UserService) UpdateProfile(ctx context.Context, identity *auth.Identity, userID string, in UpdateProfileInput) (*models.User, error) {
	if err := auth.Authorize(identity, auth.ActionUpdateProfile, auth.Target{UserID: userID}); err != nil {
		return nil, err
	}

	creds, err := s.users.GetCredentialsByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperrors.New(apperrors.KindInvalidCredentials, "incorrect password")
	}

	return s.users.UpdateProfile(ctx, userID, strings.TrimSpace(in.Username), in.Bio)
}

// UploadProfilePhoto replaces the caller's profile photo
func (s *UserService) UploadProfilePhoto(ctx context.Context, identity *auth.Identity, file storage.LocalFile) (models.Asset, error) {
	userID := subjectOf(identity)
	if err := auth.Authorize(identity, auth.ActionUploadProfilePhoto, auth.Target{UserID: userID}); err != nil {
		return models.Asset{}, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return models.Asset{}, err
	}

	asset, err := s.assets.Replace(ctx, user.ProfilePhoto, file, "profiles/"+user.ID, func(ctx context.Context, asset models.Asset) error {
		return s.users.UpdateProfilePhoto(ctx, user.ID, asset)
	})
	if err != nil {
		return models.Asset{}, err
	}

	log.Info().Str("user_id", user.ID).Msg("Profile photo updated")
	return asset, nil
}

// UpdatePushToken registers the caller's device token. An empty token
// clears it.
func (s *UserService) UpdatePushToken(ctx context.Context, identity *auth.Identity, pushToken string) error {
	userID := subjectOf(identity)
	if err := auth.Authorize(identity, auth.ActionUpdatePushToken, auth.Target{UserID: userID}); err != nil {
		return err
	}

	var value *string
	if pushToken = strings.TrimSpace(pushToken); pushToken != "" {
		value = &pushToken
	}
	return s.users.UpdatePushToken(ctx, userID, value)
}

// DeleteProfile deletes an account, every image it owns and all remote
// objects behind them. Remote failures are logged and do not stop the
// deletion.
func (s *UserService) DeleteProfile(ctx context.Context, identity *auth.Identity, userID string) error {
	if err := auth.Authorize(identity, auth.ActionDeleteProfile, auth.Target{UserID: userID}); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	owned, err := s.images.FindByOwner(ctx, user.ID)
	if err != nil {
		return err
	}

	remoteIDs := make([]string, 0, len(owned)+1)
	for _, image := range owned {
		if image.Asset.HasRemote() {
			remoteIDs = append(remoteIDs, *image.Asset.RemoteID)
		}
	}
	if user.ProfilePhoto.HasRemote() {
		remoteIDs = append(remoteIDs, *user.ProfilePhoto.RemoteID)
	}

	result, err := s.assets.DeleteAllForOwner(ctx, user.ID, remoteIDs, func(ctx context.Context) error {
		if _, err := s.images.DeleteByOwner(ctx, user.ID); err != nil {
			return err
		}
		if err := s.images.RemoveLikesBy(ctx, user.ID); err != nil {
			return err
		}
		return s.users.Delete(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("user_id", user.ID).
		Int("images", len(owned)).
		Int("remote_deleted", result.Deleted).
		Int("remote_failed", len(result.Failed)).
		Msg("Profile deleted")
	return nil
}

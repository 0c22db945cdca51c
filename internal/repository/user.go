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

// public columns, password_hash is selected only by the credential lookups
const userColumns = `id, username, email, photo_url, photo_remote_id, bio, is_admin, is_verified, push_token, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row rowScanner, withPassword bool) (*models.User, error) {
	var user models.User
	dest := []any{
		&user.ID, &user.Username, &user.Email,
		&user.ProfilePhoto.URL, &user.ProfilePhoto.RemoteID,
		&user.Bio, &user.IsAdmin, &user.IsVerified, &user.PushToken,
		&user.CreatedAt, &user.UpdatedAt,
	}
	if withPassword {
		dest = append(dest, &user.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, withPassword bool, args ...any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, args...), withPassword)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(apperrors.KindNotFound, "user not found", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, photo_url, photo_remote_id, bio, is_admin, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.ProfilePhoto.URL, user.ProfilePhoto.RemoteID, user.Bio,
		user.IsAdmin, user.IsVerified, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return emailTaken(err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, false, id)
}

// GetCredentialsByEmail retrieves a user including the password hash
func (r *UserRepository) GetCredentialsByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, true, email)
}

// GetCredentialsByID retrieves a user including the password hash
func (r *UserRepository) GetCredentialsByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE id = $1`, true, id)
}

// EmailExists checks if an email is already registered
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// List retrieves every user, newest first
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// UpdateProfile updates the username and bio and returns the stored user
func (r *UserRepository) UpdateProfile(ctx context.Context, id, username, bio string) (*models.User, error) {
	query := `
		UPDATE users SET username = $2, bio = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return r.getOne(ctx, query, false, id, username, bio)
}

// UpdateProfilePhoto points the user at a new profile photo
func (r *UserRepository) UpdateProfilePhoto(ctx context.Context, id string, photo models.Asset) error {
	query := `UPDATE users SET photo_url = $2, photo_remote_id = $3, updated_at = now() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, photo.URL, photo.RemoteID)
	if err != nil {
		return fmt.Errorf("failed to update profile photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	query := `UPDATE users SET push_token = $2, updated_at = now() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, pushToken)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

// Delete deletes a user by ID. Owned images go with it through the
// foreign key.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NotFound("user not found")
	}
	return nil
}

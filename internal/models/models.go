package models

import (
	"slices"
	"time"
)

// DefaultProfilePhotoURL is assigned to users who never uploaded a photo
const DefaultProfilePhotoURL = "https://cdn.pixabay.com/photo/2015/10/05/22/37/blank-profile-picture-973460_640.png"

// Asset references a binary object kept in the remote object store.
// RemoteID is nil when no remote object backs the URL.
type Asset struct {
	URL      string  `json:"url"`
	RemoteID *string `json:"remote_id"`
}

// HasRemote reports whether the asset is backed by a remote object
func (a Asset) HasRemote() bool {
	return a.RemoteID != nil && *a.RemoteID != ""
}

// DefaultProfilePhoto returns the placeholder photo of a new account
func DefaultProfilePhoto() Asset {
	return Asset{URL: DefaultProfilePhotoURL}
}

// User represents an account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfilePhoto Asset     `json:"profile_photo"`
	Bio          string    `json:"bio"`
	IsAdmin      bool      `json:"is_admin"`
	IsVerified   bool      `json:"is_verified"`
	PushToken    *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ImageOwner is the public summary of an image's owner
type ImageOwner struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	ProfilePhoto Asset  `json:"profile_photo"`
}

// Image represents an image post
type Image struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	OwnerID     string      `json:"owner_id"`
	Owner       *ImageOwner `json:"owner,omitempty"`
	Asset       Asset       `json:"asset"`
	Likes       []string    `json:"likes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// LikedBy reports whether userID is in the likes set
func (i *Image) LikedBy(userID string) bool {
	return slices.Contains(i.Likes, userID)
}

// Profile is a user together with the images they own
type Profile struct {
	*User
	Images []*Image `json:"images"`
}

package handlers

import (
	"net/http"
	"strings"

	"picshare-backend/internal/middleware"
	"picshare-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	*Responder
	userService *services.UserService
	uploader    *Uploader
}

// NewUserHandler creates a new user handler
func NewUserHandler(rs *Responder, userService *services.UserService, uploader *Uploader) *UserHandler {
	return &UserHandler{
		Responder:   rs,
		userService: userService,
		uploader:    uploader,
	}
}

type updateProfileRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Bio      string `json:"bio" validate:"max=1000"`
	Password string `json:"password" validate:"required,min=6"`
}

func (req *updateProfileRequest) normalize() {
	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)
}

type pushTokenRequest struct {
	Token string `json:"token" validate:"max=200"`
}

// ListUsers handles GET /api/users/all
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListAll(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// GetProfile handles GET /api/users/profile/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.userService.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/users/profile/{id}
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "id"), services.UpdateProfileInput{
		Username: req.Username,
		Bio:      req.Bio,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UploadProfilePhoto handles POST /api/users/profile
func (h *UserHandler) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	up, err := h.uploader.receive(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	asset, err := h.userService.UploadProfilePhoto(r.Context(), middleware.IdentityFrom(r.Context()), up.file)
	if err != nil {
		h.uploader.settle(up.file, err)
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}

// UpdatePushToken handles PUT /api/users/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req pushTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.userService.UpdatePushToken(r.Context(), middleware.IdentityFrom(r.Context()), req.Token); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "push token updated"})
}

// DeleteProfile handles DELETE /api/users/profile/{id}
func (h *UserHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	identity := middleware.IdentityFrom(r.Context())

	if err := h.userService.DeleteProfile(r.Context(), identity, userID); err != nil {
		h.respondError(w, r, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("deleted_by", identity.SubjectID).
		Msg("Profile deleted via API")

	respondJSON(w, http.StatusOK, MessageResponse{Message: "your profile has been deleted"})
}

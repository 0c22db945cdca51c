package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"picshare-backend/internal/middleware"
	"picshare-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ImageHandler handles image-related HTTP requests
type ImageHandler struct {
	*Responder
	imageService *services.ImageService
	uploader     *Uploader
}

// NewImageHandler creates a new image handler
func NewImageHandler(rs *Responder, imageService *services.ImageService, uploader *Uploader) *ImageHandler {
	return &ImageHandler{
		Responder:    rs,
		imageService: imageService,
		uploader:     uploader,
	}
}

type createImageForm struct {
	Title       string `form:"title" validate:"required,max=200"`
	Description string `form:"description" validate:"max=2000"`
}

type updateImageRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (req *updateImageRequest) normalize() {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
}

type deletedResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// CreateImage handles POST /api/images
func (h *ImageHandler) CreateImage(w http.ResponseWriter, r *http.Request) {
	up, err := h.uploader.receive(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	form := createImageForm{}
	form.Title, _ = up.value("title")
	form.Description, _ = up.value("description")
	if err := validateStruct(&form); err != nil {
		h.uploader.release(up.file)
		h.respondError(w, r, err)
		return
	}

	image, err := h.imageService.Create(r.Context(), middleware.IdentityFrom(r.Context()), services.CreateImageInput{
		Title:       form.Title,
		Description: form.Description,
		File:        up.file,
	})
	if err != nil {
		h.uploader.settle(up.file, err)
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, image)
}

// ListImages handles GET /api/images?pageNumber=N
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	page := 1
	for _, key := range []string{"pageNumber", "page"} {
		if raw := r.URL.Query().Get(key); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil {
				page = parsed
			}
			break
		}
	}

	images, err := h.imageService.List(r.Context(), page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, images)
}

// CountImages handles GET /api/images/count
func (h *ImageHandler) CountImages(w http.ResponseWriter, r *http.Request) {
	count, err := h.imageService.Count(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, countResponse{Count: count})
}

// GetImage handles GET /api/images/{id}
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	image, err := h.imageService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, image)
}

// UpdateImageInfo handles PUT /api/images/{id}
func (h *ImageHandler) UpdateImageInfo(w http.ResponseWriter, r *http.Request) {
	var req updateImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	image, err := h.imageService.UpdateInfo(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "id"), req.Title, req.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, image)
}

// ReplaceImage handles PUT /api/images/update/{id}
func (h *ImageHandler) ReplaceImage(w http.ResponseWriter, r *http.Request) {
	up, err := h.uploader.receive(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	image, err := h.imageService.ReplaceAsset(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "id"), up.file)
	if err != nil {
		h.uploader.settle(up.file, err)
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, image)
}

// ToggleLike handles PUT /api/images/likes/{id}
func (h *ImageHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	image, err := h.imageService.ToggleLike(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, image)
}

// DeleteImage handles DELETE /api/images/{id}
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := h.imageService.Delete(r.Context(), middleware.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, deletedResponse{ID: id, Message: "image has been deleted"})
}

package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"picshare-backend/internal/apperrors"
	"picshare-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

const (
	uploadField       = "image"
	maxFormValueBytes = 64 << 10
	// room for the multipart framing and text fields around the file
	multipartOverhead = 1 << 20
)

// upload is a parsed multipart request with its file already staged on disk
type upload struct {
	file   storage.LocalFile
	values map[string]string
}

// Uploader streams the file part of multipart requests into the staging area
type Uploader struct {
	stager *storage.Stager
}

// NewUploader creates an uploader over a stager
func NewUploader(stager *storage.Stager) *Uploader {
	return &Uploader{stager: stager}
}

// receive reads a multipart/form-data request. The part named "image" is
// staged and every other part is kept as a text value. The file is required.
func (u *Uploader) receive(w http.ResponseWriter, r *http.Request) (*upload, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, apperrors.Validation("request must be multipart/form-data")
	}

	r.Body = http.MaxBytesReader(w, r.Body, u.stager.MaxBytes()+multipartOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid multipart body", err)
	}

	result := &upload{values: map[string]string{}}
	staged := false
	fail := func(err error) (*upload, error) {
		if staged {
			u.release(result.file)
		}
		return nil, err
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				return fail(apperrors.InvalidPayload(fmt.Sprintf("file exceeds the %d byte limit", u.stager.MaxBytes())))
			}
			return fail(apperrors.Wrap(apperrors.KindValidation, "invalid multipart body", err))
		}

		name := part.FormName()
		switch {
		case name == uploadField && part.FileName() != "":
			if staged {
				part.Close()
				return fail(apperrors.Validation("only one image may be uploaded"))
			}
			file, err := u.stager.Stage(part, part.FileName())
			part.Close()
			if err != nil {
				return fail(err)
			}
			result.file = file
			staged = true
		case name != "":
			data, err := io.ReadAll(io.LimitReader(part, maxFormValueBytes+1))
			part.Close()
			if err != nil {
				return fail(apperrors.Wrap(apperrors.KindValidation, "invalid multipart body", err))
			}
			if len(data) > maxFormValueBytes {
				return fail(apperrors.Validation(fmt.Sprintf("field %s is too long", name)))
			}
			result.values[name] = string(data)
		default:
			part.Close()
		}
	}

	if !staged {
		return nil, apperrors.Validation("no image provided")
	}
	return result, nil
}

// value returns a trimmed text field and whether it was sent at all
func (up *upload) value(name string) (string, bool) {
	v, ok := up.values[name]
	return strings.TrimSpace(v), ok
}

// settle removes the staged file unless the failure leaves it for retry
func (u *Uploader) settle(file storage.LocalFile, err error) {
	if err == nil {
		return
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindUploadFailed, apperrors.KindPersistenceFailed:
		log.Warn().
			Err(err).
			Str("path", file.Path).
			Msg("Staged file kept after failed upload")
	default:
		u.release(file)
	}
}

func (u *Uploader) release(file storage.LocalFile) {
	if err := storage.Discard(file); err != nil {
		log.Warn().Err(err).Str("path", file.Path).Msg("Failed to remove staged file")
	}
}

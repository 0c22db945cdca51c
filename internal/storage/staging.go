package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"picshare-backend/internal/apperrors"

	"github.com/google/uuid"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalFile is an upload staged on local disk
type LocalFile struct {
	Path         string
	OriginalName string
	Size         int64
}

// Ext returns the lower-cased extension of the original file name
func (f LocalFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.OriginalName))
}

// Stager writes incoming uploads into the staging directory, refusing
// anything larger than the upload ceiling.
type Stager struct {
	dir      string
	maxBytes int64
}

// NewStager creates the staging directory if needed
func NewStager(dir string, maxBytes int64) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Stager{dir: dir, maxBytes: maxBytes}, nil
}

// MaxBytes returns the upload ceiling
func (s *Stager) MaxBytes() int64 {
	return s.maxBytes
}

// Stage copies r into a new staging file. Oversized payloads are removed
// and reported as InvalidPayload.
func (s *Stager) Stage(r io.Reader, originalName string) (LocalFile, error) {
	name := uuid.New().String() + "-" + sanitizeName(originalName)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return LocalFile{}, fmt.Errorf("failed to create staging file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil || n > s.maxBytes {
		os.Remove(path)
		var maxBytesErr *http.MaxBytesError
		switch {
		case n > s.maxBytes, errors.As(copyErr, &maxBytesErr):
			return LocalFile{}, apperrors.InvalidPayload(fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes))
		case copyErr != nil:
			return LocalFile{}, fmt.Errorf("failed to write staging file: %w", copyErr)
		default:
			return LocalFile{}, fmt.Errorf("failed to close staging file: %w", closeErr)
		}
	}

	return LocalFile{Path: path, OriginalName: originalName, Size: n}, nil
}

// Discard removes a staged file. A file that is already gone is not an error.
func Discard(f LocalFile) error {
	if f.Path == "" {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove staging file: %w", err)
	}
	return nil
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	return name
}

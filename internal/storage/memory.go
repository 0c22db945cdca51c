package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryObject is an object held by a MemoryStore
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryStore is an in-process ObjectStore used in development mode
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string]MemoryObject
	publicURL string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(publicBaseURL string) *MemoryStore {
	if publicBaseURL == "" {
		publicBaseURL = "memory://objects"
	}
	return &MemoryStore{
		objects:   make(map[string]MemoryObject),
		publicURL: publicBaseURL,
	}
}

// Upload stores the object bytes
func (s *MemoryStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, size+1))
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("object %s: expected %d bytes, got %d", key, size, len(data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = MemoryObject{Data: data, ContentType: contentType}
	return publicURL(s.publicURL, key), nil
}

// Delete removes the object
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// DeleteMany removes every key
func (s *MemoryStore) DeleteMany(ctx context.Context, keys []string) (map[string]error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	return map[string]error{}, nil
}

// Get returns a stored object
func (s *MemoryStore) Get(key string) (MemoryObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Len returns the number of stored objects
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

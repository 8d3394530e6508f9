package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/medrecords/backend/internal/domain/providers"
)

const memoryScheme = "mem://"

type storedBlob struct {
	content     []byte
	contentType string
}

// MemoryStore is a thread-safe, in-memory BlobStore for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string]*storedBlob
	baseURL string
}

// NewMemoryStore returns a MemoryStore whose presigned URLs point at baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		blobs:   make(map[string]*storedBlob),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Put stores a copy of data
func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	content := make([]byte, len(data))
	copy(content, data)

	s.mu.Lock()
	s.blobs[key] = &storedBlob{content: content, contentType: contentType}
	s.mu.Unlock()

	return memoryScheme + key, nil
}

// Get returns a reader over the stored content
func (s *MemoryStore) Get(_ context.Context, locator string) (io.ReadCloser, error) {
	key, err := memoryKey(locator)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, providers.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.content)), nil
}

// Delete removes a blob
func (s *MemoryStore) Delete(_ context.Context, locator string) error {
	key, err := memoryKey(locator)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return providers.ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// Presign returns a fake expiring URL; the memory store does not serve downloads itself.
func (s *MemoryStore) Presign(_ context.Context, locator string, ttl time.Duration) (string, error) {
	key, err := memoryKey(locator)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	_, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return "", providers.ErrBlobNotFound
	}

	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s/%s?expires=%d", s.baseURL, url.PathEscape(key), expires), nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func memoryKey(locator string) (string, error) {
	if !strings.HasPrefix(locator, memoryScheme) {
		return "", fmt.Errorf("%w: unsupported locator %q", providers.ErrBlobNotFound, locator)
	}
	return strings.TrimPrefix(locator, memoryScheme), nil
}

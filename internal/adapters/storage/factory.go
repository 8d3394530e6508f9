package storage

import (
	"context"
	"fmt"

	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/pkg/config"
)

// MemoryBaseURL prefixes the fake presigned URLs handed out by the memory store.
const MemoryBaseURL = "http://localhost/blobs"

// New returns the blob store selected by cfg.Provider.
// The memory store lives inside one process, so it only suits tests and inline workers.
func New(ctx context.Context, cfg *config.StorageConfig) (providers.BlobStore, error) {
	switch cfg.Provider {
	case "memory":
		return NewMemoryStore(MemoryBaseURL), nil
	case "s3":
		store, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
	}
}

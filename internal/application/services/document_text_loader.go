package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	apperrors "github.com/medrecords/backend/pkg/errors"
)

const textCachePrefix = "document:text:"

// DocumentTextLoader turns a stored document into plain text, caching the result by locator.
type DocumentTextLoader struct {
	blobs providers.BlobStore
	text  *pipeline.TextExtractor
	cache providers.CacheProvider
	ttl   time.Duration
}

// NewDocumentTextLoader creates a loader. cache may be nil.
func NewDocumentTextLoader(blobs providers.BlobStore, text *pipeline.TextExtractor, cache providers.CacheProvider, ttl time.Duration) *DocumentTextLoader {
	return &DocumentTextLoader{blobs: blobs, text: text, cache: cache, ttl: ttl}
}

// Load returns the document's text. A missing blob is NOT_FOUND, undecodable content is VALIDATION.
func (l *DocumentTextLoader) Load(ctx context.Context, doc *entities.MedicalDocument) (string, error) {
	key := textCachePrefix + doc.FileLocator
	logger := observability.DocumentLogger(ctx, doc.ID, doc.PatientID)

	if l.cache != nil {
		cached, err := l.cache.Get(ctx, key)
		if err == nil {
			return string(cached), nil
		}
		if !errors.Is(err, providers.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("text cache read failed")
		}
	}

	reader, err := l.blobs.Get(ctx, doc.FileLocator)
	if errors.Is(err, providers.ErrBlobNotFound) {
		return "", apperrors.New(apperrors.ErrorTypeNotFound, fmt.Sprintf("file for document %s not found", doc.ID), err)
	}
	if err != nil {
		return "", apperrors.NewExternalError("failed to fetch document file", err)
	}
	defer reader.Close()

	blob, err := io.ReadAll(reader)
	if err != nil {
		return "", apperrors.NewExternalError("failed to read document file", err)
	}

	text, err := l.text.Extract(blob, doc.SourceHint())
	if err != nil {
		return "", err
	}

	if l.cache != nil && l.ttl > 0 {
		if err := l.cache.Set(ctx, key, []byte(text), int(l.ttl.Seconds())); err != nil {
			logger.Warn().Err(err).Msg("text cache write failed")
		}
	}
	return text, nil
}

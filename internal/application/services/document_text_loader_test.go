package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/medrecords/backend/internal/adapters/cache"
	"github.com/medrecords/backend/internal/adapters/storage"
	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/application/services"
	redisclient "github.com/medrecords/backend/internal/infrastructure/clients/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentTextLoader_CachesText(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	textCache := cache.NewRedisAdapter(redisclient.NewFromClient(client), "medrecords:")

	store := storage.NewMemoryStore("")
	doc := storeDocument(t, store, "doc-1", "P1", "\ufeffBlood pressure 120/80")
	loader := services.NewDocumentTextLoader(store, pipeline.NewTextExtractor(), textCache, 15*time.Minute)

	text, err := loader.Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Blood pressure 120/80", text)
	assert.True(t, mr.Exists("medrecords:document:text:"+doc.FileLocator))

	// Served from cache once the blob is gone.
	require.NoError(t, store.Delete(context.Background(), doc.FileLocator))
	text, err = loader.Load(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "Blood pressure 120/80", text)
}

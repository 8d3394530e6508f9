package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
}

func newTestS3Store(t *testing.T, handler http.HandlerFunc) *S3Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
	})
	return NewS3StoreFromClient(client, "records")
}

func TestS3Store_PutGetDelete(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	store := newTestS3Store(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, recordedRequest{r.Method, r.URL.Path, r.Header.Get("Content-Type")})
		mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)

		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("stored text"))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	locator, err := store.Put(ctx, "a1.txt", []byte("stored text"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "s3://records/a1.txt", locator)

	rc, err := store.Get(ctx, locator)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "stored text", string(body))

	require.NoError(t, store.Delete(ctx, locator))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 3)
	assert.Equal(t, recordedRequest{http.MethodPut, "/records/a1.txt", "text/plain"}, requests[0])
	assert.Equal(t, http.MethodGet, requests[1].method)
	assert.Equal(t, http.MethodDelete, requests[2].method)
}

func TestS3Store_GetMissingKey(t *testing.T) {
	store := newTestS3Store(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
	})

	_, err := store.Get(context.Background(), "s3://records/missing.pdf")
	assert.ErrorIs(t, err, providers.ErrBlobNotFound)
}

func TestS3Store_Presign(t *testing.T) {
	store := newTestS3Store(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("presign must not call the server, got %s %s", r.Method, r.URL.Path)
	})

	url, err := store.Presign(context.Background(), "s3://records/scan.pdf", 15*time.Minute)

	require.NoError(t, err)
	assert.Contains(t, url, "/records/scan.pdf")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

func TestParseS3Locator(t *testing.T) {
	bucket, key, err := parseS3Locator("s3://records/patients/p1/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "records", bucket)
	assert.Equal(t, "patients/p1/a.pdf", key)

	for _, bad := range []string{"mem://x", "s3://records", "s3:///key"} {
		_, _, err := parseS3Locator(bad)
		assert.ErrorIs(t, err, providers.ErrBlobNotFound, bad)
	}
}

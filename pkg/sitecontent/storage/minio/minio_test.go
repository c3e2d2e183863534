package minio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/site-content/pkg/sitecontent"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	_, err = New(Config{Bucket: "site"})
	assert.Error(t, err)
}

func TestObjectURL(t *testing.T) {
	b, err := New(Config{Endpoint: "https://storage.example.com", Bucket: "site"})
	require.NoError(t, err)
	assert.True(t, b.config.UseSSL)
	assert.Equal(t, "https://storage.example.com/site/1_a%20b.jpg", b.ObjectURL("1_a b.jpg"))

	b, err = New(Config{Endpoint: "localhost:9000", Bucket: "site", PublicURL: "https://cdn.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/1_a.jpg", b.ObjectURL("1_a.jpg"))
}

func TestPut(t *testing.T) {
	var mu sync.Mutex
	stored := map[string][]byte{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(r.URL.Path, "denied") {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message><Key>denied.jpg</Key><BucketName>site</BucketName></Error>`))
			return
		}
		mu.Lock()
		stored[r.URL.Path] = body
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	b, err := New(Config{
		Endpoint:        server.URL,
		Bucket:          "site",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
	})
	require.NoError(t, err)

	data := []byte("image bytes")
	url, err := b.Put(context.Background(), bytes.NewReader(data), sitecontent.UploadParams{
		ObjectKey: "1700_photo.jpg",
		MimeType:  "image/jpeg",
		Size:      int64(len(data)),
	})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/site/1700_photo.jpg", url)

	mu.Lock()
	_, ok := stored["/site/1700_photo.jpg"]
	mu.Unlock()
	assert.True(t, ok)

	_, err = b.Put(context.Background(), bytes.NewReader(data), sitecontent.UploadParams{
		ObjectKey: "denied.jpg",
		Size:      int64(len(data)),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sitecontent.ErrRemoteRejected)
	assert.Contains(t, err.Error(), "AccessDenied")
}

package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyFromURL(t *testing.T) {
	cases := []struct {
		raw string
		key string
		ok  bool
	}{
		{"https://s3.example.com/assets/logos/a.png", "logos/a.png", true},
		{"https://assets.s3.example.com/icons/b.svg", "icons/b.svg", true},
		{"https://cdn.example.com/other/logo.png", "", false},
		{"https://s3.example.com/assets/", "", false},
		{"not a url", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		key, ok := KeyFromURL("assets", c.raw)
		assert.Equal(t, c.ok, ok, c.raw)
		assert.Equal(t, c.key, key, c.raw)
	}
}

func TestReleaseDeletesObject(t *testing.T) {
	var mu sync.Mutex
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cli, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("key", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	m := &MinIO{client: cli, bucket: "assets"}

	require.NoError(t, m.Release(context.Background(), srv.URL+"/assets/logos/a.png"))
	require.NoError(t, m.Release(context.Background(), "https://cdn.example.com/x.png"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/assets/logos/a.png"}, deleted)
}

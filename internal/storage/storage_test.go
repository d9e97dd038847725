package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

func TestNewSupabaseStorage_MissingSetting(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		key      string
		bucket   string
		missing  string
	}{
		{"no bucket", "http://x/storage/v1", "secret", "", "STORAGE_BUCKET"},
		{"no endpoint", "", "secret", "products", "STORAGE_ENDPOINT"},
		{"no secret", "http://x/storage/v1", "", "products", "STORAGE_SECRET_KEY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSupabaseStorage(tc.endpoint, tc.key, tc.bucket, 0)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, ErrMissingConfig))
			assert.Contains(t, err.Error(), tc.missing)
		})
	}
}

func TestNewMinioStorage_MissingSettingFailsBeforeDialing(t *testing.T) {
	_, err := NewMinioStorage(context.Background(), MinioOptions{
		Endpoint:  "localhost:1",
		AccessKey: "minio",
		Bucket:    "products",
	}, zap.NewNop())
	require.ErrorIs(t, err, ErrMissingConfig)
	assert.Contains(t, err.Error(), "STORAGE_SECRET_KEY")
}

func TestSupabaseStorage_Upload(t *testing.T) {
	var gotPath, gotAuth, gotKey, gotType, gotUpsert, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		gotType = r.Header.Get("Content-Type")
		gotUpsert = r.Header.Get("x-upsert")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"products/x.png"}`))
	}))
	defer srv.Close()

	s, err := NewSupabaseStorage(srv.URL+"/storage/v1/", "secret", "products", time.Second)
	require.NoError(t, err)

	err = s.Upload(context.Background(), "produto_imagens/2024/03/x.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/products/produto_imagens/2024/03/x.png", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "png", gotBody)
}

func TestSupabaseStorage_UploadAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":"403","error":"Unauthorized","message":"new row violates row-level security policy"}`))
	}))
	defer srv.Close()

	s, err := NewSupabaseStorage(srv.URL, "secret", "products", time.Second)
	require.NoError(t, err)

	err = s.Upload(context.Background(), "a/b.png", strings.NewReader("x"), 1, "image/png")
	require.ErrorContains(t, err, `upload object "a/b.png"`)
	var apiErr *storage_go.StorageError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "new row violates row-level security policy", apiErr.Message)
}

func TestSupabaseStorage_UploadThenDeleteSendsJSON(t *testing.T) {
	var deleteType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleteType = r.Header.Get("Content-Type")
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`{"Key":"products/x.png"}`))
	}))
	defer srv.Close()

	s, err := NewSupabaseStorage(srv.URL, "secret", "products", time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Upload(context.Background(), "x.png", strings.NewReader("png"), 3, "image/png"))
	require.NoError(t, s.Delete(context.Background(), "x.png"))
	assert.Equal(t, "application/json", deleteType, "upload headers must not leak into later calls")
}

func TestSupabaseStorage_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	defer close(release)

	s, err := NewSupabaseStorage(srv.URL, "secret", "products", 50*time.Millisecond)
	require.NoError(t, err)

	err = s.Delete(context.Background(), "x.png")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSupabaseStorage_CanceledContext(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	s, err := NewSupabaseStorage(srv.URL, "secret", "products", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Delete(ctx, "x.png"), context.Canceled)
	assert.False(t, called)
}

func TestSupabaseStorage_Delete(t *testing.T) {
	var body map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/object/products", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s, err := NewSupabaseStorage(srv.URL, "secret", "products", time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "produto_imagens/2024/03/x.png"))
	assert.Equal(t, []string{"produto_imagens/2024/03/x.png"}, body["prefixes"])
}

func TestSupabaseStorage_PublicURL(t *testing.T) {
	s, err := NewSupabaseStorage("https://abc.supabase.co/storage/v1", "secret", "products", 0)
	require.NoError(t, err)

	assert.Equal(t,
		"https://abc.supabase.co/storage/v1/object/public/products/produto_imagens/2024/03/x.png",
		s.PublicURL("produto_imagens/2024/03/x.png"),
	)
}

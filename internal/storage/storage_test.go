package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"user-api/internal/config"
)

func TestLocalStorage_PutAndDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "storage")
	s := NewLocalStorage(dir, "http://127.0.0.1:8000/")
	ctx := context.Background()

	if err := s.EnsureBucket(ctx); err != nil {
		t.Fatalf("ensure bucket: %v", err)
	}
	if err := s.Put(ctx, "1-avatar.png", strings.NewReader("png-bytes"), 9, "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "1-avatar.png"))
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("expected stored object, got %q, %v", data, err)
	}
	if got := s.URL("1-avatar.png"); got != "http://127.0.0.1:8000/storage/1-avatar.png" {
		t.Fatalf("unexpected url %q", got)
	}

	if err := s.Delete(ctx, "1-avatar.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "1-avatar.png"); err != nil {
		t.Fatalf("deleting a missing object should be a no-op, got %v", err)
	}
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), "http://127.0.0.1:8000")
	for _, key := range []string{"", "..", "../etc/passwd", `a\b`} {
		if err := s.Put(context.Background(), key, strings.NewReader("x"), 1, ""); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestNewMinioClient_Validation(t *testing.T) {
	if _, err := NewMinioClient(config.MinioConfig{}); err == nil {
		t.Fatalf("expected error without endpoint")
	}
	if _, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected error without credentials")
	}

	c, err := NewMinioClient(config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "avatars",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := c.URL("1-avatar.png"); got != "http://localhost:9000/avatars/1-avatar.png" {
		t.Fatalf("unexpected url %q", got)
	}
}

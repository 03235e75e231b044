package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "reports/2024-01-15/result.csv", "reports/2024-01-15/result.csv"},
		{"customs", "reports/r.csv", "customs/reports/r.csv"},
		{"/customs/", "/reports/r.csv", "customs/reports/r.csv"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.key); got != tt.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("result.csv"); got != "text/tab-separated-values; charset=utf-8" {
		t.Errorf("contentType(result.csv) = %q", got)
	}
	if got := contentType("blob.bin"); got != "application/octet-stream" {
		t.Errorf("contentType(blob.bin) = %q", got)
	}
}

func TestNewS3Store_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
	}{
		{"missing endpoint", S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}},
		{"missing bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
		{"missing credentials", S3Config{Endpoint: "localhost:9000", Bucket: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewS3Store(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := NewS3Store(S3Config{Endpoint: "https://s3.example.com", Bucket: "b", AccessKey: "a", SecretKey: "s"}); err != nil {
		t.Errorf("NewS3Store(valid) error = %v", err)
	}
}

func TestLocalStore_Publish(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "result.csv")
	if err := os.WriteFile(src, []byte("code\tcount\tcategory\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := LocalStore{Root: filepath.Join(dir, "artifacts")}
	if err := store.Publish(context.Background(), "reports/2024-01-15/result.csv", src); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "artifacts", "reports", "2024-01-15", "result.csv"))
	if err != nil {
		t.Fatalf("read published: %v", err)
	}
	if string(got) != "code\tcount\tcategory\n" {
		t.Errorf("published content = %q", got)
	}
}

package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDisk(t *testing.T) {
	cacheDir := "/tmp/test_cache"
	ttl := time.Hour

	cache := NewDisk(cacheDir, ttl)

	if cache.cacheDir != cacheDir {
		t.Errorf("Expected cacheDir %s, got %s", cacheDir, cache.cacheDir)
	}

	if cache.ttl != ttl {
		t.Errorf("Expected TTL %v, got %v", ttl, cache.ttl)
	}
}

func TestDiskGetPath(t *testing.T) {
	cache := NewDisk("/tmp/cache", time.Hour)

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{
			name: "plain key",
			key:  "data",
			want: "/tmp/cache/data.bin",
		},
		{
			name: "namespaced key",
			key:  "tenant-a/data",
			want: "/tmp/cache/tenant-a/data.bin",
		},
		{
			name:    "escaping key",
			key:     "../../etc/data",
			wantErr: true,
		},
		{
			name:    "empty key",
			key:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cache.GetPath(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiskSetAndGet(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	cache := NewDisk(tempDir, time.Hour)

	testData := []byte(`{"items": [1, 2, 3]}`)

	// Test Set
	err := cache.Set(ctx, "test/data", testData)
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Verify file exists at the correct location
	expectedPath := filepath.Join(tempDir, "test", "data.bin")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Cache file was not created at %s", expectedPath)
	}

	// Test Get
	data, err := cache.Get(ctx, "test/data")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("Get() data = %s, want %s", string(data), string(testData))
	}

	// Overwrite
	if err := cache.Set(ctx, "test/data", []byte("second")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, err = cache.Get(ctx, "test/data")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "second" {
		t.Errorf("Get() data = %s, want second", string(data))
	}
}

func TestDiskGetMissing(t *testing.T) {
	cache := NewDisk(t.TempDir(), time.Hour)

	data, err := cache.Get(context.Background(), DataKey)
	if err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if data != nil {
		t.Errorf("Get() returned data for a missing key, want nil")
	}
}

func TestDiskGetExpired(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()
	cache := NewDisk(tempDir, 100*time.Millisecond) // Very short TTL

	// Set data
	err := cache.Set(ctx, "expired", []byte("test data"))
	if err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Wait for expiration
	time.Sleep(200 * time.Millisecond)

	// Try to get expired data
	data, err := cache.Get(ctx, "expired")
	if err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if data != nil {
		t.Errorf("Get() returned data for expired cache, want nil")
	}

	// Verify file was deleted
	if _, err := os.Stat(filepath.Join(tempDir, "expired.bin")); !os.IsNotExist(err) {
		t.Errorf("Expired cache file should have been deleted")
	}
}

func TestDiskInit(t *testing.T) {
	tempDir := t.TempDir()
	cacheDir := filepath.Join(tempDir, "new", "cache", "dir")

	cache := NewDisk(cacheDir, time.Hour)

	err := cache.Init(context.Background())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	// Verify directory was created
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Fatalf("Cache directory was not created")
	}
}

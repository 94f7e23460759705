package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DiskCache implements Store for disk-based caching, one file per key
type DiskCache struct {
	cacheDir string
	ttl      time.Duration
}

// NewDisk creates a new disk cache
func NewDisk(cacheDir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		cacheDir: cacheDir,
		ttl:      ttl,
	}
}

// GetPath returns the file backing a key: /cache_folder/key.bin
func (d *DiskCache) GetPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty cache key")
	}

	path := filepath.Join(d.cacheDir, filepath.FromSlash(key)+".bin")
	rel, err := filepath.Rel(d.cacheDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("cache key %q escapes the cache folder", key)
	}
	return path, nil
}

// Get retrieves cached data if it exists and is not expired
func (d *DiskCache) Get(_ context.Context, key string) ([]byte, error) {
	cachePath, err := d.GetPath(key)
	if err != nil {
		return nil, err
	}

	// Check if cache file exists and is not expired
	info, err := os.Stat(cachePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat cache file: %w", err)
	}

	if isExpired(info.ModTime(), d.ttl) {
		// Cache expired, remove it
		if err := os.Remove(cachePath); err != nil {
			logrus.Errorf("Failed to remove expired cache file %s: %v", cachePath, err)
		}
		return nil, nil
	}

	data, err := os.ReadFile(cachePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	return data, nil
}

// Set stores data in the cache. The file is replaced atomically.
func (d *DiskCache) Set(_ context.Context, key string, value []byte) error {
	cachePath, err := d.GetPath(key)
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(cachePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	logrus.Debugf("Cached data: %s", cachePath)
	return nil
}

// Init ensures the cache directory exists
func (d *DiskCache) Init(context.Context) error {
	return os.MkdirAll(d.cacheDir, 0755)
}

// Close is a no-op
func (d *DiskCache) Close() error {
	return nil
}

package cache

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Cache is a file-backed key/value cache with a fixed TTL. Entries older
// than the TTL are treated as missing and removed on read.
type Cache struct {
	dir string
	ttl time.Duration
	mu  sync.RWMutex
}

type entry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func New(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		dir = "cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	path := c.path(key)
	b, err := os.ReadFile(path)
	c.mu.RUnlock()
	if err != nil {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(b, &e); err != nil || e.Key != key {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.Timestamp) > c.ttl {
		c.mu.Lock()
		os.Remove(path)
		c.mu.Unlock()
		return nil, false
	}
	return e.Data, true
}

func (c *Cache) Set(key string, data []byte) error {
	b, err := json.Marshal(entry{Key: key, Data: data, Timestamp: time.Now()})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path(key))
}

// CleanupExpired removes entries whose files are older than the TTL.
func (c *Cache) CleanupExpired() error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > c.ttl {
			os.Remove(filepath.Join(c.dir, f.Name()))
		}
	}
	return nil
}

// GetOrFetch returns the cached value for key, or calls fetch and caches
// its result. A failed write is not an error; the fresh data is returned.
func (c *Cache) GetOrFetch(key string, fetch func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(key); ok {
		return data, true, nil
	}
	data, err := fetch()
	if err != nil {
		return nil, false, err
	}
	_ = c.Set(key, data)
	return data, false, nil
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "|")
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%x.json", md5.Sum([]byte(key))))
}

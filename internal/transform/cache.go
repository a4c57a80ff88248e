package transform

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCacheChecksum indicates a cache entry whose payload does not match
// its stored checksum. Callers treat the entry as absent and rebuild.
var ErrCacheChecksum = errors.New("transform: cache checksum mismatch")

// ErrCacheMiss indicates an absent cache entry.
var ErrCacheMiss = errors.New("transform: cache miss")

const doneMarker = "done"

// Cache stores pre-transformed samples on disk, keyed by a hash of the
// transform configuration. Entries are gob payloads prefixed with a
// SHA-256 checksum. A `done` marker file is written only after every
// entry of a dataset has been stored, so a partially populated cache is
// never observed as complete; concurrent first-time preprocessing may
// duplicate work but cannot yield a corrupt cache.
type Cache struct {
	dir string
}

// NewCache opens (creating if needed) the cache directory for the
// given configuration key.
func NewCache(root, key string) (*Cache, error) {
	dir := filepath.Join(root, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transform: create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// ConfigKey hashes the given configuration strings into a stable cache
// key.
func ConfigKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// Complete reports whether the done marker is present.
func (c *Cache) Complete() bool {
	_, err := os.Stat(filepath.Join(c.dir, doneMarker))
	return err == nil
}

// MarkComplete writes the done marker. Call only after every entry has
// been stored.
func (c *Cache) MarkComplete() error {
	if err := os.WriteFile(filepath.Join(c.dir, doneMarker), nil, 0o644); err != nil {
		return fmt.Errorf("transform: write done marker: %w", err)
	}
	return nil
}

// Store gob-encodes v under name with a checksum prefix.
func (c *Cache) Store(name string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("transform: encode cache entry %s: %w", name, err)
	}
	sum := sha256.Sum256(buf.Bytes())
	out := make([]byte, 0, len(sum)+buf.Len())
	out = append(out, sum[:]...)
	out = append(out, buf.Bytes()...)
	if err := os.WriteFile(filepath.Join(c.dir, name), out, 0o644); err != nil {
		return fmt.Errorf("transform: write cache entry %s: %w", name, err)
	}
	return nil
}

// Load decodes the named entry into v. Returns ErrCacheMiss if absent
// and ErrCacheChecksum if the payload fails verification.
func (c *Cache) Load(name string, v any) error {
	raw, err := os.ReadFile(filepath.Join(c.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCacheMiss
		}
		return fmt.Errorf("transform: read cache entry %s: %w", name, err)
	}
	if len(raw) < sha256.Size {
		return ErrCacheChecksum
	}
	var stored [sha256.Size]byte
	copy(stored[:], raw[:sha256.Size])
	payload := raw[sha256.Size:]
	if sha256.Sum256(payload) != stored {
		return ErrCacheChecksum
	}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		return fmt.Errorf("transform: decode cache entry %s: %w", name, err)
	}
	return nil
}

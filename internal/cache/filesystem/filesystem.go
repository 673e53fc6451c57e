/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package filesystem implements a cache.Provider backed by flat files on
// disk, one per key, with the expiry recorded in a small fixed header.
package filesystem

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/Comcast/sos-origin/internal/cache"
)

// Cache is a directory-backed cache.Provider.
type Cache struct {
	path string
}

// New returns a Cache rooted at path, creating it if necessary.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Connect ensures the cache directory exists.
func (c *Cache) Connect() error {
	return os.MkdirAll(c.path, 0o755)
}

func (c *Cache) filename(key string) string {
	h := sha1.Sum([]byte(key))
	return filepath.Join(c.path, hex.EncodeToString(h[:]))
}

// Store implements cache.Provider. The file format is an 8-byte big-endian
// unix-nanosecond expiry timestamp (0 for no expiry) followed by the raw value.
func (c *Cache) Store(_ context.Context, key string, data []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, expires); err != nil {
		return err
	}
	buf.Write(data)
	return os.WriteFile(c.filename(key), buf.Bytes(), 0o644)
}

// Retrieve implements cache.Provider.
func (c *Cache) Retrieve(_ context.Context, key string) ([]byte, error) {
	raw, err := os.ReadFile(c.filename(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cache.ErrKeyNotFound
		}
		return nil, err
	}
	if len(raw) < 8 {
		return nil, cache.ErrKeyNotFound
	}
	expires := int64(binary.BigEndian.Uint64(raw[:8]))
	if expires != 0 && time.Now().UnixNano() > expires {
		_ = os.Remove(c.filename(key))
		return nil, cache.ErrKeyNotFound
	}
	return raw[8:], nil
}

// Remove implements cache.Provider.
func (c *Cache) Remove(_ context.Context, key string) error {
	err := os.Remove(c.filename(key))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close implements cache.Provider; the filesystem backend holds no
// persistent handles.
func (c *Cache) Close() error { return nil }

// Name implements cache.Provider.
func (c *Cache) Name() string { return "filesystem" }

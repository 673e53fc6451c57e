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

// Package bbolt implements a cache.Provider backed by an embedded bbolt
// key/value database file.
package bbolt

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/coreos/bbolt"

	"github.com/Comcast/sos-origin/internal/cache"
)

// Cache is a bbolt-backed cache.Provider.
type Cache struct {
	filename string
	bucket   []byte
	db       *bolt.DB
}

// New returns a Cache that will open filename and use bucket as its root bucket.
func New(filename, bucket string) *Cache {
	return &Cache{filename: filename, bucket: []byte(bucket)}
}

// Connect opens the bbolt file and creates the root bucket if missing.
func (c *Cache) Connect() error {
	db, err := bolt.Open(c.filename, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return err
	}
	c.db = db
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(c.bucket)
		return err
	})
}

// Store implements cache.Provider. The value format is an 8-byte big-endian
// unix-nanosecond expiry timestamp (0 for no expiry) followed by the raw value.
func (c *Cache) Store(_ context.Context, key string, data []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf[:8], uint64(expires))
	copy(buf[8:], data)
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Put([]byte(key), buf)
	})
}

// Retrieve implements cache.Provider.
func (c *Cache) Retrieve(_ context.Context, key string) ([]byte, error) {
	var out []byte
	var expired bool
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(c.bucket).Get([]byte(key))
		if v == nil {
			return cache.ErrKeyNotFound
		}
		if len(v) < 8 {
			return cache.ErrKeyNotFound
		}
		expires := int64(binary.BigEndian.Uint64(v[:8]))
		if expires != 0 && time.Now().UnixNano() > expires {
			expired = true
			return nil
		}
		out = append([]byte(nil), v[8:]...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		_ = c.Remove(context.Background(), key)
		return nil, cache.ErrKeyNotFound
	}
	return out, nil
}

// Remove implements cache.Provider.
func (c *Cache) Remove(_ context.Context, key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(c.bucket).Delete([]byte(key))
	})
}

// Close implements cache.Provider.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Name implements cache.Provider.
func (c *Cache) Name() string { return "bbolt" }

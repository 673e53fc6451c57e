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

// Package badger implements a cache.Provider backed by an embedded badger
// key/value store, which natively supports per-key TTLs.
package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/Comcast/sos-origin/internal/cache"
)

// Cache is a badger-backed cache.Provider.
type Cache struct {
	dir      string
	valueDir string
	db       *badger.DB
}

// New returns a Cache that will open its store under dir (and valueDir for
// value-log files, typically the same path).
func New(dir, valueDir string) *Cache {
	if valueDir == "" {
		valueDir = dir
	}
	return &Cache{dir: dir, valueDir: valueDir}
}

// Connect opens the badger store.
func (c *Cache) Connect() error {
	opts := badger.DefaultOptions
	opts.Dir = c.dir
	opts.ValueDir = c.valueDir
	db, err := badger.Open(opts)
	if err != nil {
		return err
	}
	c.db = db
	return nil
}

// Store implements cache.Provider, relying on badger's native per-entry TTL.
func (c *Cache) Store(_ context.Context, key string, data []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Retrieve implements cache.Provider.
func (c *Cache) Retrieve(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return cache.ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove implements cache.Provider.
func (c *Cache) Remove(_ context.Context, key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
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
func (c *Cache) Name() string { return "badger" }

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

// Package memory implements an in-process, in-memory cache.Provider with a
// background reaper goroutine that periodically sweeps expired entries.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Comcast/sos-origin/internal/cache"
)

type record struct {
	data    []byte
	expires time.Time
}

// Cache is a mutex-guarded map-backed cache.Provider.
type Cache struct {
	mtx  sync.RWMutex
	data map[string]record

	reapInterval time.Duration
	closeCh      chan struct{}
	closeOnce    sync.Once
}

// New returns a Cache that reaps expired entries every reapInterval.
func New(reapInterval time.Duration) *Cache {
	if reapInterval <= 0 {
		reapInterval = 3 * time.Second
	}
	return &Cache{
		data:         make(map[string]record),
		reapInterval: reapInterval,
		closeCh:      make(chan struct{}),
	}
}

// Connect starts the reaper goroutine.
func (c *Cache) Connect() error {
	go c.reapLoop()
	return nil
}

func (c *Cache) reapLoop() {
	t := time.NewTicker(c.reapInterval)
	defer t.Stop()
	for {
		select {
		case <-c.closeCh:
			return
		case <-t.C:
			c.reap()
		}
	}
}

func (c *Cache) reap() {
	now := time.Now()
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for k, r := range c.data {
		if !r.expires.IsZero() && now.After(r.expires) {
			delete(c.data, k)
		}
	}
}

// Store implements cache.Provider.
func (c *Cache) Store(_ context.Context, key string, data []byte, ttl time.Duration) error {
	r := record{data: append([]byte(nil), data...)}
	if ttl > 0 {
		r.expires = time.Now().Add(ttl)
	}
	c.mtx.Lock()
	c.data[key] = r
	c.mtx.Unlock()
	return nil
}

// Retrieve implements cache.Provider.
func (c *Cache) Retrieve(_ context.Context, key string) ([]byte, error) {
	c.mtx.RLock()
	r, ok := c.data[key]
	c.mtx.RUnlock()
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	if !r.expires.IsZero() && time.Now().After(r.expires) {
		c.mtx.Lock()
		delete(c.data, key)
		c.mtx.Unlock()
		return nil, cache.ErrKeyNotFound
	}
	return r.data, nil
}

// Remove implements cache.Provider.
func (c *Cache) Remove(_ context.Context, key string) error {
	c.mtx.Lock()
	delete(c.data, key)
	c.mtx.Unlock()
	return nil
}

// Close implements cache.Provider.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })
	return nil
}

// Name implements cache.Provider.
func (c *Cache) Name() string { return "memory" }

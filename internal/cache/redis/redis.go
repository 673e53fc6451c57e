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

// Package redis implements a cache.Provider over go-redis, supporting the
// standard, cluster, and sentinel client topologies.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"

	"github.com/Comcast/sos-origin/internal/cache"
	"github.com/Comcast/sos-origin/internal/config"
)

// client is the subset of the three go-redis client types this package uses.
type client interface {
	Get(key string) *redis.StringCmd
	Set(key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(keys ...string) *redis.IntCmd
	Ping() *redis.StatusCmd
	Close() error
}

// Cache is a redis-backed cache.Provider.
type Cache struct {
	cfg config.RedisCacheConfig
	c   client
}

// New returns a Cache configured from cfg. The concrete go-redis client is
// constructed lazily in Connect so tests can substitute cfg.Endpoint with a
// miniredis address without touching production wiring.
func New(cfg config.RedisCacheConfig) *Cache {
	return &Cache{cfg: cfg}
}

// Connect builds the go-redis client selected by cfg.ClientType and pings it.
func (c *Cache) Connect() error {
	switch c.cfg.ClientType {
	case "cluster":
		c.c = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:      c.cfg.Endpoints,
			Password:   c.cfg.Password,
			MaxRetries: c.cfg.MaxRetries,
			PoolSize:   c.cfg.PoolSize,
		})
	case "sentinel":
		c.c = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    c.cfg.SentinelMaster,
			SentinelAddrs: c.cfg.Endpoints,
			Password:      c.cfg.Password,
			DB:            c.cfg.DB,
			MaxRetries:    c.cfg.MaxRetries,
			PoolSize:      c.cfg.PoolSize,
		})
	default:
		c.c = redis.NewClient(&redis.Options{
			Addr:       c.cfg.Endpoint,
			Password:   c.cfg.Password,
			DB:         c.cfg.DB,
			MaxRetries: c.cfg.MaxRetries,
			PoolSize:   c.cfg.PoolSize,
		})
	}
	return c.c.Ping().Err()
}

// Store implements cache.Provider.
func (c *Cache) Store(_ context.Context, key string, data []byte, ttl time.Duration) error {
	return c.c.Set(key, data, ttl).Err()
}

// Retrieve implements cache.Provider.
func (c *Cache) Retrieve(_ context.Context, key string) ([]byte, error) {
	v, err := c.c.Get(key).Bytes()
	if err == redis.Nil {
		return nil, cache.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, nil
}

// Remove implements cache.Provider.
func (c *Cache) Remove(_ context.Context, key string) error {
	return c.c.Del(key).Err()
}

// Close implements cache.Provider.
func (c *Cache) Close() error {
	if c.c == nil {
		return nil
	}
	return c.c.Close()
}

// Name implements cache.Provider.
func (c *Cache) Name() string { return "redis" }

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

package config

import "time"

// CacheType enumerates the supported cache backend implementations.
type CacheType int

const (
	CacheTypeMemory CacheType = iota
	CacheTypeFilesystem
	CacheTypeBbolt
	CacheTypeBadger
	CacheTypeRedis
)

var cacheTypeNames = []string{"memory", "filesystem", "bbolt", "badger", "redis"}

// CacheTypeNames maps a configured cache_type string to its CacheType.
var CacheTypeNames = map[string]CacheType{
	cacheTypeNames[CacheTypeMemory]:     CacheTypeMemory,
	cacheTypeNames[CacheTypeFilesystem]: CacheTypeFilesystem,
	cacheTypeNames[CacheTypeBbolt]:      CacheTypeBbolt,
	cacheTypeNames[CacheTypeBadger]:     CacheTypeBadger,
	cacheTypeNames[CacheTypeRedis]:      CacheTypeRedis,
}

func (t CacheType) String() string {
	if t < CacheTypeMemory || t > CacheTypeRedis {
		return "unknown-cache-type"
	}
	return cacheTypeNames[t]
}

// CachingConfig describes one named cache used to memoize container metadata.
type CachingConfig struct {
	// Name is the key under which this cache is registered.
	Name string `toml:"-"`
	// CacheType selects the backend: "memory", "filesystem", "bbolt", "badger", "redis".
	CacheType string `toml:"cache_type"`
	// Compression enables snappy compression of cached values.
	Compression bool `toml:"compression"`

	Index      CacheIndexConfig      `toml:"index"`
	Redis      RedisCacheConfig      `toml:"redis"`
	Filesystem FilesystemCacheConfig `toml:"filesystem"`
	BBolt      BBoltCacheConfig      `toml:"bbolt"`
	Badger     BadgerCacheConfig     `toml:"badger"`

	// CacheTypeID is the parsed form of CacheType, populated at load time.
	CacheTypeID CacheType `toml:"-"`
}

// CacheIndexConfig tunes the background reaper that sweeps expired entries.
type CacheIndexConfig struct {
	// ReapIntervalSecs is how long the reaper sleeps between sweeps.
	ReapIntervalSecs int `toml:"reap_interval_secs"`
	// MaxSizeBytes is loaded and defaulted with the other index settings; no
	// cache backend checks its size against it, and entries leave a cache
	// only by expiry or removal.
	MaxSizeBytes int64 `toml:"max_size_bytes"`

	ReapInterval time.Duration `toml:"-"`
}

// RedisCacheConfig configures the Redis cache backend.
type RedisCacheConfig struct {
	// ClientType selects "standard", "cluster", or "sentinel".
	ClientType string `toml:"client_type"`
	// Endpoint is used by the standard client type.
	Endpoint string `toml:"endpoint"`
	// Endpoints is used by the cluster and sentinel client types.
	Endpoints []string `toml:"endpoints"`
	// SentinelMaster names the master set when ClientType is "sentinel".
	SentinelMaster string `toml:"sentinel_master"`
	Password       string `toml:"password"`
	DB             int    `toml:"db"`
	MaxRetries     int    `toml:"max_retries"`
	DialTimeoutMS  int    `toml:"dial_timeout_ms"`
	ReadTimeoutMS  int    `toml:"read_timeout_ms"`
	WriteTimeoutMS int    `toml:"write_timeout_ms"`
	PoolSize       int    `toml:"pool_size"`
}

// FilesystemCacheConfig configures the flat-file cache backend.
type FilesystemCacheConfig struct {
	CachePath string `toml:"cache_path"`
}

// BBoltCacheConfig configures the embedded bbolt cache backend.
type BBoltCacheConfig struct {
	Filename string `toml:"filename"`
	Bucket   string `toml:"bucket"`
}

// BadgerCacheConfig configures the embedded badger cache backend.
type BadgerCacheConfig struct {
	Directory      string `toml:"directory"`
	ValueDirectory string `toml:"value_directory"`
}

// NewCacheConfig returns a CachingConfig populated with default values.
func NewCacheConfig() *CachingConfig {
	return &CachingConfig{
		CacheType:   defaultCacheType,
		CacheTypeID: defaultCacheTypeID,
		Compression: defaultCacheCompression,
		Index: CacheIndexConfig{
			ReapIntervalSecs: defaultCacheIndexReapSecs,
			MaxSizeBytes:     defaultCacheMaxSizeBytes,
		},
		Redis: RedisCacheConfig{
			ClientType: defaultRedisClientType,
			Endpoint:   defaultRedisEndpoint,
		},
		Filesystem: FilesystemCacheConfig{CachePath: defaultCachePath},
		BBolt:      BBoltCacheConfig{Filename: defaultBBoltFile, Bucket: defaultBBoltBucket},
		Badger:     BadgerCacheConfig{Directory: defaultCachePath, ValueDirectory: defaultCachePath},
	}
}

// Copy returns a deep copy of a CachingConfig.
func (cc *CachingConfig) Copy() *CachingConfig {
	c := NewCacheConfig()
	*c = *cc
	c.Redis.Endpoints = append([]string(nil), cc.Redis.Endpoints...)
	return c
}

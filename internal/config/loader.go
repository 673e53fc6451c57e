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

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load builds the running configuration: defaults, then the TOML file at
// path, then environment variable overrides (loadEnv), synthesizing derived
// fields and validating required settings along the way. Apart from resetting
// LoaderWarnings at the start, it mutates no package state except for the
// final assignment to Config, matching the
// teacher's "build, validate, then publish" Load shape.
func Load(path string) (*OriginConfig, error) {
	LoaderWarnings = make([]string, 0)

	c := NewConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
		applyCacheDefaults(c, md)
	}

	if err := c.loadEnv(); err != nil {
		return nil, err
	}

	if err := c.finalize(); err != nil {
		return nil, err
	}

	Config = c
	return c, nil
}

// applyCacheDefaults fills in per-cache defaults for any named cache section
// that omitted fields, and installs a "default" cache when the decoded file
// left Caches empty. It removes no cache entries.
func applyCacheDefaults(c *OriginConfig, md toml.MetaData) {
	if len(c.Caches) == 0 {
		c.Caches = map[string]*CachingConfig{"default": NewCacheConfig()}
		return
	}
	for name, cc := range c.Caches {
		cc.Name = name
		if cc.CacheType == "" {
			cc.CacheType = defaultCacheType
		}
		if cc.Index.ReapIntervalSecs == 0 {
			cc.Index.ReapIntervalSecs = defaultCacheIndexReapSecs
		}
		if cc.Index.MaxSizeBytes == 0 {
			cc.Index.MaxSizeBytes = defaultCacheMaxSizeBytes
		}
		if cc.Redis.ClientType == "" {
			cc.Redis.ClientType = defaultRedisClientType
		}
		if cc.Filesystem.CachePath == "" {
			cc.Filesystem.CachePath = defaultCachePath
		}
		if cc.BBolt.Filename == "" {
			cc.BBolt.Filename = defaultBBoltFile
		}
		if cc.BBolt.Bucket == "" {
			cc.BBolt.Bucket = defaultBBoltBucket
		}
		if cc.Badger.Directory == "" {
			cc.Badger.Directory = defaultCachePath
		}
	}
	_ = md
}

// finalize synthesizes derived fields (CSV splits, durations, parsed enums)
// and enforces the fields §6 of the specification calls out as required,
// mirroring the fatal-at-startup checks in the original's filter_factory.
func (c *OriginConfig) finalize() error {
	o := c.Origin

	if strings.TrimSpace(o.HashPathSuffix) == "" {
		return fmt.Errorf("origin.hash_path_suffix is required")
	}

	o.OriginDBHosts = splitCSV(o.OriginDBHostsCSV)
	o.OriginCDNHostSuffixes = splitCSV(o.OriginCDNHostSuffixesCSV)
	o.AllowedOriginRemoteIPs = splitCSV(o.AllowedOriginRemoteIPsCSV)

	if len(o.OriginCDNHostSuffixes) == 0 {
		return fmt.Errorf("origin.origin_cdn_host_suffixes must name at least one suffix")
	}

	if o.MinTTL <= 0 {
		o.MinTTL = defaultMinTTL
	}
	if o.MaxTTL <= 0 {
		o.MaxTTL = defaultMaxTTL
	}
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = defaultDefaultTTL
	}
	if o.DefaultTTL < o.MinTTL || o.DefaultTTL > o.MaxTTL {
		return fmt.Errorf("origin.default_ttl must be between min_ttl and max_ttl")
	}

	b := c.Backend
	if b.TimeoutSecs <= 0 {
		b.TimeoutSecs = defaultBackendTimeoutSecs
	}
	b.Timeout = time.Duration(b.TimeoutSecs) * time.Second
	b.KeepAliveTimeout = time.Duration(b.KeepAliveTimeoutSecs) * time.Second

	for name, cc := range c.Caches {
		cc.Name = name
		t, ok := CacheTypeNames[strings.ToLower(cc.CacheType)]
		if !ok {
			return fmt.Errorf("cache %q: unknown cache_type %q", name, cc.CacheType)
		}
		cc.CacheTypeID = t
		cc.Index.ReapInterval = time.Duration(cc.Index.ReapIntervalSecs) * time.Second
	}

	return nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

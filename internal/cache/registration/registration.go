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

// Package registration builds and connects the named cache.Provider
// instances described by an OriginConfig, the way the teacher's routing
// registration package builds named handler sets from config.
package registration

import (
	"fmt"

	"github.com/Comcast/sos-origin/internal/cache"
	"github.com/Comcast/sos-origin/internal/cache/badger"
	"github.com/Comcast/sos-origin/internal/cache/bbolt"
	"github.com/Comcast/sos-origin/internal/cache/filesystem"
	"github.com/Comcast/sos-origin/internal/cache/memory"
	"github.com/Comcast/sos-origin/internal/cache/redis"
	"github.com/Comcast/sos-origin/internal/config"
)

// LoadCaches builds and connects a cache.Provider for every entry in cfg,
// returning them keyed by cache name.
func LoadCaches(cfg map[string]*config.CachingConfig) (map[string]cache.Provider, error) {
	out := make(map[string]cache.Provider, len(cfg))
	for name, cc := range cfg {
		p, err := newProvider(cc)
		if err != nil {
			return nil, fmt.Errorf("cache %q: %w", name, err)
		}
		if err := p.Connect(); err != nil {
			return nil, fmt.Errorf("cache %q: connecting %s backend: %w", name, p.Name(), err)
		}
		out[name] = p
	}
	return out, nil
}

func newProvider(cc *config.CachingConfig) (cache.Provider, error) {
	switch cc.CacheTypeID {
	case config.CacheTypeMemory:
		return memory.New(cc.Index.ReapInterval), nil
	case config.CacheTypeFilesystem:
		return filesystem.New(cc.Filesystem.CachePath), nil
	case config.CacheTypeBbolt:
		return bbolt.New(cc.BBolt.Filename, cc.BBolt.Bucket), nil
	case config.CacheTypeBadger:
		return badger.New(cc.Badger.Directory, cc.Badger.ValueDirectory), nil
	case config.CacheTypeRedis:
		return redis.New(cc.Redis), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cc.CacheType)
	}
}

// CloseAll closes every provider in caches, collecting the first error
// encountered but attempting to close all of them regardless.
func CloseAll(caches map[string]cache.Provider) error {
	var firstErr error
	for _, p := range caches {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

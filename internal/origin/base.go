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

// Package origin implements the three HTTP surfaces this system serves
// (admin, tenant database, public CDN edge) and the shared hashing,
// sharding, caching, and URL-signing behavior all three build on.
package origin

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Comcast/sos-origin/internal/backend"
	"github.com/Comcast/sos-origin/internal/cache"
	"github.com/Comcast/sos-origin/internal/config"
	"github.com/Comcast/sos-origin/internal/metadata"
	"github.com/Comcast/sos-origin/internal/util/log"
	"github.com/Comcast/sos-origin/internal/util/metrics"
)

// maxHashDataBytes bounds how much of a hash-id object body GetCDNData will
// read; HashData records are small JSON documents, never arbitrary payloads.
const maxHashDataBytes = 64 * 1024

// readAll reads resp's body up to maxHashDataBytes.
func readAll(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, maxHashDataBytes))
}

// negativeTTL is how long a negative (not-found) HashData lookup stays
// cached, matching the original's CACHE_404. positiveTTL mirrors
// MEMCACHE_TIMEOUT, the lifetime of a successfully fetched HashData record.
const (
	negativeTTL = 30 * time.Second
	positiveTTL = 3600 * time.Second
)

// Base holds everything the admin, db, and cdn handlers share: hashing and
// sharding, the pre-authenticated backend client, the metadata cache, and
// outgoing URL construction. It is the Go analogue of the original's
// OriginBase.
type Base struct {
	Cfg     *config.OriginSection
	Backend *backend.Client
	Cache   cache.Provider
	// CacheCompression mirrors the owning cache's Compression setting.
	CacheCompression bool
	URLFormats       *config.OutgoingURLFormatConfig
}

// NewBase builds a Base from the running configuration's pieces.
func NewBase(cfg *config.OriginSection, b *backend.Client, c cache.Provider, compress bool, uf *config.OutgoingURLFormatConfig) *Base {
	return &Base{Cfg: cfg, Backend: b, Cache: c, CacheCompression: compress, URLFormats: uf}
}

// HashPath returns the hex MD5 digest identifying account/container,
// matching the original's hash_path: md5("/<account>/<container>/<suffix>").
func (b *Base) HashPath(account, container string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("/%s/%s/%s", account, container, b.Cfg.HashPathSuffix)))
	return hex.EncodeToString(sum[:])
}

// HashObjPath returns the backend path of the hash-id object for hsh,
// sharded across NumberHashIDContainers the way the original's
// get_hsh_obj_path does.
func (b *Base) HashObjPath(hsh string) (string, error) {
	n, ok := new(big.Int).SetString(hsh, 16)
	if !ok {
		return "", fmt.Errorf("origin: invalid hash %q", hsh)
	}
	shard := new(big.Int).Mod(n, big.NewInt(int64(b.Cfg.NumberHashIDContainers)))
	return fmt.Sprintf("/v1/%s/.hash_%d/%s", b.Cfg.OriginAccount, shard.Int64(), hsh), nil
}

// cdnDataCacheKey returns the cache key for a hash-id object path, matching
// the original's cdn_data_memcache_key.
func (b *Base) cdnDataCacheKey(cdnObjPath string) string {
	return b.Cfg.OriginAccount + "/" + cdnObjPath
}

// GetCDNData retrieves the HashData for cdnObjPath, checking the cache
// first and falling back to a backend GET, caching the result either way
// (positively on success, negatively and briefly on 404), mirroring the
// original's get_cdn_data.
func (b *Base) GetCDNData(ctx context.Context, cdnObjPath string) (metadata.HashData, bool) {
	key := b.cdnDataCacheKey(cdnObjPath)

	if b.Cache != nil {
		if e, err := cache.Retrieve(ctx, b.Cache, b.CacheCompression, key); err == nil {
			if e.Negative {
				metrics.CacheRequestStatus.WithLabelValues(b.Cache.Name(), "negative").Inc()
				return metadata.HashData{}, false
			}
			if h, err := metadata.Parse(e.Data); err == nil {
				metrics.CacheRequestStatus.WithLabelValues(b.Cache.Name(), "hit").Inc()
				return h, true
			}
		}
		metrics.CacheRequestStatus.WithLabelValues(b.Cache.Name(), "miss").Inc()
	}

	resp, err := b.Backend.Get(ctx, cdnObjPath, nil)
	if err != nil {
		log.Warn("backend GET failed fetching hash data", log.Pairs{"path": cdnObjPath, "error": err.Error()})
		return metadata.HashData{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		body, err := readAll(resp)
		if err != nil {
			return metadata.HashData{}, false
		}
		h, err := metadata.Parse(body)
		if err != nil {
			log.Warn("invalid HashData json", log.Pairs{"path": cdnObjPath})
			return metadata.HashData{}, false
		}
		if b.Cache != nil {
			_ = cache.Store(ctx, b.Cache, b.CacheCompression, key, cache.Entry{Data: body}, positiveTTL)
		}
		return h, true
	}

	if resp.StatusCode == 404 && b.Cache != nil {
		_ = cache.Store(ctx, b.Cache, b.CacheCompression, key, cache.Entry{Negative: true}, negativeTTL)
	}

	return metadata.HashData{}, false
}

// InvalidateCDNData removes any cached HashData for cdnObjPath, used by
// DELETE before it removes the backend records; PUT/POST overwrite the
// cached entry with cache.Store instead.
func (b *Base) InvalidateCDNData(ctx context.Context, cdnObjPath string) {
	if b.Cache == nil {
		return
	}
	_ = b.Cache.Remove(ctx, b.cdnDataCacheKey(cdnObjPath))
}

// GetCDNURLs renders the outgoing URL set for hsh, keyed by the names in the
// matched outgoing_url_format* section, optionally HMAC-signing each
// hostname, mirroring the original's get_cdn_urls.
func (b *Base) GetCDNURLs(hsh, requestType, formatTag string) (map[string]string, error) {
	section := b.URLFormats.Select(requestType, formatTag)
	if len(section) == 0 {
		return nil, fmt.Errorf("%w: no outgoing_url_format for %s/%s", ErrInvalidConfiguration, requestType, formatTag)
	}

	n, ok := new(big.Int).SetString(hsh, 16)
	if !ok {
		return nil, fmt.Errorf("origin: invalid hash %q", hsh)
	}
	hashMod := new(big.Int).Mod(n, big.NewInt(int64(b.Cfg.NumberDNSShards)))

	out := make(map[string]string, len(section))
	for key, tmpl := range section {
		rendered := strings.NewReplacer(
			"%(hash)s", hsh,
			"%(hash_mod)s", hashMod.String(),
		).Replace(tmpl)
		out[key] = strings.TrimRight(rendered, "/")
	}

	if b.Cfg.HMACSignedURLSecret != "" {
		for key, u := range out {
			out[key] = signHostname(u, b.Cfg.HMACSignedURLSecret, b.Cfg.HMACTokenLength)
		}
	}

	return out, nil
}

// signHostname replaces a rendered URL's hostname with
// "<hmac-token>-<hostname>", matching the original's HMAC signing step.
func signHostname(rawURL, secret string, tokenLength int) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(u.Hostname()))
	token := hex.EncodeToString(mac.Sum(nil))
	if tokenLength > 0 && tokenLength < len(token) {
		token = token[:tokenLength]
	}
	u.Host = token + "-" + u.Host
	return u.String()
}

// LogInfo emits an info-level structured log line carrying the container,
// hash, account, request id and elapsed time, the Go analogue of the
// original's log_info.
func LogInfo(ctx context.Context, msg, container, hsh, account string) {
	log.Info(msg, log.Pairs{
		"container": orDash(container),
		"hash":      orDash(hsh),
		"account":   orDash(account),
		"transId":   TransID(ctx),
		"elapsed":   fmt.Sprintf("%.4f", Elapsed(ctx).Seconds()),
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

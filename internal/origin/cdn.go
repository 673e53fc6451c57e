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

package origin

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Comcast/sos-origin/internal/util/log"
)

const cacheBadURLTTL = 86400 * time.Second

// cdnForwardedHeaders lists the request headers relayed verbatim to the
// backend when proxying a CDN edge request, matching the original's
// _getCdnHeaders.
var cdnForwardedHeaders = []string{"If-Modified-Since", "If-Match", "Range", "If-Range"}

// cdnResponseHeaders lists the response headers relayed verbatim back to the
// edge client on a successful fetch, matching the original's allowlist in
// CdnHandler.handle_request.
var cdnResponseHeaders = []string{"Content-Range", "Content-Encoding", "Content-Disposition", "Accept-Ranges", "Content-Type"}

// CDNHandler serves public object reads through the CDN edge surface,
// consulting the per-container HashData record for enablement and TTL, the
// Go analogue of the original's CdnHandler.
type CDNHandler struct {
	*Base
	regexes          []*regexp.Regexp
	maxCDNFileSize   int64
	allowedRemoteIPs []string
	// next receives a request from a remote IP outside allowedRemoteIPs,
	// the Go analogue of the original's "origin-request-not-allowed" ->
	// debug log, fall through to the wrapped WSGI app. When nil (the
	// standalone binary has nothing to wrap), such a request gets a 403.
	next http.Handler
}

// NewCDNHandler compiles patterns and builds a CDNHandler. At least one
// pattern is required, matching the original's InvalidConfiguration check.
// The patterns are kept in ascending order of their names.
func NewCDNHandler(b *Base, patterns map[string]string, maxCDNFileSize int64, allowedRemoteIPs []string) (*CDNHandler, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("%w: no incoming_url_regex configured", ErrInvalidConfiguration)
	}
	h := &CDNHandler{Base: b, maxCDNFileSize: maxCDNFileSize, allowedRemoteIPs: allowedRemoteIPs}
	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pattern := patterns[name]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: incoming_url_regex %q: %v", ErrInvalidConfiguration, name, err)
		}
		h.regexes = append(h.regexes, re)
	}
	return h, nil
}

// SetNext installs the handler a disallowed remote IP falls through to,
// the Go analogue of the WSGI app the original middleware wraps.
func (h *CDNHandler) SetNext(next http.Handler) {
	h.next = next
}

// cacheHeaders returns Expires/Cache-Control set ttl seconds into the
// future, matching the original's _getCacheHeaders.
func cacheHeaders(ttl time.Duration) http.Header {
	hdr := make(http.Header, 2)
	hdr.Set("Expires", time.Now().UTC().Add(ttl).Format(http.TimeFormat))
	hdr.Set("Cache-Control", fmt.Sprintf("max-age:%d, public", int(ttl.Seconds())))
	return hdr
}

func writeHeaders(w http.ResponseWriter, hdr http.Header) {
	for k, vs := range hdr {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// ServeHTTP proxies an edge request to the tenant's container once its
// HashData record confirms CDN delivery is enabled, matching the original's
// CdnHandler.handle_request.
func (h *CDNHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeHeaders(w, cacheHeaders(cacheBadURLTTL))
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(h.allowedRemoteIPs) > 0 && !contains(h.allowedRemoteIPs, remoteHost(r.RemoteAddr)) {
		log.Debug("origin-request-not-allowed", log.Pairs{"remote": r.RemoteAddr})
		if h.next != nil {
			h.next.ServeHTTP(w, r)
		} else {
			http.Error(w, "remote IP not allowed", http.StatusForbidden)
		}
		return
	}

	hsh, objectName := h.matchURL(r)
	if hsh == "" {
		log.Debug("hash not found in request url", log.Pairs{"url": r.URL.String()})
		writeHeaders(w, cacheHeaders(cacheBadURLTTL))
		http.NotFound(w, r)
		return
	}
	if idx := strings.Index(hsh, "-"); idx >= 0 {
		hsh = hsh[idx+1:]
	}

	cdnObjPath, err := h.HashObjPath(hsh)
	if err != nil {
		log.Debug("invalid hash in request", log.Pairs{"hash": hsh, "error": err.Error()})
		writeHeaders(w, cacheHeaders(cacheBadURLTTL))
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	hashData, ok := h.GetCDNData(ctx, cdnObjPath)
	if ok && hashData.CDNEnabled {
		swiftPath := fmt.Sprintf("/v1/%s/%s/", url.PathEscape(hashData.Account), url.PathEscape(hashData.Container))
		if objectName != "" {
			swiftPath += objectName
		}

		extra := make(http.Header)
		extra.Set("X-Web-Mode", "True")
		for _, name := range cdnForwardedHeaders {
			if v := r.Header.Get(name); v != "" {
				extra.Set(name, v)
			}
		}

		resp, err := h.Backend.Do(ctx, r.Method, swiftPath, nil, extra)
		if err != nil {
			log.Warn("backend request failed proxying cdn object", log.Pairs{"path": swiftPath, "error": err.Error()})
			writeHeaders(w, cacheHeaders(cacheBadURLTTL))
			http.NotFound(w, r)
			return
		}
		defer resp.Body.Close()

		ttl := time.Duration(hashData.TTL) * time.Second

		switch {
		case resp.StatusCode == http.StatusMovedPermanently && resp.Header.Get("Location") != "":
			writeHeaders(w, cacheHeaders(ttl))
			w.Header().Set("Location", resp.Header.Get("Location"))
			w.WriteHeader(http.StatusMovedPermanently)
			return
		case resp.StatusCode == http.StatusNotModified:
			writeHeaders(w, cacheHeaders(ttl))
			w.WriteHeader(http.StatusNotModified)
			return
		case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
			writeHeaders(w, cacheHeaders(negativeTTL))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
			if resp.ContentLength > h.maxCDNFileSize {
				writeHeaders(w, cacheHeaders(negativeTTL))
				http.Error(w, "object too large", http.StatusBadRequest)
				return
			}
			for _, name := range cdnResponseHeaders {
				if v := resp.Header.Get(name); v != "" {
					w.Header().Set(name, v)
				}
			}
			writeHeaders(w, cacheHeaders(ttl))
			w.WriteHeader(resp.StatusCode)
			n, _ := io.Copy(w, resp.Body)
			LogInfo(ctx, fmt.Sprintf("Public CDN request %s %d", swiftPath, n), "-", hsh, hashData.Account)
			return
		default:
			log.Warn("public cdn request ignored, container not cdn enabled", log.Pairs{"hash": hsh})
			if resp.StatusCode != http.StatusNotFound {
				log.Error("unexpected response from backend", log.Pairs{"status": resp.StatusCode, "path": cdnObjPath})
			}
		}
	}

	writeHeaders(w, cacheHeaders(negativeTTL))
	http.NotFound(w, r)
}

// matchURL tries each configured regex against r's URL in ascending order of
// the regexes' names, returning the hash/object_name captures of the first
// one that matches. The URL is the only source: hash or object name values
// set by earlier middleware (headers or request context) are not consulted.
func (h *CDNHandler) matchURL(r *http.Request) (hsh, objectName string) {
	full := r.URL.String()
	for _, re := range h.regexes {
		m := re.FindStringSubmatch(full)
		if m == nil {
			continue
		}
		names := re.SubexpNames()
		for i, name := range names {
			switch name {
			case "hash":
				hsh = m[i]
			case "object_name":
				objectName = m[i]
			}
		}
		break
	}
	return hsh, objectName
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

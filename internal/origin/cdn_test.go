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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const cdnTestPattern = `^/(?P<hash>[0-9a-fA-F-]+)(/(?P<object_name>.+))?$`

func seedHashData(t *testing.T, b *Base, cdnObjPath, body string) {
	t.Helper()
	key := b.cdnDataCacheKey(cdnObjPath)
	if err := b.Cache.Store(context.Background(), key, []byte(body), time.Minute); err != nil {
		t.Fatalf("seeding cache: %v", err)
	}
}

func TestCDNMethodNotAllowed(t *testing.T) {
	b := testBase(t, "")
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/64", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d, want 405", w.Code)
	}
}

func TestCDNRemoteIPNotAllowed(t *testing.T) {
	b := testBase(t, "")
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, []string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/64", nil)
	req.RemoteAddr = "192.168.1.1:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403", w.Code)
	}
}

func TestCDNRemoteIPAllowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, []string{"10.0.0.1"})
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/64", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code == http.StatusForbidden {
		t.Fatalf("got status 403, expected the allowlisted IP to pass through")
	}
}

func TestCDNNoMatchReturnsNotFound(t *testing.T) {
	b := testBase(t, "")
	h, err := NewCDNHandler(b, map[string]string{"default": `^/only-this-exact-path$`}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestCDNInvalidHashReturnsBadRequest(t *testing.T) {
	b := testBase(t, "")
	// A regex that accepts any first segment, so the non-hex hash reaches
	// HashObjPath instead of failing to match at all.
	h, err := NewCDNHandler(b, map[string]string{"default": `^/(?P<hash>[^/]+)(/(?P<object_name>.+))?$`}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/not-hex/object.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestCDNHMACPrefixStrippedBeforeHashLookup(t *testing.T) {
	b := testBase(t, "")
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":false,"logs_enabled":false}`)

	// A signed hostname prefixes the hash with "<token>-"; the handler must
	// strip everything up through the first dash before treating it as a hash.
	req := httptest.NewRequest(http.MethodGet, "/abcd1234-64/object.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	// cdn_enabled is false, so this still 404s, but it must not 400: a 400
	// here would mean the dash-prefix was not stripped before hex parsing.
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404 (not 400, meaning the hash was parsed with its prefix still attached)", w.Code)
	}
}

func TestCDNNotEnabledReturnsNotFound(t *testing.T) {
	b := testBase(t, "")
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":false,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestCDNSuccessfulFetchCopiesBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/acct/cont/object.txt" {
			http.Error(w, "unexpected path "+r.URL.Path, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Disposition", "inline")
		w.Header().Set("X-Not-Forwarded", "should-not-appear")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":true,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != "hello world" {
		t.Fatalf("got body %q", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "text/plain" {
		t.Fatalf("expected Content-Type to be forwarded, got %q", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("Content-Disposition") != "inline" {
		t.Fatalf("expected Content-Disposition to be forwarded, got %q", w.Header().Get("Content-Disposition"))
	}
	if w.Header().Get("X-Not-Forwarded") != "" {
		t.Fatalf("expected X-Not-Forwarded to be dropped, got %q", w.Header().Get("X-Not-Forwarded"))
	}
	if w.Header().Get("Cache-Control") == "" {
		t.Fatal("expected a Cache-Control header reflecting the container TTL")
	}
}

func TestCDNForwardsConditionalRequestHeaders(t *testing.T) {
	var gotIfNoneMatch, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIfNoneMatch = r.Header.Get("If-Match")
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":true,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	req.Header.Set("If-Match", `"etag-value"`)
	req.Header.Set("Range", "bytes=0-10")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if gotIfNoneMatch != `"etag-value"` {
		t.Fatalf("got If-Match %q forwarded to backend", gotIfNoneMatch)
	}
	if gotRange != "bytes=0-10" {
		t.Fatalf("got Range %q forwarded to backend", gotRange)
	}
}

func TestCDNRedirectOnMovedPermanently(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://elsewhere.example.com/object.txt")
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":true,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusMovedPermanently {
		t.Fatalf("got status %d, want 301", w.Code)
	}
	if w.Header().Get("Location") != "https://elsewhere.example.com/object.txt" {
		t.Fatalf("got Location %q", w.Header().Get("Location"))
	}
}

func TestCDNNotModifiedPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":true,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	req.Header.Set("If-Modified-Since", "Mon, 01 Jan 2024 00:00:00 GMT")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w.Code)
	}
}

func TestCDNRangeNotSatisfiable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":true,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	req.Header.Set("Range", "bytes=99999-999999")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("got status %d, want 416", w.Code)
	}
}

func TestCDNPartialContentPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Range", "bytes 0-4/11")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":true,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	req.Header.Set("Range", "bytes=0-4")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusPartialContent {
		t.Fatalf("got status %d, want 206", w.Code)
	}
	if w.Body.String() != "hello" {
		t.Fatalf("got body %q", w.Body.String())
	}
	if w.Header().Get("Content-Range") != "bytes 0-4/11" {
		t.Fatalf("got Content-Range %q", w.Header().Get("Content-Range"))
	}
}

func TestCDNObjectTooLargeReturnsBadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 10, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":true,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestCDNBackendNotFoundPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	cdnObjPath, err := b.HashObjPath("64")
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"cont","ttl":900,"cdn_enabled":true,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodGet, "/64/object.txt", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestMatchURLExtractsHashAndObjectName(t *testing.T) {
	b := testBase(t, "")
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/64/path/to/object.txt", nil)
	hsh, objectName := h.matchURL(req)
	if hsh != "64" {
		t.Fatalf("got hash %q, want 64", hsh)
	}
	if objectName != "path/to/object.txt" {
		t.Fatalf("got object name %q", objectName)
	}
}

func TestMatchURLNoObjectName(t *testing.T) {
	b := testBase(t, "")
	h, err := NewCDNHandler(b, map[string]string{"default": cdnTestPattern}, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewCDNHandler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/64", nil)
	hsh, objectName := h.matchURL(req)
	if hsh != "64" {
		t.Fatalf("got hash %q, want 64", hsh)
	}
	if objectName != "" {
		t.Fatalf("got object name %q, want empty", objectName)
	}
}

func TestNewCDNHandlerRequiresAtLeastOnePattern(t *testing.T) {
	b := testBase(t, "")
	if _, err := NewCDNHandler(b, nil, 1<<20, nil); err == nil {
		t.Fatal("expected an error when no incoming_url_regex patterns are configured")
	}
}

func TestNewCDNHandlerRejectsInvalidPattern(t *testing.T) {
	b := testBase(t, "")
	if _, err := NewCDNHandler(b, map[string]string{"bad": `(unterminated`}, 1<<20, nil); err == nil {
		t.Fatal("expected an error for an invalid regex pattern")
	}
}

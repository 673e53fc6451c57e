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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Comcast/sos-origin/internal/metadata"
)

func TestOriginDBGetPlainListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries := []swiftListingEntry{
			{Name: "container-a", ContentType: metadata.ListingContentType(true, 900, false)},
			{Name: "container-b", ContentType: metadata.ListingContentType(false, 900, false)},
		}
		b, _ := json.Marshal(entries)
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/acct", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	got := strings.TrimSpace(w.Body.String())
	if got != "container-a\ncontainer-b" {
		t.Fatalf("got body %q", got)
	}
}

func TestOriginDBGetEnabledOnlyFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries := []swiftListingEntry{
			{Name: "container-a", ContentType: metadata.ListingContentType(true, 900, false)},
			{Name: "container-b", ContentType: metadata.ListingContentType(false, 900, false)},
		}
		b, _ := json.Marshal(entries)
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/acct?enabled=true", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	got := strings.TrimSpace(w.Body.String())
	if got != "container-a" {
		t.Fatalf("got body %q, want only the enabled container", got)
	}
}

func TestOriginDBGetJSONListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries := []swiftListingEntry{
			{Name: "container-a", ContentType: metadata.ListingContentType(true, 900, false)},
		}
		b, _ := json.Marshal(entries)
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/acct?format=json", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("got content-type %q", w.Header().Get("Content-Type"))
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "container-a" {
		t.Fatalf("got %+v", rows)
	}
}

func TestOriginDBGetXMLListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entries := []swiftListingEntry{
			{Name: "container-a", ContentType: metadata.ListingContentType(true, 900, false)},
		}
		b, _ := json.Marshal(entries)
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/acct?format=xml", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Header().Get("Content-Type") != "application/xml" {
		t.Fatalf("got content-type %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "<name>container-a</name>") {
		t.Fatalf("got body %q", w.Body.String())
	}
}

func TestOriginDBGetMissingAccountIsBadRequest(t *testing.T) {
	b := testBase(t, "")
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestOriginDBGetRetriesPastAllFilteredPage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var entries []swiftListingEntry
		if n == 1 {
			// First page is entirely filtered out by enabled=true, forcing a
			// requery with an advanced marker.
			entries = []swiftListingEntry{
				{Name: "container-disabled", ContentType: metadata.ListingContentType(false, 900, false)},
			}
		} else {
			entries = []swiftListingEntry{
				{Name: "container-enabled", ContentType: metadata.ListingContentType(true, 900, false)},
			}
		}
		b, _ := json.Marshal(entries)
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/acct?enabled=true", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	got := strings.TrimSpace(w.Body.String())
	if got != "container-enabled" {
		t.Fatalf("got body %q", got)
	}
	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected at least 2 backend calls for the retry to occur, got %d", calls)
	}
}

func TestOriginDBGetAccountNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodGet, "/v1/acct", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestOriginDBDeleteDisabledReturnsMethodNotAllowed(t *testing.T) {
	b := testBase(t, "")
	h := NewOriginDBHandler(b, 60, 3600, 900, false)

	req := httptest.NewRequest(http.MethodDelete, "/v1/acct/container", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d, want 405", w.Code)
	}
}

func TestOriginDBDeleteSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodDelete, "/v1/acct/container", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204, body=%s", w.Code, w.Body.String())
	}
}

func TestOriginDBDeleteBothNotFoundReturns404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodDelete, "/v1/acct/container", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestOriginDBHeadReturnsStateHeaders(t *testing.T) {
	b := testBase(t, "")
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	hsh := b.HashPath("acct", "container")
	cdnObjPath, err := b.HashObjPath(hsh)
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"container","ttl":1200,"cdn_enabled":true,"logs_enabled":true}`)

	req := httptest.NewRequest(http.MethodHead, "/v1/acct/container", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204", w.Code)
	}
	if w.Header().Get("X-TTL") != "1200" {
		t.Fatalf("got X-TTL %q", w.Header().Get("X-TTL"))
	}
	if w.Header().Get("X-CDN-Enabled") != "True" {
		t.Fatalf("got X-CDN-Enabled %q", w.Header().Get("X-CDN-Enabled"))
	}
	if w.Header().Get("X-Log-Retention") != "True" {
		t.Fatalf("got X-Log-Retention %q", w.Header().Get("X-Log-Retention"))
	}
}

func TestOriginDBHeadNotFound(t *testing.T) {
	b := testBase(t, "")
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodHead, "/v1/acct/container-unknown", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestOriginDBPutCreatesNewContainerMetadata(t *testing.T) {
	var sawListingPut bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			// No existing HashData for this container yet.
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, ".hash_"):
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodHead:
			// Listing container already exists.
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut:
			sawListingPut = true
			if got := r.Header.Get("Content-Type"); !strings.HasPrefix(got, "x-cdn/") {
				http.Error(w, "missing synthetic content-type", http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
		default:
			http.Error(w, "unexpected method", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodPut, "/v1/acct/container", nil)
	req.Header.Set("X-TTL", "1800")
	req.Header.Set("X-CDN-Enabled", "true")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201, body=%s", w.Code, w.Body.String())
	}
	if !sawListingPut {
		t.Fatal("expected a PUT to the listing entry path")
	}
}

func TestOriginDBPutRejectsTTLOutOfBounds(t *testing.T) {
	b := testBase(t, "")
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodPut, "/v1/acct/container", nil)
	req.Header.Set("X-TTL", "99999")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestOriginDBPutRejectsNonIntegerTTL(t *testing.T) {
	b := testBase(t, "")
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodPut, "/v1/acct/container", nil)
	req.Header.Set("X-TTL", "not-a-number")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", w.Code)
	}
}

func TestOriginDBPostOnUnknownContainerIsNotFound(t *testing.T) {
	b := testBase(t, "")
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodPost, "/v1/acct/container-unknown", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

func TestOriginDBPostOnExistingContainerReturnsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := testBase(t, srv.URL)
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	hsh := b.HashPath("acct", "container")
	cdnObjPath, err := b.HashObjPath(hsh)
	if err != nil {
		t.Fatalf("HashObjPath: %v", err)
	}
	seedHashData(t, b, cdnObjPath, `{"account":"acct","container":"container","ttl":900,"cdn_enabled":false,"logs_enabled":false}`)

	req := httptest.NewRequest(http.MethodPost, "/v1/acct/container", nil)
	req.Header.Set("X-CDN-Enabled", "true")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("got status %d, want 202, body=%s", w.Code, w.Body.String())
	}
}

func TestOriginDBMethodNotAllowed(t *testing.T) {
	b := testBase(t, "")
	h := NewOriginDBHandler(b, 60, 3600, 900, true)

	req := httptest.NewRequest(http.MethodPatch, "/v1/acct/container", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("got status %d, want 405", w.Code)
	}
}

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
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Comcast/sos-origin/internal/cache"
	"github.com/Comcast/sos-origin/internal/metadata"
	"github.com/Comcast/sos-origin/internal/pathutil"
)

// maxListingRetries bounds the get_listings self-requery loop that skips
// pages containing no rows matching the enabled_only filter, standing in
// for the original's unbounded recursion: every retry strictly advances the
// marker, so this is a safety backstop rather than an expected limit.
const maxListingRetries = 1000

// OriginDBHandler serves the tenant-facing CRUD API over each account's CDN
// container metadata, the Go analogue of the original's OriginDbHandler.
type OriginDBHandler struct {
	*Base
	minTTL        int
	maxTTL        int
	defaultTTL    int
	deleteEnabled bool
}

// NewOriginDBHandler builds an OriginDBHandler from b and the origin section's
// TTL and delete-enablement policy.
func NewOriginDBHandler(b *Base, minTTL, maxTTL, defaultTTL int, deleteEnabled bool) *OriginDBHandler {
	return &OriginDBHandler{Base: b, minTTL: minTTL, maxTTL: maxTTL, defaultTTL: defaultTTL, deleteEnabled: deleteEnabled}
}

// ServeHTTP dispatches to the method-specific handler, matching the
// original's OriginDbHandler.handle_request.
func (h *OriginDBHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	case http.MethodHead:
		h.head(w, r)
	case http.MethodPut, http.MethodPost:
		h.putPost(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// get handles GET /<version>/<account>[/...], listing every container in
// account along with its CDN state, matching the original's origin_db_get.
func (h *OriginDBHandler) get(w http.ResponseWriter, r *http.Request) {
	segs, err := pathutil.Split(r.URL.Path, 2, 3, true)
	if err != nil || segs[1] == "" {
		http.Error(w, "Invalid request. URL format: /<api version>/<account>", http.StatusBadRequest)
		return
	}
	account := segs[1]

	q := r.URL.Query()
	marker := q.Get("marker")
	listFormat := strings.ToLower(q.Get("format"))

	var enabledOnly *bool
	if v := q.Get("enabled"); v != "" {
		b := isTrueParam(v)
		enabledOnly = &b
	}

	limit := -1
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid limit, must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	rows, err := h.getListings(r.Context(), account, marker, listFormat, enabledOnly, limit, 0)
	if err != nil {
		if err == ErrNotFound {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "origin db listings failure", http.StatusBadGateway)
		return
	}

	var body, contentType string
	switch listFormat {
	case "xml":
		contentType = "application/xml"
		body = renderXML(account, rows)
	case "json":
		contentType = "application/json"
		body, err = renderJSON(rows)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	default:
		contentType = "text/plain; charset=UTF-8"
		body = renderPlain(rows)
	}

	LogInfo(r.Context(), fmt.Sprintf("CDN container listing %d", len(body)), "-", "-", account)
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write([]byte(body))
}

// getListings fetches one page of account's container listing starting at
// marker, parses and filters each row, and requeries with an advanced
// marker if a non-empty page produced no matching rows, matching the
// original's nested get_listings closure.
func (h *OriginDBHandler) getListings(ctx context.Context, account, marker, listFormat string, enabledOnly *bool, limit, depth int) ([]*listingRow, error) {
	if depth > maxListingRetries {
		return nil, ErrDBFailure
	}

	listingPath := fmt.Sprintf("/v1/%s/%s", h.Cfg.OriginAccount, account)
	q := url.Values{"format": {"json"}, "marker": {marker}}
	resp, err := h.Backend.Get(ctx, listingPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return nil, ErrDBFailure
	}

	body, err := readAll(resp)
	if err != nil {
		return nil, err
	}
	var entries []swiftListingEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: invalid listing json: %v", ErrDBFailure, err)
	}

	rows := make([]*listingRow, 0, len(entries))
	for _, e := range entries {
		if limit >= 0 && len(rows) >= limit {
			break
		}
		row, err := h.parseContainerListing(account, e, listFormat, enabledOnly)
		if err != nil {
			continue
		}
		if row != nil {
			rows = append(rows, row)
		}
	}

	if len(entries) > 0 && len(rows) == 0 {
		return h.getListings(ctx, account, entries[len(entries)-1].Name, listFormat, enabledOnly, limit, depth+1)
	}
	return rows, nil
}

// delete handles DELETE /<version>/<account>/<container>, matching the
// original's origin_db_delete.
func (h *OriginDBHandler) delete(w http.ResponseWriter, r *http.Request) {
	if !h.deleteEnabled {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	segs, err := pathutil.Split(r.URL.Path, 3, 3, false)
	if err != nil {
		http.Error(w, "Invalid request. URI format: /<api version>/<account>/<container>", http.StatusBadRequest)
		return
	}
	account, container := segs[1], segs[2]
	hsh := h.HashPath(account, container)
	cdnObjPath, err := h.HashObjPath(hsh)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	h.InvalidateCDNData(ctx, cdnObjPath)

	objResp, err := h.Backend.Delete(ctx, cdnObjPath, nil)
	if err != nil {
		http.Error(w, "origin db failure", http.StatusBadGateway)
		return
	}
	objResp.Body.Close()
	if objResp.StatusCode/100 != 2 && objResp.StatusCode != http.StatusNotFound {
		http.Error(w, "could not delete hash object", http.StatusBadGateway)
		return
	}

	listPath := fmt.Sprintf("/v1/%s/%s/%s", h.Cfg.OriginAccount, account, container)
	listResp, err := h.Backend.Delete(ctx, listPath, nil)
	if err != nil {
		http.Error(w, "origin db failure", http.StatusBadGateway)
		return
	}
	listResp.Body.Close()
	if listResp.StatusCode/100 != 2 && listResp.StatusCode != http.StatusNotFound {
		http.Error(w, "could not delete listing entry", http.StatusBadGateway)
		return
	}

	if objResp.StatusCode == http.StatusNotFound && listResp.StatusCode == http.StatusNotFound {
		http.NotFound(w, r)
		return
	}

	LogInfo(ctx, "CDN delete", container, hsh, account)
	w.WriteHeader(http.StatusNoContent)
}

// head handles HEAD /<version>/<account>/<container>, matching the
// original's origin_db_head.
func (h *OriginDBHandler) head(w http.ResponseWriter, r *http.Request) {
	segs, err := pathutil.Split(r.URL.Path, 3, 3, false)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	account, container := segs[1], segs[2]
	hsh := h.HashPath(account, container)
	cdnObjPath, err := h.HashObjPath(hsh)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	hashData, ok := h.GetCDNData(ctx, cdnObjPath)
	if !ok {
		http.NotFound(w, r)
		return
	}

	urls, err := h.GetCDNURLs(hsh, "HEAD", "")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for k, v := range urls {
		w.Header().Set(k, v)
	}
	w.Header().Set("X-TTL", strconv.Itoa(hashData.TTL))
	w.Header().Set("X-Log-Retention", boolHeader(hashData.LogsEnabled))
	w.Header().Set("X-CDN-Enabled", boolHeader(hashData.CDNEnabled))

	LogInfo(ctx, "CDN HEAD", container, hsh, account)
	w.WriteHeader(http.StatusNoContent)
}

// putPost handles PUT and POST /<version>/<account>/<container>, creating
// or updating a container's CDN metadata, matching the original's
// origin_db_puts_posts.
func (h *OriginDBHandler) putPost(w http.ResponseWriter, r *http.Request) {
	segs, err := pathutil.Split(r.URL.Path, 3, 3, false)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	account, container := segs[1], segs[2]
	hsh := h.HashPath(account, container)
	cdnObjPath, err := h.HashObjPath(hsh)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	ttl, cdnEnabled, logsEnabled := h.defaultTTL, true, false

	existing, ok := h.GetCDNData(ctx, cdnObjPath)
	if ok {
		ttl, cdnEnabled, logsEnabled = existing.TTL, existing.CDNEnabled, existing.LogsEnabled
	} else if r.Method == http.MethodPost {
		http.NotFound(w, r)
		return
	}

	if v := r.Header.Get("X-TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid X-TTL, must be integer", http.StatusBadRequest)
			return
		}
		ttl = n
	}
	if ttl < h.minTTL || ttl > h.maxTTL {
		http.Error(w, fmt.Sprintf("Invalid X-TTL, must be between %d and %d", h.minTTL, h.maxTTL), http.StatusBadRequest)
		return
	}

	var logMsgs []string
	if v := r.Header.Get("X-Log-Retention"); v != "" {
		logsEnabled = isTrueParam(v)
		logMsgs = append(logMsgs, "X-Log-Retention: "+strconv.FormatBool(logsEnabled))
	}
	if v := r.Header.Get("X-CDN-Enabled"); v != "" {
		cdnEnabled = isTrueParam(v)
		logMsgs = append(logMsgs, "X-CDN-Enabled: "+strconv.FormatBool(cdnEnabled))
	}
	if r.Header.Get("X-TTL") != "" {
		logMsgs = append(logMsgs, fmt.Sprintf("X-TTL: %d", ttl))
	}
	if len(logMsgs) > 0 {
		LogInfo(ctx, "Set CDN metadata "+strings.Join(logMsgs, ", "), container, hsh, account)
	}

	newHashData := metadata.New(account, container, ttl, cdnEnabled, logsEnabled)
	cdnObjData, err := newHashData.Serialize()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	sum := md5.Sum(cdnObjData)
	etag := hex.EncodeToString(sum[:])

	if cdnEnabled {
		LogInfo(ctx, "CDN enable", container, hsh, account)
	}

	objResp, err := h.Backend.Put(ctx, cdnObjPath, bytes.NewReader(cdnObjData), http.Header{"Etag": {etag}})
	if err != nil {
		http.Error(w, "origin db failure", http.StatusBadGateway)
		return
	}
	objResp.Body.Close()
	if objResp.StatusCode/100 != 2 {
		http.Error(w, "could not put hash object", http.StatusBadGateway)
		return
	}
	if h.Cache != nil {
		_ = cache.Store(ctx, h.Cache, h.CacheCompression, h.cdnDataCacheKey(cdnObjPath), cache.Entry{Data: cdnObjData}, positiveTTL)
	}

	listingContPath := fmt.Sprintf("/v1/%s/%s", h.Cfg.OriginAccount, account)
	headResp, err := h.Backend.Head(ctx, listingContPath, nil)
	if err != nil {
		http.Error(w, "origin db failure", http.StatusBadGateway)
		return
	}
	headResp.Body.Close()
	if headResp.StatusCode == http.StatusNotFound {
		createResp, err := h.Backend.Put(ctx, listingContPath, nil, nil)
		if err != nil {
			http.Error(w, "origin db failure", http.StatusBadGateway)
			return
		}
		createResp.Body.Close()
		if createResp.StatusCode/100 != 2 {
			http.Error(w, "could not create listing container", http.StatusBadGateway)
			return
		}
	}

	listPath := fmt.Sprintf("/v1/%s/%s/%s", h.Cfg.OriginAccount, account, container)
	listHeaders := http.Header{
		"Content-Type":   {metadata.ListingContentType(cdnEnabled, ttl, logsEnabled)},
		"Content-Length": {"0"},
	}
	listResp, err := h.Backend.Do(ctx, r.Method, listPath, nil, listHeaders)
	if err != nil {
		http.Error(w, "origin db failure", http.StatusBadGateway)
		return
	}
	listResp.Body.Close()
	if listResp.StatusCode/100 != 2 {
		http.Error(w, "could not update cdn listing", http.StatusBadGateway)
		return
	}

	urls, err := h.GetCDNURLs(hsh, "HEAD", "")
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for k, v := range urls {
		w.Header().Set(k, v)
	}

	if r.Method == http.MethodPost {
		w.WriteHeader(http.StatusAccepted)
	} else {
		w.WriteHeader(http.StatusCreated)
	}
}

func boolHeader(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func isTrueParam(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on", "t", "y":
		return true
	}
	return false
}

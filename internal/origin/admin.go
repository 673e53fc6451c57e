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
	"fmt"
	"net/http"
	"path"

	"github.com/Comcast/sos-origin/internal/util/log"
)

// AdminHandler serves the single-purpose `.prep` call that provisions the
// backing account and its hash-id shard containers, the Go analogue of the
// original's AdminHandler.
type AdminHandler struct {
	*Base
	adminKey string
}

// NewAdminHandler builds an AdminHandler from b and the configured admin key.
func NewAdminHandler(b *Base, adminKey string) *AdminHandler {
	return &AdminHandler{Base: b, adminKey: adminKey}
}

// IsOriginAdmin reports whether r carries the fixed admin identity and the
// configured shared secret, matching the original's is_origin_admin.
func (h *AdminHandler) IsOriginAdmin(r *http.Request) bool {
	return h.adminKey != "" &&
		r.Header.Get("X-Origin-Admin-User") == ".origin_admin" &&
		r.Header.Get("X-Origin-Admin-Key") == h.adminKey
}

// ServeHTTP implements the `.prep` admin call: it creates the origin account
// and its N hash shard containers in the backing store, matching the
// original's AdminHandler.handle_request.
func (h *AdminHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.IsOriginAdmin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// The dispatcher only routes here when the path already matches the
	// configured admin prefix; the only thing left to check is the trailing
	// marker segment, matching the original's `account == '.prep'` check.
	if path.Base(r.URL.Path) != ".prep" {
		http.NotFound(w, r)
		return
	}

	acctPath := fmt.Sprintf("/v1/%s", h.Cfg.OriginAccount)
	if err := h.createContainer(ctx, acctPath); err != nil {
		log.Error("could not create origin account", log.Pairs{"path": acctPath, "error": err.Error()})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	for i := 0; i < h.Cfg.NumberHashIDContainers; i++ {
		contName := fmt.Sprintf(".hash_%d", i)
		contPath := fmt.Sprintf("/v1/%s/%s", h.Cfg.OriginAccount, contName)
		if err := h.createContainer(ctx, contPath); err != nil {
			log.Error("could not create hash container", log.Pairs{"container": contName, "path": contPath, "error": err.Error()})
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// createContainer issues the pre-authenticated PUT that creates path as a
// container, succeeding only on a 2xx response.
func (h *AdminHandler) createContainer(ctx context.Context, path string) error {
	resp, err := h.Backend.Put(ctx, path, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("unexpected status %d creating %s", resp.StatusCode, path)
	}
	return nil
}

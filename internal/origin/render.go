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
	"fmt"
	"sort"
	"strings"

	"github.com/Comcast/sos-origin/internal/metadata"
)

// swiftListingEntry is one row of a Swift container-listing JSON response:
// just enough of the shape to recover the container name and the synthetic
// x-cdn/... content-type this system wrote when the container was enabled.
type swiftListingEntry struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
}

// listingRow is one parsed, render-ready row of an account listing,
// carrying both the plain container name (text format) and the richer
// fields used by json/xml, mirroring _parse_container_listing's two shapes.
type listingRow struct {
	Container   string
	CDNEnabled  bool
	TTL         int
	LogsEnabled bool
	URLs        map[string]string
}

// parseContainerListing decodes one Swift container-listing row into a
// listingRow, applying the only_cdn_enabled filter, matching the original's
// _parse_container_listing. A nil row with a nil error means the row was
// filtered out, not that it failed to parse.
func (h *OriginDBHandler) parseContainerListing(account string, entry swiftListingEntry, outputFormat string, onlyCDNEnabled *bool) (*listingRow, error) {
	le, err := metadata.ParseListingContentType(entry.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %s", ErrInvalidContentType, account, entry.Name, entry.ContentType)
	}
	if onlyCDNEnabled != nil && *onlyCDNEnabled != le.CDNEnabled {
		return nil, nil
	}

	row := &listingRow{Container: entry.Name, CDNEnabled: le.CDNEnabled, TTL: le.TTL, LogsEnabled: le.LogsEnabled}
	if outputFormat != "json" && outputFormat != "xml" {
		return row, nil
	}

	hsh := h.HashPath(account, entry.Name)
	urls, err := h.GetCDNURLs(hsh, "GET", outputFormat)
	if err != nil {
		urls = map[string]string{}
	}
	row.URLs = urls
	return row, nil
}

// renderPlain renders rows as newline-separated container names, matching
// the text/plain branch of origin_db_get.
func renderPlain(rows []*listingRow) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(r.Container)
		b.WriteByte('\n')
	}
	return b.String()
}

// renderJSON renders rows as a JSON array of objects carrying name,
// cdn_enabled, ttl, log_retention, and the outgoing URL fields, matching
// the json branch of origin_db_get.
func renderJSON(rows []*listingRow) (string, error) {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		m := map[string]interface{}{
			"name":          r.Container,
			"cdn_enabled":   r.CDNEnabled,
			"ttl":           r.TTL,
			"log_retention": r.LogsEnabled,
		}
		for k, v := range r.URLs {
			m[k] = v
		}
		out = append(out, m)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// renderXML renders rows as a sequence of <container> elements with one
// child element per field, matching the xml branch of origin_db_get.
func renderXML(account string, rows []*listingRow) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, "<account name=%q>\n", account)
	for _, r := range rows {
		fields := map[string]interface{}{
			"name":          r.Container,
			"cdn_enabled":   r.CDNEnabled,
			"ttl":           r.TTL,
			"log_retention": r.LogsEnabled,
		}
		for k, v := range r.URLs {
			fields[k] = v
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("  <container>\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "    <%s>%v</%s>\n", k, fields[k], k)
		}
		b.WriteString("  </container>\n")
	}
	b.WriteString("</account>")
	return b.String()
}

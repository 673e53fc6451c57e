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

// Package metadata defines HashData, the per-container CDN metadata record
// stored under the hashed container key, and its wire serialization.
package metadata

import (
	"encoding/json"
	"fmt"
)

// HashData is the per-container record describing whether CDN delivery is
// enabled for a container, its TTL, and whether access logs are collected.
type HashData struct {
	Account      string `json:"account"`
	Container    string `json:"container"`
	TTL          int    `json:"ttl"`
	CDNEnabled   bool   `json:"cdn_enabled"`
	LogsEnabled  bool   `json:"logs_enabled"`
}

// Serialize renders h as the self-describing text form stored in the cache
// and in the backing hash-id object, matching the original's json.dumps output.
func (h HashData) Serialize() ([]byte, error) {
	return json.Marshal(h)
}

// String implements fmt.Stringer by returning the serialized form, mirroring
// the original's __str__ returning get_json_str().
func (h HashData) String() string {
	b, err := h.Serialize()
	if err != nil {
		return fmt.Sprintf("<invalid HashData: %v>", err)
	}
	return string(b)
}

// Parse decodes a serialized HashData record, returning an error if the
// JSON is malformed or any required field is absent. A plain struct
// unmarshal cannot distinguish "field omitted" from "field present at its
// zero value", so this decodes through a raw-message map first.
func Parse(data []byte) (HashData, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return HashData{}, fmt.Errorf("metadata: invalid json: %w", err)
	}

	required := []string{"account", "container", "ttl", "cdn_enabled", "logs_enabled"}
	for _, f := range required {
		if _, ok := raw[f]; !ok {
			return HashData{}, fmt.Errorf("metadata: missing field %q", f)
		}
	}

	var h HashData
	if err := json.Unmarshal(raw["account"], &h.Account); err != nil {
		return HashData{}, fmt.Errorf("metadata: field account: %w", err)
	}
	if err := json.Unmarshal(raw["container"], &h.Container); err != nil {
		return HashData{}, fmt.Errorf("metadata: field container: %w", err)
	}
	if err := json.Unmarshal(raw["ttl"], &h.TTL); err != nil {
		return HashData{}, fmt.Errorf("metadata: field ttl: %w", err)
	}
	if err := json.Unmarshal(raw["cdn_enabled"], &h.CDNEnabled); err != nil {
		return HashData{}, fmt.Errorf("metadata: field cdn_enabled: %w", err)
	}
	if err := json.Unmarshal(raw["logs_enabled"], &h.LogsEnabled); err != nil {
		return HashData{}, fmt.Errorf("metadata: field logs_enabled: %w", err)
	}

	return h, nil
}

// New constructs a HashData from the given fields unchanged; it does not
// validate the account or container names.
func New(account, container string, ttl int, cdnEnabled, logsEnabled bool) HashData {
	return HashData{
		Account:     account,
		Container:   container,
		TTL:         ttl,
		CDNEnabled:  cdnEnabled,
		LogsEnabled: logsEnabled,
	}
}

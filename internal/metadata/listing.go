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

package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// listingContentTypePrefix is the synthetic content-type the tenant API
// writes onto each container's listing entry to carry its CDN state, so a
// plain container listing of the origin account doubles as an index of
// every CDN-enabled container without a second round-trip per container.
const listingContentTypePrefix = "x-cdn/"

// ListingContentType formats the synthetic content-type string encoding a
// container's CDN state, read back later by ParseListingContentType.
func ListingContentType(cdnEnabled bool, ttl int, logsEnabled bool) string {
	return fmt.Sprintf("%s%s-%d-%s", listingContentTypePrefix, boolStr(cdnEnabled), ttl, boolStr(logsEnabled))
}

// ListingEntry is the parsed form of one container's synthetic listing entry.
type ListingEntry struct {
	CDNEnabled  bool
	TTL         int
	LogsEnabled bool
}

// ErrInvalidContentType indicates a listing entry's content-type did not
// match the "x-cdn/<bool>-<ttl>-<bool>" format this system writes.
var ErrInvalidContentType = fmt.Errorf("metadata: invalid listing content-type")

// ParseListingContentType parses the content-type string generated by
// ListingContentType back into its components.
func ParseListingContentType(contentType string) (ListingEntry, error) {
	if !strings.HasPrefix(contentType, listingContentTypePrefix) {
		return ListingEntry{}, ErrInvalidContentType
	}
	rest := strings.TrimPrefix(contentType, listingContentTypePrefix)
	parts := strings.Split(rest, "-")
	if len(parts) != 3 {
		return ListingEntry{}, ErrInvalidContentType
	}
	ttl, err := strconv.Atoi(parts[1])
	if err != nil {
		return ListingEntry{}, ErrInvalidContentType
	}
	return ListingEntry{
		CDNEnabled:  isTrue(parts[0]),
		TTL:         ttl,
		LogsEnabled: isTrue(parts[2]),
	}, nil
}

func boolStr(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// isTrue matches the original's TRUE_VALUES case-insensitive check.
func isTrue(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on", "t", "y":
		return true
	}
	return false
}

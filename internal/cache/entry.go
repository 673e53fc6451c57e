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

package cache

import (
	"context"
	"time"

	"github.com/golang/snappy"
)

// negativeSentinel is the exact byte sequence the original implementation
// writes into memcache to remember that a container has no HashData. Kept
// bit-for-bit so the wire format matches, even though this is now one
// provider-agnostic layer rather than a raw memcache value.
const negativeSentinel = "404"

// Entry is the tagged variant stored by Base.GetCDNData: either a
// negative lookup (the container has no CDN metadata) or a positive one
// carrying a serialized HashData record.
type Entry struct {
	Negative bool
	Data     []byte
}

// Encode renders an Entry to the bytes a Provider stores, optionally
// snappy-compressing the payload of a positive entry.
func Encode(e Entry, compress bool) []byte {
	if e.Negative {
		return []byte(negativeSentinel)
	}
	if compress {
		return snappy.Encode(nil, e.Data)
	}
	return e.Data
}

// Decode reverses Encode, recognizing the negative sentinel before
// attempting to decompress, since a 3-byte sentinel is never snappy data.
func Decode(raw []byte, compress bool) (Entry, error) {
	if string(raw) == negativeSentinel {
		return Entry{Negative: true}, nil
	}
	if !compress {
		return Entry{Data: raw}, nil
	}
	data, err := snappy.Decode(nil, raw)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Data: data}, nil
}

// Store is a convenience wrapper combining Encode with a Provider.Store call.
func Store(ctx context.Context, p Provider, compress bool, key string, e Entry, ttl time.Duration) error {
	return p.Store(ctx, key, Encode(e, compress), ttl)
}

// Retrieve is a convenience wrapper combining a Provider.Retrieve call with Decode.
func Retrieve(ctx context.Context, p Provider, compress bool, key string) (Entry, error) {
	raw, err := p.Retrieve(ctx, key)
	if err != nil {
		return Entry{}, err
	}
	return Decode(raw, compress)
}

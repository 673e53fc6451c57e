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

// Package cache defines the byte-oriented key/value interface shared by every
// cache backend (memory, filesystem, bbolt, badger, redis), and the tagged
// Entry encoding layered on top of it that lets a single provider hold both
// positive and negative (not-found) HashData lookups.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Retrieve when no unexpired value is stored
// under the given key.
var ErrKeyNotFound = errors.New("cache: key not found")

// Provider is implemented identically by every cache backend this system
// supports. A Provider only knows about opaque byte slices and TTLs; the
// Entry type above it is what gives those bytes meaning.
type Provider interface {
	// Connect prepares the backend for use (opens a file, dials a server).
	Connect() error
	// Store writes data under key, expiring after ttl.
	Store(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Retrieve returns the data stored under key, or ErrKeyNotFound.
	Retrieve(ctx context.Context, key string) ([]byte, error)
	// Remove deletes key, if present. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases any resources held by the backend.
	Close() error
	// Name identifies the provider for logs and metrics labels.
	Name() string
}

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
	"crypto/rand"
	"encoding/hex"
	"time"
)

type ctxKey int

const (
	startTimeKey ctxKey = iota
	transIDKey
)

// WithStartTime stamps ctx with the current time, the Go analogue of the
// original's env['sos.start_time'], used to compute elapsed request time
// for the access log and for logInfo's trailing duration field.
func WithStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, startTimeKey, time.Now())
}

// StartTime returns the time stamped by WithStartTime, or the zero time if
// ctx carries none.
func StartTime(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey).(time.Time)
	return t
}

// Elapsed returns the time since WithStartTime was called on ctx, or zero
// if ctx carries no start time.
func Elapsed(ctx context.Context) time.Duration {
	st := StartTime(ctx)
	if st.IsZero() {
		return 0
	}
	return time.Since(st)
}

// WithTransID stamps ctx with a freshly generated request id, the Go
// analogue of the original's env['swift.trans_id'].
func WithTransID(ctx context.Context) context.Context {
	return context.WithValue(ctx, transIDKey, newTransID())
}

// TransID returns the request id stamped by WithTransID, or "-" if ctx
// carries none, matching the original's log fallback.
func TransID(ctx context.Context) string {
	if id, ok := ctx.Value(transIDKey).(string); ok && id != "" {
		return id
	}
	return "-"
}

func newTransID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "tx-unknown"
	}
	return "tx" + hex.EncodeToString(b[:])
}

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

// Package metrics exposes the Prometheus counters and histograms observed
// across the admin, tenant-db, and cdn-edge surfaces, and the Decorate
// middleware that wraps every request in them.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestStatus counts requests by surface, method, and status code.
	RequestStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sos_origin",
		Name:      "requests_total",
		Help:      "Count of requests handled, by surface, method and status code.",
	}, []string{"surface", "method", "status"})

	// RequestDuration observes request latency by surface.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sos_origin",
		Name:      "request_duration_seconds",
		Help:      "Time to handle a request, by surface.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"surface"})

	// CacheRequestStatus counts cache lookups by outcome (hit/miss/negative).
	CacheRequestStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sos_origin",
		Name:      "cache_requests_total",
		Help:      "Count of cache lookups, by cache name and outcome.",
	}, []string{"cache", "outcome"})
)

func init() {
	prometheus.MustRegister(RequestStatus, RequestDuration, CacheRequestStatus)
}

// statusWriter captures the status code written by a downstream handler so
// Decorate can label the request counter after ServeHTTP returns.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Decorate wraps next, observing RequestStatus and RequestDuration labeled
// by surface, the way the teacher's registration package wraps every
// registered route in its own request-status/duration instrumentation.
func Decorate(surface string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		RequestDuration.WithLabelValues(surface).Observe(time.Since(start).Seconds())
		RequestStatus.WithLabelValues(surface, r.Method, strconv.Itoa(sw.status)).Inc()
	})
}

// Handler returns the Prometheus exposition HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

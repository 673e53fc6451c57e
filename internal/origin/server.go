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
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Comcast/sos-origin/internal/config"
	"github.com/Comcast/sos-origin/internal/util/log"
	"github.com/Comcast/sos-origin/internal/util/metrics"
	"github.com/Comcast/sos-origin/internal/util/middleware"
)

// surface names used for metrics and tracing grouping.
const (
	SurfaceAdmin = "admin"
	SurfaceDB    = "db"
	SurfaceCDN   = "cdn"
)

// Server dispatches each incoming request to the admin, tenant-database, or
// public CDN edge surface by host and path, matching the original's
// OriginServer.__call__ precedence: admin path prefix wins outright, then a
// CDN host-suffix match, then an exact origin_db_hosts match.
type Server struct {
	cfg       *config.OriginSection
	admin     *AdminHandler
	db        *OriginDBHandler
	cdn       *CDNHandler
	logAccess bool
	// next receives any request matching none of the three surfaces,
	// mirroring the original's WSGI "app" this middleware wraps. When nil,
	// such requests get a 404 directly, which is what a standalone binary
	// with nothing to wrap down to needs.
	next http.Handler
}

// NewServer builds the combined dispatcher from its three surface handlers.
func NewServer(cfg *config.OriginSection, admin *AdminHandler, db *OriginDBHandler, cdn *CDNHandler) *Server {
	return &Server{cfg: cfg, admin: admin, db: db, cdn: cdn, logAccess: cfg.LogAccessRequests}
}

// SetNext installs the handler an unmatched request falls through to,
// the Go analogue of the WSGI app the original middleware wraps.
func (s *Server) SetNext(next http.Handler) {
	s.next = next
}

// Router builds the top-level mux.Router: a liveness endpoint, a redacted
// config dump, a metrics exposition endpoint, and the catch-all origin
// dispatch wrapped in per-surface tracing and metrics middleware.
func (s *Server) Router(pingPath, configPath string) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc(pingPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	r.HandleFunc(configPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/toml")
		_, _ = w.Write([]byte(config.Config.String()))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.PathPrefix("/").Handler(s.dispatch())
	return r
}

// dispatch selects a surface per request and wraps it with the standard
// context stamping, tracing span, access log, and metrics decoration,
// matching the behavior of OriginServer.__call__ plus _log_request.
func (s *Server) dispatch() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithStartTime(r.Context())
		ctx = WithTransID(ctx)
		r = r.WithContext(ctx)

		handler, surface := s.selectHandler(r)
		if handler == nil {
			log.Debug("no surface matched request, falling through", log.Pairs{"host": r.Host, "path": r.URL.Path})
			if s.next != nil {
				s.next.ServeHTTP(w, r)
			} else {
				http.NotFound(w, r)
			}
			return
		}

		wrapped := metrics.Decorate(surface, middleware.Trace(surface)(handler))
		sw := &statusCapture{ResponseWriter: w, status: http.StatusOK}
		wrapped.ServeHTTP(sw, r)

		if s.logAccess {
			s.logAccessLine(r, sw.status)
		}
	})
}

// selectHandler applies the admin/cdn/db precedence from the original's
// OriginServer.__call__: a path under OriginPrefix always wins, then a
// host-suffix match to the CDN edge, then an exact host match to the
// tenant database.
func (s *Server) selectHandler(r *http.Request) (http.Handler, string) {
	host := hostOnly(r.Host)

	var handler http.Handler
	var surface string

	if contains(s.cfg.OriginDBHosts, host) {
		handler, surface = s.db, SurfaceDB
	}
	for _, suffix := range s.cfg.OriginCDNHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			handler, surface = s.cdn, SurfaceCDN
			break
		}
	}
	if strings.HasPrefix(r.URL.Path, s.cfg.OriginPrefix) {
		handler, surface = s.admin, SurfaceAdmin
	}
	return handler, surface
}

func hostOnly(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return hostport
}

// logAccessLine emits one access-log line carrying the caller, timestamp,
// method, host, path, status, and transaction id, matching the original's
// OriginServer._log_request.
func (s *Server) logAccessLine(r *http.Request, status int) {
	client := r.Header.Get("X-Cluster-Client-Ip")
	if client == "" {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			client = strings.TrimSpace(strings.Split(xff, ",")[0])
		}
	}
	if client == "" {
		client = "-"
	}

	log.Info("access", log.Pairs{
		"client":    client,
		"remote":    r.RemoteAddr,
		"method":    r.Method,
		"host":      r.Host,
		"path":      r.URL.RequestURI(),
		"proto":     r.Proto,
		"status":    status,
		"referer":   orDash(r.Header.Get("Referer")),
		"userAgent": orDash(r.Header.Get("User-Agent")),
		"transId":   TransID(r.Context()),
		"elapsed":   time.Since(StartTime(r.Context())).Seconds(),
	})
}

// statusCapture records the status code an inner handler writes, so the
// access log can report it without buffering the response body.
type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

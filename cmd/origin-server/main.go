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

// Command origin-server runs the combined admin, tenant-database, and
// public CDN edge HTTP listener.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/alecthomas/kong"
	"github.com/gorilla/handlers"

	"github.com/Comcast/sos-origin/internal/backend"
	"github.com/Comcast/sos-origin/internal/cache/registration"
	"github.com/Comcast/sos-origin/internal/config"
	"github.com/Comcast/sos-origin/internal/origin"
	"github.com/Comcast/sos-origin/internal/util/log"
	"github.com/Comcast/sos-origin/internal/util/tracing"
)

// defaultCacheName is the cache section every origin request consults,
// matching the single `[caches.default]` table a minimal deployment needs.
const defaultCacheName = "default"

// cli is the flag surface parsed by kong, the teacher's counterpart to its
// own hand-rolled flag parser: the config file path and a version switch.
var cli struct {
	Config  string `kong:"help='path to the TOML configuration file',short='c',required"`
	Version bool   `kong:"help='print the version and exit'"`
}

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	kong.Parse(&cli, kong.Description("SOS-compatible CDN origin middleware"))

	if cli.Version {
		fmt.Println("origin-server " + version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "origin-server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log.SetDefault(log.New(cfg.Logging))
	for _, w := range config.LoaderWarnings {
		log.Warn(w, nil)
	}

	if cfg.Tracing != nil && cfg.Tracing.Implementation != "" && cfg.Tracing.Implementation != "none" {
		impl, ok := tracing.TracerImplementations[cfg.Tracing.Implementation]
		if !ok {
			return fmt.Errorf("unknown tracer_implementation %q", cfg.Tracing.Implementation)
		}
		shutdown, err := tracing.SetTracer(impl, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			return fmt.Errorf("configuring tracer: %w", err)
		}
		defer shutdown()
	}

	caches, err := registration.LoadCaches(cfg.Caches)
	if err != nil {
		return fmt.Errorf("connecting caches: %w", err)
	}
	defer registration.CloseAll(caches)

	cache, ok := caches[defaultCacheName]
	if !ok {
		return fmt.Errorf("no %q cache configured", defaultCacheName)
	}
	var compress bool
	if cc, ok := cfg.Caches[defaultCacheName]; ok {
		compress = cc.Compression
	}

	beClient := backend.New(cfg.Backend)
	defer beClient.Close()

	base := origin.NewBase(cfg.Origin, beClient, cache, compress, cfg.URLFormats)
	adminHandler := origin.NewAdminHandler(base, cfg.Origin.OriginAdminKey)
	dbHandler := origin.NewOriginDBHandler(base, cfg.Origin.MinTTL, cfg.Origin.MaxTTL, cfg.Origin.DefaultTTL, cfg.Origin.DeleteEnabled)
	cdnHandler, err := origin.NewCDNHandler(base, cfg.IncomingURLRegex, cfg.Origin.MaxCDNFileSizeBytes, cfg.Origin.AllowedOriginRemoteIPs)
	if err != nil {
		return fmt.Errorf("building cdn handler: %w", err)
	}

	srv := origin.NewServer(cfg.Origin, adminHandler, dbHandler, cdnHandler)
	router := srv.Router(cfg.Main.PingHandlerPath, cfg.Main.ConfigHandlerPath)

	handler := handlers.CombinedLoggingHandler(os.Stdout, handlers.RecoveryHandler()(router))

	addr := fmt.Sprintf("%s:%d", cfg.Frontend.ListenAddress, cfg.Frontend.ListenPort)
	log.Info("starting origin-server", log.Pairs{"address": addr})

	return http.ListenAndServe(addr, handler)
}

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

package config

import (
	"bytes"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Comcast/sos-origin/internal/headers"
)

// Config is the running configuration, built once at startup by Load and
// never mutated afterward. Handlers receive it by reference.
var Config *OriginConfig

// LoaderWarnings accumulates non-fatal complaints raised while loading
// config, before the logger exists, so they can be logged once it does.
var LoaderWarnings = make([]string, 0)

// OriginConfig is the root of the running configuration.
type OriginConfig struct {
	Main    *MainConfig    `toml:"main"`
	Backend *BackendConfig `toml:"backend"`
	Origin  *OriginSection `toml:"origin"`

	Caches map[string]*CachingConfig `toml:"caches"`

	Frontend *FrontendConfig `toml:"frontend"`
	Logging  *LoggingConfig  `toml:"logging"`
	Metrics  *MetricsConfig  `toml:"metrics"`
	Tracing  *TracingConfig  `toml:"tracing"`

	URLFormats *OutgoingURLFormatConfig `toml:"outgoing_url_format_sections"`

	// IncomingURLRegex is a named set of regexes tried in ascending order of
	// their names against the full request URL of a CDN edge request; each
	// must carry a "hash"
	// capture group and may carry an "object_name" one.
	IncomingURLRegex map[string]string `toml:"incoming_url_regex"`

	activeCaches map[string]bool
}

// MainConfig holds general, rarely-touched settings.
type MainConfig struct {
	// InstanceID distinguishes multiple instances running on one host in logs.
	InstanceID int `toml:"instance_id"`
	// ConfigHandlerPath exposes the redacted running config for operability.
	ConfigHandlerPath string `toml:"config_handler_path"`
	// PingHandlerPath is a liveness check path.
	PingHandlerPath string `toml:"ping_handler_path"`
}

// BackendConfig describes how to reach the backing object-storage cluster
// and pre-authenticate as the administrative identity used for every
// sub-request this system makes on a tenant's behalf.
type BackendConfig struct {
	// BaseURL is the scheme://host[:port] of the backing store's HTTP API.
	BaseURL string `toml:"base_url"`
	// AdminAuthHeader is the header name carrying the pre-authenticated identity.
	AdminAuthHeader string `toml:"admin_auth_header"`
	// AdminAuthToken is the value sent in AdminAuthHeader on every sub-request.
	AdminAuthToken string `toml:"admin_auth_token"`
	// TimeoutSecs bounds how long a sub-request may take.
	TimeoutSecs int64 `toml:"timeout_secs"`
	// MaxIdleConns caps the idle connection pool to the backend.
	MaxIdleConns int `toml:"max_idle_conns"`
	// KeepAliveTimeoutSecs controls how long idle backend connections live.
	KeepAliveTimeoutSecs int64 `toml:"keep_alive_timeout_secs"`

	// Timeout is the time.Duration form of TimeoutSecs.
	Timeout time.Duration `toml:"-"`
	// KeepAliveTimeout is the time.Duration form of KeepAliveTimeoutSecs.
	KeepAliveTimeout time.Duration `toml:"-"`
}

// OriginSection is the §6 configuration table: the hashing, sharding,
// dispatch, and policy knobs specific to the CDN origin subsystem.
type OriginSection struct {
	// HashPathSuffix is the deployment-wide secret folded into every
	// container key. Required; absence is a fatal startup error.
	HashPathSuffix string `toml:"hash_path_suffix"`
	// OriginAccount is the administrative account holding hash containers
	// and listing containers.
	OriginAccount string `toml:"origin_account"`
	// NumberHashIDContainers is the shard count N for metadata objects.
	NumberHashIDContainers int `toml:"number_hash_id_containers"`
	// NumberDNSShards decouples DNS fan-out from storage fan-out.
	NumberDNSShards int `toml:"number_dns_shards"`

	// HMACSignedURLSecret, when set, enables signed-hostname rewriting.
	HMACSignedURLSecret string `toml:"hmac_signed_url_secret"`
	// HMACTokenLength is how many hex characters of the HMAC digest to keep.
	HMACTokenLength int `toml:"hmac_token_length"`

	// OriginDBHostsCSV is a comma-separated host allowlist for the tenant API.
	OriginDBHostsCSV string `toml:"origin_db_hosts"`
	// OriginCDNHostSuffixesCSV is a comma-separated suffix allowlist for the
	// public edge. Required, non-empty.
	OriginCDNHostSuffixesCSV string `toml:"origin_cdn_host_suffixes"`
	// OriginPrefix is the path prefix routed to the admin surface.
	OriginPrefix string `toml:"origin_prefix"`

	// MinTTL, MaxTTL, DefaultTTL bound and default the per-container TTL.
	MinTTL     int `toml:"min_ttl"`
	MaxTTL     int `toml:"max_ttl"`
	DefaultTTL int `toml:"default_ttl"`

	// DeleteEnabled gates whether DELETE is served on the tenant API.
	DeleteEnabled bool `toml:"delete_enabled"`
	// MaxCDNFileSizeBytes bounds the size of an object the edge will stream.
	MaxCDNFileSizeBytes int64 `toml:"max_cdn_file_size"`

	// AllowedOriginRemoteIPsCSV optionally restricts the edge surface by
	// remote address.
	AllowedOriginRemoteIPsCSV string `toml:"allowed_origin_remote_ips"`

	// OriginAdminKey is the shared secret gating the admin `.prep` call.
	OriginAdminKey string `toml:"origin_admin_key"`

	// LogAccessRequests enables the access log line in the dispatcher.
	LogAccessRequests bool `toml:"log_access_requests"`

	// Synthesized from the CSV fields above at load time.
	OriginDBHosts          []string `toml:"-"`
	OriginCDNHostSuffixes  []string `toml:"-"`
	AllowedOriginRemoteIPs []string `toml:"-"`
}

// FrontendConfig configures the combined HTTP listener serving all three surfaces.
type FrontendConfig struct {
	ListenAddress    string `toml:"listen_address"`
	ListenPort       int    `toml:"listen_port"`
	ConnectionsLimit int    `toml:"connections_limit"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	LogFile  string `toml:"log_file"`
	LogLevel string `toml:"log_level"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Implementation    string `toml:"tracer_implementation"`
	CollectorEndpoint string `toml:"tracing_collector"`
}

// OutgoingURLFormatConfig is the set of `outgoing_url_format*` TOML
// sections used by the precedence walk in §4.3.
type OutgoingURLFormatConfig struct {
	Default  map[string]string `toml:"outgoing_url_format"`
	Get      map[string]string `toml:"outgoing_url_format_get"`
	Head     map[string]string `toml:"outgoing_url_format_head"`
	GetJSON  map[string]string `toml:"outgoing_url_format_get_json"`
	GetXML   map[string]string `toml:"outgoing_url_format_get_xml"`
	HeadJSON map[string]string `toml:"outgoing_url_format_head_json"`
	HeadXML  map[string]string `toml:"outgoing_url_format_head_xml"`
}

// Select walks the precedence list for the given method ("get"/"head") and
// listing-format tag ("json"/"xml"/""), returning the first non-empty
// section found.
func (o *OutgoingURLFormatConfig) Select(method, tag string) map[string]string {
	if o == nil {
		return nil
	}
	method = strings.ToLower(method)
	if tag != "" {
		if m := o.bySuffix(method, tag); len(m) > 0 {
			return m
		}
	}
	if m := o.bySuffix(method, ""); len(m) > 0 {
		return m
	}
	return o.Default
}

func (o *OutgoingURLFormatConfig) bySuffix(method, tag string) map[string]string {
	switch {
	case method == "get" && tag == "json":
		return o.GetJSON
	case method == "get" && tag == "xml":
		return o.GetXML
	case method == "get":
		return o.Get
	case method == "head" && tag == "json":
		return o.HeadJSON
	case method == "head" && tag == "xml":
		return o.HeadXML
	case method == "head":
		return o.Head
	}
	return nil
}

// NewConfig returns an OriginConfig initialized with default values.
func NewConfig() *OriginConfig {
	return &OriginConfig{
		Main: &MainConfig{
			ConfigHandlerPath: defaultConfigHandlerPath,
			PingHandlerPath:   defaultPingHandlerPath,
		},
		Backend: &BackendConfig{
			AdminAuthHeader:      defaultAdminAuthHeader,
			TimeoutSecs:          defaultBackendTimeoutSecs,
			MaxIdleConns:         defaultMaxIdleConns,
			KeepAliveTimeoutSecs: defaultKeepAliveTimeoutSecs,
		},
		Origin: &OriginSection{
			OriginAccount:          defaultOriginAccount,
			NumberHashIDContainers: defaultNumberHashIDContainers,
			NumberDNSShards:        defaultNumberDNSShards,
			HMACTokenLength:        defaultHMACTokenLength,
			OriginPrefix:           defaultOriginPrefix,
			MinTTL:                 defaultMinTTL,
			MaxTTL:                 defaultMaxTTL,
			DefaultTTL:             defaultDefaultTTL,
			DeleteEnabled:          true,
			MaxCDNFileSizeBytes:    defaultMaxCDNFileSizeBytes,
			LogAccessRequests:      true,
		},
		Caches: map[string]*CachingConfig{
			"default": NewCacheConfig(),
		},
		Frontend: &FrontendConfig{
			ListenPort: defaultFrontendListenPort,
		},
		Logging: &LoggingConfig{
			LogFile:  defaultLogFile,
			LogLevel: defaultLogLevel,
		},
		Metrics: &MetricsConfig{
			ListenPort: defaultMetricsListenPort,
		},
		Tracing: &TracingConfig{
			Implementation: defaultTracerImplementation,
		},
		URLFormats:       &OutgoingURLFormatConfig{},
		IncomingURLRegex: map[string]string{},
	}
}

func (c *OriginConfig) copy() *OriginConfig {
	nc := NewConfig()
	delete(nc.Caches, "default")

	*nc.Main = *c.Main
	*nc.Backend = *c.Backend
	*nc.Origin = *c.Origin
	*nc.Frontend = *c.Frontend
	*nc.Logging = *c.Logging
	*nc.Metrics = *c.Metrics
	*nc.Tracing = *c.Tracing

	for k, v := range c.Caches {
		nc.Caches[k] = v.Copy()
	}
	nc.IncomingURLRegex = map[string]string{}
	for k, v := range c.IncomingURLRegex {
		nc.IncomingURLRegex[k] = v
	}
	return nc
}

// String renders the running configuration as TOML, redacting secrets.
func (c *OriginConfig) String() string {
	cp := c.copy()

	if cp.Origin.HashPathSuffix != "" {
		cp.Origin.HashPathSuffix = "*****"
	}
	if cp.Origin.HMACSignedURLSecret != "" {
		cp.Origin.HMACSignedURLSecret = "*****"
	}
	if cp.Origin.OriginAdminKey != "" {
		cp.Origin.OriginAdminKey = "*****"
	}
	if cp.Backend.AdminAuthToken != "" {
		cp.Backend.AdminAuthToken = "*****"
	}
	for _, v := range cp.Caches {
		if v.Redis.Password != "" {
			v.Redis.Password = "*****"
		}
	}

	var buf bytes.Buffer
	e := toml.NewEncoder(&buf)
	e.Encode(cp)
	return buf.String()
}

var sensitiveCredentials = map[string]bool{headers.NameAuthorization: true}

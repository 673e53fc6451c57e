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

const (
	defaultConfigHandlerPath = "/origin-server/config"
	defaultPingHandlerPath   = "/origin-server/ping"

	defaultAdminAuthHeader      = "X-Storage-Token"
	defaultBackendTimeoutSecs   = int64(30)
	defaultMaxIdleConns         = 64
	defaultKeepAliveTimeoutSecs = int64(300)

	defaultOriginAccount          = ".origin"
	defaultNumberHashIDContainers = 100
	defaultNumberDNSShards        = 100
	defaultHMACTokenLength        = 20
	defaultOriginPrefix           = "/origin-server/prep"

	defaultMinTTL              = 900
	defaultMaxTTL              = 1577836800
	defaultDefaultTTL          = 3600
	defaultMaxCDNFileSizeBytes = int64(5 * 1024 * 1024 * 1024)

	defaultFrontendListenPort = 8090

	defaultLogFile  = ""
	defaultLogLevel = "info"

	defaultMetricsListenPort = 8091

	defaultTracerImplementation = "none"

	defaultCacheType          = "memory"
	defaultCacheTypeID        = CacheTypeMemory
	defaultCacheCompression   = false
	defaultCacheIndexReapSecs = 3
	defaultCacheMaxSizeBytes  = int64(512 * 1024 * 1024)

	defaultRedisClientType = "standard"
	defaultRedisEndpoint   = "redis:6379"

	defaultCachePath   = "/tmp/origin-server/cache"
	defaultBBoltFile   = "/tmp/origin-server/cache/cache.db"
	defaultBBoltBucket = "origin-server"

	// defaultNegativeTTLSecs is the cache lifetime of a negative (404)
	// HashData lookup, short so a freshly-created container is picked up
	// quickly (spec §4.3 / §9).
	defaultNegativeTTLSecs = 30
)

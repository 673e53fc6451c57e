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
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverlay is the subset of OriginConfig exposed for environment variable
// override, one level deep, matching the fields an operator most commonly
// needs to pin per-deployment without editing the TOML file (credentials,
// listen addresses, log level).
type envOverlay struct {
	BackendBaseURL       string `env:"ORIGIN_BACKEND_BASE_URL"`
	BackendAdminAuthToken string `env:"ORIGIN_BACKEND_ADMIN_AUTH_TOKEN"`

	OriginHashPathSuffix      string `env:"ORIGIN_HASH_PATH_SUFFIX"`
	OriginHMACSignedURLSecret string `env:"ORIGIN_HMAC_SIGNED_URL_SECRET"`
	OriginAdminKey            string `env:"ORIGIN_ADMIN_KEY"`

	FrontendListenAddress string `env:"ORIGIN_FRONTEND_LISTEN_ADDRESS"`
	FrontendListenPort    int    `env:"ORIGIN_FRONTEND_LISTEN_PORT"`

	LoggingLogLevel string `env:"ORIGIN_LOG_LEVEL"`
	LoggingLogFile  string `env:"ORIGIN_LOG_FILE"`
}

// loadEnv overlays environment variables onto c, overriding any value also
// set by the TOML file, the way the teacher's loadEnvVars step runs after
// loadFile and before loadFlags.
func (c *OriginConfig) loadEnv() error {
	var eo envOverlay
	if err := env.Parse(&eo); err != nil {
		return fmt.Errorf("parsing environment overrides: %w", err)
	}

	if eo.BackendBaseURL != "" {
		c.Backend.BaseURL = eo.BackendBaseURL
	}
	if eo.BackendAdminAuthToken != "" {
		c.Backend.AdminAuthToken = eo.BackendAdminAuthToken
	}
	if eo.OriginHashPathSuffix != "" {
		c.Origin.HashPathSuffix = eo.OriginHashPathSuffix
	}
	if eo.OriginHMACSignedURLSecret != "" {
		c.Origin.HMACSignedURLSecret = eo.OriginHMACSignedURLSecret
	}
	if eo.OriginAdminKey != "" {
		c.Origin.OriginAdminKey = eo.OriginAdminKey
	}
	if eo.FrontendListenAddress != "" {
		c.Frontend.ListenAddress = eo.FrontendListenAddress
	}
	if eo.FrontendListenPort != 0 {
		c.Frontend.ListenPort = eo.FrontendListenPort
	}
	if eo.LoggingLogLevel != "" {
		c.Logging.LogLevel = eo.LoggingLogLevel
	}
	if eo.LoggingLogFile != "" {
		c.Logging.LogFile = eo.LoggingLogFile
	}

	return nil
}

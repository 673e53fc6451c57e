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

// Package backend issues pre-authenticated sub-requests to the backing
// object-storage cluster, the Go analogue of the original's
// make_pre_authed_request: every call carries the administrative identity
// configured in BackendConfig rather than the end user's own credentials.
package backend

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Comcast/sos-origin/internal/config"
	"github.com/Comcast/sos-origin/internal/headers"
)

// Client issues authenticated sub-requests against the backing cluster.
type Client struct {
	baseURL    string
	authHeader string
	authToken  string
	hc         *http.Client
}

// New builds a Client from the backend section of the running configuration.
// Redirect responses from the backend are returned to the caller, not followed.
func New(cfg *config.BackendConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		authHeader: cfg.AdminAuthHeader,
		authToken:  cfg.AdminAuthToken,
		hc: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConns,
				IdleConnTimeout:     cfg.KeepAliveTimeout,
			},
		},
	}
}

// Do issues an authenticated request for method/path, attaching the
// configured administrative identity and any extra headers supplied by the
// caller, and returns the raw *http.Response for the caller to drain and close.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, extra http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.authHeader, c.authToken)
	req.Header.Set(headers.NameUserAgent, "sos-origin")
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.hc.Do(req)
}

// Get issues a pre-authenticated GET.
func (c *Client) Get(ctx context.Context, path string, extra http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, extra)
}

// Head issues a pre-authenticated HEAD.
func (c *Client) Head(ctx context.Context, path string, extra http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodHead, path, nil, extra)
}

// Put issues a pre-authenticated PUT.
func (c *Client) Put(ctx context.Context, path string, body io.Reader, extra http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, extra)
}

// Post issues a pre-authenticated POST.
func (c *Client) Post(ctx context.Context, path string, body io.Reader, extra http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, extra)
}

// Delete issues a pre-authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string, extra http.Header) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, extra)
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	if t, ok := c.hc.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

// WithTimeout returns a context bounded by the client's configured timeout,
// or ctx unmodified if no deadline is appropriate (timeout <= 0).
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

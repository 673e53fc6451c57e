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

import "errors"

// Sentinel error kinds, the Go analogue of the original's small exception
// hierarchy (InvalidUtf8, InvalidContentType, OriginDbFailure,
// OriginDbNotFound, InvalidConfiguration, OriginRequestNotAllowed).
var (
	ErrInvalidUTF8          = errors.New("origin: invalid utf-8 in request path")
	ErrInvalidPath          = errors.New("origin: invalid request path")
	ErrInvalidContentType   = errors.New("origin: invalid listing content-type")
	ErrNotFound             = errors.New("origin: not found")
	ErrDBFailure            = errors.New("origin: backend database failure")
	ErrRequestNotAllowed    = errors.New("origin: request not allowed")
	ErrInvalidConfiguration = errors.New("origin: invalid configuration")
)

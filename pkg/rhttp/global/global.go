// Copyright 2018-2023 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Package global holds the registry of HTTP services the daemon can mount.
package global

import (
	"net/http"

	"github.com/rs/zerolog"
)

// NewService is the function each service exports to create itself from a
// raw configuration map.
type NewService func(conf map[string]interface{}, log *zerolog.Logger) (Service, error)

// Services is the global service registry, keyed by service name.
var Services = map[string]NewService{}

// Register registers a new HTTP service with name and new function.
// Not thread safe.
func Register(name string, newFunc NewService) {
	Services[name] = newFunc
}

// Service represents a HTTP service.
type Service interface {
	Handler() http.Handler
	Prefix() string
	Close() error
}

// Middleware wraps the composed handler of the server.
type Middleware func(h http.Handler) http.Handler

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

// Package reqid attaches a correlation ID to every request. The ID is
// taken from the X-Request-Id header when the client sends one, minted
// otherwise, echoed on the response and stamped into the context logger.
package reqid

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/cs3org/ooxmld/pkg/appctx"
	"github.com/cs3org/ooxmld/pkg/reqid"
)

// New returns a middleware that stores the log in the context with
// request ID information.
func New(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handler(log, next)
	}
}

func handler(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(reqid.ReqIDHeaderName)
		if id == "" {
			id = reqid.MintReqID()
		}

		ctx := reqid.ContextSetReqID(r.Context(), id)
		sub := log.With().Str("reqid", id).Logger()
		ctx = appctx.WithLogger(ctx, &sub)

		w.Header().Set(reqid.ReqIDHeaderName, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

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

package docproc

import (
	"encoding/json"
	"net/http"

	"github.com/cs3org/ooxmld/pkg/appctx"
	"github.com/cs3org/ooxmld/pkg/errcode"
	"github.com/cs3org/ooxmld/pkg/reqid"
)

func writeOK(w http.ResponseWriter, payload map[string]interface{}) {
	payload["ok"] = true
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *svc) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := appctx.GetLogger(r.Context())

	e := errcode.FromError(err)
	if e.Correlation == "" {
		if id, ok := reqid.ContextGetReqID(r.Context()); ok {
			e = e.WithCorrelation(id)
		}
	}
	log.Error().Msg(e.Error())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":    false,
		"error": e,
	})
}

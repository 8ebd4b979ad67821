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

package errcode

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	tests := map[string]struct {
		err      *Error
		expected string
	}{
		"plain": {
			err:      New(BadZip, "not a zip archive"),
			expected: "ERR[C001] not a zip archive",
		},
		"with_context": {
			err:      New(RelInconsistency, "rename target exists").WithContext("from", "a.xml").WithContext("to", "b.xml"),
			expected: "ERR[C009] rename target exists ctx={from=a.xml to=b.xml}",
		},
		"with_correlation": {
			err:      New(Oversize, "body too large").WithCorrelation("abc-123"),
			expected: "ERR[S018] body too large corr=abc-123",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.err.Error())
		})
	}
}

func TestCategory(t *testing.T) {
	assert.Equal(t, CategoryCore, BadZip.Category())
	assert.Equal(t, CategoryTransport, SessionInUse.Category())
	assert.Equal(t, CategoryValidation, RegexCompile.Category())
	assert.Equal(t, CategoryApp, Internal.Category())
	assert.Equal(t, CategoryUnknown, Code("").Category())
}

func TestRetryable(t *testing.T) {
	for _, c := range []Code{Timeout, UpstreamConnect, UpstreamTransfer, RateLimited} {
		assert.True(t, c.Retryable(), "code %s must be retryable", c)
	}
	for _, c := range []Code{BadZip, Oversize, SessionInUse, RetriesExhausted, Internal} {
		assert.False(t, c.Retryable(), "code %s must be terminal", c)
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, BadZip.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, RegexCompile.HTTPStatus())
	assert.Equal(t, http.StatusRequestTimeout, Timeout.HTTPStatus())
	assert.Equal(t, http.StatusRequestEntityTooLarge, Oversize.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, SessionNotFound.HTTPStatus())
	assert.Equal(t, http.StatusConflict, SessionInUse.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Internal.HTTPStatus())
}

func TestFromError(t *testing.T) {
	inner := New(ContentTypes, "no content type for part")
	wrapped := errors.Wrap(inner, "engine: op 3 failed")

	e := FromError(wrapped)
	require.NotNil(t, e)
	assert.Equal(t, ContentTypes, e.Code)

	e = FromError(errors.New("boom"))
	require.NotNil(t, e)
	assert.Equal(t, Internal, e.Code)
	assert.Equal(t, "internal error", e.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	err := errors.Wrap(New(SessionInUse, "session busy"), "process")
	assert.True(t, errors.Is(err, New(SessionInUse, "")))
	assert.False(t, errors.Is(err, New(SessionNotFound, "")))
}

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

package blobgw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs3org/ooxmld/pkg/blob"
	"github.com/cs3org/ooxmld/pkg/signedurl"
)

const (
	testBase   = "http://blobs.test/blobgw"
	testSecret = "gateway-secret"
)

func newTestSvc(t *testing.T) (*svc, *blob.LocalStore) {
	t.Helper()
	root := t.TempDir()
	log := zerolog.Nop()

	service, err := New(map[string]interface{}{
		"root":     root,
		"base_url": testBase,
		"secret":   testSecret,
	}, &log)
	require.NoError(t, err)

	signer, err := signedurl.NewJWTSignedURL(signedurl.WithSecret(testSecret))
	require.NoError(t, err)
	store, err := blob.NewLocalStore(root, testBase, signer)
	require.NoError(t, err)

	return service.(*svc), store
}

// gatewayRequest turns a signed absolute URL into the request the
// gateway sees after the server stripped the mount prefix.
func gatewayRequest(t *testing.T, method, signedURL string, body string) *http.Request {
	t.Helper()
	u, err := url.Parse(signedURL)
	require.NoError(t, err)
	path := strings.TrimPrefix(u.Path, "/blobgw")
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	return httptest.NewRequest(method, path+"?"+u.RawQuery, reader)
}

func TestUploadThenDownload(t *testing.T) {
	s, store := newTestSvc(t)
	ctx := context.Background()

	up, err := store.SignedUploadURL(ctx, "in-abc", time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, gatewayRequest(t, http.MethodPut, up, "document bytes"))
	require.Equal(t, http.StatusOK, w.Code)

	down, err := store.SignedDownloadURL(ctx, "in-abc", time.Minute)
	require.NoError(t, err)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, gatewayRequest(t, http.MethodGet, down, ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "document bytes", w.Body.String())
}

func TestRejectsWrongOperation(t *testing.T) {
	s, store := newTestSvc(t)

	// a download signature must not authorize an upload
	down, err := store.SignedDownloadURL(context.Background(), "in-abc", time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, gatewayRequest(t, http.MethodPut, down, "x"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRejectsMissingSignature(t *testing.T) {
	s, _ := newTestSvc(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/in-abc", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRejectsForeignSignature(t *testing.T) {
	s, _ := newTestSvc(t)

	other, err := signedurl.NewJWTSignedURL(signedurl.WithSecret("some-other-secret"))
	require.NoError(t, err)
	forged, err := other.Sign(testBase+"/in-abc", "in-abc", signedurl.OpDownload, time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, gatewayRequest(t, http.MethodGet, forged, ""))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDownloadMissingBlob(t *testing.T) {
	s, store := newTestSvc(t)

	down, err := store.SignedDownloadURL(context.Background(), "in-never-uploaded", time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, gatewayRequest(t, http.MethodGet, down, ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

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

package blob

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs3org/ooxmld/pkg/signedurl"
)

func newLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	signer, err := signedurl.NewJWTSignedURL(signedurl.WithSecret("test-secret"))
	require.NoError(t, err)
	bs, err := NewLocalStore(t.TempDir(), "http://localhost:9100/blobgw", signer)
	require.NoError(t, err)
	return bs
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	bs := newLocalStore(t)

	require.NoError(t, bs.Upload(ctx, "in-abc", strings.NewReader("payload"), -1))

	r, err := bs.Download(ctx, "in-abc")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestLocalStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	bs := newLocalStore(t)

	require.NoError(t, bs.Upload(ctx, "k", strings.NewReader("first version"), -1))
	require.NoError(t, bs.Upload(ctx, "k", strings.NewReader("second"), -1))

	r, err := bs.Download(ctx, "k")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLocalStoreDelete(t *testing.T) {
	ctx := context.Background()
	bs := newLocalStore(t)

	require.NoError(t, bs.Upload(ctx, "k", strings.NewReader("x"), -1))
	require.NoError(t, bs.Delete(ctx, "k"))
	_, err := bs.Download(ctx, "k")
	require.Error(t, err)

	// deleting a missing blob is fine
	require.NoError(t, bs.Delete(ctx, "k"))
}

func TestLocalStoreEscapesKeyTraversal(t *testing.T) {
	ctx := context.Background()
	bs := newLocalStore(t)

	require.NoError(t, bs.Upload(ctx, "../../etc/passwd", strings.NewReader("x"), -1))
	r, err := bs.Download(ctx, "../../etc/passwd")
	require.NoError(t, err)
	r.Close()
}

func TestLocalStoreSignedURLs(t *testing.T) {
	ctx := context.Background()
	bs := newLocalStore(t)
	verifier, err := signedurl.NewJWTSignedURL(signedurl.WithSecret("test-secret"))
	require.NoError(t, err)

	up, err := bs.SignedUploadURL(ctx, "in-abc", 10*time.Minute)
	require.NoError(t, err)
	key, op, err := verifier.Verify(up)
	require.NoError(t, err)
	assert.Equal(t, "in-abc", key)
	assert.Equal(t, signedurl.OpUpload, op)
	assert.Contains(t, up, "http://localhost:9100/blobgw/in-abc")

	down, err := bs.SignedDownloadURL(ctx, "out-abc", 10*time.Minute)
	require.NoError(t, err)
	key, op, err = verifier.Verify(down)
	require.NoError(t, err)
	assert.Equal(t, "out-abc", key)
	assert.Equal(t, signedurl.OpDownload, op)
}

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

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

// flakyStore fails the first failures calls of every operation.
type flakyStore struct {
	failures int
	calls    int
}

func (f *flakyStore) tick() error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient failure")
	}
	return nil
}

func (f *flakyStore) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	return f.tick()
}

func (f *flakyStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := f.tick(); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader("data")), nil
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	return f.tick()
}

func (f *flakyStore) SignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := f.tick(); err != nil {
		return "", err
	}
	return "http://signed/" + key, nil
}

func (f *flakyStore) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := f.tick(); err != nil {
		return "", err
	}
	return "http://signed/" + key, nil
}

func TestRetrySucceedsWithinBudget(t *testing.T) {
	inner := &flakyStore{failures: 2}
	rs := WithRetry(inner, 3)

	r, err := rs.Download(context.Background(), "k")
	require.NoError(t, err)
	r.Close()
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustion(t *testing.T) {
	inner := &flakyStore{failures: 10}
	rs := WithRetry(inner, 3)

	_, err := rs.Download(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errcode.New(errcode.RetriesExhausted, "")))
	assert.Equal(t, 3, inner.calls)
}

func TestRetrySignedURL(t *testing.T) {
	inner := &flakyStore{failures: 1}
	rs := WithRetry(inner, 3)

	signed, err := rs.SignedUploadURL(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "http://signed/k", signed)
}

func TestUploadIsNotRetried(t *testing.T) {
	inner := &flakyStore{failures: 1}
	rs := WithRetry(inner, 3)

	err := rs.Upload(context.Background(), "k", strings.NewReader("x"), -1)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

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
	"time"

	"github.com/cenkalti/backoff"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

const defaultAttempts = 3

// RetryingStore wraps a Store and retries transient failures with
// exponential backoff. Uploads are not retried because the reader may
// already be partially consumed.
type RetryingStore struct {
	inner    Store
	attempts uint64
}

// WithRetry wraps store. attempts is the total number of tries per
// operation; values below 1 fall back to the default of 3.
func WithRetry(store Store, attempts int) *RetryingStore {
	if attempts < 1 {
		attempts = defaultAttempts
	}
	return &RetryingStore{inner: store, attempts: uint64(attempts)}
}

func (rs *RetryingStore) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, rs.attempts-1), ctx))
	if err != nil {
		return errcode.Wrap(err, errcode.RetriesExhausted, "blob store operation failed after retries")
	}
	return nil
}

// Upload stores the data in a single attempt.
func (rs *RetryingStore) Upload(ctx context.Context, key string, reader io.Reader, size int64) error {
	return rs.inner.Upload(ctx, key, reader, size)
}

// Download retries opening the blob for reading.
func (rs *RetryingStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	var reader io.ReadCloser
	err := rs.retry(ctx, func() error {
		var err error
		reader, err = rs.inner.Download(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// Delete retries removing the blob.
func (rs *RetryingStore) Delete(ctx context.Context, key string) error {
	return rs.retry(ctx, func() error {
		return rs.inner.Delete(ctx, key)
	})
}

// SignedUploadURL retries minting the URL.
func (rs *RetryingStore) SignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var signed string
	err := rs.retry(ctx, func() error {
		var err error
		signed, err = rs.inner.SignedUploadURL(ctx, key, ttl)
		return err
	})
	if err != nil {
		return "", err
	}
	return signed, nil
}

// SignedDownloadURL retries minting the URL.
func (rs *RetryingStore) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var signed string
	err := rs.retry(ctx, func() error {
		var err error
		signed, err = rs.inner.SignedDownloadURL(ctx, key, ttl)
		return err
	})
	if err != nil {
		return "", err
	}
	return signed, nil
}

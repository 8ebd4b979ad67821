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

// Package blob stores document archives outside the request path. Session
// uploads and downloads go through signed URLs minted here, so document
// bytes never transit the manifest API.
package blob

import (
	"context"
	"io"
	"time"
)

// Store is a keyed blob store with signed direct-transfer URLs.
type Store interface {
	// Upload stores the data read from reader under key. Size may be -1
	// when unknown.
	Upload(ctx context.Context, key string, reader io.Reader, size int64) error

	// Download retrieves the blob stored under key. The caller closes the
	// returned reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob stored under key. Deleting a missing blob is
	// not an error.
	Delete(ctx context.Context, key string) error

	// SignedUploadURL returns a URL a client can PUT the blob to without
	// further credentials, valid for ttl.
	SignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// SignedDownloadURL returns a URL a client can GET the blob from
	// without further credentials, valid for ttl.
	SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

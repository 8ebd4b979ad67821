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
	"bufio"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/cs3org/ooxmld/pkg/signedurl"
)

// LocalStore provides an interface to a filesystem based blobstore. Signed
// transfer URLs point at the blob gateway service, which verifies them and
// serves the files from the same root.
type LocalStore struct {
	root       string
	gatewayURL string
	signer     signedurl.Signer
}

// NewLocalStore returns a new LocalStore rooted at root. gatewayURL is the
// externally reachable base URL of the blob gateway.
func NewLocalStore(root, gatewayURL string, signer signedurl.Signer) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, err
	}

	return &LocalStore{
		root:       root,
		gatewayURL: gatewayURL,
		signer:     signer,
	}, nil
}

// Upload stores some data in the blobstore under the given key.
func (bs *LocalStore) Upload(ctx context.Context, key string, data io.Reader, size int64) error {
	f, err := os.OpenFile(bs.path(key), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0700)
	if err != nil {
		return errors.Wrapf(err, "could not open blob '%s' for writing", key)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	_, err = w.ReadFrom(data)
	if err != nil {
		return errors.Wrapf(err, "could not write blob '%s'", key)
	}

	return w.Flush()
}

// Download retrieves a blob from the blobstore for reading.
func (bs *LocalStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(bs.path(key))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read blob '%s'", key)
	}
	return file, nil
}

// Delete deletes a blob from the blobstore.
func (bs *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(bs.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not delete blob '%s'", key)
	}
	return nil
}

// SignedUploadURL mints a gateway URL permitting a single PUT of key.
func (bs *LocalStore) SignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return bs.signer.Sign(bs.transferURL(key), key, signedurl.OpUpload, ttl)
}

// SignedDownloadURL mints a gateway URL permitting a single GET of key.
func (bs *LocalStore) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return bs.signer.Sign(bs.transferURL(key), key, signedurl.OpDownload, ttl)
}

func (bs *LocalStore) transferURL(key string) string {
	return bs.gatewayURL + "/" + url.PathEscape(key)
}

func (bs *LocalStore) path(key string) string {
	return filepath.Join(bs.root, filepath.Clean(filepath.Join("/", key)))
}

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
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// S3Store provides an interface to an s3 compatible blobstore.
type S3Store struct {
	client *minio.Client

	bucket string
}

// NewS3Store returns a new S3Store.
func NewS3Store(endpoint, region, bucket, accessKey, secretKey string) (*S3Store, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse s3 endpoint")
	}

	useSSL := u.Scheme != "http"
	client, err := minio.New(u.Host, &minio.Options{
		Region: region,
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to setup s3 client")
	}

	return &S3Store{
		client: client,
		bucket: bucket,
	}, nil
}

// Upload stores some data in the blobstore under the given key.
func (bs *S3Store) Upload(ctx context.Context, key string, reader io.Reader, size int64) error {
	_, err := bs.client.PutObject(ctx, bs.bucket, key, reader, size, minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return errors.Wrapf(err, "could not store object '%s' into bucket '%s'", key, bs.bucket)
	}
	return nil
}

// Download retrieves a blob from the blobstore for reading.
func (bs *S3Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := bs.client.GetObject(ctx, bs.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "could not download object '%s' from bucket '%s'", key, bs.bucket)
	}
	return reader, nil
}

// Delete deletes a blob from the blobstore.
func (bs *S3Store) Delete(ctx context.Context, key string) error {
	err := bs.client.RemoveObject(ctx, bs.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return errors.Wrapf(err, "could not delete object '%s' from bucket '%s'", key, bs.bucket)
	}
	return nil
}

// SignedUploadURL presigns a PUT for the given key.
func (bs *S3Store) SignedUploadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := bs.client.PresignedPutObject(ctx, bs.bucket, key, ttl)
	if err != nil {
		return "", errors.Wrapf(err, "could not presign upload of '%s'", key)
	}
	return u.String(), nil
}

// SignedDownloadURL presigns a GET for the given key.
func (bs *S3Store) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := bs.client.PresignedGetObject(ctx, bs.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", errors.Wrapf(err, "could not presign download of '%s'", key)
	}
	return u.String(), nil
}

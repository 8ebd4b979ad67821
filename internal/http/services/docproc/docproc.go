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

// Package docproc is the document-processing API: unwrap a document into
// a part manifest, apply a batch of edit operations, rewrap into a valid
// archive. Large documents go through sessions backed by a blob store.
package docproc

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cs3org/ooxmld/pkg/blob"
	"github.com/cs3org/ooxmld/pkg/rhttp/global"
	"github.com/cs3org/ooxmld/pkg/session"
	"github.com/cs3org/ooxmld/pkg/signedurl"
)

func init() {
	global.Register("docproc", New)
}

// Config holds the config options for the docproc service.
type Config struct {
	Prefix             string     `mapstructure:"prefix"`
	SessionTTLSeconds  int        `mapstructure:"session_ttl_seconds"`
	InlineLimitBytes   int64      `mapstructure:"inline_limit_bytes"`
	OpSoftTimeoutMS    int        `mapstructure:"op_soft_timeout_ms"`
	SignedURLTTLSecs   int        `mapstructure:"signed_url_ttl_seconds"`
	RequestTimeoutSecs int        `mapstructure:"request_timeout_seconds"`
	MemoryCeilingBytes int64      `mapstructure:"memory_ceiling_bytes"`
	BlobRetries        int        `mapstructure:"blob_retries"`
	Blob               BlobConfig `mapstructure:"blob"`
}

// BlobConfig selects and configures the blob store driver for sessions.
// Session mode is disabled when no driver is configured.
type BlobConfig struct {
	Driver string `mapstructure:"driver"` // "s3" or "local"

	// s3 driver
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	// local driver
	Root       string `mapstructure:"root"`
	GatewayURL string `mapstructure:"gateway_url"`
	Secret     string `mapstructure:"secret"`
}

func (c *Config) init() {
	if c.Prefix == "" {
		c.Prefix = "docproc"
	}
	if c.SessionTTLSeconds == 0 {
		c.SessionTTLSeconds = 1800
	}
	if c.InlineLimitBytes == 0 {
		c.InlineLimitBytes = 25 * 1024 * 1024
	}
	if c.OpSoftTimeoutMS == 0 {
		c.OpSoftTimeoutMS = 5000
	}
	if c.SignedURLTTLSecs == 0 {
		c.SignedURLTTLSecs = 900
	}
	if c.RequestTimeoutSecs == 0 {
		c.RequestTimeoutSecs = 60
	}
	if c.MemoryCeilingBytes == 0 {
		c.MemoryCeilingBytes = 512 * 1024 * 1024
	}
	if c.BlobRetries == 0 {
		c.BlobRetries = 3
	}
}

type svc struct {
	conf     *Config
	log      *zerolog.Logger
	router   chi.Router
	blobs    blob.Store
	sessions *session.Store
	start    time.Time
}

// New creates a new docproc service.
func New(conf map[string]interface{}, log *zerolog.Logger) (global.Service, error) {
	c := &Config{}
	if err := mapstructure.Decode(conf, c); err != nil {
		return nil, err
	}
	c.init()

	s := &svc{
		conf:  c,
		log:   log,
		start: time.Now(),
	}

	store, err := newBlobStore(c)
	if err != nil {
		return nil, err
	}
	if store != nil {
		s.blobs = blob.WithRetry(store, c.BlobRetries)
		sessLog := log.With().Str("pkg", "session").Logger()
		s.sessions = session.NewStore(s.blobs, time.Duration(c.SessionTTLSeconds)*time.Second, sessLog)
	}

	s.initRouter()
	return s, nil
}

func newBlobStore(c *Config) (blob.Store, error) {
	switch c.Blob.Driver {
	case "":
		return nil, nil
	case "s3":
		if c.Blob.Bucket == "" {
			return nil, nil
		}
		return blob.NewS3Store(c.Blob.Endpoint, c.Blob.Region, c.Blob.Bucket, c.Blob.AccessKey, c.Blob.SecretKey)
	case "local":
		if c.Blob.Root == "" {
			return nil, nil
		}
		signer, err := signedurl.NewJWTSignedURL(signedurl.WithSecret(c.Blob.Secret))
		if err != nil {
			return nil, err
		}
		return blob.NewLocalStore(c.Blob.Root, c.Blob.GatewayURL, signer)
	}
	return nil, errors.Errorf("docproc: unknown blob driver %q", c.Blob.Driver)
}

func (s *svc) initRouter() {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Post("/unwrap", s.handleUnwrap)
	r.Post("/rewrap", s.handleRewrap)
	r.Post("/process", s.handleProcess)
	r.Post("/session", s.handleSession)
	s.router = r
}

func (s *svc) Handler() http.Handler {
	return s.router
}

func (s *svc) Prefix() string {
	return s.conf.Prefix
}

func (s *svc) Close() error {
	if s.sessions != nil {
		s.sessions.Close()
	}
	return nil
}

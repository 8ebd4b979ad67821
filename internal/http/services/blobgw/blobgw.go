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

// Package blobgw serves session blobs stored by the local blob driver.
// Clients reach it only through signed URLs; the signature carries the
// blob key and the permitted transfer direction.
package blobgw

import (
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cs3org/ooxmld/pkg/appctx"
	"github.com/cs3org/ooxmld/pkg/blob"
	"github.com/cs3org/ooxmld/pkg/rhttp/global"
	"github.com/cs3org/ooxmld/pkg/signedurl"
)

func init() {
	global.Register("blobgw", New)
}

type config struct {
	Prefix string `mapstructure:"prefix"`
	Root   string `mapstructure:"root"`
	// BaseURL is the externally reachable URL this service is mounted
	// under; it must match the gateway URL the blob driver signs with.
	BaseURL string `mapstructure:"base_url"`
	Secret  string `mapstructure:"secret"`
}

type svc struct {
	conf     *config
	log      *zerolog.Logger
	store    *blob.LocalStore
	verifier signedurl.Verifier
}

// New returns a new blobgw service.
func New(m map[string]interface{}, log *zerolog.Logger) (global.Service, error) {
	conf := &config{}
	if err := mapstructure.Decode(m, conf); err != nil {
		return nil, err
	}
	if conf.Prefix == "" {
		conf.Prefix = "blobgw"
	}
	if conf.Root == "" {
		return nil, errors.New("blobgw: root is required")
	}

	sig, err := signedurl.NewJWTSignedURL(signedurl.WithSecret(conf.Secret))
	if err != nil {
		return nil, err
	}
	store, err := blob.NewLocalStore(conf.Root, conf.BaseURL, sig)
	if err != nil {
		return nil, err
	}

	return &svc{conf: conf, log: log, store: store, verifier: sig}, nil
}

func (s *svc) Close() error {
	return nil
}

func (s *svc) Prefix() string {
	return s.conf.Prefix
}

func (s *svc) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.doGet(w, r)
		case http.MethodPut:
			s.doPut(w, r)
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	})
}

// verify rebuilds the externally visible URL of the request and checks
// its signature. It returns the blob key the signature covers.
func (s *svc) verify(r *http.Request, want signedurl.Op) (string, error) {
	full := s.conf.BaseURL + r.URL.Path
	if r.URL.RawQuery != "" {
		full += "?" + r.URL.RawQuery
	}

	key, op, err := s.verifier.Verify(full)
	if err != nil {
		return "", err
	}
	if op != want {
		return "", errors.Errorf("signature does not permit %s", want)
	}
	if requested, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/")); err != nil || requested != key {
		return "", errors.New("signature does not cover the requested blob")
	}
	return key, nil
}

func (s *svc) doGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := appctx.GetLogger(ctx)

	key, err := s.verify(r, signedurl.OpDownload)
	if err != nil {
		log.Warn().Err(err).Msg("blobgw: rejected download")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	reader, err := s.store.Download(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("blobgw: blob not found")
		w.WriteHeader(http.StatusNotFound)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, reader); err != nil {
		log.Error().Err(err).Str("key", key).Msg("blobgw: error writing blob")
	}
}

func (s *svc) doPut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := appctx.GetLogger(ctx)

	key, err := s.verify(r, signedurl.OpUpload)
	if err != nil {
		log.Warn().Err(err).Msg("blobgw: rejected upload")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	if err := s.store.Upload(ctx, key, r.Body, r.ContentLength); err != nil {
		log.Error().Err(err).Str("key", key).Msg("blobgw: error storing blob")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

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

package docproc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/cs3org/ooxmld/pkg/errcode"
	"github.com/cs3org/ooxmld/pkg/ooxml"
	"github.com/cs3org/ooxmld/pkg/session"
	"github.com/cs3org/ooxmld/pkg/version"
)

type unwrapRequest struct {
	ZipB64 string `json:"zipB64,omitempty"`
	GCSIn  string `json:"gcsIn,omitempty"`
}

type rewrapRequest struct {
	Manifest *ooxml.Manifest `json:"manifest"`
	GCSIn    string          `json:"gcsIn,omitempty"`
	GCSOut   string          `json:"gcsOut,omitempty"`
	Filename string          `json:"filename,omitempty"`
}

type processRequest struct {
	ZipB64         string            `json:"zipB64,omitempty"`
	GCSIn          string            `json:"gcsIn,omitempty"`
	Ops            []ooxml.Operation `json:"ops"`
	GCSOut         string            `json:"gcsOut,omitempty"`
	Filename       string            `json:"filename,omitempty"`
	ReturnManifest bool              `json:"returnManifest,omitempty"`
}

func (s *svc) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, map[string]interface{}{
		"version":  version.Version,
		"uptimeMs": time.Since(s.start).Milliseconds(),
	})
}

func (s *svc) handleUnwrap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var req unwrapRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	data, release, err := s.loadInput(ctx, req.ZipB64, req.GCSIn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	doc, err := ooxml.Decode(data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeOK(w, map[string]interface{}{"manifest": ooxml.BuildManifest(doc)})
}

func (s *svc) handleRewrap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var req rewrapRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Manifest == nil {
		s.writeError(w, r, errcode.New(errcode.ValidationError, "rewrap requires a manifest"))
		return
	}

	// the manifest is inline but a referenced session still serializes
	release, err := s.acquire(req.GCSIn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	releaseOut, err := s.acquireFor(req.GCSOut, req.GCSIn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer releaseOut()

	doc, err := ooxml.DocumentFromManifest(req.Manifest)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := ooxml.Encode(doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.GCSOut != "" {
		if err := s.writeOutput(ctx, req.GCSOut, data); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeOK(w, map[string]interface{}{"gcsOut": req.GCSOut})
		return
	}

	resp := map[string]interface{}{"zipB64": base64.StdEncoding.EncodeToString(data)}
	if req.Filename != "" {
		resp["filename"] = req.Filename
	}
	writeOK(w, resp)
}

func (s *svc) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var req processRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	data, release, err := s.loadInput(ctx, req.ZipB64, req.GCSIn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer release()

	// the output slot may belong to the same session as the input; the
	// second acquire is then a no-op handled inside acquireFor
	releaseOut, err := s.acquireFor(req.GCSOut, req.GCSIn)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer releaseOut()

	doc, err := ooxml.Decode(data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	engine := ooxml.NewEngine(doc, ooxml.WithSoftBudget(time.Duration(s.conf.OpSoftTimeoutMS)*time.Millisecond))
	report, err := engine.Apply(ctx, req.Ops)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := ooxml.Encode(doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := map[string]interface{}{"report": report}
	switch {
	case req.GCSOut != "":
		if err := s.writeOutput(ctx, req.GCSOut, out); err != nil {
			s.writeError(w, r, err)
			return
		}
		resp["gcsOut"] = req.GCSOut
	case req.ReturnManifest:
		resp["manifest"] = ooxml.BuildManifest(doc)
	default:
		resp["zipB64"] = base64.StdEncoding.EncodeToString(out)
		if req.Filename != "" {
			resp["filename"] = req.Filename
		}
	}
	writeOK(w, resp)
}

func (s *svc) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	if s.sessions == nil {
		s.writeError(w, r, errcode.New(errcode.ValidationError, "session mode is disabled"))
		return
	}

	sess, err := s.sessions.Create(ctx, time.Duration(s.conf.SignedURLTTLSecs)*time.Second)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeOK(w, map[string]interface{}{
		"id":          sess.ID,
		"gcsIn":       sess.KeyIn,
		"gcsOut":      sess.KeyOut,
		"uploadUrl":   sess.UploadURL,
		"downloadUrl": sess.DownloadURL,
		"createdAt":   sess.CreatedAt,
		"expiresAt":   sess.ExpiresAt,
	})
}

func (s *svc) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), time.Duration(s.conf.RequestTimeoutSecs)*time.Second)
}

// readJSON decodes the request body, bounding its size so an oversize
// inline document is rejected before any decoding work.
func (s *svc) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	// base64 inflates the document by 4/3; leave headroom for ops
	limit := s.conf.InlineLimitBytes*4/3 + 64*1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errcode.Newf(errcode.Oversize, "request body exceeds the inline limit of %d bytes", s.conf.InlineLimitBytes)
		}
		return errcode.Wrap(err, errcode.ValidationError, "invalid request body")
	}
	return nil
}

// loadInput resolves the document bytes from either the inline base64
// payload or a session input slot. The returned release function frees
// the session reference taken for a slot read.
func (s *svc) loadInput(ctx context.Context, zipB64, gcsIn string) ([]byte, func(), error) {
	noop := func() {}
	switch {
	case zipB64 != "" && gcsIn != "":
		return nil, noop, errcode.New(errcode.ValidationError, "zipB64 and gcsIn are mutually exclusive")
	case zipB64 != "":
		data, err := base64.StdEncoding.DecodeString(zipB64)
		if err != nil {
			return nil, noop, errcode.Wrap(err, errcode.BadZip, "document is not valid base64")
		}
		if int64(len(data)) > s.conf.InlineLimitBytes {
			return nil, noop, errcode.Newf(errcode.Oversize, "inline document exceeds the limit of %d bytes", s.conf.InlineLimitBytes)
		}
		return data, noop, nil
	case gcsIn != "":
		release, err := s.acquire(gcsIn)
		if err != nil {
			return nil, noop, err
		}
		data, err := s.readSlot(ctx, gcsIn)
		if err != nil {
			release()
			return nil, noop, err
		}
		return data, release, nil
	}
	return nil, noop, errcode.New(errcode.ValidationError, "one of zipB64 or gcsIn is required")
}

func (s *svc) readSlot(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.blobs.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(reader, s.conf.MemoryCeilingBytes+1))
	if err != nil {
		return nil, errcode.Wrap(err, errcode.UpstreamTransfer, "could not read session input")
	}
	if n > s.conf.MemoryCeilingBytes {
		return nil, errcode.Newf(errcode.Oversize, "session document exceeds the memory ceiling of %d bytes", s.conf.MemoryCeilingBytes)
	}
	return buf.Bytes(), nil
}

func (s *svc) writeOutput(ctx context.Context, key string, data []byte) error {
	return s.blobs.Upload(ctx, key, bytes.NewReader(data), int64(len(data)))
}

// acquire takes the in-flight reference of the session owning the blob
// key. The empty key acquires nothing.
func (s *svc) acquire(key string) (func(), error) {
	if key == "" {
		return func() {}, nil
	}
	if s.sessions == nil {
		return nil, errcode.New(errcode.ValidationError, "session mode is disabled")
	}
	id := session.IDFromKey(key)
	if _, err := s.sessions.Acquire(id); err != nil {
		return nil, err
	}
	return func() { s.sessions.Release(id) }, nil
}

// acquireFor acquires the session owning key unless an already-held key
// belongs to the same session.
func (s *svc) acquireFor(key string, held string) (func(), error) {
	if key == "" || (held != "" && session.IDFromKey(key) == session.IDFromKey(held)) {
		return func() {}, nil
	}
	return s.acquire(key)
}

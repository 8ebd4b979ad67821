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

// Package session tracks processing sessions for documents too large to
// inline. A session pins a pair of blob keys, one for the uploaded input
// archive and one for the processed output, plus the signed URLs a client
// uses to move the bytes. Sessions expire on a TTL and their blobs are
// collected when they do.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v2"
	"github.com/rs/zerolog"

	"github.com/cs3org/ooxmld/pkg/blob"
	"github.com/cs3org/ooxmld/pkg/errcode"
)

// Session is a single processing session.
type Session struct {
	ID          string    `json:"id"`
	KeyIn       string    `json:"gcsIn"`
	KeyOut      string    `json:"gcsOut"`
	UploadURL   string    `json:"uploadUrl"`
	DownloadURL string    `json:"downloadUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// IDFromKey maps a blob key back to the id of the session that owns it.
// Keys are "in-<id>" and "out-<id>".
func IDFromKey(key string) string {
	if rest, ok := strings.CutPrefix(key, "in-"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(key, "out-"); ok {
		return rest
	}
	return key
}

// Store keeps sessions alive for a TTL and allows at most one in-flight
// processing request per session.
type Store struct {
	cache *ttlcache.Cache
	blobs blob.Store
	ttl   time.Duration
	log   zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewStore creates a session store. Expired sessions have their blobs
// deleted in the background.
func NewStore(blobs blob.Store, ttl time.Duration, log zerolog.Logger) *Store {
	s := &Store{
		cache:    ttlcache.NewCache(),
		blobs:    blobs,
		ttl:      ttl,
		log:      log,
		inflight: map[string]struct{}{},
	}
	_ = s.cache.SetTTL(ttl)
	// the TTL is absolute from creation; reads must not slide it
	s.cache.SkipTTLExtensionOnHit(true)
	s.cache.SetExpirationReasonCallback(func(key string, reason ttlcache.EvictionReason, value interface{}) {
		sess, ok := value.(*Session)
		if !ok {
			return
		}
		s.collect(sess)
	})
	return s
}

// Create mints a new session with signed transfer URLs for its blobs. The
// URLs are valid for urlTTL, the session itself for the store TTL.
func (s *Store) Create(ctx context.Context, urlTTL time.Duration) (*Session, error) {
	id := uuid.New().String()
	sess := &Session{
		ID:        id,
		KeyIn:     "in-" + id,
		KeyOut:    "out-" + id,
		CreatedAt: time.Now().UTC(),
	}
	sess.ExpiresAt = sess.CreatedAt.Add(s.ttl)

	var err error
	if sess.UploadURL, err = s.blobs.SignedUploadURL(ctx, sess.KeyIn, urlTTL); err != nil {
		return nil, err
	}
	if sess.DownloadURL, err = s.blobs.SignedDownloadURL(ctx, sess.KeyOut, urlTTL); err != nil {
		return nil, err
	}

	if err := s.cache.Set(id, sess); err != nil {
		return nil, errcode.Wrap(err, errcode.Internal, "could not store session")
	}
	s.log.Debug().Str("session", id).Time("expires", sess.ExpiresAt).Msg("session created")
	return sess, nil
}

// Get returns the session with the given id.
func (s *Store) Get(id string) (*Session, error) {
	v, err := s.cache.Get(id)
	if err != nil {
		return nil, errcode.New(errcode.SessionNotFound, "session not found or expired").WithContext("session", id)
	}
	return v.(*Session), nil
}

// Acquire marks the session as having a processing request in flight. A
// second concurrent request for the same session is rejected.
func (s *Store) Acquire(id string) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return nil, errcode.New(errcode.SessionInUse, "a processing request is already running for this session").WithContext("session", id)
	}
	s.inflight[id] = struct{}{}
	return sess, nil
}

// Release clears the in-flight mark set by Acquire.
func (s *Store) Release(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Remove drops the session. Its blobs are collected through the eviction
// callback.
func (s *Store) Remove(id string) {
	_ = s.cache.Remove(id)
}

// Close stops the TTL sweeper.
func (s *Store) Close() {
	s.cache.Close()
}

func (s *Store) collect(sess *Session) {
	ctx := context.Background()
	for _, key := range []string{sess.KeyIn, sess.KeyOut} {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("session", sess.ID).Str("key", key).Msg("could not collect session blob")
		}
	}
	s.log.Debug().Str("session", sess.ID).Msg("session removed")
}

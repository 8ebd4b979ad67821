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

// Package errcode defines the stable error taxonomy of the service.
// Codes are grouped by category: C0xx core archive/XML, S0xx
// transport/session, A0xx application semantics, E0xx extension,
// V0xx validation. Clients key on the code, never on the message.
package errcode

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Code is a stable error identifier.
type Code string

// Core archive/XML codes.
const (
	BadZip           Code = "C001" // not a ZIP archive
	PartContent      Code = "C002" // missing or ambiguous part content
	XMLParse         Code = "C003" // XML parse failure
	ZipCorrupt       Code = "C004" // corrupt central directory
	MissingMainPart  Code = "C005" // format main part absent
	Compression      Code = "C006" // compression failure
	ContentTypes     Code = "C008" // content-types mismatch
	RelInconsistency Code = "C009" // relationship inconsistency
)

// Transport/session codes.
const (
	UpstreamClient   Code = "S010" // 4xx from upstream
	UpstreamServer   Code = "S011" // 5xx from upstream
	Timeout          Code = "S012"
	RetriesExhausted Code = "S013"
	UpstreamConnect  Code = "S014"
	UpstreamTransfer Code = "S015"
	SessionNotFound  Code = "S016"
	RateLimited      Code = "S017"
	Oversize         Code = "S018"
	SessionInUse     Code = "S019"
)

// Validation codes.
const (
	RegexParse      Code = "V040"
	BadReplacement  Code = "V041"
	RegexCompile    Code = "V042"
	ValidationError Code = "V043"
)

// Internal is the catch-all application code for unexpected failures.
const Internal Code = "A001"

// Category is the code family an error belongs to.
type Category string

const (
	CategoryCore       Category = "core"
	CategoryTransport  Category = "transport"
	CategoryApp        Category = "application"
	CategoryExtension  Category = "extension"
	CategoryValidation Category = "validation"
	CategoryUnknown    Category = "unknown"
)

// Category returns the family of the code, derived from its prefix.
func (c Code) Category() Category {
	if len(c) == 0 {
		return CategoryUnknown
	}
	switch c[0] {
	case 'C':
		return CategoryCore
	case 'S':
		return CategoryTransport
	case 'A':
		return CategoryApp
	case 'E':
		return CategoryExtension
	case 'V':
		return CategoryValidation
	}
	return CategoryUnknown
}

// Retryable reports whether a client may retry the failed request
// without changing it. Only a fixed set of transport codes qualifies.
func (c Code) Retryable() bool {
	switch c {
	case Timeout, UpstreamConnect, UpstreamTransfer, RateLimited:
		return true
	}
	return false
}

// HTTPStatus maps the code to the response status used by the HTTP surface.
func (c Code) HTTPStatus() int {
	switch c {
	case Timeout:
		return http.StatusRequestTimeout
	case Oversize:
		return http.StatusRequestEntityTooLarge
	case SessionNotFound:
		return http.StatusNotFound
	case SessionInUse:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	}
	switch c.Category() {
	case CategoryCore, CategoryValidation:
		return http.StatusBadRequest
	case CategoryTransport:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Error is a structured service error. Context is an allowlist of
// reproduction hints (path, op index, byte offset); it must never carry
// internal file paths or secrets.
type Error struct {
	Code        Code              `json:"code"`
	Message     string            `json:"message"`
	Context     map[string]string `json:"context,omitempty"`
	Correlation string            `json:"correlation,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`

	cause error
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates an Error that records err as its cause.
func Wrap(err error, code Code, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

// WithContext returns the error with an added context entry.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = map[string]string{}
	}
	e.Context[key] = value
	return e
}

// WithCorrelation returns the error tagged with a correlation ID.
func (e *Error) WithCorrelation(id string) *Error {
	e.Correlation = id
	return e
}

// Error renders the canonical log form: ERR[code] message ctx={…} corr=….
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ERR[%s] %s", e.Code, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" ctx={")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Context[k])
		}
		b.WriteString("}")
	}
	if e.Correlation != "" {
		fmt.Fprintf(&b, " corr=%s", e.Correlation)
	}
	return b.String()
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches errors by code so callers can use errors.Is with a bare
// code-carrying sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// FromError extracts a structured Error from err, walking the wrap
// chain. Unrecognized errors become Internal with a sanitized message.
func FromError(err error) *Error {
	for cur := err; cur != nil; {
		if e, ok := cur.(*Error); ok {
			return e
		}
		u, ok := cur.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cur = u.Unwrap()
	}
	return Wrap(err, Internal, "internal error")
}

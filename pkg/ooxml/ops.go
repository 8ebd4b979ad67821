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

package ooxml

import (
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

// OpType tags an operation variant.
type OpType string

const (
	OpReplaceText OpType = "replaceText"
	OpUpsertPart  OpType = "upsertPart"
	OpRemovePart  OpType = "removePart"
	OpRenamePart  OpType = "renamePart"
)

// Operation is one declarative edit step. The populated fields depend
// on Type; unknown types fail V043 deterministically.
type Operation struct {
	Type OpType `json:"type"`

	// replaceText
	Find    string `json:"find,omitempty"`
	Replace string `json:"replace,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Regex   bool   `json:"regex,omitempty"`
	Flags   string `json:"flags,omitempty"`

	// upsertPart
	Path        string  `json:"path,omitempty"`
	Text        *string `json:"text,omitempty"`
	DataB64     *string `json:"dataB64,omitempty"`
	ContentType string  `json:"contentType,omitempty"`

	// renamePart
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// opHandlers is the per-variant dispatch table.
var opHandlers = map[OpType]func(*Engine, *Operation, *OpResult) error{
	OpReplaceText: (*Engine).replaceText,
	OpUpsertPart:  (*Engine).upsertPart,
	OpRemovePart:  (*Engine).removePart,
	OpRenamePart:  (*Engine).renamePart,
}

// Engine applies an ordered operation batch against one document. It is
// a value constructed per request; there is no shared state.
type Engine struct {
	doc     *Document
	maint   *Maintainer
	scanner *Scanner

	softBudget time.Duration
	report     *Report
}

// EngineOption tweaks engine construction.
type EngineOption func(*Engine)

// WithSoftBudget sets the per-operation soft time budget. Operations
// exceeding it still complete but are flagged in the report.
func WithSoftBudget(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.softBudget = d
	}
}

// NewEngine creates an engine bound to a document.
func NewEngine(doc *Document, opts ...EngineOption) *Engine {
	e := &Engine{
		doc:        doc,
		maint:      NewMaintainer(doc),
		scanner:    NewScanner(),
		softBudget: 5 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Apply runs the batch in array order. A failed operation aborts the
// batch and the partial report is returned together with the error; the
// caller discards the document. Warned operations proceed. The context
// is checked at operation boundaries only.
func (e *Engine) Apply(ctx context.Context, ops []Operation) (*Report, error) {
	start := time.Now()
	e.report = &Report{TotalOps: len(ops)}
	defer func() {
		e.report.ElapsedMS = time.Since(start).Milliseconds()
	}()

	for i := range ops {
		op := &ops[i]
		res := &OpResult{Index: i, Type: op.Type, Status: StatusQueued}
		e.report.Results = append(e.report.Results, res)

		if err := ctx.Err(); err != nil {
			res.Status = StatusFailed
			res.Error = errcode.Wrap(err, errcode.Timeout, "request canceled").
				WithContext("opIndex", strconv.Itoa(i))
			return e.report, res.Error
		}

		handler, ok := opHandlers[op.Type]
		if !ok {
			res.Status = StatusFailed
			res.Error = errcode.Newf(errcode.ValidationError, "unknown operation type %q", op.Type).
				WithContext("opIndex", strconv.Itoa(i))
			return e.report, res.Error
		}

		res.Status = StatusRunning
		opStart := time.Now()
		err := handler(e, op, res)
		res.ElapsedMS = time.Since(opStart).Milliseconds()
		res.OverBudget = e.softBudget > 0 && time.Since(opStart) > e.softBudget

		if err != nil {
			res.Status = StatusFailed
			res.Error = errcode.FromError(err).WithContext("opIndex", strconv.Itoa(i))
			return e.report, res.Error
		}
		res.OK = true
		if len(res.Warnings) > 0 {
			res.Status = StatusWarned
			e.report.Warnings = append(e.report.Warnings, res.Warnings...)
		} else {
			res.Status = StatusSucceeded
		}
	}

	e.report.Warnings = append(e.report.Warnings, e.maint.Validate()...)
	return e.report, nil
}

func (e *Engine) replaceText(op *Operation, res *OpResult) error {
	parts := e.doc.XMLParts(op.Scope)
	counts, err := e.scanner.Rewrite(parts, op.Find, op.Replace, op.Regex, op.Flags)
	if err != nil {
		return err
	}
	for _, n := range counts {
		res.Replacements += n
	}
	e.report.Replacements += res.Replacements
	return nil
}

func (e *Engine) upsertPart(op *Operation, res *OpResult) error {
	if (op.Text == nil) == (op.DataB64 == nil) {
		return errcode.New(errcode.PartContent, "exactly one of text and dataB64 must be present").
			WithContext("path", op.Path)
	}

	path := NormalizePath(op.Path)
	existing, exists := e.doc.Get(path)
	switch {
	case op.Text != nil && exists:
		existing.SetText(*op.Text)
	case op.Text != nil:
		e.doc.Put(NewXMLPart(path, *op.Text))
	default:
		data, err := base64.StdEncoding.DecodeString(*op.DataB64)
		if err != nil {
			return errcode.Wrap(err, errcode.PartContent, "dataB64 is not valid base64").
				WithContext("path", path)
		}
		if exists {
			existing.SetData(data)
		} else {
			e.doc.Put(NewBinPart(path, data))
		}
	}

	if !exists || op.ContentType != "" {
		if err := e.maint.RegisterPart(path, op.ContentType); err != nil {
			return err
		}
	}
	if !exists && path != ContentTypesPath && !IsRelsPath(path) {
		if err := e.maint.EnsureRelationship(path); err != nil {
			return err
		}
		e.report.PartsAdded++
	}
	return nil
}

func (e *Engine) removePart(op *Operation, res *OpResult) error {
	path := NormalizePath(op.Path)
	if !e.doc.Has(path) {
		res.NotFound = true
		return nil
	}
	e.doc.Remove(path)
	if err := e.maint.OnRemove(path); err != nil {
		return err
	}
	e.report.PartsRemoved++
	return nil
}

func (e *Engine) renamePart(op *Operation, res *OpResult) error {
	from, to := NormalizePath(op.From), NormalizePath(op.To)
	if !e.doc.Has(from) || e.doc.Has(to) {
		return errcode.New(errcode.RelInconsistency, "rename source missing or target taken").
			WithContext("from", from).
			WithContext("to", to)
	}
	e.doc.Rename(from, to)
	if op.ContentType != "" {
		if p, ok := e.doc.Get(to); ok {
			p.ContentType = op.ContentType
		}
	}
	if err := e.maint.OnRename(from, to); err != nil {
		return err
	}
	if op.ContentType != "" {
		if err := e.maint.RegisterPart(to, op.ContentType); err != nil {
			return err
		}
	}
	e.report.PartsRenamed++
	return nil
}

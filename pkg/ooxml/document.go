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

import "strings"

// Kind is the OOXML flavor of a document.
type Kind string

const (
	KindPptx    Kind = "pptx"
	KindDocx    Kind = "docx"
	KindXlsx    Kind = "xlsx"
	KindGeneric Kind = "generic"
)

// mainParts maps each kind to the part that must exist for the package
// to be well formed.
var mainParts = map[Kind]string{
	KindPptx: "ppt/presentation.xml",
	KindDocx: "word/document.xml",
	KindXlsx: "xl/workbook.xml",
}

// MainPart returns the format main part for the kind, or "" for generic
// packages.
func (k Kind) MainPart() string {
	return mainParts[k]
}

// Document is the in-memory representation of one OOXML package: an
// ordered part store with O(1) lookup by path. It enforces no OOXML
// invariants itself; that is the Maintainer's job.
type Document struct {
	Kind Kind

	parts []*Part
	index map[string]*Part
}

// NewDocument creates an empty document of the given kind.
func NewDocument(kind Kind) *Document {
	return &Document{
		Kind:  kind,
		index: map[string]*Part{},
	}
}

// Get returns the part stored under path.
func (d *Document) Get(path string) (*Part, bool) {
	p, ok := d.index[NormalizePath(path)]
	return p, ok
}

// Has reports whether a part exists under path.
func (d *Document) Has(path string) bool {
	_, ok := d.Get(path)
	return ok
}

// Put inserts a part, or replaces the one already stored under its
// path while keeping the original position in the part order.
func (d *Document) Put(p *Part) {
	p.Path = NormalizePath(p.Path)
	if old, ok := d.index[p.Path]; ok {
		for i, q := range d.parts {
			if q == old {
				d.parts[i] = p
				break
			}
		}
	} else {
		d.parts = append(d.parts, p)
	}
	d.index[p.Path] = p
}

// Remove deletes the part stored under path. It reports whether a part
// was removed.
func (d *Document) Remove(path string) bool {
	path = NormalizePath(path)
	p, ok := d.index[path]
	if !ok {
		return false
	}
	delete(d.index, path)
	for i, q := range d.parts {
		if q == p {
			d.parts = append(d.parts[:i], d.parts[i+1:]...)
			break
		}
	}
	return true
}

// Rename moves a part from one path to another, preserving its content
// and position. It reports false when from is absent or to is taken.
func (d *Document) Rename(from, to string) bool {
	from, to = NormalizePath(from), NormalizePath(to)
	p, ok := d.index[from]
	if !ok {
		return false
	}
	if _, taken := d.index[to]; taken {
		return false
	}
	delete(d.index, from)
	p.Path = to
	p.Modified = true
	d.index[to] = p
	return true
}

// List returns the parts whose path starts with prefix, in insertion
// order. An empty prefix returns every part.
func (d *Document) List(prefix string) []*Part {
	if prefix == "" {
		out := make([]*Part, len(d.parts))
		copy(out, d.parts)
		return out
	}
	var out []*Part
	for _, p := range d.parts {
		if strings.HasPrefix(p.Path, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// XMLParts returns the XML parts whose path starts with prefix, in
// insertion order.
func (d *Document) XMLParts(prefix string) []*Part {
	var out []*Part
	for _, p := range d.List(prefix) {
		if p.Type == XMLPart {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of parts.
func (d *Document) Len() int {
	return len(d.parts)
}

// UncompressedSize returns the summed content size of all parts.
func (d *Document) UncompressedSize() int {
	var n int
	for _, p := range d.parts {
		n += p.Size()
	}
	return n
}

// detectKind derives the document kind from the directory layout.
func detectKind(has func(string) bool) Kind {
	for _, k := range []Kind{KindPptx, KindDocx, KindXlsx} {
		if has(k.MainPart()) {
			return k
		}
	}
	return KindGeneric
}

// kindRoot is the top-level directory that marks a package as belonging
// to a format even when its main part is missing.
var kindRoots = map[Kind]string{
	KindPptx: "ppt/",
	KindDocx: "word/",
	KindXlsx: "xl/",
}

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

// Package ooxml implements the OOXML document-processing engine: the
// archive codec, the part store, the Content-Types and relationships
// maintainer, the operation engine and the text scanner.
package ooxml

import (
	"archive/zip"
	"strings"
)

// PartType discriminates between textual XML parts and opaque binaries.
type PartType string

const (
	// XMLPart holds UTF-8 XML text.
	XMLPart PartType = "xml"
	// BinPart holds raw bytes that the engine never interprets.
	BinPart PartType = "bin"
)

// ContentTypesPath is the fixed archive path of the content-types part.
const ContentTypesPath = "[Content_Types].xml"

// Part is a single archive entry of an OOXML package.
type Part struct {
	// Path is the canonical archive path: forward slashes, no leading slash.
	Path string
	Type PartType

	// Text holds the content of XML parts, Data the content of binary parts.
	Text string
	Data []byte

	// ContentType is the explicit override, when one is known.
	ContentType string

	// Modified marks parts whose content changed since decode. Unmodified
	// binary parts are re-emitted with their original compressed bytes.
	Modified bool

	rawHeader *zip.FileHeader
	rawData   []byte
}

// NormalizePath canonicalizes an archive path: forward slashes only and
// no leading slash. Paths are case-sensitive.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "/")
}

// IsXMLPath reports whether an archive path is delivered as XML text.
// The predicate covers .xml and .rels extensions plus the content-types
// part itself.
func IsXMLPath(p string) bool {
	if p == ContentTypesPath {
		return true
	}
	return strings.HasSuffix(p, ".xml") || strings.HasSuffix(p, ".rels")
}

// NewXMLPart creates an XML part marked as modified.
func NewXMLPart(path, text string) *Part {
	return &Part{
		Path:     NormalizePath(path),
		Type:     XMLPart,
		Text:     text,
		Modified: true,
	}
}

// NewBinPart creates a binary part marked as modified.
func NewBinPart(path string, data []byte) *Part {
	return &Part{
		Path:     NormalizePath(path),
		Type:     BinPart,
		Data:     data,
		Modified: true,
	}
}

// SetText replaces the content of an XML part and marks it modified.
func (p *Part) SetText(text string) {
	p.Text = text
	p.Data = nil
	p.Type = XMLPart
	p.Modified = true
	p.rawHeader = nil
	p.rawData = nil
}

// SetData replaces the content of a binary part and marks it modified.
func (p *Part) SetData(data []byte) {
	p.Data = data
	p.Text = ""
	p.Type = BinPart
	p.Modified = true
	p.rawHeader = nil
	p.rawData = nil
}

// Size returns the uncompressed content size in bytes.
func (p *Part) Size() int {
	if p.Type == XMLPart {
		return len(p.Text)
	}
	return len(p.Data)
}

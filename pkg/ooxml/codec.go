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
	"archive/zip"
	"bytes"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

// zipEpoch is the fixed timestamp written on every entry so that
// identical logical content produces byte-identical archives.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Decode reads an OOXML ZIP container into a Document. Entries matching
// the XML predicate are decoded as UTF-8 text; all other entries keep
// their bytes, plus the original compressed payload for byte-identical
// re-emission.
func Decode(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if err == zip.ErrFormat {
			return nil, errcode.Wrap(err, errcode.BadZip, "not a zip archive")
		}
		return nil, errcode.Wrap(err, errcode.ZipCorrupt, "corrupt zip central directory")
	}

	doc := NewDocument(KindGeneric)
	for _, f := range zr.File {
		name := NormalizePath(f.Name)
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		part, err := decodeEntry(f, name)
		if err != nil {
			return nil, err
		}
		doc.Put(part)
	}

	if !doc.Has(ContentTypesPath) {
		return nil, errcode.New(errcode.ContentTypes, "package has no content-types part").
			WithContext("path", ContentTypesPath)
	}

	doc.Kind = detectKind(doc.Has)
	if doc.Kind == KindGeneric {
		for k, root := range kindRoots {
			if len(doc.List(root)) > 0 {
				return nil, errcode.New(errcode.MissingMainPart, "format main part missing").
					WithContext("path", k.MainPart())
			}
		}
	}
	return doc, nil
}

func decodeEntry(f *zip.File, name string) (*Part, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errcode.Wrap(err, errcode.ZipCorrupt, "cannot open archive entry").
			WithContext("path", name)
	}
	content, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, errcode.Wrap(err, errcode.ZipCorrupt, "cannot read archive entry").
			WithContext("path", name)
	}

	if IsXMLPath(name) {
		return &Part{
			Path: name,
			Type: XMLPart,
			Text: string(bytes.TrimPrefix(content, utf8BOM)),
		}, nil
	}

	part := &Part{
		Path: name,
		Type: BinPart,
		Data: content,
	}
	// Keep the stored compressed payload so Encode can pass it through
	// untouched as long as the part stays unmodified.
	if raw, err := f.OpenRaw(); err == nil {
		if rawBytes, err := io.ReadAll(raw); err == nil {
			hdr := f.FileHeader
			part.rawHeader = &hdr
			part.rawData = rawBytes
		}
	}
	return part, nil
}

// Encode writes a Document back into ZIP bytes. Entries are emitted in
// deterministic order: the content-types part, then rels parts in
// lexicographic order, then the remaining parts in lexicographic order.
func Encode(doc *Document) ([]byte, error) {
	if !doc.Has(ContentTypesPath) {
		return nil, errcode.New(errcode.ContentTypes, "document has no content-types part").
			WithContext("path", ContentTypesPath)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range encodeOrder(doc) {
		if err := encodeEntry(zw, p); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errcode.Wrap(err, errcode.Compression, "cannot finalize archive")
	}
	return buf.Bytes(), nil
}

func encodeOrder(doc *Document) []*Part {
	var rels, rest []*Part
	for _, p := range doc.List("") {
		switch {
		case p.Path == ContentTypesPath:
		case strings.HasSuffix(p.Path, ".rels"):
			rels = append(rels, p)
		default:
			rest = append(rest, p)
		}
	}
	byPath := func(parts []*Part) {
		sort.Slice(parts, func(i, j int) bool { return parts[i].Path < parts[j].Path })
	}
	byPath(rels)
	byPath(rest)

	ct, _ := doc.Get(ContentTypesPath)
	out := make([]*Part, 0, doc.Len())
	out = append(out, ct)
	out = append(out, rels...)
	out = append(out, rest...)
	return out
}

func encodeEntry(zw *zip.Writer, p *Part) error {
	// Unmodified binaries travel as their original compressed payload.
	if p.Type == BinPart && !p.Modified && p.rawHeader != nil {
		hdr := *p.rawHeader
		hdr.Name = p.Path
		// CreateRaw writes the header's MS-DOS date fields verbatim and does
		// not derive them from Modified, so set both via SetModTime.
		hdr.SetModTime(zipEpoch)
		hdr.ExternalAttrs = 0
		w, err := zw.CreateRaw(&hdr)
		if err != nil {
			return errcode.Wrap(err, errcode.Compression, "cannot create archive entry").
				WithContext("path", p.Path)
		}
		if _, err := w.Write(p.rawData); err != nil {
			return errcode.Wrap(err, errcode.Compression, "cannot write archive entry").
				WithContext("path", p.Path)
		}
		return nil
	}

	hdr := &zip.FileHeader{
		Name:     p.Path,
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return errcode.Wrap(err, errcode.Compression, "cannot create archive entry").
			WithContext("path", p.Path)
	}
	var content []byte
	if p.Type == XMLPart {
		// XML parts serialize as UTF-8 with no BOM.
		content = []byte(p.Text)
	} else {
		content = p.Data
	}
	if _, err := w.Write(content); err != nil {
		return errcode.Wrap(err, errcode.Compression, "cannot write archive entry").
			WithContext("path", p.Path)
	}
	return nil
}

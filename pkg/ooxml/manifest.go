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
	"encoding/base64"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

// ManifestEntry is the wire form of one part. Exactly one of Text and
// DataB64 is populated, depending on Type. Binary content is base64
// only here, at the serialization boundary; in memory it stays raw.
type ManifestEntry struct {
	Path        string   `json:"path"`
	Type        PartType `json:"type"`
	Text        string   `json:"text,omitempty"`
	DataB64     string   `json:"dataB64,omitempty"`
	ContentType string   `json:"contentType,omitempty"`
}

// Manifest is the wire representation of a document. Entry order is
// preserved on round-trip but carries no semantics.
type Manifest struct {
	Kind    Kind            `json:"kind"`
	Entries []ManifestEntry `json:"entries"`
}

// BuildManifest renders a document into its wire form.
func BuildManifest(doc *Document) *Manifest {
	m := &Manifest{Kind: doc.Kind}
	for _, p := range doc.List("") {
		e := ManifestEntry{
			Path:        p.Path,
			Type:        p.Type,
			ContentType: p.ContentType,
		}
		if p.Type == XMLPart {
			e.Text = p.Text
		} else {
			e.DataB64 = base64.StdEncoding.EncodeToString(p.Data)
		}
		m.Entries = append(m.Entries, e)
	}
	return m
}

// DocumentFromManifest rebuilds a document from its wire form.
func DocumentFromManifest(m *Manifest) (*Document, error) {
	kind := m.Kind
	if kind == "" {
		kind = KindGeneric
	}
	doc := NewDocument(kind)
	for _, e := range m.Entries {
		path := NormalizePath(e.Path)
		switch e.Type {
		case XMLPart:
			if e.DataB64 != "" {
				return nil, errcode.New(errcode.PartContent, "xml entry carries dataB64").
					WithContext("path", path)
			}
			p := NewXMLPart(path, e.Text)
			p.ContentType = e.ContentType
			doc.Put(p)
		case BinPart:
			if e.Text != "" {
				return nil, errcode.New(errcode.PartContent, "bin entry carries text").
					WithContext("path", path)
			}
			data, err := base64.StdEncoding.DecodeString(e.DataB64)
			if err != nil {
				return nil, errcode.Wrap(err, errcode.PartContent, "entry dataB64 is not valid base64").
					WithContext("path", path)
			}
			p := NewBinPart(path, data)
			p.ContentType = e.ContentType
			doc.Put(p)
		default:
			return nil, errcode.Newf(errcode.PartContent, "unknown entry type %q", e.Type).
				WithContext("path", path)
		}
	}
	if m.Kind == "" {
		doc.Kind = detectKind(doc.Has)
	}
	return doc, nil
}

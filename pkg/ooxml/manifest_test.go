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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

func TestBuildManifest(t *testing.T) {
	doc := decodeTestPptx(t)
	m := BuildManifest(doc)

	assert.Equal(t, KindPptx, m.Kind)
	require.Len(t, m.Entries, 7)

	// entry order mirrors part order
	assert.Equal(t, "[Content_Types].xml", m.Entries[0].Path)

	for _, e := range m.Entries {
		switch e.Type {
		case XMLPart:
			assert.NotEmpty(t, e.Text, "entry %q", e.Path)
			assert.Empty(t, e.DataB64, "entry %q", e.Path)
		case BinPart:
			assert.Empty(t, e.Text, "entry %q", e.Path)
			assert.NotEmpty(t, e.DataB64, "entry %q", e.Path)
		}
	}

	img := m.Entries[6]
	assert.Equal(t, "ppt/media/image1.png", img.Path)
	data, err := base64.StdEncoding.DecodeString(img.DataB64)
	require.NoError(t, err)
	assert.Equal(t, testImage, data)
}

func TestManifestRoundTrip(t *testing.T) {
	doc := decodeTestPptx(t)
	m := BuildManifest(doc)

	doc2, err := DocumentFromManifest(m)
	require.NoError(t, err)
	assertDocEquivalent(t, doc, doc2)

	// order preserved exactly
	var want, got []string
	for _, p := range doc.List("") {
		want = append(want, p.Path)
	}
	for _, p := range doc2.List("") {
		got = append(got, p.Path)
	}
	assert.Equal(t, want, got)
}

func TestDocumentFromManifestDetectsKind(t *testing.T) {
	m := &Manifest{Entries: []ManifestEntry{
		{Path: "[Content_Types].xml", Type: XMLPart, Text: testContentTypes},
		{Path: "word/document.xml", Type: XMLPart, Text: "<w:document/>"},
	}}
	doc, err := DocumentFromManifest(m)
	require.NoError(t, err)
	assert.Equal(t, KindDocx, doc.Kind)
}

func TestDocumentFromManifestRejectsAmbiguousEntries(t *testing.T) {
	tests := map[string]ManifestEntry{
		"xml_with_data": {Path: "a.xml", Type: XMLPart, Text: "<a/>", DataB64: "AA=="},
		"bin_with_text": {Path: "a.bin", Type: BinPart, Text: "x", DataB64: "AA=="},
		"bad_base64":    {Path: "a.bin", Type: BinPart, DataB64: "not-base64!"},
		"unknown_type":  {Path: "a.bin", Type: "blob"},
	}
	for name, entry := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DocumentFromManifest(&Manifest{Entries: []ManifestEntry{entry}})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errcode.New(errcode.PartContent, "")))
		})
	}
}

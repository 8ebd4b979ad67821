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
	"testing"

	"github.com/stretchr/testify/require"
)

const testContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="png" ContentType="image/png"/>
<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>
<Override PartName="/ppt/slides/slide1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>
</Types>`

const testRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>
</Relationships>`

const testPresentation = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"/>`

const testPresentationRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/>
</Relationships>`

const testSlide = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:txBody><a:t>ACME Corp</a:t></p:txBody></p:sld>`

const testSlideRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>
</Relationships>`

// fake PNG payload; the engine never interprets binary parts.
var testImage = append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, bytes.Repeat([]byte{0xAB, 0xCD}, 64)...)

func testPptxEntries() []struct {
	name string
	data []byte
} {
	return []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(testContentTypes)},
		{"_rels/.rels", []byte(testRootRels)},
		{"ppt/presentation.xml", []byte(testPresentation)},
		{"ppt/_rels/presentation.xml.rels", []byte(testPresentationRels)},
		{"ppt/slides/slide1.xml", []byte(testSlide)},
		{"ppt/slides/_rels/slide1.xml.rels", []byte(testSlideRels)},
		{"ppt/media/image1.png", testImage},
	}
}

// buildTestPptx assembles a minimal but well-formed PPTX in memory.
func buildTestPptx(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range testPptxEntries() {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func decodeTestPptx(t *testing.T) *Document {
	t.Helper()
	doc, err := Decode(buildTestPptx(t))
	require.NoError(t, err)
	return doc
}

// assertDocEquivalent compares two documents logically: same kind, same
// part set, same content; rels and content-types compared structurally
// so that serialization formatting does not matter.
func assertDocEquivalent(t *testing.T, want, got *Document) {
	t.Helper()
	require.Equal(t, want.Kind, got.Kind)
	require.Equal(t, want.Len(), got.Len())
	for _, wp := range want.List("") {
		gp, ok := got.Get(wp.Path)
		require.True(t, ok, "part %q missing", wp.Path)
		require.Equal(t, wp.Type, gp.Type, "part %q type", wp.Path)
		switch {
		case wp.Path == ContentTypesPath:
			wantCT, err := ParseContentTypes(wp.Text)
			require.NoError(t, err)
			gotCT, err := ParseContentTypes(gp.Text)
			require.NoError(t, err)
			require.ElementsMatch(t, wantCT.OverridePaths(), gotCT.OverridePaths(), "content-types overrides")
		case IsRelsPath(wp.Path):
			wantRels, err := ParseRelationships(wp.Path, wp.Text)
			require.NoError(t, err)
			gotRels, err := ParseRelationships(gp.Path, gp.Text)
			require.NoError(t, err)
			require.ElementsMatch(t, wantRels.List(), gotRels.List(), "rels %q", wp.Path)
		case wp.Type == XMLPart:
			require.Equal(t, wp.Text, gp.Text, "part %q text", wp.Path)
		default:
			require.Equal(t, wp.Data, gp.Data, "part %q bytes", wp.Path)
		}
	}
}

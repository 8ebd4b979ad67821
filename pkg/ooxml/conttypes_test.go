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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentTypesLookup(t *testing.T) {
	ct, err := ParseContentTypes(testContentTypes)
	require.NoError(t, err)

	def, ok := ct.DefaultFor("png")
	require.True(t, ok)
	assert.Equal(t, "image/png", def)

	_, ok = ct.DefaultFor("xml")
	assert.False(t, ok)

	ov, ok := ct.OverrideFor("ppt/slides/slide1.xml")
	require.True(t, ok)
	assert.Contains(t, ov, "presentationml.slide+xml")

	assert.True(t, ct.Covers("ppt/media/image1.png"))
	assert.True(t, ct.Covers("ppt/slides/slide1.xml"))
	assert.False(t, ct.Covers("docProps/custom.xml"))
}

func TestContentTypesSetRemoveOverride(t *testing.T) {
	ct, err := ParseContentTypes(testContentTypes)
	require.NoError(t, err)

	ct.SetOverride("docProps/custom.xml", "application/xml")
	got, ok := ct.OverrideFor("docProps/custom.xml")
	require.True(t, ok)
	assert.Equal(t, "application/xml", got)

	// updating replaces, never duplicates
	ct.SetOverride("docProps/custom.xml", "application/vnd.openxmlformats-officedocument.custom-properties+xml")
	assert.Len(t, ct.OverridePaths(), 3)

	text, err := ct.Serialize()
	require.NoError(t, err)
	reparsed, err := ParseContentTypes(text)
	require.NoError(t, err)
	_, ok = reparsed.OverrideFor("docProps/custom.xml")
	assert.True(t, ok)

	assert.True(t, ct.RemoveOverride("docProps/custom.xml"))
	assert.False(t, ct.RemoveOverride("docProps/custom.xml"))
	assert.Len(t, ct.OverridePaths(), 2)
}

func TestParseContentTypesBadXML(t *testing.T) {
	_, err := ParseContentTypes("<Types")
	assert.Error(t, err)

	_, err = ParseContentTypes("<NotTypes/>")
	assert.Error(t, err)
}

func TestInferContentType(t *testing.T) {
	tests := map[string]struct {
		path     string
		expected string
		ok       bool
	}{
		"slide":       {"ppt/slides/slide7.xml", "application/vnd.openxmlformats-officedocument.presentationml.slide+xml", true},
		"layout":      {"ppt/slideLayouts/slideLayout2.xml", "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml", true},
		"word_header": {"word/header3.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml", true},
		"worksheet":   {"xl/worksheets/sheet1.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml", true},
		"custom":      {"docProps/custom.xml", "application/vnd.openxmlformats-officedocument.custom-properties+xml", true},
		"nested_no":   {"ppt/slides/deep/slide1.xml", "", false},
		"unknown":     {"foo/bar.xml", "", false},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := InferContentType(test.path)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.expected, got)
		})
	}
}

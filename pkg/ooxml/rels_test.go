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

func TestRelsPaths(t *testing.T) {
	assert.Equal(t, "_rels/.rels", RelsPathFor(""))
	assert.Equal(t, "ppt/_rels/presentation.xml.rels", RelsPathFor("ppt/presentation.xml"))
	assert.Equal(t, "ppt/slides/_rels/slide1.xml.rels", RelsPathFor("ppt/slides/slide1.xml"))

	src, ok := RelsSourceFor("_rels/.rels")
	require.True(t, ok)
	assert.Equal(t, "", src)

	src, ok = RelsSourceFor("ppt/slides/_rels/slide1.xml.rels")
	require.True(t, ok)
	assert.Equal(t, "ppt/slides/slide1.xml", src)

	_, ok = RelsSourceFor("ppt/slides/slide1.xml")
	assert.False(t, ok)
}

func TestIsRelsPath(t *testing.T) {
	assert.True(t, IsRelsPath("_rels/.rels"))
	assert.True(t, IsRelsPath("ppt/_rels/presentation.xml.rels"))
	assert.False(t, IsRelsPath("ppt/presentation.xml"))
	assert.False(t, IsRelsPath("strange.rels"))
}

func TestResolveTarget(t *testing.T) {
	tests := map[string]struct {
		relsPath string
		target   string
		expected string
	}{
		"package_root":   {"_rels/.rels", "ppt/presentation.xml", "ppt/presentation.xml"},
		"sibling_dir":    {"ppt/_rels/presentation.xml.rels", "slides/slide1.xml", "ppt/slides/slide1.xml"},
		"parent_dotdot":  {"ppt/slides/_rels/slide1.xml.rels", "../media/image1.png", "ppt/media/image1.png"},
		"absolute":       {"ppt/slides/_rels/slide1.xml.rels", "/docProps/core.xml", "docProps/core.xml"},
		"deep_dotdot":    {"ppt/slides/_rels/slide1.xml.rels", "../../docProps/app.xml", "docProps/app.xml"},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, ResolveTarget(test.relsPath, test.target))
		})
	}
}

func TestRelativeTarget(t *testing.T) {
	assert.Equal(t, "ppt/presentation.xml", RelativeTarget("_rels/.rels", "ppt/presentation.xml"))
	assert.Equal(t, "slides/intro.xml", RelativeTarget("ppt/_rels/presentation.xml.rels", "ppt/slides/intro.xml"))
	assert.Equal(t, "../media/image1.png", RelativeTarget("ppt/slides/_rels/slide1.xml.rels", "ppt/media/image1.png"))

	// resolution and relativization are inverse to each other
	rel := RelativeTarget("ppt/slides/_rels/slide1.xml.rels", "docProps/core.xml")
	assert.Equal(t, "docProps/core.xml", ResolveTarget("ppt/slides/_rels/slide1.xml.rels", rel))
}

func TestRelationshipsList(t *testing.T) {
	rels, err := ParseRelationships("_rels/.rels", testRootRels)
	require.NoError(t, err)
	list := rels.List()
	require.Len(t, list, 1)
	assert.Equal(t, "rId1", list[0].ID)
	assert.Equal(t, "ppt/presentation.xml", list[0].Target)
	assert.False(t, list[0].External())
}

func TestRelationshipsAddAllocatesSmallestFreeID(t *testing.T) {
	rels := NewRelationships()
	rels.Add(Relationship{ID: "rId1", Type: "t", Target: "a.xml"})
	rels.Add(Relationship{ID: "rId3", Type: "t", Target: "b.xml"})

	added := rels.Add(Relationship{Type: "t", Target: "c.xml"})
	assert.Equal(t, "rId2", added.ID)

	added = rels.Add(Relationship{Type: "t", Target: "d.xml"})
	assert.Equal(t, "rId4", added.ID)
}

func TestRelationshipsRemoveSetTarget(t *testing.T) {
	rels, err := ParseRelationships("x", testPresentationRels)
	require.NoError(t, err)

	require.True(t, rels.SetTarget("rId1", "slides/intro.xml"))
	assert.Equal(t, "slides/intro.xml", rels.List()[0].Target)
	assert.False(t, rels.SetTarget("rId9", "x"))

	require.True(t, rels.Remove("rId1"))
	assert.Equal(t, 0, rels.Len())
	assert.False(t, rels.Remove("rId1"))
}

func TestRelationshipsRoundTrip(t *testing.T) {
	rels := NewRelationships()
	rels.Add(Relationship{Type: "t", Target: "http://example.com/doc", TargetMode: "External"})
	text, err := rels.Serialize()
	require.NoError(t, err)

	reparsed, err := ParseRelationships("_rels/.rels", text)
	require.NoError(t, err)
	list := reparsed.List()
	require.Len(t, list, 1)
	assert.True(t, list[0].External())
}

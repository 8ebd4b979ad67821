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
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

// PackageRelsPath is the archive path of the package-level rels part.
const PackageRelsPath = "_rels/.rels"

const relsNamespace = "http://schemas.openxmlformats.org/package/2006/relationships"

// Relationship is one record of a rels part.
type Relationship struct {
	ID         string
	Type       string
	Target     string
	TargetMode string // "Internal" when empty
}

// External reports whether the relationship points outside the package.
func (r Relationship) External() bool {
	return strings.EqualFold(r.TargetMode, "External")
}

// Relationships is the structured model of one *.rels part.
type Relationships struct {
	doc *etree.Document
}

// NewRelationships creates an empty rels document.
func NewRelationships() *Relationships {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
	root := doc.CreateElement("Relationships")
	root.CreateAttr("xmlns", relsNamespace)
	return &Relationships{doc: doc}
}

// ParseRelationships parses the text of a rels part.
func ParseRelationships(relsPath, text string) (*Relationships, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil, errcode.Wrap(err, errcode.XMLParse, "cannot parse relationships part").
			WithContext("path", relsPath)
	}
	if doc.Root() == nil || doc.Root().Tag != "Relationships" {
		return nil, errcode.New(errcode.XMLParse, "relationships part has no Relationships root").
			WithContext("path", relsPath)
	}
	return &Relationships{doc: doc}, nil
}

// List returns all relationship records in document order.
func (r *Relationships) List() []Relationship {
	var out []Relationship
	for _, el := range r.doc.Root().SelectElements("Relationship") {
		out = append(out, Relationship{
			ID:         el.SelectAttrValue("Id", ""),
			Type:       el.SelectAttrValue("Type", ""),
			Target:     el.SelectAttrValue("Target", ""),
			TargetMode: el.SelectAttrValue("TargetMode", ""),
		})
	}
	return out
}

// Add appends a relationship. An empty ID is allocated as the smallest
// positive integer N such that rIdN is unused in this source.
func (r *Relationships) Add(rel Relationship) Relationship {
	if rel.ID == "" {
		rel.ID = r.nextID()
	}
	el := r.doc.Root().CreateElement("Relationship")
	el.CreateAttr("Id", rel.ID)
	el.CreateAttr("Type", rel.Type)
	el.CreateAttr("Target", rel.Target)
	if rel.TargetMode != "" {
		el.CreateAttr("TargetMode", rel.TargetMode)
	}
	return rel
}

// Remove drops the relationship with the given ID. It reports whether a
// record was removed.
func (r *Relationships) Remove(id string) bool {
	for _, el := range r.doc.Root().SelectElements("Relationship") {
		if el.SelectAttrValue("Id", "") == id {
			r.doc.Root().RemoveChild(el)
			return true
		}
	}
	return false
}

// SetTarget rewrites the target of the relationship with the given ID.
func (r *Relationships) SetTarget(id, target string) bool {
	for _, el := range r.doc.Root().SelectElements("Relationship") {
		if el.SelectAttrValue("Id", "") == id {
			el.CreateAttr("Target", target)
			return true
		}
	}
	return false
}

// Len returns the number of relationship records.
func (r *Relationships) Len() int {
	return len(r.doc.Root().SelectElements("Relationship"))
}

// Serialize renders the rels part back to XML text.
func (r *Relationships) Serialize() (string, error) {
	s, err := r.doc.WriteToString()
	if err != nil {
		return "", errcode.Wrap(err, errcode.XMLParse, "cannot serialize relationships part")
	}
	return s, nil
}

func (r *Relationships) nextID() string {
	used := map[int]bool{}
	for _, rel := range r.List() {
		if n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil {
			used[n] = true
		}
	}
	for n := 1; ; n++ {
		if !used[n] {
			return fmt.Sprintf("rId%d", n)
		}
	}
}

// IsRelsPath reports whether a path names a rels sidecar part.
func IsRelsPath(p string) bool {
	return strings.HasSuffix(p, ".rels") && (strings.HasPrefix(p, "_rels/") || strings.Contains(p, "/_rels/"))
}

// RelsPathFor returns the rels sidecar path for a part, or the package
// rels path for the empty source.
func RelsPathFor(partPath string) string {
	partPath = NormalizePath(partPath)
	if partPath == "" {
		return PackageRelsPath
	}
	dir, base := path.Split(partPath)
	return dir + "_rels/" + base + ".rels"
}

// RelsSourceFor returns the part a rels path belongs to; "" for the
// package rels. The second return is false when the path is no rels
// sidecar at all.
func RelsSourceFor(relsPath string) (string, bool) {
	relsPath = NormalizePath(relsPath)
	if relsPath == PackageRelsPath {
		return "", true
	}
	if !IsRelsPath(relsPath) {
		return "", false
	}
	dir, base := path.Split(relsPath)
	dir = strings.TrimSuffix(dir, "/")
	parent := strings.TrimSuffix(dir, "_rels")
	return NormalizePath(parent + strings.TrimSuffix(base, ".rels")), true
}

// ResolveTarget resolves a relationship target against the directory of
// the rels source part, with .. allowed, yielding a canonical part path.
func ResolveTarget(relsPath, target string) string {
	if strings.HasPrefix(target, "/") {
		return NormalizePath(path.Clean(target))
	}
	source, _ := RelsSourceFor(relsPath)
	base := path.Dir(source)
	if base == "." {
		base = ""
	}
	return NormalizePath(path.Clean(path.Join(base, target)))
}

// RelativeTarget computes the relationship target string that, resolved
// against the rels source, reaches partPath.
func RelativeTarget(relsPath, partPath string) string {
	source, _ := RelsSourceFor(relsPath)
	base := path.Dir(source)
	if base == "." || base == "" {
		return NormalizePath(partPath)
	}
	return relPath(base, NormalizePath(partPath))
}

// relPath is path.Rel for forward-slash archive paths. The standard
// library only offers filepath.Rel, which is OS-separator dependent.
func relPath(base, target string) string {
	baseSegs := strings.Split(path.Clean(base), "/")
	targetSegs := strings.Split(path.Clean(target), "/")
	common := 0
	for common < len(baseSegs) && common < len(targetSegs) && baseSegs[common] == targetSegs[common] {
		common++
	}
	var segs []string
	for i := common; i < len(baseSegs); i++ {
		segs = append(segs, "..")
	}
	segs = append(segs, targetSegs[common:]...)
	if len(segs) == 0 {
		return "."
	}
	return strings.Join(segs, "/")
}

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
	"strings"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

// Maintainer keeps [Content_Types].xml and the *.rels graph consistent
// with part mutations. Every mutation re-serializes the touched part
// canonically through the structured models in conttypes.go / rels.go.
type Maintainer struct {
	doc *Document
}

// NewMaintainer creates a maintainer bound to a document.
func NewMaintainer(doc *Document) *Maintainer {
	return &Maintainer{doc: doc}
}

// RegisterPart makes sure the content-types part covers path. When the
// extension already carries a matching default nothing changes;
// otherwise an override is inserted. An empty contentType is inferred
// from the built-in table.
func (m *Maintainer) RegisterPart(path, contentType string) error {
	path = NormalizePath(path)
	ct, err := m.contentTypes()
	if err != nil {
		return err
	}

	if def, ok := ct.DefaultFor(extOf(path)); ok && (contentType == "" || def == contentType) {
		return nil
	}
	if contentType == "" {
		if existing, ok := ct.OverrideFor(path); ok {
			contentType = existing
		} else if inferred, ok := InferContentType(path); ok {
			contentType = inferred
		} else {
			return errcode.New(errcode.ContentTypes, "no content type for part").
				WithContext("path", path)
		}
	}
	ct.SetOverride(path, contentType)
	if p, ok := m.doc.Get(path); ok {
		p.ContentType = contentType
	}
	return m.saveContentTypes(ct)
}

// UnregisterPart removes the override for path. Defaults are never
// touched.
func (m *Maintainer) UnregisterPart(path string) error {
	path = NormalizePath(path)
	ct, err := m.contentTypes()
	if err != nil {
		return err
	}
	if !ct.RemoveOverride(path) {
		return nil
	}
	return m.saveContentTypes(ct)
}

// OnRename cascades a part rename: the content-types override moves to
// the new path, every internal relationship targeting the old path is
// rewritten, and the part's rels sidecar is renamed alongside.
func (m *Maintainer) OnRename(from, to string) error {
	from, to = NormalizePath(from), NormalizePath(to)

	preserved := ""
	if ct, err := m.contentTypes(); err == nil {
		preserved, _ = ct.OverrideFor(from)
	}
	if preserved == "" {
		if p, ok := m.doc.Get(to); ok {
			preserved = p.ContentType
		}
	}
	if err := m.UnregisterPart(from); err != nil {
		return err
	}
	if err := m.RegisterPart(to, preserved); err != nil {
		return err
	}

	if err := m.eachRels(func(relsPath string, rels *Relationships) (bool, error) {
		changed := false
		for _, rel := range rels.List() {
			if rel.External() {
				continue
			}
			if ResolveTarget(relsPath, rel.Target) == from {
				rels.SetTarget(rel.ID, RelativeTarget(relsPath, to))
				changed = true
			}
		}
		return changed, nil
	}); err != nil {
		return err
	}

	if sidecar := RelsPathFor(from); m.doc.Has(sidecar) {
		if !m.doc.Rename(sidecar, RelsPathFor(to)) {
			return errcode.New(errcode.RelInconsistency, "cannot rename rels sidecar").
				WithContext("from", sidecar).
				WithContext("to", RelsPathFor(to))
		}
	}
	return nil
}

// OnRemove cascades a part removal: the override is dropped, every
// relationship targeting the part is removed from its parent rels, and
// the part's rels sidecar is dropped as well.
func (m *Maintainer) OnRemove(path string) error {
	path = NormalizePath(path)
	if err := m.UnregisterPart(path); err != nil {
		return err
	}

	if err := m.eachRels(func(relsPath string, rels *Relationships) (bool, error) {
		changed := false
		for _, rel := range rels.List() {
			if rel.External() {
				continue
			}
			if ResolveTarget(relsPath, rel.Target) == path {
				rels.Remove(rel.ID)
				changed = true
			}
		}
		return changed, nil
	}); err != nil {
		return err
	}

	m.doc.Remove(RelsPathFor(path))
	return nil
}

// EnsureRelationship guarantees that at least one internal relationship
// reaches path; if none does, a package-level relationship is added.
func (m *Maintainer) EnsureRelationship(path string) error {
	path = NormalizePath(path)

	referenced := false
	if err := m.eachRels(func(relsPath string, rels *Relationships) (bool, error) {
		for _, rel := range rels.List() {
			if !rel.External() && ResolveTarget(relsPath, rel.Target) == path {
				referenced = true
			}
		}
		return false, nil
	}); err != nil {
		return err
	}
	if referenced {
		return nil
	}

	var rels *Relationships
	root, ok := m.doc.Get(PackageRelsPath)
	if ok {
		var err error
		rels, err = ParseRelationships(PackageRelsPath, root.Text)
		if err != nil {
			return err
		}
	} else {
		rels = NewRelationships()
		root = NewXMLPart(PackageRelsPath, "")
		m.doc.Put(root)
	}
	rels.Add(Relationship{
		Type:   relTypeFor(path),
		Target: RelativeTarget(PackageRelsPath, path),
	})
	text, err := rels.Serialize()
	if err != nil {
		return err
	}
	root.SetText(text)
	return nil
}

// Validate checks the part/content-types/relationships invariants and
// returns one warning per violation. Violations do not abort a batch.
func (m *Maintainer) Validate() []string {
	var warnings []string

	ct, err := m.contentTypes()
	if err != nil {
		return []string{err.Error()}
	}

	for _, p := range m.doc.List("") {
		if p.Path == ContentTypesPath {
			continue
		}
		if !ct.Covers(p.Path) {
			warnings = append(warnings, fmt.Sprintf("part %q has neither a default nor an override content type", p.Path))
		}
	}
	for _, path := range ct.OverridePaths() {
		if !m.doc.Has(path) {
			warnings = append(warnings, fmt.Sprintf("content-types override references missing part %q", path))
		}
	}

	_ = m.eachRels(func(relsPath string, rels *Relationships) (bool, error) {
		seen := map[string]bool{}
		for _, rel := range rels.List() {
			if seen[rel.ID] {
				warnings = append(warnings, fmt.Sprintf("duplicate relationship id %q in %q", rel.ID, relsPath))
			}
			seen[rel.ID] = true
			if rel.External() {
				continue
			}
			if target := ResolveTarget(relsPath, rel.Target); !m.doc.Has(target) {
				warnings = append(warnings, fmt.Sprintf("relationship %q in %q targets missing part %q", rel.ID, relsPath, target))
			}
		}
		return false, nil
	})

	if main := m.doc.Kind.MainPart(); main != "" && !m.doc.Has(main) {
		warnings = append(warnings, fmt.Sprintf("format main part %q is missing", main))
	}
	return warnings
}

// eachRels runs fn over every rels part; when fn reports a change the
// part is re-serialized and marked modified.
func (m *Maintainer) eachRels(fn func(relsPath string, rels *Relationships) (bool, error)) error {
	for _, p := range m.doc.List("") {
		if p.Type != XMLPart || !IsRelsPath(p.Path) {
			continue
		}
		rels, err := ParseRelationships(p.Path, p.Text)
		if err != nil {
			// Degraded rels parts round-trip untouched; Validate reports them.
			continue
		}
		changed, err := fn(p.Path, rels)
		if err != nil {
			return err
		}
		if changed {
			text, err := rels.Serialize()
			if err != nil {
				return err
			}
			p.SetText(text)
		}
	}
	return nil
}

func (m *Maintainer) contentTypes() (*ContentTypes, error) {
	p, ok := m.doc.Get(ContentTypesPath)
	if !ok {
		return nil, errcode.New(errcode.ContentTypes, "document has no content-types part").
			WithContext("path", ContentTypesPath)
	}
	return ParseContentTypes(p.Text)
}

func (m *Maintainer) saveContentTypes(ct *ContentTypes) error {
	text, err := ct.Serialize()
	if err != nil {
		return err
	}
	p, _ := m.doc.Get(ContentTypesPath)
	p.SetText(text)
	return nil
}

// relTypes maps well-known part paths to their package relationship type.
var relTypes = map[string]string{
	"docProps/core.xml":    "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties",
	"docProps/app.xml":     "http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties",
	"docProps/custom.xml":  "http://schemas.openxmlformats.org/officeDocument/2006/relationships/custom-properties",
	"ppt/presentation.xml": "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument",
	"word/document.xml":    "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument",
	"xl/workbook.xml":      "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument",
}

func relTypeFor(path string) string {
	if t, ok := relTypes[path]; ok {
		return t
	}
	if strings.Contains(path, "/media/") {
		return "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	}
	return "http://schemas.openxmlformats.org/officeDocument/2006/relationships/customXml"
}

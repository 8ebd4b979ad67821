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
	"strings"

	"github.com/beevik/etree"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

// ContentTypes is the structured model of [Content_Types].xml: a table
// of per-extension defaults plus per-part overrides. It is parsed and
// re-serialized with a real XML model, never string-spliced.
type ContentTypes struct {
	doc *etree.Document
}

// ParseContentTypes parses the text of a [Content_Types].xml part.
func ParseContentTypes(text string) (*ContentTypes, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(text); err != nil {
		return nil, errcode.Wrap(err, errcode.XMLParse, "cannot parse content-types part").
			WithContext("path", ContentTypesPath)
	}
	if doc.Root() == nil || doc.Root().Tag != "Types" {
		return nil, errcode.New(errcode.XMLParse, "content-types part has no Types root").
			WithContext("path", ContentTypesPath)
	}
	return &ContentTypes{doc: doc}, nil
}

// DefaultFor returns the default content type registered for an
// extension (without the leading dot).
func (ct *ContentTypes) DefaultFor(ext string) (string, bool) {
	for _, el := range ct.doc.Root().SelectElements("Default") {
		if strings.EqualFold(el.SelectAttrValue("Extension", ""), ext) {
			return el.SelectAttrValue("ContentType", ""), true
		}
	}
	return "", false
}

// OverrideFor returns the override registered for a part path.
func (ct *ContentTypes) OverrideFor(partPath string) (string, bool) {
	want := "/" + NormalizePath(partPath)
	for _, el := range ct.doc.Root().SelectElements("Override") {
		if el.SelectAttrValue("PartName", "") == want {
			return el.SelectAttrValue("ContentType", ""), true
		}
	}
	return "", false
}

// SetOverride registers or updates the override for a part path. New
// overrides are appended before the closing Types tag.
func (ct *ContentTypes) SetOverride(partPath, contentType string) {
	want := "/" + NormalizePath(partPath)
	for _, el := range ct.doc.Root().SelectElements("Override") {
		if el.SelectAttrValue("PartName", "") == want {
			el.CreateAttr("ContentType", contentType)
			return
		}
	}
	el := ct.doc.Root().CreateElement("Override")
	el.CreateAttr("PartName", want)
	el.CreateAttr("ContentType", contentType)
}

// RemoveOverride drops the override for a part path. Defaults are never
// touched. It reports whether an override was removed.
func (ct *ContentTypes) RemoveOverride(partPath string) bool {
	want := "/" + NormalizePath(partPath)
	for _, el := range ct.doc.Root().SelectElements("Override") {
		if el.SelectAttrValue("PartName", "") == want {
			ct.doc.Root().RemoveChild(el)
			return true
		}
	}
	return false
}

// OverridePaths lists the part paths of all overrides, in document order.
func (ct *ContentTypes) OverridePaths() []string {
	var out []string
	for _, el := range ct.doc.Root().SelectElements("Override") {
		out = append(out, NormalizePath(el.SelectAttrValue("PartName", "")))
	}
	return out
}

// Covers reports whether a part path is covered by a default or an
// override.
func (ct *ContentTypes) Covers(partPath string) bool {
	if _, ok := ct.DefaultFor(extOf(partPath)); ok {
		return true
	}
	_, ok := ct.OverrideFor(partPath)
	return ok
}

// Serialize renders the table back to XML text.
func (ct *ContentTypes) Serialize() (string, error) {
	s, err := ct.doc.WriteToString()
	if err != nil {
		return "", errcode.Wrap(err, errcode.XMLParse, "cannot serialize content-types part").
			WithContext("path", ContentTypesPath)
	}
	return s, nil
}

func extOf(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 || strings.Contains(path[i:], "/") {
		return ""
	}
	return path[i+1:]
}

// contentTypeTable maps canonical OOXML directory patterns to the MIME
// type used when a client upserts a part without an explicit type. A
// single * matches one path segment fragment.
var contentTypeTable = []struct {
	pattern     string
	contentType string
}{
	{"ppt/presentation.xml", "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"},
	{"ppt/slides/*.xml", "application/vnd.openxmlformats-officedocument.presentationml.slide+xml"},
	{"ppt/slideLayouts/*.xml", "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"},
	{"ppt/slideMasters/*.xml", "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"},
	{"ppt/notesSlides/*.xml", "application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"},
	{"ppt/notesMasters/*.xml", "application/vnd.openxmlformats-officedocument.presentationml.notesMaster+xml"},
	{"ppt/handoutMasters/*.xml", "application/vnd.openxmlformats-officedocument.presentationml.handoutMaster+xml"},
	{"ppt/theme/*.xml", "application/vnd.openxmlformats-officedocument.theme+xml"},
	{"ppt/tableStyles.xml", "application/vnd.openxmlformats-officedocument.presentationml.tableStyles+xml"},
	{"ppt/viewProps.xml", "application/vnd.openxmlformats-officedocument.presentationml.viewProps+xml"},
	{"ppt/presProps.xml", "application/vnd.openxmlformats-officedocument.presentationml.presProps+xml"},
	{"word/document.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"},
	{"word/styles.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"},
	{"word/settings.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"},
	{"word/numbering.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"},
	{"word/fontTable.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.fontTable+xml"},
	{"word/footnotes.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.footnotes+xml"},
	{"word/endnotes.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.endnotes+xml"},
	{"word/header*.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"},
	{"word/footer*.xml", "application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"},
	{"word/theme/*.xml", "application/vnd.openxmlformats-officedocument.theme+xml"},
	{"xl/workbook.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"},
	{"xl/worksheets/*.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"},
	{"xl/styles.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.styles+xml"},
	{"xl/sharedStrings.xml", "application/vnd.openxmlformats-officedocument.spreadsheetml.sharedStrings+xml"},
	{"xl/theme/*.xml", "application/vnd.openxmlformats-officedocument.theme+xml"},
	{"docProps/core.xml", "application/vnd.openxmlformats-package.core-properties+xml"},
	{"docProps/app.xml", "application/vnd.openxmlformats-officedocument.extended-properties+xml"},
	{"docProps/custom.xml", "application/vnd.openxmlformats-officedocument.custom-properties+xml"},
}

// InferContentType looks up the built-in table for the MIME type of a
// canonical OOXML part path.
func InferContentType(path string) (string, bool) {
	path = NormalizePath(path)
	for _, e := range contentTypeTable {
		if matchPattern(e.pattern, path) {
			return e.contentType, true
		}
	}
	return "", false
}

// matchPattern matches a path against a table pattern with at most one
// * wildcard. The wildcard never crosses a path separator.
func matchPattern(pattern, path string) bool {
	i := strings.Index(pattern, "*")
	if i < 0 {
		return pattern == path
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	if len(path) < len(prefix)+len(suffix) {
		return false
	}
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return false
	}
	mid := path[len(prefix) : len(path)-len(suffix)]
	return !strings.Contains(mid, "/")
}

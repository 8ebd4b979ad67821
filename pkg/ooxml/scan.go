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
	"regexp"
	"strconv"
	"strings"

	"github.com/cs3org/ooxmld/pkg/errcode"
)

// Scanner performs literal and regex search/replace over the textual
// content of XML parts. Patterns are compiled lazily and cached for the
// lifetime of the scanner, which is one request. All offsets are byte
// offsets on the UTF-8 text; the scanner never parses XML.
type Scanner struct {
	cache map[string]*compiledPattern
}

type compiledPattern struct {
	re     *regexp.Regexp
	global bool
}

// Match is one occurrence found by Scan.
type Match struct {
	Path   string
	Offset int
	Length int
}

// NewScanner creates a scanner with an empty pattern cache.
func NewScanner() *Scanner {
	return &Scanner{cache: map[string]*compiledPattern{}}
}

// Scan returns every occurrence of find in the given XML parts.
func (s *Scanner) Scan(parts []*Part, find string, regex bool, flags string) ([]Match, error) {
	cp, err := s.compile(find, regex, flags)
	if err != nil {
		return nil, err
	}
	var out []Match
	for _, p := range parts {
		if p.Type != XMLPart {
			continue
		}
		locs := cp.re.FindAllStringIndex(p.Text, matchLimit(cp))
		for _, loc := range locs {
			out = append(out, Match{Path: p.Path, Offset: loc[0], Length: loc[1] - loc[0]})
		}
	}
	return out, nil
}

// Rewrite replaces occurrences of find in the given XML parts and
// returns the replacement count per part. A part's modification flag is
// set only when its text actually changed.
func (s *Scanner) Rewrite(parts []*Part, find, replace string, regex bool, flags string) (map[string]int, error) {
	cp, err := s.compile(find, regex, flags)
	if err != nil {
		return nil, err
	}
	template, err := buildTemplate(cp.re, replace, regex)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, p := range parts {
		if p.Type != XMLPart {
			continue
		}
		rewritten, n := rewriteText(cp, p.Text, template)
		if n > 0 && rewritten != p.Text {
			p.SetText(rewritten)
		}
		if n > 0 {
			counts[p.Path] = n
		}
	}
	return counts, nil
}

func matchLimit(cp *compiledPattern) int {
	if cp.global {
		return -1
	}
	return 1
}

func rewriteText(cp *compiledPattern, text, template string) (string, int) {
	locs := cp.re.FindAllStringSubmatchIndex(text, matchLimit(cp))
	if len(locs) == 0 {
		return text, 0
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(text[last:loc[0]])
		b.WriteString(string(cp.re.ExpandString(nil, template, text, loc)))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), len(locs)
}

// compile turns a find pattern plus flags into a cached regexp. The
// flags default to "g"; supported are g (global), i, m and s.
func (s *Scanner) compile(find string, regex bool, flags string) (*compiledPattern, error) {
	if flags == "" {
		flags = "g"
	}
	key := fmt.Sprintf("%t\x00%s\x00%s", regex, flags, find)
	if cp, ok := s.cache[key]; ok {
		return cp, nil
	}

	var mods strings.Builder
	global := false
	for _, f := range flags {
		switch f {
		case 'g':
			global = true
		case 'i', 'm', 's':
			mods.WriteRune(f)
		default:
			return nil, errcode.Newf(errcode.RegexParse, "unsupported pattern flag %q", string(f)).
				WithContext("flags", flags)
		}
	}

	pattern := find
	if !regex {
		pattern = regexp.QuoteMeta(find)
	}
	if mods.Len() > 0 {
		pattern = "(?" + mods.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errcode.Wrap(err, errcode.RegexCompile, "cannot compile pattern").
			WithContext("find", find)
	}
	cp := &compiledPattern{re: re, global: global}
	s.cache[key] = cp
	return cp, nil
}

// buildTemplate converts the client replacement string into an
// expansion template. In literal mode the replacement is taken verbatim
// ($ has no meaning); in regex mode $1…$n and $& are honored and any
// reference to a nonexistent capture group is rejected.
func buildTemplate(re *regexp.Regexp, replace string, regex bool) (string, error) {
	if !regex {
		return strings.ReplaceAll(replace, "$", "$$"), nil
	}
	template := braceGroupRefs(strings.ReplaceAll(replace, "$&", "${0}"))
	if err := checkGroupRefs(re, template); err != nil {
		return "", err
	}
	return template, nil
}

// braceGroupRefs rewrites every unbraced reference to its braced form
// so that validation and regexp.Expand see the same token. A numeric
// reference ends at the digit run ($1x becomes ${1}x); a named one
// spans the full name run, matching what Expand would consume.
func braceGroupRefs(template string) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i+1 >= len(template) {
			b.WriteByte(c)
			continue
		}
		next := template[i+1]
		if next == '$' || next == '{' {
			b.WriteByte(c)
			b.WriteByte(next)
			i++
			continue
		}
		end := i + 1
		if isDigit(next) {
			for end < len(template) && isDigit(template[end]) {
				end++
			}
		} else if isNameByte(next) {
			for end < len(template) && isNameByte(template[end]) {
				end++
			}
		}
		if end == i+1 {
			b.WriteByte(c)
			continue
		}
		b.WriteString("${")
		b.WriteString(template[i+1 : end])
		b.WriteString("}")
		i = end - 1
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameByte(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func checkGroupRefs(re *regexp.Regexp, template string) error {
	names := map[string]bool{}
	for _, n := range re.SubexpNames() {
		if n != "" {
			names[n] = true
		}
	}
	for i := 0; i < len(template); i++ {
		if template[i] != '$' || i+1 >= len(template) {
			continue
		}
		rest := template[i+1:]
		if rest[0] == '$' {
			i++
			continue
		}
		ref := rest
		braced := false
		if rest[0] == '{' {
			end := strings.Index(rest, "}")
			if end < 0 {
				return errcode.New(errcode.BadReplacement, "unterminated group reference in replacement").
					WithContext("replacement", template)
			}
			ref = rest[1:end]
			braced = true
		} else {
			end := 0
			for end < len(ref) && (ref[end] >= '0' && ref[end] <= '9') {
				end++
			}
			ref = ref[:end]
		}
		if ref == "" {
			continue
		}
		if n, err := strconv.Atoi(ref); err == nil {
			if n > re.NumSubexp() {
				return errcode.Newf(errcode.BadReplacement, "replacement references capture group %d of %d", n, re.NumSubexp())
			}
		} else if braced && !names[ref] {
			return errcode.Newf(errcode.BadReplacement, "replacement references unknown capture group %q", ref)
		}
	}
	return nil
}

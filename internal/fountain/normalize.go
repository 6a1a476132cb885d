/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fountain

import (
	"regexp"
	"strings"
)

var (
	reSlash        = regexp.MustCompile(`\s*/\s*`)
	reDash         = regexp.MustCompile(dashPattern)
	reLeadingTag   = regexp.MustCompile(`(?i)^(?:` + tagPattern + `\s+)+`)
	reTrailingTime = regexp.MustCompile(`(?i)(?:(?:^|\s+)` + dashPattern + `\s+` + timeComposite + `)+$`)
	reArticle      = regexp.MustCompile(`(?i)^(?:` + strings.Join(articles, "|") + `)\s+`)
)

// Normalize canonicalizes the raw parts of a heading.
// Feeding its output back in yields the same Heading, except for a location
// that starts with stacked articles: only one article is removed per pass.
func Normalize(raw RawHeading) Heading {
	h := Heading{Location: NormalizeLocation(raw.Location)}
	if tag := NormalizeTag(raw.Tag); tag != "" {
		h.IntExt = &tag
	}
	if tod := NormalizeTime(raw.Time); tod != "" {
		h.TimeOfDay = &tod
	}
	return h
}

// NormalizeTag upper-cases the tag and drops one trailing period.
// Any combined form ("INT./EXT.", "I/E", ...) becomes "INT/EXT".
func NormalizeTag(raw string) string {
	t := strings.ToUpper(collapse(raw))
	if t == "" {
		return ""
	}
	if strings.Contains(t, "/") {
		return "INT/EXT"
	}
	return strings.TrimSuffix(t, ".")
}

// NormalizeTime upper-cases a time-of-day composite and puts exactly one
// space on each side of every "/" separator.
func NormalizeTime(raw string) string {
	t := strings.ToUpper(collapse(raw))
	if t == "" {
		return ""
	}
	return reSlash.ReplaceAllString(t, " / ")
}

// NormalizeLocation cleans a location capture. The result may be empty.
//
// The trailing time suffix is removed before dashes are turned into spaces;
// in the other order a leaked " - NIGHT" would survive as " NIGHT".
func NormalizeLocation(raw string) string {
	s := strings.ToUpper(collapse(raw))
	s = reLeadingTag.ReplaceAllString(s, "")
	s = reTrailingTime.ReplaceAllString(s, "")
	s = collapse(reDash.ReplaceAllString(s, " "))
	s = reArticle.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

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

// Heading vocabulary. These are fixed constants of the grammar.
var (
	// timeWords is ordered so that multi-word keywords are tried first.
	timeWords = []string{
		"MOMENTS LATER", "CONTINUOUS", "AFTERNOON", "MIDNIGHT", "SUNRISE", "SUNSET",
		"MORNING", "EVENING", "NIGHT", "LATER", "DUSK", "DAWN", "NOON", "DAY",
	}
	articles = []string{"THE", "AN", "A"}
)

const (
	// tagPattern accepts INT, EXT and the combined forms INT/EXT, INT./EXT., EXT/INT and I/E.
	tagPattern  = `(?:INT\.?\s*/\s*EXT|EXT\.?\s*/\s*INT|I\s*/\s*E|INT|EXT)\.?`
	dashPattern = `[-\x{2013}\x{2014}]`
)

var (
	timeKeyword   = keywordAlternation(timeWords)
	timeComposite = timeKeyword + `(?:\s*/\s*` + timeKeyword + `)*`

	// The dash needs whitespace on both sides, so MID-DAY stays a location.
	// The location group is optional so that "INT. - NIGHT" still matches.
	reHeading = regexp.MustCompile(`(?i)^(` + tagPattern + `)(?:\s+(.*?))??(?:\s+` + dashPattern + `\s+(` + timeComposite + `))?$`)
)

func keywordAlternation(words []string) string {
	alts := make([]string, 0, len(words))
	for _, w := range words {
		alts = append(alts, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	return `(?:` + strings.Join(alts, "|") + `)`
}

// collapse trims s and folds every run of whitespace (tabs included) into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// MatchHeading reports whether line is a scene heading and returns its raw parts.
// The line is trimmed and whitespace-collapsed before matching; matching is case-insensitive.
func MatchHeading(line string) (RawHeading, bool) {
	m := reHeading.FindStringSubmatch(collapse(line))
	if m == nil || m[2] == "" && m[3] == "" {
		return RawHeading{}, false
	}
	return RawHeading{Tag: m[1], Location: m[2], Time: m[3]}, true
}

// IsHeading reports whether line is a scene heading.
func IsHeading(line string) bool {
	_, ok := MatchHeading(line)
	return ok
}

// ParseHeading classifies line and, on a match, returns its normalized parts.
func ParseHeading(line string) (Heading, bool) {
	raw, ok := MatchHeading(line)
	if !ok {
		return Heading{}, false
	}
	return Normalize(raw), true
}

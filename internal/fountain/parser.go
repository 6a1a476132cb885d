/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fountain

import (
	"bufio"
	"strings"
)

// sceneBuilder is the scene under construction.
type sceneBuilder struct {
	scene Scene
	body  strings.Builder
}

func (b *sceneBuilder) finish() Scene {
	s := b.scene
	s.Body = b.body.String()
	s.LineCount = countNonBlank(s.Body)
	return s
}

// Parse splits text into scenes in heading order. Indexes are 0-based and dense.
// Lines before the first heading are discarded. Both "\n" and "\r\n" line endings
// are accepted; a single trailing line ending does not add an empty body line.
// Parse never fails: input without headings yields an empty, non-nil slice.
func Parse(text string) []Scene {
	scenes := []Scene{}
	if strings.TrimSpace(text) == "" {
		return scenes
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	// A single line may be as long as the whole document.
	scanner.Buffer(make([]byte, 0, 64*1024), len(text)+1)

	var cur *sceneBuilder
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if raw, ok := MatchHeading(line); ok {
			if cur != nil {
				scenes = append(scenes, cur.finish())
			}
			h := Normalize(raw)
			cur = &sceneBuilder{scene: Scene{
				Index:     len(scenes),
				SlugRaw:   strings.TrimSpace(line),
				IntExt:    h.IntExt,
				Location:  h.Location,
				TimeOfDay: h.TimeOfDay,
				LineNo:    lineNo,
			}}
			continue
		}
		if cur == nil {
			continue
		}
		cur.body.WriteString(line)
		cur.body.WriteByte('\n')
	}
	if cur != nil {
		scenes = append(scenes, cur.finish())
	}
	return scenes
}

// countNonBlank counts the lines of body that are not empty after trimming.
func countNonBlank(body string) int {
	n := 0
	for _, l := range strings.Split(body, "\n") {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}

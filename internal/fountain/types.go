/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package fountain segments screenplay text into scenes.
// Scene headings (sluglines) are recognized with a fixed grammar of INT/EXT tags,
// a free-form location and an optional time-of-day suffix; everything between two
// headings is the body of the earlier scene. Text before the first heading is dropped.
//
// The package is pure: no I/O, no logging, no shared state. Parse is safe to call
// from multiple goroutines.
package fountain

// Scene is one scene discovered in a screenplay.
// IntExt and TimeOfDay are nil when the heading carried no such part;
// Location is always set and may be empty.
type Scene struct {
	Index     int     `json:"index"`
	SlugRaw   string  `json:"slugRaw"`
	IntExt    *string `json:"intExt"`
	Location  string  `json:"location"`
	TimeOfDay *string `json:"timeOfDay"`
	Body      string  `json:"body"`
	LineCount int     `json:"lineCount"`
	LineNo    int     `json:"lineNo"` // 1-based line of the heading in the source
}

// Heading holds the normalized parts of a scene heading.
type Heading struct {
	IntExt    *string
	Location  string
	TimeOfDay *string
}

// RawHeading holds the unnormalized capture groups of a heading line.
// Tag and Time are empty when the respective group did not participate.
type RawHeading struct {
	Tag      string
	Location string
	Time     string
}

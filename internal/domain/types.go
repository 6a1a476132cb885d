/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the persisted data model: projects own scripts, scripts own
// the scenes produced by the last parse. Scene fields mirror fountain.Scene plus
// the identifiers the store assigns.

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"scenebreak/internal/fountain"
)

// Script formats accepted on upload.
const (
	FormatFountain = "fountain"
	FormatText     = "txt"

	// DefaultScriptTitle is used when neither a title nor a filename is supplied.
	DefaultScriptTitle = "Untitled Script"
)

// Project groups scripts.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Script is an uploaded screenplay document.
// RawText is omitted from listings; see the store for which queries load it.
type Script struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	Title     string     `json:"title"`
	Format    string     `json:"format"`
	RawText   string     `json:"rawText,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	ParsedAt  *time.Time `json:"parsedAt,omitempty"`
}

// SceneRecord is a stored scene of a script.
type SceneRecord struct {
	ID        string  `json:"id"`
	ScriptID  string  `json:"scriptId"`
	Index     int     `json:"index"`
	SlugRaw   string  `json:"slugRaw"`
	IntExt    *string `json:"intExt"`
	Location  *string `json:"location"`
	TimeOfDay *string `json:"timeOfDay"`
	Body      string  `json:"body,omitempty"`
	LineCount int     `json:"lineCount"`
	LineNo    int     `json:"lineNo"`
}

// SceneMeta carries the structured heading of a SceneView.
type SceneMeta struct {
	IntExt    *string `json:"intExt"`
	Location  *string `json:"location"`
	TimeOfDay *string `json:"timeOfDay"`
}

// SceneView is the compact projection served to scene listings.
type SceneView struct {
	ID        string    `json:"id"`
	Index     int       `json:"index"`
	Slugline  string    `json:"slugline"`
	LineCount int       `json:"lineCount"`
	Meta      SceneMeta `json:"meta"`
}

// NewID returns a new sortable, globally unique identifier.
func NewID() string { return ksuid.New().String() }

// DetectFormat derives the script format from an uploaded file name.
// Only "fountain" and "txt" are kept; anything else is treated as plain text.
func DetectFormat(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == FormatFountain {
		return FormatFountain
	}
	return FormatText
}

// ResolveTitle picks the explicit title, then the file name, then DefaultScriptTitle.
func ResolveTitle(title, filename string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if f := strings.TrimSpace(filename); f != "" {
		return f
	}
	return DefaultScriptTitle
}

// ScenesFromParse turns parser output into records for scriptID with fresh IDs.
func ScenesFromParse(scriptID string, scenes []fountain.Scene) []SceneRecord {
	out := make([]SceneRecord, 0, len(scenes))
	for _, s := range scenes {
		loc := s.Location
		out = append(out, SceneRecord{
			ID:        NewID(),
			ScriptID:  scriptID,
			Index:     s.Index,
			SlugRaw:   s.SlugRaw,
			IntExt:    s.IntExt,
			Location:  &loc,
			TimeOfDay: s.TimeOfDay,
			Body:      s.Body,
			LineCount: s.LineCount,
			LineNo:    s.LineNo,
		})
	}
	return out
}

// Slugline joins the non-empty heading parts with " - ".
func (r SceneRecord) Slugline() string {
	parts := make([]string, 0, 3)
	if r.IntExt != nil && *r.IntExt != "" {
		parts = append(parts, strings.ToUpper(*r.IntExt))
	}
	if r.Location != nil && *r.Location != "" {
		parts = append(parts, *r.Location)
	}
	if r.TimeOfDay != nil && *r.TimeOfDay != "" {
		parts = append(parts, strings.ToUpper(*r.TimeOfDay))
	}
	return strings.Join(parts, " - ")
}

// View projects the record for listings.
func (r SceneRecord) View() SceneView {
	return SceneView{
		ID:        r.ID,
		Index:     r.Index,
		Slugline:  r.Slugline(),
		LineCount: r.LineCount,
		Meta:      SceneMeta{IntExt: r.IntExt, Location: r.Location, TimeOfDay: r.TimeOfDay},
	}
}

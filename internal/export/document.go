/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a script's scenes as a scene breakdown in JSON,
// YAML or PDF.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"scenebreak/internal/domain"
)

// Formats accepted by Write.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatPDF  = "pdf"
)

// Document is the exported breakdown of one script.
type Document struct {
	Title       string      `json:"title" yaml:"title" jsonschema:"minLength=1"`
	GeneratedAt time.Time   `json:"generatedAt" yaml:"generatedAt"`
	SceneCount  int         `json:"sceneCount" yaml:"sceneCount" jsonschema:"minimum=0"`
	Scenes      []SceneItem `json:"scenes" yaml:"scenes"`
}

type SceneItem struct {
	Index     int     `json:"index" yaml:"index" jsonschema:"minimum=0"`
	SlugRaw   string  `json:"slugRaw" yaml:"slugRaw"`
	IntExt    *string `json:"intExt,omitempty" yaml:"intExt,omitempty" jsonschema:"enum=INT,enum=EXT,enum=INT/EXT"`
	Location  string  `json:"location" yaml:"location"`
	TimeOfDay *string `json:"timeOfDay,omitempty" yaml:"timeOfDay,omitempty"`
	LineCount int     `json:"lineCount" yaml:"lineCount" jsonschema:"minimum=0"`
	LineNo    int     `json:"lineNo" yaml:"lineNo" jsonschema:"minimum=1"`
	Body      string  `json:"body" yaml:"body"`
}

// NewDocument builds a Document from stored scenes. Scenes keep their index order.
func NewDocument(title string, scenes []domain.SceneRecord, at time.Time) Document {
	d := Document{Title: title, GeneratedAt: at.UTC().Truncate(time.Second), Scenes: make([]SceneItem, 0, len(scenes))}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = domain.DefaultScriptTitle
	}
	for _, s := range scenes {
		it := SceneItem{
			Index:     s.Index,
			SlugRaw:   s.SlugRaw,
			IntExt:    s.IntExt,
			TimeOfDay: s.TimeOfDay,
			LineCount: s.LineCount,
			LineNo:    s.LineNo,
			Body:      s.Body,
		}
		if s.Location != nil {
			it.Location = *s.Location
		}
		d.Scenes = append(d.Scenes, it)
	}
	d.SceneCount = len(d.Scenes)
	return d
}

var (
	schemaOnce  sync.Once
	schemaBytes []byte
	schemaErr   error
)

// Schema returns the JSON Schema (draft-07) describing Document.
func Schema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true, Anonymous: true}
		s := r.Reflect(&Document{})
		s.Version = "http://json-schema.org/draft-07/schema#"
		s.Title = "Scene breakdown"
		schemaBytes, schemaErr = json.MarshalIndent(s, "", "  ")
	})
	return schemaBytes, schemaErr
}

// Validate checks a JSON document against Schema.
func Validate(doc []byte) error {
	sch, err := Schema()
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(sch), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("document does not match schema: %s", strings.Join(msgs, "; "))
}

// WriteJSON writes d as indented JSON after validating it.
func WriteJSON(w io.Writer, d Document) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	if err := Validate(data); err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteYAML writes d as YAML.
func WriteYAML(w io.Writer, d Document) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch format {
	case FormatYAML:
		return "application/yaml"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/json"
	}
}

// Write dispatches on format ("json" when empty).
func Write(w io.Writer, format string, d Document) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		return WriteJSON(w, d)
	case FormatYAML, "yml":
		return WriteYAML(w, d)
	case FormatPDF:
		return WritePDF(w, d)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

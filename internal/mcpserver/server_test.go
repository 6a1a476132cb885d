/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (*mcp.CallToolResult, string) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return res, c.Text
	case *mcp.TextContent:
		return res, c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}
	return res, ""
}

func TestParseScreenplayTool(t *testing.T) {
	res, text := call(t, handleParse, map[string]any{"text": "FADE IN:\nINT. LAB - NIGHT\nBeeps.\nEXT. YARD\n"})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", text)
	}
	var scenes []map[string]any
	if err := json.Unmarshal([]byte(text), &scenes); err != nil {
		t.Fatalf("unmarshal: %v (%s)", err, text)
	}
	if len(scenes) != 2 || scenes[0]["location"] != "LAB" || scenes[1]["timeOfDay"] != nil {
		t.Fatalf("unexpected scenes: %v", scenes)
	}
}

func TestParseScreenplayRequiresText(t *testing.T) {
	res, _ := call(t, handleParse, map[string]any{})
	if !res.IsError {
		t.Fatalf("expected tool error for missing text")
	}
}

func TestClassifyHeadingTool(t *testing.T) {
	_, text := call(t, handleClassify, map[string]any{"line": "ext. the old barn - dusk"})
	var got headingResult
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Heading || got.Location != "OLD BARN" || got.IntExt == nil || *got.IntExt != "EXT" || got.TimeOfDay == nil || *got.TimeOfDay != "DUSK" {
		t.Fatalf("unexpected classification: %+v", got)
	}

	_, text = call(t, handleClassify, map[string]any{"line": "JOHN (V.O.)"})
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Heading || got.Location != "" || got.IntExt != nil {
		t.Fatalf("non-heading classified as heading: %+v", got)
	}
}

func TestNewRegistersTools(t *testing.T) {
	if s := New(); s == nil {
		t.Fatalf("New returned nil")
	}
}

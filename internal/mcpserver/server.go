/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package mcpserver exposes the screenplay parser as Model Context Protocol
// tools, served over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"scenebreak/internal/fountain"
	applog "scenebreak/internal/log"
	"scenebreak/internal/version"
)

// maxInputBytes bounds the text a single tool call may parse.
const maxInputBytes = 4 << 20

// New builds the MCP server with all tools registered.
func New() *server.MCPServer {
	s := server.NewMCPServer("scenebreak", version.Version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("parse_screenplay",
		mcp.WithDescription("Split screenplay text into scenes at INT./EXT. sluglines. Returns a JSON array of scenes with index, slugRaw, intExt, location, timeOfDay, body, lineCount and lineNo."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Full screenplay text (Fountain or plain text).")),
	), handleParse)

	s.AddTool(mcp.NewTool("classify_heading",
		mcp.WithDescription("Check whether one line is a scene heading and return its normalized parts."),
		mcp.WithString("line", mcp.Required(), mcp.Description("A single line of screenplay text.")),
	), handleClassify)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve() error {
	applog.WithComponent("mcp").Info("serving MCP over stdio")
	return server.ServeStdio(New())
}

func handleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(text) > maxInputBytes {
		return mcp.NewToolResultError("text exceeds 4 MiB"), nil
	}
	scenes := fountain.Parse(text)
	applog.WithComponent("mcp").DebugContext(ctx, "parse_screenplay", slog.Int("bytes", len(text)), slog.Int("scenes", len(scenes)))
	return jsonResult(scenes)
}

// headingResult is the classify_heading payload.
type headingResult struct {
	Heading   bool    `json:"heading"`
	IntExt    *string `json:"intExt"`
	Location  string  `json:"location"`
	TimeOfDay *string `json:"timeOfDay"`
}

func handleClassify(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	line, err := req.RequireString("line")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h, ok := fountain.ParseHeading(line)
	return jsonResult(headingResult{Heading: ok, IntExt: h.IntExt, Location: h.Location, TimeOfDay: h.TimeOfDay})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

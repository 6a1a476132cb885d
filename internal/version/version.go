/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version holds build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X scenebreak/internal/version.Version=v0.3.0 -X scenebreak/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Info is the JSON shape served by GET /version.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
	Go      string `json:"go"`
}

// Get returns the current build info.
func Get() Info {
	return Info{Version: Version, Commit: Commit, Date: Date, Go: runtime.Version()}
}

// String renders a one-line description such as "scenebreak dev (abc123, go1.24.0)".
func String() string {
	i := Get()
	if i.Commit == "" {
		return fmt.Sprintf("scenebreak %s (%s)", i.Version, i.Go)
	}
	return fmt.Sprintf("scenebreak %s (%s, %s)", i.Version, i.Commit, i.Go)
}

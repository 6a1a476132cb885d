/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a logged error, a crash report
// on disk and a non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "scenebreak/internal/log"
	"scenebreak/internal/version"
)

// ExitCode is used when a panic was recovered.
const ExitCode = 2

var (
	exitFn           = os.Exit
	stderr io.Writer = os.Stderr
	nowFn            = time.Now
)

// Recover must be deferred directly:
//
//	defer crash.Recover(reportDir)
//
// An empty reportDir uses the system temp directory.
func Recover(reportDir string) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	path, err := writeReport(reportDir, r, stack)
	if err != nil {
		l.Error("write crash report", slog.Any("err", err))
		_, _ = fmt.Fprintf(stderr, "scenebreak crashed: %v\n", r)
	} else {
		_, _ = fmt.Fprintf(stderr, "scenebreak crashed. A report was saved to %s\n", path)
	}
	_ = applog.Close()
	exitFn(ExitCode)
}

func writeReport(dir string, panicVal any, stack []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	now := nowFn()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s-%d.log", now.Format("20060102-150405"), os.Getpid()))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenebreak crash report\n")
	fmt.Fprintf(&buf, "Time:    %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&buf, "Args:    %s\n", strings.Join(os.Args, " "))
	fmt.Fprintf(&buf, "\nPanic: %v\n\nStack:\n%s\n", panicVal, stack)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	return path, nil
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRecoverWritesReportAndExits(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	code := -1
	oldExit, oldErr := exitFn, stderr
	exitFn = func(c int) { code = c }
	stderr = &out
	defer func() { exitFn, stderr = oldExit, oldErr }()

	func() {
		defer Recover(dir)
		panic("boom")
	}()

	if code != ExitCode {
		t.Fatalf("exit code = %d, want %d", code, ExitCode)
	}
	files, err := filepath.Glob(filepath.Join(dir, "crash-*.log"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one report, got %v (%v)", files, err)
	}
	b, _ := os.ReadFile(files[0])
	if !bytes.Contains(b, []byte("Panic: boom")) || !bytes.Contains(b, []byte("scenebreak crash report")) {
		t.Fatalf("unexpected report: %s", b)
	}
	if !strings.Contains(out.String(), files[0]) {
		t.Fatalf("stderr should name the report, got %q", out.String())
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()

	func() {
		defer Recover(t.TempDir())
	}()
	if called {
		t.Fatalf("exit called without a panic")
	}
}

func TestWriteReportCreatesDir(t *testing.T) {
	old := nowFn
	nowFn = func() time.Time { return time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC) }
	defer func() { nowFn = old }()

	dir := filepath.Join(t.TempDir(), "reports", "nested")
	path, err := writeReport(dir, "kaboom", []byte("stack"))
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "crash-20250203-040506-") {
		t.Fatalf("unexpected report name %s", path)
	}
	b, _ := os.ReadFile(path)
	if !strings.Contains(string(b), "Time:    2025-02-03T04:05:06Z") {
		t.Fatalf("timestamp missing: %s", b)
	}
}

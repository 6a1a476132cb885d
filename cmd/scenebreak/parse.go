/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"scenebreak/internal/domain"
	"scenebreak/internal/export"
	"scenebreak/internal/fountain"
)

type parsedFile struct {
	name   string
	scenes []fountain.Scene
}

// parse splits each input file into scenes. Files are parsed concurrently;
// output follows argument order.
func (c *cli) parse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	format := fs.String("format", "text", "output format: text, json, yaml or pdf")
	out := fs.String("o", "", "output file; a directory when several inputs are given")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("parse requires at least one file: %w", errUsage)
	}
	*format = strings.ToLower(*format)
	switch *format {
	case "text", export.FormatJSON, export.FormatYAML, export.FormatPDF:
	default:
		return fmt.Errorf("unknown format %q: %w", *format, errUsage)
	}

	toDir := len(files) > 1 && *out != ""
	if *format == export.FormatPDF && *out == "" {
		return fmt.Errorf("pdf output needs -o: %w", errUsage)
	}
	if err := checkInputs(files, toDir); err != nil {
		return err
	}

	results := make([]parsedFile, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range files {
		g.Go(func() error {
			text, err := readInput(name)
			if err != nil {
				return err
			}
			results[i] = parsedFile{name: name, scenes: fountain.Parse(text)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if toDir {
		if err := os.MkdirAll(*out, 0o755); err != nil {
			return err
		}
	} else if *format == "text" {
		w, closeFn, err := c.openOutput(*out)
		if err != nil {
			return err
		}
		for _, r := range results {
			writeText(w, r)
		}
		return closeFn()
	}

	now := time.Now()
	for _, r := range results {
		target := *out
		if toDir {
			target = filepath.Join(*out, outputBase(r.name)+"."+extension(*format))
		}
		w, closeFn, err := c.openOutput(target)
		if err != nil {
			return err
		}
		if *format == "text" {
			writeText(w, r)
		} else {
			doc := export.NewDocument(filepath.Base(r.name), domain.ScenesFromParse("", r.scenes), now)
			if err := export.Write(w, *format, doc); err != nil {
				_ = closeFn()
				return fmt.Errorf("%s: %w", r.name, err)
			}
		}
		if err := closeFn(); err != nil {
			return err
		}
	}
	return nil
}

// checkInputs rejects reading stdin twice and, when writing into a
// directory, two inputs that would write the same output file.
func checkInputs(files []string, toDir bool) error {
	seen := make(map[string]string, len(files))
	stdin := false
	for _, name := range files {
		if name == "-" {
			if stdin {
				return fmt.Errorf("stdin (-) given more than once: %w", errUsage)
			}
			stdin = true
		}
		if !toDir {
			continue
		}
		base := outputBase(name)
		if prev, ok := seen[base]; ok {
			return fmt.Errorf("%s and %s would both write %q: %w", prev, name, base, errUsage)
		}
		seen[base] = name
	}
	return nil
}

func outputBase(name string) string {
	if name == "-" {
		return "stdin"
	}
	return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
}

func extension(format string) string {
	if format == "text" {
		return "txt"
	}
	return format
}

func readInput(name string) (string, error) {
	if name == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// openOutput returns stdout for an empty path.
func (c *cli) openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return c.stdout, func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func writeText(w io.Writer, r parsedFile) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s: %d scenes\n", r.name, len(r.scenes))
	for _, s := range r.scenes {
		rec := domain.SceneRecord{IntExt: s.IntExt, Location: &s.Location, TimeOfDay: s.TimeOfDay}
		fmt.Fprintf(&b, "  %3d  L%-5d %-48s %d lines\n", s.Index+1, s.LineNo, rec.Slugline(), s.LineCount)
	}
	_, _ = w.Write(b.Bytes())
}

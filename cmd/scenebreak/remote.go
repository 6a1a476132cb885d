/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"scenebreak/internal/client"
	"scenebreak/internal/config"
)

func (c *cli) apiClient() *client.Client {
	tok, err := config.Token()
	if err != nil {
		c.log.Warn("keyring unavailable; continuing without token", "err", err)
	}
	return client.New(c.cfg.Client.BaseURL, tok, c.cfg.Client.Timeout())
}

// remote runs a command against the HTTP API at client.base_url.
func (c *cli) remote(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("remote requires a subcommand: %w", errUsage)
	}
	api := c.apiClient()
	ctx := context.Background()
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	sub, rest := args[0], args[1:]
	switch sub {
	case "projects":
		list, err := api.ListProjects(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tNAME\tCREATED")
		for _, p := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
	case "new-project":
		if len(rest) != 1 {
			return fmt.Errorf("new-project requires <name>: %w", errUsage)
		}
		p, err := api.CreateProject(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, p.ID)
	case "scripts":
		pid := ""
		if len(rest) > 0 {
			pid = rest[0]
		}
		list, err := api.ListScripts(ctx, pid)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tTITLE\tFORMAT\tPARSED")
		for _, s := range list {
			parsed := "-"
			if s.ParsedAt != nil {
				parsed = s.ParsedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Title, s.Format, parsed)
		}
	case "upload":
		if len(rest) < 2 || len(rest) > 3 {
			return fmt.Errorf("upload requires <projectID> <file> [title]: %w", errUsage)
		}
		f, err := os.Open(rest[1])
		if err != nil {
			return err
		}
		defer f.Close()
		title := ""
		if len(rest) == 3 {
			title = rest[2]
		}
		sc, err := api.UploadScript(ctx, rest[0], title, filepath.Base(rest[1]), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\n", sc.ID, sc.Title)
	case "parse":
		if len(rest) != 1 {
			return fmt.Errorf("parse requires <scriptID>: %w", errUsage)
		}
		res, err := api.ParseScript(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d scenes\n", res.Count)
	case "scenes":
		if len(rest) < 1 {
			return fmt.Errorf("scenes requires <scriptID>: %w", errUsage)
		}
		fs := flag.NewFlagSet("scenes", flag.ContinueOnError)
		fs.SetOutput(c.stderr)
		var f client.SceneFilter
		fs.StringVar(&f.IntExt, "int-ext", "", "INT, EXT or INT/EXT")
		fs.StringVar(&f.Location, "location", "", "location substring")
		fs.StringVar(&f.TimeOfDay, "time", "", "time-of-day substring")
		fs.StringVar(&f.Text, "q", "", "body text substring")
		if err := fs.Parse(rest[1:]); err != nil {
			return errUsage
		}
		res, err := api.ListScenes(ctx, rest[0], f)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "#\tSLUGLINE\tLINES")
		for _, v := range res.Scenes {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", v.Index+1, v.Slugline, v.LineCount)
		}
	case "export":
		if len(rest) < 2 {
			return fmt.Errorf("export requires <scriptID> <format>: %w", errUsage)
		}
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		fs.SetOutput(c.stderr)
		out := fs.String("o", "", "output file (default stdout)")
		if err := fs.Parse(rest[2:]); err != nil {
			return errUsage
		}
		format := strings.ToLower(rest[1])
		data, err := api.Export(ctx, rest[0], format)
		if err != nil {
			return err
		}
		if *out == "" {
			_, err = c.stdout.Write(data)
			return err
		}
		return os.WriteFile(*out, data, 0o644)
	default:
		return fmt.Errorf("unknown remote command %q: %w", sub, errUsage)
	}
	return nil
}

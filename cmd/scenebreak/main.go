/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"scenebreak/internal/config"
	"scenebreak/internal/crash"
	applog "scenebreak/internal/log"
	"scenebreak/internal/mcpserver"
	"scenebreak/internal/version"
)

// errUsage makes run print the usage text and exit with 2.
var errUsage = errors.New("usage")

type cli struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config.AppConfig
	log    *slog.Logger
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "scenebreak: screenplay scene segmentation\n%s\n\n", version.String())
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  scenebreak version                                  Show version")
	fmt.Fprintln(w, "  scenebreak parse [-format text|json|yaml|pdf] [-o path] <file>...")
	fmt.Fprintln(w, "                                                      Split files into scenes (\"-\" reads stdin)")
	fmt.Fprintln(w, "  scenebreak serve                                    Run the HTTP API")
	fmt.Fprintln(w, "  scenebreak mcp                                      Serve parser tools over MCP stdio")
	fmt.Fprintln(w, "  scenebreak login <token> | logout                   Store or remove the API token in the OS keyring")
	fmt.Fprintln(w, "  scenebreak remote projects                          List projects on the server")
	fmt.Fprintln(w, "  scenebreak remote new-project <name>                Create a project")
	fmt.Fprintln(w, "  scenebreak remote scripts [projectID]               List scripts")
	fmt.Fprintln(w, "  scenebreak remote upload <projectID> <file> [title] Upload a script")
	fmt.Fprintln(w, "  scenebreak remote parse <scriptID>                  Parse an uploaded script")
	fmt.Fprintln(w, "  scenebreak remote scenes <scriptID> [-int-ext X] [-location X] [-time X] [-q X]")
	fmt.Fprintln(w, "  scenebreak remote export <scriptID> <json|yaml|pdf> [-o path]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration: $SCB_CONFIG or the per-user config.yaml; .env is read from the working directory.")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	defer func() { _ = applog.Close() }()

	reportDir := ""
	if dir, err := config.ConfigDir(); err == nil {
		reportDir = filepath.Join(dir, "crash")
	}
	defer crash.Recover(reportDir)

	c := &cli{stdout: stdout, stderr: stderr, cfg: cfg, log: applog.WithComponent("cli")}
	c.log.Debug("start", slog.Int("args", len(args)))

	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	var cmdErr error
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, version.String())
	case "help", "-h", "--help":
		usage(stdout)
	case "parse":
		cmdErr = c.parse(args[1:])
	case "serve":
		cmdErr = c.serve()
	case "mcp":
		cmdErr = mcpserver.Serve()
	case "login":
		cmdErr = c.login(args[1:])
	case "logout":
		cmdErr = config.DeleteToken()
		if cmdErr == nil {
			fmt.Fprintln(stdout, "Token removed.")
		}
	case "remote":
		cmdErr = c.remote(args[1:])
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		cmdErr = errUsage
	}

	switch {
	case cmdErr == nil:
		return 0
	case errors.Is(cmdErr, errUsage):
		if cmdErr != errUsage {
			fmt.Fprintln(stderr, "Error:", cmdErr)
		}
		usage(stderr)
		return 2
	default:
		c.log.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", cmdErr))
		fmt.Fprintln(stderr, "Error:", cmdErr)
		return 1
	}
}

func (c *cli) login(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("login requires <token>: %w", errUsage)
	}
	if err := config.SetToken(args[0]); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "Token stored in the OS keyring.")
	return nil
}

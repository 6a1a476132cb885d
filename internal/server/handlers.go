/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"scenebreak/internal/domain"
	"scenebreak/internal/export"
	"scenebreak/internal/fountain"
	"scenebreak/internal/service"
	"scenebreak/internal/storage"
	"scenebreak/internal/version"
)

const (
	msgScriptNotFound  = "Script not found!"
	msgProjectNotFound = "Project not found!"
	msgSceneNotFound   = "Scene not found!"
)

type sceneList struct {
	Count  int                `json:"count"`
	Scenes []domain.SceneView `json:"scenes"`
}

type previewResult struct {
	Count  int              `json:"count"`
	Scenes []fountain.Scene `json:"scenes"`
}

func viewsOf(recs []domain.SceneRecord) sceneList {
	out := sceneList{Count: len(recs), Scenes: make([]domain.SceneView, 0, len(recs))}
	for _, r := range recs {
		out.Scenes = append(out.Scenes, r.View())
	}
	return out
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handlePing answers the plain liveness check.
func (s *Server) handlePing(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReady(c echo.Context) error {
	if err := s.svc.Ping(c.Request().Context()); err != nil {
		s.log.WarnContext(c.Request().Context(), "readiness check failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest("Invalid JSON body")
	}
	p, err := s.svc.CreateProject(c.Request().Context(), body.Name)
	if err != nil {
		return fail(err, msgProjectNotFound)
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListProjects(c echo.Context) error {
	list, err := s.svc.ListProjects(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleListProjectScripts(c echo.Context) error {
	list, err := s.svc.ListScripts(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(err, msgProjectNotFound)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleUploadScript(c echo.Context) error {
	projectID := strings.TrimSpace(c.FormValue("projectId"))
	if projectID == "" {
		return badRequest("projectId is required")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest("file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	sc, err := s.svc.UploadScript(c.Request().Context(), service.UploadInput{
		ProjectID: projectID,
		Title:     c.FormValue("title"),
		Filename:  fh.Filename,
		Content:   content,
	})
	if err != nil {
		return fail(err, msgProjectNotFound)
	}
	sc.RawText = ""
	return c.JSON(http.StatusCreated, sc)
}

func (s *Server) handleListScripts(c echo.Context) error {
	list, err := s.svc.ListAllScripts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetScript(c echo.Context) error {
	sc, err := s.svc.GetScript(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(err, msgScriptNotFound)
	}
	return c.JSON(http.StatusOK, sc)
}

func (s *Server) handleParseScript(c echo.Context) error {
	recs, err := s.svc.ParseScript(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(err, msgScriptNotFound)
	}
	return c.JSON(http.StatusOK, viewsOf(recs))
}

func (s *Server) handleListScenes(c echo.Context) error {
	q := storage.SceneQuery{
		IntExt:    c.QueryParam("intExt"),
		Location:  c.QueryParam("location"),
		TimeOfDay: c.QueryParam("timeOfDay"),
		Text:      c.QueryParam("q"),
	}
	views, err := s.svc.ListScenes(c.Request().Context(), c.Param("id"), q)
	if err != nil {
		return fail(err, msgScriptNotFound)
	}
	return c.JSON(http.StatusOK, sceneList{Count: len(views), Scenes: views})
}

func (s *Server) handleGetScene(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := s.svc.GetScript(ctx, c.Param("id")); err != nil {
		return fail(err, msgScriptNotFound)
	}
	sc, err := s.svc.GetScene(ctx, c.Param("id"), c.Param("index"))
	if err != nil {
		return fail(err, msgSceneNotFound)
	}
	return c.JSON(http.StatusOK, sc)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (s *Server) handleExport(c echo.Context) error {
	format := strings.ToLower(strings.TrimSpace(c.QueryParam("format")))
	if format == "" {
		format = export.FormatJSON
	}
	switch format {
	case export.FormatJSON, export.FormatYAML, export.FormatPDF:
	default:
		return badRequest("format must be json, yaml or pdf")
	}
	sc, recs, err := s.svc.Scenes(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(err, msgScriptNotFound)
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, export.NewDocument(sc.Title, recs, s.now())); err != nil {
		return fmt.Errorf("export %s: %w", format, err)
	}
	name := strings.Trim(unsafeFilename.ReplaceAllString(sc.Title, "_"), "_")
	if name == "" {
		name = "script"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s-scenes.%s"`, name, format))
	return c.Blob(http.StatusOK, export.ContentType(format), buf.Bytes())
}

func (s *Server) handlePreview(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	scenes := s.svc.Preview(string(body))
	return c.JSON(http.StatusOK, previewResult{Count: len(scenes), Scenes: scenes})
}

func (s *Server) handleSchema(c echo.Context) error {
	b, err := export.Schema()
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, b)
}

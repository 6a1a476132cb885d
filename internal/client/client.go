/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package client is a typed HTTP client for the scenebreak API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"scenebreak/internal/domain"
)

type Client struct {
	BaseURL string
	Token   string // bearer token
	http    *http.Client
}

// New creates a client. baseURL may include a trailing slash. A non-positive timeout means 15s.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx response. Message is the server's error text when it sent one.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// SceneList is the response of the parse and scene listing endpoints.
type SceneList struct {
	Count  int                `json:"count"`
	Scenes []domain.SceneView `json:"scenes"`
}

// SceneFilter narrows ListScenes. Empty fields do not filter.
type SceneFilter struct {
	IntExt    string
	Location  string
	TimeOfDay string
	Text      string
}

func (f SceneFilter) values() url.Values {
	v := url.Values{}
	for k, s := range map[string]string{"intExt": f.IntExt, "location": f.Location, "timeOfDay": f.TimeOfDay, "q": f.Text} {
		if s != "" {
			v.Set(k, s)
		}
	}
	return v
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		apiErr := &APIError{Method: method, Path: req.URL.Path, Status: resp.StatusCode}
		var eb struct {
			Error string `json:"error"`
		}
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Error
		}
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var (
		body io.Reader
		ct   string
	)
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body, ct = bytes.NewReader(b), "application/json"
	}
	resp, err := c.do(ctx, method, path, ct, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) CreateProject(ctx context.Context, name string) (domain.Project, error) {
	var p domain.Project
	err := c.doJSON(ctx, http.MethodPost, "/api/projects", map[string]string{"name": name}, &p)
	return p, err
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var list []domain.Project
	err := c.doJSON(ctx, http.MethodGet, "/api/projects", nil, &list)
	return list, err
}

// ListScripts lists all scripts, or one project's scripts when projectID is set.
func (c *Client) ListScripts(ctx context.Context, projectID string) ([]domain.Script, error) {
	path := "/api/scripts"
	if projectID != "" {
		path = "/api/projects/" + url.PathEscape(projectID) + "/scripts"
	}
	var list []domain.Script
	err := c.doJSON(ctx, http.MethodGet, path, nil, &list)
	return list, err
}

func (c *Client) GetScript(ctx context.Context, id string) (domain.Script, error) {
	var sc domain.Script
	err := c.doJSON(ctx, http.MethodGet, "/api/scripts/"+url.PathEscape(id), nil, &sc)
	return sc, err
}

// UploadScript sends content as a multipart upload named filename.
func (c *Client) UploadScript(ctx context.Context, projectID, title, filename string, content io.Reader) (domain.Script, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("projectId", projectID)
	if title != "" {
		_ = mw.WriteField("title", title)
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return domain.Script{}, err
	}
	if _, err := io.Copy(fw, content); err != nil {
		return domain.Script{}, err
	}
	if err := mw.Close(); err != nil {
		return domain.Script{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/scripts", mw.FormDataContentType(), &buf)
	if err != nil {
		return domain.Script{}, err
	}
	defer resp.Body.Close()
	var sc domain.Script
	return sc, json.NewDecoder(resp.Body).Decode(&sc)
}

func (c *Client) ParseScript(ctx context.Context, id string) (SceneList, error) {
	var out SceneList
	err := c.doJSON(ctx, http.MethodPost, "/api/scripts/"+url.PathEscape(id)+"/parse", nil, &out)
	return out, err
}

func (c *Client) ListScenes(ctx context.Context, id string, f SceneFilter) (SceneList, error) {
	path := "/api/scripts/" + url.PathEscape(id) + "/scenes"
	if q := f.values().Encode(); q != "" {
		path += "?" + q
	}
	var out SceneList
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) GetScene(ctx context.Context, id string, index int) (domain.SceneRecord, error) {
	var sc domain.SceneRecord
	err := c.doJSON(ctx, http.MethodGet, "/api/scripts/"+url.PathEscape(id)+"/scenes/"+strconv.Itoa(index), nil, &sc)
	return sc, err
}

// Export downloads the scene export in the given format ("json", "yaml" or "pdf").
func (c *Client) Export(ctx context.Context, id, format string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/scripts/"+url.PathEscape(id)+"/export?format="+url.QueryEscape(format), "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Health reports whether the server answers /readyz.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/readyz", nil, nil)
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package service implements the project/script workflow on top of the
// parser and the store: uploading scripts, parsing them into scenes and
// serving scene listings.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"scenebreak/internal/domain"
	"scenebreak/internal/fountain"
	applog "scenebreak/internal/log"
	"scenebreak/internal/storage"
)

// ErrInvalid marks caller input errors. Errors returned for bad input
// satisfy errors.Is(err, ErrInvalid) and carry a user-facing message.
var ErrInvalid = errors.New("invalid input")

// ValidationError is a user-facing validation failure.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
func (e *ValidationError) Unwrap() error { return ErrInvalid }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

// Store is the persistence the service needs. *storage.Store implements it.
type Store interface {
	CreateProject(ctx context.Context, p domain.Project) error
	GetProject(ctx context.Context, id string) (domain.Project, error)
	ListProjects(ctx context.Context) ([]domain.Project, error)
	CreateScript(ctx context.Context, sc domain.Script) error
	GetScript(ctx context.Context, id string) (domain.Script, error)
	ListScripts(ctx context.Context, projectID string) ([]domain.Script, error)
	ListAllScripts(ctx context.Context) ([]domain.Script, error)
	ReplaceScenes(ctx context.Context, scriptID string, scenes []domain.SceneRecord, parsedAt time.Time) error
	ListScenes(ctx context.Context, scriptID string) ([]domain.SceneRecord, error)
	GetScene(ctx context.Context, scriptID string, index int) (domain.SceneRecord, error)
	SearchScenes(ctx context.Context, q storage.SceneQuery) ([]domain.SceneRecord, error)
	Ping(ctx context.Context) error
}

type Options struct {
	// CacheTTL is how long unfiltered scene listings are cached. Zero disables the cache.
	CacheTTL time.Duration
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store  Store
	views  *cache.Cache
	parses singleflight.Group
	now    func() time.Time
	log    *slog.Logger

	// gens counts scene replacements per script. A listing is only cached
	// if no replacement happened while it was being read.
	mu   sync.Mutex
	gens map[string]uint64
}

func New(store Store, opts Options) *Service {
	s := &Service{store: store, now: opts.Now, log: applog.WithComponent("service"), gens: map[string]uint64{}}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.CacheTTL > 0 {
		s.views = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

func (s *Service) CreateProject(ctx context.Context, name string) (domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Project{}, invalid("Name is required!")
	}
	p := domain.Project{ID: domain.NewID(), Name: name, CreatedAt: s.now()}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return domain.Project{}, err
	}
	s.log.InfoContext(ctx, "project created", slog.String("project", p.ID))
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.store.ListProjects(ctx)
}

// ListScripts lists a project's scripts, or ErrNotFound if the project does not exist.
func (s *Service) ListScripts(ctx context.Context, projectID string) ([]domain.Script, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListScripts(ctx, projectID)
}

func (s *Service) ListAllScripts(ctx context.Context) ([]domain.Script, error) {
	return s.store.ListAllScripts(ctx)
}

func (s *Service) GetScript(ctx context.Context, id string) (domain.Script, error) {
	return s.store.GetScript(ctx, id)
}

// UploadInput is a script upload. Content holds the raw file bytes.
type UploadInput struct {
	ProjectID string
	Title     string
	Filename  string
	Content   []byte
}

// UploadScript stores a new script. Its scenes are produced by a later ParseScript.
func (s *Service) UploadScript(ctx context.Context, in UploadInput) (domain.Script, error) {
	pid := strings.TrimSpace(in.ProjectID)
	switch {
	case pid == "":
		return domain.Script{}, invalid("projectId is required")
	case len(in.Content) == 0:
		return domain.Script{}, invalid("file is required")
	case !utf8.Valid(in.Content):
		return domain.Script{}, invalid("file must be UTF-8 text")
	}
	sc := domain.Script{
		ID:        domain.NewID(),
		ProjectID: pid,
		Title:     domain.ResolveTitle(in.Title, in.Filename),
		Format:    domain.DetectFormat(in.Filename),
		RawText:   string(in.Content),
		CreatedAt: s.now(),
	}
	if err := s.store.CreateScript(ctx, sc); err != nil {
		return domain.Script{}, err
	}
	s.log.InfoContext(ctx, "script uploaded",
		slog.String("script", sc.ID), slog.String("project", pid), slog.Int("bytes", len(in.Content)))
	return sc, nil
}

// ParseScript segments the stored script text and replaces its scenes.
// Concurrent calls for the same script share one parse; the returned
// slice may be shared between those callers and must not be modified.
// The shared parse is not cancelled when the caller that started it goes away.
func (s *Service) ParseScript(ctx context.Context, scriptID string) ([]domain.SceneRecord, error) {
	v, err, _ := s.parses.Do(scriptID, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		sc, err := s.store.GetScript(ctx, scriptID)
		if err != nil {
			return nil, err
		}
		start := s.now()
		recs := domain.ScenesFromParse(sc.ID, fountain.Parse(sc.RawText))
		if err := s.store.ReplaceScenes(ctx, sc.ID, recs, s.now()); err != nil {
			return nil, fmt.Errorf("replace scenes: %w", err)
		}
		s.invalidate(sc.ID)
		s.log.InfoContext(ctx, "parse done",
			slog.String("script", sc.ID), slog.Int("scenes", len(recs)),
			slog.Duration("took", s.now().Sub(start)))
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.SceneRecord), nil
}

// ListScenes returns scene views for a script, optionally filtered. The
// script must exist. Unfiltered listings are served from the cache when enabled.
func (s *Service) ListScenes(ctx context.Context, scriptID string, q storage.SceneQuery) ([]domain.SceneView, error) {
	q.ScriptID = scriptID
	unfiltered := q.IsZero()
	if unfiltered && s.views != nil {
		if v, ok := s.views.Get(scriptID); ok {
			return v.([]domain.SceneView), nil
		}
	}
	if _, err := s.store.GetScript(ctx, scriptID); err != nil {
		return nil, err
	}
	gen := s.generation(scriptID)
	var (
		recs []domain.SceneRecord
		err  error
	)
	if unfiltered {
		recs, err = s.store.ListScenes(ctx, scriptID)
	} else {
		recs, err = s.store.SearchScenes(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	views := make([]domain.SceneView, 0, len(recs))
	for _, r := range recs {
		views = append(views, r.View())
	}
	if unfiltered {
		s.cacheViews(scriptID, gen, views)
	}
	return views, nil
}

// Scenes returns the full scene records of a script, as used by exports.
func (s *Service) Scenes(ctx context.Context, scriptID string) (domain.Script, []domain.SceneRecord, error) {
	sc, err := s.store.GetScript(ctx, scriptID)
	if err != nil {
		return domain.Script{}, nil, err
	}
	recs, err := s.store.ListScenes(ctx, scriptID)
	if err != nil {
		return domain.Script{}, nil, err
	}
	return sc, recs, nil
}

// GetScene returns one full scene. index is the decimal scene index.
func (s *Service) GetScene(ctx context.Context, scriptID, index string) (domain.SceneRecord, error) {
	n, err := strconv.Atoi(strings.TrimSpace(index))
	if err != nil || n < 0 {
		return domain.SceneRecord{}, invalid("scene index must be a non-negative integer")
	}
	return s.store.GetScene(ctx, scriptID, n)
}

// Preview parses text without storing anything.
func (s *Service) Preview(text string) []fountain.Scene {
	return fountain.Parse(text)
}

func (s *Service) generation(scriptID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[scriptID]
}

// cacheViews stores views read at generation gen, unless the scenes were
// replaced since.
func (s *Service) cacheViews(scriptID string, gen uint64, views []domain.SceneView) {
	if s.views == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[scriptID] == gen {
		s.views.SetDefault(scriptID, views)
	}
}

func (s *Service) invalidate(scriptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[scriptID]++
	if s.views != nil {
		s.views.Delete(scriptID)
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scenebreak/internal/domain"
	"scenebreak/internal/storage"
)

const pilot = `Title: Pilot

INT. KITCHEN - NIGHT
The kettle whistles.

EXT. GARDEN - DAY
Birds.
INT. KITCHEN - DAY
Breakfast.
`

func newTestService(t *testing.T, ttl time.Duration) (*Service, *storage.Store) {
	t.Helper()
	st, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "svc.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return New(st, Options{CacheTTL: ttl}), st
}

func upload(t *testing.T, svc *Service, text string) domain.Script {
	t.Helper()
	ctx := context.Background()
	p, err := svc.CreateProject(ctx, "Show")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	sc, err := svc.UploadScript(ctx, UploadInput{ProjectID: p.ID, Filename: "pilot.fountain", Content: []byte(text)})
	if err != nil {
		t.Fatalf("UploadScript: %v", err)
	}
	return sc
}

func TestValidation(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()
	_, err := svc.CreateProject(ctx, "   ")
	if !errors.Is(err, ErrInvalid) || err.Error() != "Name is required!" {
		t.Fatalf("CreateProject blank err = %v", err)
	}
	cases := []struct {
		in   UploadInput
		want string
	}{
		{UploadInput{Content: []byte("x")}, "projectId is required"},
		{UploadInput{ProjectID: "p"}, "file is required"},
		{UploadInput{ProjectID: "p", Content: []byte{0xff, 0xfe, 'x'}}, "file must be UTF-8 text"},
	}
	for _, c := range cases {
		_, err := svc.UploadScript(ctx, c.in)
		if !errors.Is(err, ErrInvalid) || err.Error() != c.want {
			t.Errorf("UploadScript(%+v) err = %v, want %q", c.in, err, c.want)
		}
	}
	if _, err := svc.UploadScript(ctx, UploadInput{ProjectID: "nope", Content: []byte("x")}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("upload to missing project err = %v", err)
	}
	if _, err := svc.GetScene(ctx, "s", "-1"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("GetScene(-1) err = %v", err)
	}
}

func TestUploadDerivesTitleAndFormat(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := context.Background()
	p, _ := svc.CreateProject(ctx, "Show")
	sc, err := svc.UploadScript(ctx, UploadInput{ProjectID: p.ID, Filename: "draft.TXT", Content: []byte("hi")})
	if err != nil {
		t.Fatalf("UploadScript: %v", err)
	}
	if sc.Title != "draft.TXT" || sc.Format != domain.FormatText {
		t.Fatalf("unexpected script %+v", sc)
	}
	list, err := svc.ListScripts(ctx, p.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListScripts = %v, %v", list, err)
	}
	if _, err := svc.ListScripts(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ListScripts(missing) err = %v", err)
	}
}

func TestParseAndListScenes(t *testing.T) {
	svc, _ := newTestService(t, time.Minute)
	ctx := context.Background()
	sc := upload(t, svc, pilot)

	recs, err := svc.ParseScript(ctx, sc.ID)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(recs))
	}
	views, err := svc.ListScenes(ctx, sc.ID, storage.SceneQuery{})
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(views) != 3 || views[0].Slugline != "INT - KITCHEN - NIGHT" || views[1].Slugline != "EXT - GARDEN - DAY" {
		t.Fatalf("unexpected views: %+v", views)
	}
	filtered, err := svc.ListScenes(ctx, sc.ID, storage.SceneQuery{Location: "kitchen", TimeOfDay: "day"})
	if err != nil || len(filtered) != 1 || filtered[0].Index != 2 {
		t.Fatalf("filtered = %+v, %v", filtered, err)
	}
	one, err := svc.GetScene(ctx, sc.ID, "1")
	if err != nil || one.Body != "Birds.\n" {
		t.Fatalf("GetScene = %+v, %v", one, err)
	}
	got, _ := svc.GetScript(ctx, sc.ID)
	if got.ParsedAt == nil {
		t.Fatalf("parsed_at not set")
	}
	if _, err := svc.ListScenes(ctx, "missing", storage.SceneQuery{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ListScenes(missing) err = %v", err)
	}
	if _, err := svc.ParseScript(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("ParseScript(missing) err = %v", err)
	}
}

func TestListBeforeParseIsEmpty(t *testing.T) {
	svc, _ := newTestService(t, time.Minute)
	sc := upload(t, svc, pilot)
	views, err := svc.ListScenes(context.Background(), sc.ID, storage.SceneQuery{})
	if err != nil || views == nil || len(views) != 0 {
		t.Fatalf("expected empty non-nil list, got %v, %v", views, err)
	}
}

func TestReparseInvalidatesCache(t *testing.T) {
	svc, st := newTestService(t, time.Hour)
	ctx := context.Background()
	sc := upload(t, svc, pilot)
	if _, err := svc.ParseScript(ctx, sc.ID); err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if v, _ := svc.ListScenes(ctx, sc.ID, storage.SceneQuery{}); len(v) != 3 {
		t.Fatalf("expected 3 cached views, got %d", len(v))
	}
	// Write behind the service's back: the cache still answers.
	if err := st.ReplaceScenes(ctx, sc.ID, nil, time.Now()); err != nil {
		t.Fatalf("ReplaceScenes: %v", err)
	}
	if v, _ := svc.ListScenes(ctx, sc.ID, storage.SceneQuery{}); len(v) != 3 {
		t.Fatalf("expected cached result, got %d", len(v))
	}
	// A parse through the service drops the entry.
	if _, err := svc.ParseScript(ctx, sc.ID); err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if _, ok := svc.views.Get(sc.ID); ok {
		t.Fatalf("cache entry survived a parse")
	}
}

func TestPreview(t *testing.T) {
	svc, _ := newTestService(t, 0)
	scenes := svc.Preview(pilot)
	if len(scenes) != 3 || scenes[2].Location != "KITCHEN" {
		t.Fatalf("unexpected preview %+v", scenes)
	}
}

// gatedStore blocks GetScript until released and counts calls.
type gatedStore struct {
	*storage.Store
	calls   atomic.Int32
	release chan struct{}
}

func (g *gatedStore) GetScript(ctx context.Context, id string) (domain.Script, error) {
	g.calls.Add(1)
	<-g.release
	return g.Store.GetScript(ctx, id)
}

func TestConcurrentParsesCollapse(t *testing.T) {
	_, st := newTestService(t, 0)
	ctx := context.Background()
	seed := New(st, Options{})
	sc := upload(t, seed, pilot)

	gs := &gatedStore{Store: st, release: make(chan struct{})}
	svc := New(gs, Options{})

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs, err := svc.ParseScript(ctx, sc.ID)
			results[i], errs[i] = len(recs), err
		}(i)
	}
	// Let the first caller get into GetScript before releasing.
	deadline := time.Now().Add(2 * time.Second)
	for gs.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(gs.release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i] != 3 {
			t.Fatalf("caller %d: %d scenes, err %v", i, results[i], errs[i])
		}
	}
	if c := gs.calls.Load(); c >= n {
		t.Fatalf("expected parses to collapse, saw %d GetScript calls", c)
	}
}

// slowListStore pauses the first ListScenes after the rows were read.
type slowListStore struct {
	*storage.Store
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (s *slowListStore) ListScenes(ctx context.Context, scriptID string) ([]domain.SceneRecord, error) {
	recs, err := s.Store.ListScenes(ctx, scriptID)
	s.once.Do(func() {
		close(s.loaded)
		<-s.release
	})
	return recs, err
}

func TestListDuringReparseIsNotCached(t *testing.T) {
	_, st := newTestService(t, time.Minute)
	ctx := context.Background()
	sc := upload(t, New(st, Options{}), pilot)

	ss := &slowListStore{Store: st, loaded: make(chan struct{}), release: make(chan struct{})}
	svc := New(ss, Options{CacheTTL: time.Minute})

	done := make(chan []domain.SceneView)
	go func() {
		views, err := svc.ListScenes(ctx, sc.ID, storage.SceneQuery{})
		if err != nil {
			t.Errorf("ListScenes: %v", err)
		}
		done <- views
	}()
	<-ss.loaded

	recs, err := svc.ParseScript(ctx, sc.ID)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	close(ss.release)
	if stale := <-done; len(stale) != 0 {
		t.Fatalf("listing read before the parse returned %d scenes, want 0", len(stale))
	}

	views, err := svc.ListScenes(ctx, sc.ID, storage.SceneQuery{})
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(views) != len(recs) {
		t.Fatalf("listing after parse has %d scenes, parse produced %d", len(views), len(recs))
	}
}

func TestSharedParseSurvivesCancelledStarter(t *testing.T) {
	_, st := newTestService(t, 0)
	sc := upload(t, New(st, Options{}), pilot)

	gs := &gatedStore{Store: st, release: make(chan struct{})}
	svc := New(gs, Options{})

	starter, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.ParseScript(starter, sc.ID)
		first <- err
	}()
	deadline := time.Now().Add(2 * time.Second)
	for gs.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	second := make(chan error, 1)
	go func() {
		_, err := svc.ParseScript(context.Background(), sc.ID)
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(gs.release)

	if err := <-second; err != nil {
		t.Fatalf("joined caller failed after the starter was cancelled: %v", err)
	}
	if err := <-first; err != nil {
		t.Fatalf("starter parse: %v", err)
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scenebreak/internal/domain"
	"scenebreak/internal/fountain"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedScript(t *testing.T, s *Store, text string) domain.Script {
	t.Helper()
	ctx := context.Background()
	p := domain.Project{ID: domain.NewID(), Name: "Seed", CreatedAt: time.Now()}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	sc := domain.Script{ID: domain.NewID(), ProjectID: p.ID, Title: "Pilot", Format: domain.FormatFountain, RawText: text, CreatedAt: time.Now()}
	if err := s.CreateScript(ctx, sc); err != nil {
		t.Fatalf("CreateScript: %v", err)
	}
	return sc
}

func TestOpenSQLiteCreatesWALAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.sqlite")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file missing at %s: %v", path, err)
	}
	ctx := context.Background()
	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	var cnt int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('projects','scripts','scenes','schema_migrations')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 4 {
		t.Fatalf("expected 4 tables, got %d", cnt)
	}
	v, err := s.SchemaVersion(ctx)
	if err != nil || v != 2 {
		t.Fatalf("SchemaVersion = %d, %v; want 2", v, err)
	}
	if err := s.QuickCheck(ctx); err != nil {
		t.Fatalf("QuickCheck: %v", err)
	}
}

func TestReopenDoesNotReapplyMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = s.Close()
	s, err = OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s.Close()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 recorded migrations, got %d", n)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Options{Driver: "sqlite"}); err == nil {
		t.Fatalf("expected error for empty sqlite path")
	}
}

func TestProjectsAndScripts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	older := domain.Project{ID: "p-old", Name: "Older", CreatedAt: base}
	newer := domain.Project{ID: "p-new", Name: "Newer", CreatedAt: base.Add(time.Hour)}
	for _, p := range []domain.Project{older, newer} {
		if err := s.CreateProject(ctx, p); err != nil {
			t.Fatalf("CreateProject: %v", err)
		}
	}
	list, err := s.ListProjects(ctx)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(list) != 2 || list[0].ID != "p-new" || list[1].ID != "p-old" {
		t.Fatalf("unexpected project order: %+v", list)
	}
	if !list[0].CreatedAt.Equal(newer.CreatedAt) {
		t.Fatalf("created_at round trip: got %v want %v", list[0].CreatedAt, newer.CreatedAt)
	}
	if _, err := s.GetProject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProject(missing) err = %v, want ErrNotFound", err)
	}

	sc := domain.Script{ID: "s1", ProjectID: "p-old", Title: "Draft", Format: domain.FormatText, RawText: "INT. A - DAY\n", CreatedAt: base}
	if err := s.CreateScript(ctx, sc); err != nil {
		t.Fatalf("CreateScript: %v", err)
	}
	orphan := sc
	orphan.ID, orphan.ProjectID = "s2", "nope"
	if err := s.CreateScript(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CreateScript(orphan) err = %v, want ErrNotFound", err)
	}
	got, err := s.GetScript(ctx, "s1")
	if err != nil {
		t.Fatalf("GetScript: %v", err)
	}
	if got.RawText != sc.RawText || got.ParsedAt != nil {
		t.Fatalf("unexpected script: %+v", got)
	}
	scripts, err := s.ListScripts(ctx, "p-old")
	if err != nil || len(scripts) != 1 || scripts[0].RawText != "" {
		t.Fatalf("ListScripts = %+v, %v", scripts, err)
	}
	if scripts, _ := s.ListScripts(ctx, "p-new"); len(scripts) != 0 {
		t.Fatalf("expected no scripts for p-new, got %d", len(scripts))
	}
	all, err := s.ListAllScripts(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("ListAllScripts = %+v, %v", all, err)
	}
}

func TestReplaceScenesReplacesWholeList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sc := seedScript(t, s, "")

	first := domain.ScenesFromParse(sc.ID, fountain.Parse("INT. KITCHEN - NIGHT\nHello\n\nWorld\nEXT. BARN\nMoo\nINT. ATTIC - DAY\n"))
	if err := s.ReplaceScenes(ctx, sc.ID, first, time.Now()); err != nil {
		t.Fatalf("ReplaceScenes: %v", err)
	}
	got, err := s.ListScenes(ctx, sc.ID)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 scenes, got %d", len(got))
	}
	for i, g := range got {
		if g.Index != i {
			t.Fatalf("scene %d has index %d", i, g.Index)
		}
	}
	if got[0].Body != "Hello\n\nWorld\n" || got[0].LineCount != 2 || got[0].LineNo != 1 {
		t.Fatalf("unexpected first scene: %+v", got[0])
	}
	if got[1].TimeOfDay != nil {
		t.Fatalf("expected NULL time_of_day, got %q", *got[1].TimeOfDay)
	}

	second := domain.ScenesFromParse(sc.ID, fountain.Parse("EXT. ROOF - DUSK\nWind.\n"))
	if err := s.ReplaceScenes(ctx, sc.ID, second, time.Now()); err != nil {
		t.Fatalf("ReplaceScenes (second): %v", err)
	}
	got, _ = s.ListScenes(ctx, sc.ID)
	if len(got) != 1 || got[0].Location == nil || *got[0].Location != "ROOF" {
		t.Fatalf("expected only the new scene, got %+v", got)
	}
	script, _ := s.GetScript(ctx, sc.ID)
	if script.ParsedAt == nil {
		t.Fatalf("parsed_at not stamped")
	}
}

func TestReplaceScenesMissingScript(t *testing.T) {
	s := openTestStore(t)
	recs := domain.ScenesFromParse("ghost", fountain.Parse("INT. A - DAY\n"))
	if err := s.ReplaceScenes(context.Background(), "ghost", recs, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// A failing insert must leave the previous scene list untouched.
func TestReplaceScenesRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sc := seedScript(t, s, "")
	orig := domain.ScenesFromParse(sc.ID, fountain.Parse("INT. A - DAY\nx\nINT. B - DAY\ny\n"))
	if err := s.ReplaceScenes(ctx, sc.ID, orig, time.Now()); err != nil {
		t.Fatalf("ReplaceScenes: %v", err)
	}
	bad := domain.ScenesFromParse(sc.ID, fountain.Parse("INT. C - DAY\nINT. D - DAY\n"))
	bad[1].Index = bad[0].Index // violates UNIQUE(script_id, idx)
	if err := s.ReplaceScenes(ctx, sc.ID, bad, time.Now()); err == nil {
		t.Fatalf("expected unique violation")
	}
	got, err := s.ListScenes(ctx, sc.ID)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	if len(got) != 2 || *got[0].Location != "A" || *got[1].Location != "B" {
		t.Fatalf("previous scenes not preserved: %+v", got)
	}
}

func TestReadersNeverSeePartialLists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sc := seedScript(t, s, "")
	lists := [][]domain.SceneRecord{
		domain.ScenesFromParse(sc.ID, fountain.Parse("INT. A - DAY\nINT. B - DAY\nINT. C - DAY\n")),
		domain.ScenesFromParse(sc.ID, fountain.Parse("EXT. X - NIGHT\nEXT. Y - NIGHT\nEXT. Z - NIGHT\nEXT. W - NIGHT\nEXT. V - NIGHT\n")),
	}
	if err := s.ReplaceScenes(ctx, sc.ID, lists[0], time.Now()); err != nil {
		t.Fatalf("ReplaceScenes: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if err := s.ReplaceScenes(ctx, sc.ID, lists[i%2], time.Now()); err != nil {
				errs <- err
				return
			}
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 40; i++ {
			got, err := s.ListScenes(ctx, sc.ID)
			if err != nil {
				errs <- err
				return
			}
			if n := len(got); n != 3 && n != 5 {
				errs <- fmt.Errorf("observed partial list of %d scenes", n)
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestGetAndSearchScenes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	sc := seedScript(t, s, "")
	text := "INT. KITCHEN - NIGHT\nThe kettle whistles.\nEXT. THE OLD BARN - DAY\nA cow moos.\nINT. KITCHEN - DAY\n100% sure.\n"
	if err := s.ReplaceScenes(ctx, sc.ID, domain.ScenesFromParse(sc.ID, fountain.Parse(text)), time.Now()); err != nil {
		t.Fatalf("ReplaceScenes: %v", err)
	}

	one, err := s.GetScene(ctx, sc.ID, 1)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if *one.Location != "OLD BARN" {
		t.Fatalf("GetScene(1) location = %q", *one.Location)
	}
	if _, err := s.GetScene(ctx, sc.ID, 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetScene(9) err = %v, want ErrNotFound", err)
	}

	cases := []struct {
		name string
		q    SceneQuery
		want []int
	}{
		{"location", SceneQuery{ScriptID: sc.ID, Location: "kitchen"}, []int{0, 2}},
		{"intExt", SceneQuery{ScriptID: sc.ID, IntExt: "ext"}, []int{1}},
		{"time", SceneQuery{ScriptID: sc.ID, TimeOfDay: "day"}, []int{1, 2}},
		{"text", SceneQuery{ScriptID: sc.ID, Text: "COW"}, []int{1}},
		{"wildcard escaped", SceneQuery{ScriptID: sc.ID, Text: "100%"}, []int{2}},
		{"underscore literal", SceneQuery{ScriptID: sc.ID, Location: "_"}, nil},
		{"paged", SceneQuery{ScriptID: sc.ID, Limit: 1, Offset: 1}, []int{1}},
	}
	for _, c := range cases {
		got, err := s.SearchScenes(ctx, c.q)
		if err != nil {
			t.Fatalf("%s: SearchScenes: %v", c.name, err)
		}
		var idx []int
		for _, g := range got {
			idx = append(idx, g.Index)
		}
		if fmt.Sprint(idx) != fmt.Sprint(c.want) {
			t.Errorf("%s: got indexes %v, want %v", c.name, idx, c.want)
		}
	}
}

func TestRebindPostgres(t *testing.T) {
	s := &Store{dialect: dialectPostgres}
	if got := s.rebind(`SELECT * FROM t WHERE a = ? AND b = ?`); got != `SELECT * FROM t WHERE a = $1 AND b = $2` {
		t.Fatalf("rebind = %q", got)
	}
	lite := &Store{dialect: dialectSQLite}
	if got := lite.rebind(`a = ?`); got != `a = ?` {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("003_add_things.sql"); err != nil || v != 3 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error for unnumbered file")
	}
}

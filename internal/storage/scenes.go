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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"scenebreak/internal/domain"
)

// SceneQuery filters SearchScenes. Empty string fields do not filter.
// Location, TimeOfDay and Text match case-insensitive substrings.
type SceneQuery struct {
	ScriptID  string
	IntExt    string
	Location  string
	TimeOfDay string
	Text      string // substring of the scene body
	Limit     int    // defaults to 500
	Offset    int
}

// IsZero reports whether q has no filters besides the script.
func (q SceneQuery) IsZero() bool {
	return strings.TrimSpace(q.IntExt) == "" && strings.TrimSpace(q.Location) == "" &&
		strings.TrimSpace(q.TimeOfDay) == "" && strings.TrimSpace(q.Text) == "" &&
		q.Limit <= 0 && q.Offset <= 0
}

// maxListScenes bounds ListScenes; no real screenplay comes close.
const maxListScenes = 100000

const sceneColumns = `id, script_id, idx, slug_raw, int_ext, location, time_of_day, body, line_count, line_no`

// ReplaceScenes atomically replaces all scenes of scriptID with scenes and stamps
// the script's parsed_at. If the script does not exist nothing is changed and
// ErrNotFound is returned.
func (s *Store) ReplaceScenes(ctx context.Context, scriptID string, scenes []domain.SceneRecord, parsedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE scripts SET parsed_at = ? WHERE id = ?`), toMillis(parsedAt), scriptID)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("stamp script: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		rollback(tx)
		return fmt.Errorf("script %s: %w", scriptID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM scenes WHERE script_id = ?`), scriptID); err != nil {
		rollback(tx)
		return fmt.Errorf("clear scenes: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO scenes(`+sceneColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		rollback(tx)
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = ins.Close() }()
	for _, sc := range scenes {
		if _, err := ins.ExecContext(ctx, sc.ID, scriptID, sc.Index, sc.SlugRaw,
			nullString(sc.IntExt), nullString(sc.Location), nullString(sc.TimeOfDay),
			sc.Body, sc.LineCount, sc.LineNo); err != nil {
			rollback(tx)
			return fmt.Errorf("insert scene %d: %w", sc.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListScenes returns all scenes of a script ordered by index.
func (s *Store) ListScenes(ctx context.Context, scriptID string) ([]domain.SceneRecord, error) {
	return s.SearchScenes(ctx, SceneQuery{ScriptID: scriptID, Limit: maxListScenes})
}

// GetScene returns one scene by script and index, or ErrNotFound.
func (s *Store) GetScene(ctx context.Context, scriptID string, index int) (domain.SceneRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+sceneColumns+` FROM scenes WHERE script_id = ? AND idx = ?`), scriptID, index)
	sc, err := scanScene(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.SceneRecord{}, fmt.Errorf("scene %s/%d: %w", scriptID, index, ErrNotFound)
	case err != nil:
		return domain.SceneRecord{}, fmt.Errorf("select scene: %w", err)
	}
	return sc, nil
}

// SearchScenes returns the scenes matching q ordered by script and index.
func (s *Store) SearchScenes(ctx context.Context, q SceneQuery) ([]domain.SceneRecord, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return "?"
	}
	b.WriteString(`SELECT ` + sceneColumns + ` FROM scenes WHERE 1=1`)
	if id := strings.TrimSpace(q.ScriptID); id != "" {
		b.WriteString(` AND script_id = ` + place(id))
	}
	if v := strings.TrimSpace(q.IntExt); v != "" {
		b.WriteString(` AND upper(COALESCE(int_ext, '')) = ` + place(strings.ToUpper(v)))
	}
	if v := strings.TrimSpace(q.Location); v != "" {
		b.WriteString(` AND lower(COALESCE(location, '')) LIKE ` + place(likePattern(v)) + ` ESCAPE '\'`)
	}
	if v := strings.TrimSpace(q.TimeOfDay); v != "" {
		b.WriteString(` AND lower(COALESCE(time_of_day, '')) LIKE ` + place(likePattern(v)) + ` ESCAPE '\'`)
	}
	if v := strings.TrimSpace(q.Text); v != "" {
		b.WriteString(` AND lower(body) LIKE ` + place(likePattern(v)) + ` ESCAPE '\'`)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 500
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(` ORDER BY script_id, idx LIMIT ` + place(limit) + ` OFFSET ` + place(offset))

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.SceneRecord{}
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScene(r rowScanner) (domain.SceneRecord, error) {
	var (
		sc               domain.SceneRecord
		intExt, loc, tod sql.NullString
	)
	if err := r.Scan(&sc.ID, &sc.ScriptID, &sc.Index, &sc.SlugRaw, &intExt, &loc, &tod, &sc.Body, &sc.LineCount, &sc.LineNo); err != nil {
		return domain.SceneRecord{}, err
	}
	sc.IntExt = stringPtr(intExt)
	sc.Location = stringPtr(loc)
	sc.TimeOfDay = stringPtr(tod)
	return sc, nil
}

// likePattern lower-cases v, escapes LIKE wildcards and wraps it in %...%.
func likePattern(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(v)) + "%"
}

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

	"scenebreak/internal/domain"
)

// CreateScript inserts sc. The owning project must exist, otherwise ErrNotFound is returned.
func (s *Store) CreateScript(ctx context.Context, sc domain.Script) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var one int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM projects WHERE id = ?`), sc.ProjectID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rollback(tx)
		return fmt.Errorf("project %s: %w", sc.ProjectID, ErrNotFound)
	case err != nil:
		rollback(tx)
		return fmt.Errorf("check project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO scripts(id, project_id, title, format, raw_text, created_at) VALUES(?, ?, ?, ?, ?, ?)`),
		sc.ID, sc.ProjectID, sc.Title, sc.Format, sc.RawText, toMillis(sc.CreatedAt)); err != nil {
		rollback(tx)
		return fmt.Errorf("insert script: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetScript returns the script with id including its raw text, or ErrNotFound.
func (s *Store) GetScript(ctx context.Context, id string) (domain.Script, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, project_id, title, format, raw_text, created_at, parsed_at FROM scripts WHERE id = ?`), id)
	var (
		sc      domain.Script
		created int64
		parsed  sql.NullInt64
	)
	err := row.Scan(&sc.ID, &sc.ProjectID, &sc.Title, &sc.Format, &sc.RawText, &created, &parsed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Script{}, fmt.Errorf("script %s: %w", id, ErrNotFound)
	case err != nil:
		return domain.Script{}, fmt.Errorf("select script: %w", err)
	}
	sc.CreatedAt = fromMillis(created)
	if parsed.Valid {
		t := fromMillis(parsed.Int64)
		sc.ParsedAt = &t
	}
	return sc, nil
}

// ListScripts returns the scripts of a project, newest first, without raw text.
func (s *Store) ListScripts(ctx context.Context, projectID string) ([]domain.Script, error) {
	return s.listScripts(ctx, `WHERE project_id = ?`, projectID)
}

// ListAllScripts returns every script, newest first, without raw text.
func (s *Store) ListAllScripts(ctx context.Context) ([]domain.Script, error) {
	return s.listScripts(ctx, ``)
}

func (s *Store) listScripts(ctx context.Context, where string, args ...any) ([]domain.Script, error) {
	q := `SELECT id, project_id, title, format, created_at, parsed_at FROM scripts ` + where + ` ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	list := []domain.Script{}
	for rows.Next() {
		var (
			sc      domain.Script
			created int64
			parsed  sql.NullInt64
		)
		if err := rows.Scan(&sc.ID, &sc.ProjectID, &sc.Title, &sc.Format, &created, &parsed); err != nil {
			return nil, fmt.Errorf("scan script: %w", err)
		}
		sc.CreatedAt = fromMillis(created)
		if parsed.Valid {
			t := fromMillis(parsed.Int64)
			sc.ParsedAt = &t
		}
		list = append(list, sc)
	}
	return list, rows.Err()
}

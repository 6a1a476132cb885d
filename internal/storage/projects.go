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

// CreateProject inserts p. ID and CreatedAt must already be set.
func (s *Store) CreateProject(ctx context.Context, p domain.Project) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO projects(id, name, created_at) VALUES(?, ?, ?)`),
		p.ID, p.Name, toMillis(p.CreatedAt)); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProject returns the project with id or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var (
		p       domain.Project
		created int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, created_at FROM projects WHERE id = ?`), id).
		Scan(&p.ID, &p.Name, &created)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	case err != nil:
		return domain.Project{}, fmt.Errorf("select project: %w", err)
	}
	p.CreatedAt = fromMillis(created)
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	list := []domain.Project{}
	for rows.Next() {
		var (
			p       domain.Project
			created int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &created); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = fromMillis(created)
		list = append(list, p)
	}
	return list, rows.Err()
}

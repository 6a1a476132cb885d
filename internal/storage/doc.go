/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists projects, scripts and parsed scenes.
// One Store implementation runs on database/sql with two dialects: an embedded
// SQLite file (modernc.org/sqlite, CGO-free) for local use and Postgres (pgx) for
// shared deployments. Schema changes live in embedded, numbered SQL migrations.
//
// A script's scenes are replaced as a whole: ReplaceScenes deletes and inserts in
// a single transaction, so readers see either the old list or the new one.
package storage

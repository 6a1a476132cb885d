/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"scenebreak/internal/server"
	"scenebreak/internal/service"
	"scenebreak/internal/storage"
)

func (c *cli) openStore(ctx context.Context) (*storage.Store, error) {
	db := c.cfg.Database
	return storage.Open(ctx, storage.Options{Driver: db.Driver, DSN: db.DSN, Path: db.Path})
}

// serve runs the HTTP API until SIGINT or SIGTERM.
func (c *cli) serve() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := c.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	sc := c.cfg.Server
	svc := service.New(st, service.Options{CacheTTL: sc.CacheTTL()})
	srv := server.New(svc, server.Config{
		AuthToken:        sc.AuthToken,
		MaxUploadBytes:   sc.MaxUploadBytes,
		UploadRatePerSec: sc.UploadRatePerSec,
		UploadBurst:      sc.UploadBurst,
	})
	if sc.AuthToken == "" {
		c.log.Warn("server.auth_token is empty; the API accepts unauthenticated requests")
	}
	c.log.Info("store ready", slog.String("driver", st.Driver()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(sc.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

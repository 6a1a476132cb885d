/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes the scene service as a JSON HTTP API built on echo.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	applog "scenebreak/internal/log"
	"scenebreak/internal/service"
)

type Config struct {
	// AuthToken enables bearer auth on /api when non-empty.
	AuthToken        string
	MaxUploadBytes   int64
	UploadRatePerSec int
	UploadBurst      int
	AllowOrigins     []string
}

type Server struct {
	Echo *echo.Echo
	svc  *service.Service
	cfg  Config
	log  *slog.Logger
	now  func() time.Time
}

func New(svc *service.Service, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{Echo: e, svc: svc, cfg: cfg, log: applog.WithComponent("http"), now: time.Now}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			lvl := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
				if v.Status >= http.StatusInternalServerError {
					lvl = slog.LevelError
				}
			}
			s.log.LogAttrs(c.Request().Context(), lvl, "request", attrs...)
			return nil
		},
	}))
	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowOrigins}))
	} else {
		e.Use(middleware.CORS())
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(cfg.MaxUploadBytes, 10) + "B"))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/healthz", s.handleHealth)
	s.Echo.POST("/ping", s.handlePing)
	s.Echo.GET("/readyz", s.handleReady)
	s.Echo.GET("/version", s.handleVersion)

	api := s.Echo.Group("/api")
	if s.cfg.AuthToken != "" {
		api.Use(bearerAuth(s.cfg.AuthToken))
	}
	api.POST("/projects", s.handleCreateProject)
	api.GET("/projects", s.handleListProjects)
	api.GET("/projects/:id/scripts", s.handleListProjectScripts)

	api.POST("/scripts", s.handleUploadScript, newUploadLimiter(s.cfg.UploadRatePerSec, s.cfg.UploadBurst).middleware)
	api.GET("/scripts", s.handleListScripts)
	api.GET("/scripts/:id", s.handleGetScript)
	api.POST("/scripts/:id/parse", s.handleParseScript)
	api.GET("/scripts/:id/scenes", s.handleListScenes)
	api.GET("/scripts/:id/scenes/:index", s.handleGetScene)
	api.GET("/scripts/:id/export", s.handleExport)

	api.POST("/parse", s.handlePreview)
	api.GET("/schema/scenes", s.handleSchema)
}

// Start blocks serving on addr until Shutdown. A clean shutdown returns nil.
func (s *Server) Start(addr string) error {
	s.log.Info("server listening", slog.String("addr", addr))
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")
	return s.Echo.Shutdown(ctx)
}

// requestContext puts the request id on the request context for slog.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
			r := c.Request()
			c.SetRequest(r.WithContext(applog.ContextWith(r.Context(), slog.String("request_id", id))))
		}
		return next(c)
	}
}

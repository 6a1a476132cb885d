/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"scenebreak/internal/service"
	"scenebreak/internal/storage"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// apiError pairs an error with the status and message sent to the client.
type apiError struct {
	status int
	msg    string
	err    error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *apiError) Unwrap() error { return e.err }

// fail maps service and storage errors onto API errors. notFound is the
// message used for storage.ErrNotFound.
func fail(err error, notFound string) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return &apiError{status: http.StatusBadRequest, msg: ve.Msg, err: err}
	case errors.Is(err, storage.ErrNotFound):
		return &apiError{status: http.StatusNotFound, msg: notFound, err: err}
	default:
		return err
	}
}

func badRequest(msg string) error { return &apiError{status: http.StatusBadRequest, msg: msg} }

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg := http.StatusInternalServerError, "Server error"
	var (
		ae *apiError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &ae):
		status, msg = ae.status, ae.msg
	case errors.As(err, &he):
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	}
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(c.Request().Context(), "request failed", slog.String("err", err.Error()))
		msg = "Server error"
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, errorBody{Error: msg})
}

func bearerAuth(token string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(error, echo.Context) error {
			return &apiError{status: http.StatusUnauthorized, msg: "Unauthorized"}
		},
	})
}

// uploadLimiter keeps one token bucket per client IP. Idle buckets expire.
type uploadLimiter struct {
	perSec  rate.Limit
	burst   int
	buckets *cache.Cache
}

func newUploadLimiter(perSec, burst int) *uploadLimiter {
	if perSec <= 0 {
		perSec = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &uploadLimiter{perSec: rate.Limit(perSec), burst: burst, buckets: cache.New(10*time.Minute, 10*time.Minute)}
}

func (l *uploadLimiter) allow(key string) bool {
	if v, ok := l.buckets.Get(key); ok {
		l.buckets.SetDefault(key, v)
		return v.(*rate.Limiter).Allow()
	}
	lim := rate.NewLimiter(l.perSec, l.burst)
	// Add fails if another request created the bucket first; use theirs.
	if err := l.buckets.Add(key, lim, cache.DefaultExpiration); err != nil {
		if v, ok := l.buckets.Get(key); ok {
			lim = v.(*rate.Limiter)
		}
	}
	return lim.Allow()
}

func (l *uploadLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !l.allow(c.RealIP()) {
			c.Response().Header().Set("Retry-After", "1")
			return &apiError{status: http.StatusTooManyRequests, msg: "Too many uploads, slow down"}
		}
		return next(c)
	}
}

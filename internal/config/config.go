/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads scenebreak's user configuration.
//
// Precedence, lowest first: built-in defaults, the YAML file, then
// environment variables (which a .env file in the working directory may
// seed). The API token used by the remote client never touches the YAML
// file; it is kept in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is written as config_version by Save.
const CurrentVersion = 1

type ServerConfig struct {
	Addr             string `yaml:"addr"`
	AuthToken        string `yaml:"auth_token"`
	MaxUploadBytes   int64  `yaml:"max_upload_bytes"`
	UploadRatePerSec int    `yaml:"upload_rate_per_sec"`
	UploadBurst      int    `yaml:"upload_burst"`
	CacheTTLSeconds  int    `yaml:"cache_ttl_seconds"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" | "postgres"
	DSN    string `yaml:"dsn"`
	Path   string `yaml:"path"`
}

type ClientConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	Server        ServerConfig   `yaml:"server"`
	Database      DatabaseConfig `yaml:"database"`
	Client        ClientConfig   `yaml:"client"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Defaults returns the application defaults. Database.Path is left empty and
// resolved by Load next to the config file.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		Server: ServerConfig{
			Addr:             ":5000",
			MaxUploadBytes:   10 << 20,
			UploadRatePerSec: 5,
			UploadBurst:      10,
			CacheTTLSeconds:  300,
		},
		Database: DatabaseConfig{Driver: "sqlite"},
		Client:   ClientConfig{BaseURL: "http://localhost:5000", TimeoutMs: 15000},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
	}
}

// Environment overrides.
const (
	EnvConfig      = "SCB_CONFIG"
	EnvPort        = "PORT"
	EnvAddr        = "SCB_ADDR"
	EnvAuthToken   = "SCB_AUTH_TOKEN"
	EnvDBDriver    = "SCB_DB_DRIVER"
	EnvDatabaseURL = "DATABASE_URL"
	EnvPGDSN       = "SCB_PG_DSN"
	EnvDBPath      = "SCB_DB_PATH"
	EnvAPIURL      = "SCB_API_URL"
	EnvLogLevel    = "SCB_LOG_LEVEL"
	EnvLogFormat   = "SCB_LOG_FORMAT"
	EnvLogSource   = "SCB_LOG_SOURCE"
	EnvLogFile     = "SCB_LOG_FILE"
)

const (
	keyringService = "scenebreak"
	keyringToken   = "api_token"
)

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "scenebreak")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "scenebreak")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "scenebreak")
		} else if home := os.Getenv("HOME"); home != "" {
			base = filepath.Join(home, ".config", "scenebreak")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns $SCB_CONFIG if set, else config.yaml in ConfigDir.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the config file if present, merges it over the defaults and
// applies environment overrides. A malformed file is an error; a missing one is not.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(filepath.Dir(path), "scenebreak.sqlite")
	}
	return cfg, nil
}

// Save writes cfg as YAML to ConfigPath. Server.AuthToken is written only if
// it came from the file; callers should not put secrets there casually.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cfg.ConfigVersion = CurrentVersion
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Token returns the stored API token, or "" if none is stored.
func Token() (string, error) {
	tok, err := keyring.Get(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return tok, err
}

// SetToken stores the API token in the OS keyring.
func SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(keyringService, keyringToken, token)
}

// DeleteToken removes the stored token. Deleting a missing token is not an error.
func DeleteToken() error {
	err := keyring.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	setString(&dst.Server.Addr, src.Server.Addr)
	setString(&dst.Server.AuthToken, src.Server.AuthToken)
	if src.Server.MaxUploadBytes > 0 {
		dst.Server.MaxUploadBytes = src.Server.MaxUploadBytes
	}
	if src.Server.UploadRatePerSec > 0 {
		dst.Server.UploadRatePerSec = src.Server.UploadRatePerSec
	}
	if src.Server.UploadBurst > 0 {
		dst.Server.UploadBurst = src.Server.UploadBurst
	}
	if src.Server.CacheTTLSeconds != 0 {
		dst.Server.CacheTTLSeconds = src.Server.CacheTTLSeconds
	}
	setString(&dst.Database.Driver, strings.ToLower(src.Database.Driver))
	setString(&dst.Database.DSN, src.Database.DSN)
	setString(&dst.Database.Path, src.Database.Path)
	setString(&dst.Client.BaseURL, src.Client.BaseURL)
	if src.Client.TimeoutMs > 0 {
		dst.Client.TimeoutMs = src.Client.TimeoutMs
	}
	setString(&dst.Logging.Level, strings.ToLower(src.Logging.Level))
	setString(&dst.Logging.Format, strings.ToLower(src.Logging.Format))
	dst.Logging.Source = src.Logging.Source
	setString(&dst.Logging.File, src.Logging.File)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := env(EnvPort); v != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := env(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := env(EnvAuthToken); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := env(EnvDBDriver); v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v := env(EnvDatabaseURL); v != "" {
		cfg.Database.DSN = v
	}
	if v := env(EnvPGDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := env(EnvDBPath); v != "" {
		cfg.Database.Path = v
	}
	if v := env(EnvAPIURL); v != "" {
		cfg.Client.BaseURL = v
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
	// A DSN without an explicit driver means Postgres.
	if cfg.Database.DSN != "" && env(EnvDBDriver) == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.Driver = "postgres"
	}
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// EnvOverrideFor reports which environment variable currently overrides the given config key.
func EnvOverrideFor(key string) (string, bool) {
	candidates := map[string][]string{
		"server.addr":       {EnvAddr, EnvPort},
		"server.auth_token": {EnvAuthToken},
		"database.driver":   {EnvDBDriver},
		"database.dsn":      {EnvPGDSN, EnvDatabaseURL},
		"database.path":     {EnvDBPath},
		"client.base_url":   {EnvAPIURL},
		"logging.level":     {EnvLogLevel},
		"logging.format":    {EnvLogFormat},
		"logging.source":    {EnvLogSource},
		"logging.file":      {EnvLogFile},
	}
	for _, name := range candidates[key] {
		if env(name) != "" {
			return name, true
		}
	}
	return "", false
}

// Timeout returns the client timeout, falling back to the default for non-positive values.
func (c ClientConfig) Timeout() time.Duration {
	ms := c.TimeoutMs
	if ms <= 0 {
		ms = Defaults().Client.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// CacheTTL returns the scene-view cache lifetime. Zero or negative disables caching.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}


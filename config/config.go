// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads splice defaults from an optional .splice.yaml at
// the workspace root. The analyzer default is overridable by the
// --analyzer flag; log level and tool overrides have no CLI flag.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the workspace-relative configuration file name.
const FileName = ".splice.yaml"

// MaxConfigSize caps the configuration file size (1MB).
const MaxConfigSize = 1024 * 1024

// Config holds workspace-level defaults.
type Config struct {
	// Analyzer is the default analyzer mode: off, auto, or a binary
	// path.
	Analyzer string `yaml:"analyzer"`

	// LogLevel is debug, info, warn, or error. Default: warn.
	LogLevel string `yaml:"log_level"`

	// Tools maps default binary names to replacements,
	// e.g. python: python3.
	Tools map[string]string `yaml:"tools"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Analyzer: "off",
		LogLevel: "warn",
	}
}

// Load reads the configuration from dir, returning defaults when no
// file exists. A present-but-malformed file is an error; silently
// ignoring a typo'd config misleads worse than failing.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, FileName)
	info, err := os.Stat(path)
	if err != nil {
		return cfg, nil
	}
	if info.Size() > MaxConfigSize {
		return cfg, fmt.Errorf("config file %s exceeds %d bytes", path, MaxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// SlogLevel converts the configured log level into a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

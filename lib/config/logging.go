// Copyright 2026 The Skinvault Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Log formats.
const (
	LogFormatAuto = "auto"
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// LogConfig configures the process logger.
type LogConfig struct {
	// Format is "auto", "json" or "text". Auto writes text to a
	// terminal and JSON otherwise. Default: auto
	Format string `yaml:"format" json:"format"`

	// Level is "debug", "info", "warn" or "error". Default: info
	Level string `yaml:"level" json:"level"`
}

func (l LogConfig) validate() error {
	switch l.Format {
	case LogFormatAuto, LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("log.format must be auto, json or text, got %q", l.Format)
	}
	if _, err := l.level(); err != nil {
		return err
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the logger writing to output.
func (l LogConfig) NewLogger(output *os.File) (*slog.Logger, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	level, _ := l.level()
	options := &slog.HandlerOptions{Level: level}

	text := l.Format == LogFormatText ||
		(l.Format == LogFormatAuto && term.IsTerminal(int(output.Fd())))
	if text {
		return slog.New(slog.NewTextHandler(output, options)), nil
	}
	return slog.New(slog.NewJSONHandler(output, options)), nil
}

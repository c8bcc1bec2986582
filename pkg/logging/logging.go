// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package logging provides the console logger used by the installer.
package logging

import (
	"io"
	"os"

	"github.com/siderolabs/gen/xslices"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogDestination defines a logging destination.
type LogDestination struct {
	level  zapcore.LevelEnabler
	writer io.Writer
	config zapcore.EncoderConfig
}

// EncoderOption defines a log destination encoder config setter.
type EncoderOption func(config *zapcore.EncoderConfig)

// WithoutTimestamp disables timestamp.
func WithoutTimestamp() EncoderOption {
	return func(config *zapcore.EncoderConfig) {
		config.EncodeTime = nil
	}
}

// WithColoredLevels enables log level colored output.
func WithColoredLevels() EncoderOption {
	return func(config *zapcore.EncoderConfig) {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
}

// NewLogDestination creates new log destination.
func NewLogDestination(writer io.Writer, logLevel zapcore.LevelEnabler, options ...EncoderOption) *LogDestination {
	config := zap.NewDevelopmentEncoderConfig()
	config.ConsoleSeparator = " "

	for _, option := range options {
		option(&config)
	}

	return &LogDestination{
		level:  logLevel,
		config: config,
		writer: writer,
	}
}

// ZapLogger creates a new logger with the given destinations.
func ZapLogger(dests ...*LogDestination) *zap.Logger {
	if len(dests) == 0 {
		panic("at least one writer must be defined")
	}

	cores := xslices.Map(dests, func(dest *LogDestination) zapcore.Core {
		return zapcore.NewCore(
			zapcore.NewConsoleEncoder(dest.config),
			zapcore.AddSync(dest.writer),
			dest.level,
		)
	})

	return zap.New(zapcore.NewTee(cores...))
}

// New builds the stderr console logger for the CLI.
func New(debug bool) *zap.Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	return ZapLogger(NewLogDestination(os.Stderr, level, WithColoredLevels()))
}

// Component helper for creating zap.Field.
func Component(name string) zapcore.Field {
	return zap.String("component", name)
}

// DryRun marks a log entry as a simulated action.
func DryRun() zapcore.Field {
	return zap.Bool("dry-run", true)
}

// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZap adapts a zap logger to Logger.
func NewZap(l *zap.Logger) Logger {
	return zapWrapper{s: l.Sugar()}
}

// NewConsole builds a human-oriented zap logger writing to stderr.
func NewConsole(verbose bool) (Logger, func(), error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, nil, err
	}
	return NewZap(l), func() { _ = l.Sync() }, nil
}

type zapWrapper struct {
	s *zap.SugaredLogger
}

func (z zapWrapper) Debugf(format string, args ...interface{}) { z.s.Debugf(format, args...) }
func (z zapWrapper) Infof(format string, args ...interface{})  { z.s.Infof(format, args...) }
func (z zapWrapper) Warnf(format string, args ...interface{})  { z.s.Warnf(format, args...) }
func (z zapWrapper) Errorf(format string, args ...interface{}) { z.s.Errorf(format, args...) }

// Copyright 2021 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log defines the logger capability handed to the capture and
// validation passes. Library code never owns a logger of its own: the
// entry point constructs one and passes it down.
package log

import (
	"io"
	"log"
)

// Logger describes a logger to be used in dxeready.
type Logger interface {
	// Debugf logs a message useful only when tracing a pass.
	Debugf(format string, args ...interface{})

	// Infof logs an informational message.
	Infof(format string, args ...interface{})

	// Warnf logs an warning message.
	Warnf(format string, args ...interface{})

	// Errorf logs an error message.
	Errorf(format string, args ...interface{})
}

// New returns a Logger printing to w through the standard library logger.
// Debug messages are dropped unless debug is set.
func New(w io.Writer, debug bool) Logger {
	return logWrapper{Logger: log.New(w, "", log.LstdFlags), debug: debug}
}

type logWrapper struct {
	Logger *log.Logger
	debug  bool
}

// Debugf implements Logger.
func (logger logWrapper) Debugf(format string, args ...interface{}) {
	if logger.debug {
		logger.Logger.Printf("[dxeready][DEBUG] "+format, args...)
	}
}

// Infof implements Logger.
func (logger logWrapper) Infof(format string, args ...interface{}) {
	logger.Logger.Printf("[dxeready][INFO] "+format, args...)
}

// Warnf implements Logger.
func (logger logWrapper) Warnf(format string, args ...interface{}) {
	logger.Logger.Printf("[dxeready][WARN] "+format, args...)
}

// Errorf implements Logger.
func (logger logWrapper) Errorf(format string, args ...interface{}) {
	logger.Logger.Printf("[dxeready][ERROR] "+format, args...)
}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}

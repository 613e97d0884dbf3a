// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaVersionMismatch is matched by every SchemaVersionMismatchError.
	ErrSchemaVersionMismatch = errors.New("schema version mismatch")
	// ErrMalformedInput is returned when an interchange file cannot be
	// decoded.
	ErrMalformedInput = errors.New("malformed interchange file")
)

// ParseError reports a malformed HOB or firmware volume structure. Offset is
// relative to the start of the structure being walked.
type ParseError struct {
	Structure string
	Offset    uint64
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %#x: %v", e.Structure, e.Offset, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// SchemaVersionMismatchError is returned when an interchange file was
// written with an incompatible schema.
type SchemaVersionMismatchError struct {
	Got  string
	Want string
}

func (e *SchemaVersionMismatchError) Error() string {
	return fmt.Sprintf("interchange schema version %q is not compatible with %q", e.Got, e.Want)
}

// Is matches ErrSchemaVersionMismatch.
func (e *SchemaVersionMismatchError) Is(target error) bool {
	return target == ErrSchemaVersionMismatch
}

// IOError reports an interchange file that could not be read or written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("interchange file %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *IOError) Unwrap() error {
	return e.Err
}

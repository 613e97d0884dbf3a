// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

// Suffixes marking compressed interchange files.
const (
	ZstdSuffix = ".zst"
	LZ4Suffix  = ".lz4"
)

// CheckSchema accepts version when its major number matches SchemaVersion.
func CheckSchema(version string) error {
	want := semver.MustParse(SchemaVersion)
	got, err := semver.ParseTolerant(version)
	if err != nil {
		return &SchemaVersionMismatchError{Got: version, Want: SchemaVersion}
	}
	if got.Major != want.Major {
		return &SchemaVersionMismatchError{Got: version, Want: SchemaVersion}
	}
	return nil
}

// Encode writes c as indented JSON. An empty SchemaVersion is filled in.
func Encode(w io.Writer, c *Capture) error {
	if c.SchemaVersion == "" {
		c.SchemaVersion = SchemaVersion
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// Decode reads one interchange document. The schema version is checked
// before anything else is decoded.
func Decode(r io.Reader) (*Capture, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return decodeBytes(b)
}

func decodeBytes(b []byte) (*Capture, error) {
	var header struct {
		SchemaVersion *string `json:"schema_version"`
	}
	if err := json.Unmarshal(b, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if header.SchemaVersion == nil {
		return nil, fmt.Errorf("%w: missing schema_version", ErrMalformedInput)
	}
	if err := CheckSchema(*header.SchemaVersion); err != nil {
		return nil, err
	}
	var c Capture
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return &c, nil
}

// WriteFile encodes c to path, compressed when path ends in ZstdSuffix or
// LZ4Suffix.
func WriteFile(path string, c *Capture) error {
	var buf bytes.Buffer
	if err := Encode(&buf, c); err != nil {
		return err
	}
	data := buf.Bytes()
	switch {
	case strings.HasSuffix(path, ZstdSuffix):
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		data = enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return err
		}
	case strings.HasSuffix(path, LZ4Suffix):
		var out bytes.Buffer
		w := lz4.NewWriter(&out)
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		data = out.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}

// ReadFile reads and decodes the interchange file at path.
func ReadFile(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	switch {
	case strings.HasSuffix(path, ZstdSuffix):
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
	case strings.HasSuffix(path, LZ4Suffix):
		data, err = io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
	}
	return decodeBytes(data)
}

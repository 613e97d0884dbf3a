// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compression classifies and optionally decodes the encodings used
// by GUID-defined firmware file sections.
package compression

import (
	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/record"
)

// Compressor defines a single compression scheme (such as LZMA).
type Compressor interface {
	// Name is typically the name of a class.
	Name() string

	// Decode and Encode obey "x == Decode(Encode(x))".
	Decode(encodedData []byte) ([]byte, error)
	Encode(decodedData []byte) ([]byte, error)
}

// Well-known GUIDs for GUIDed sections.
var (
	LZMAGUID    = guid.LZMACustom
	LZMAX86GUID = guid.LZMAX86Custom
	BrotliGUID  = guid.BrotliCustom
	TianoGUID   = guid.TianoCustom
	// CRC32GUID wraps sections with a checksum, the payload is not encoded.
	CRC32GUID = guid.CRC32Section
)

var classes = map[guid.GUID]record.Compression{
	LZMAGUID:    record.CompressionLZMA,
	LZMAX86GUID: record.CompressionLZMAX86,
	BrotliGUID:  record.CompressionBrotli,
	TianoGUID:   record.CompressionEFIStandard,
	CRC32GUID:   record.CompressionNone,
}

// Classify returns the encoding named by the defining GUID of a GUIDed
// section. GUIDs without a known meaning are CompressionVendor.
func Classify(g guid.GUID) record.Compression {
	if c, ok := classes[g]; ok {
		return c
	}
	return record.CompressionVendor
}

// Options selects the decoders available to CompressorFromGUID.
type Options struct {
	// BrotliPath is the brotli binary used for Brotli sections. Brotli
	// sections are left encoded when it is empty.
	BrotliPath string
}

// CompressorFromGUID returns a Compressor for the corresponding GUIDed
// Section, or nil when there is none.
func CompressorFromGUID(g guid.GUID, opts Options) Compressor {
	switch g {
	case LZMAGUID:
		return &LZMA{}
	case LZMAX86GUID:
		return &LZMAX86{&LZMA{}}
	case BrotliGUID:
		if opts.BrotliPath != "" {
			return &SystemBROTLI{brotliPath: opts.BrotliPath}
		}
	}
	return nil
}

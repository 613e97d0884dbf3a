// Copyright 2023 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compression

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os/exec"
)

// EDK2 puts the decoded size and the decoder scratch size in front of the
// brotli stream, 8 bytes each.
const (
	brotliHeaderSize = 0x10
	brotliScratch    = 0x03000000
)

// SystemBROTLI implements Compression by running an external brotli binary.
type SystemBROTLI struct {
	brotliPath string
}

// NewSystemBROTLI returns a SystemBROTLI running the binary at path.
func NewSystemBROTLI(path string) *SystemBROTLI {
	return &SystemBROTLI{brotliPath: path}
}

// Name returns the type of compression employed.
func (c *SystemBROTLI) Name() string {
	return "BROTLI"
}

func (c *SystemBROTLI) run(in []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(c.brotliPath, append([]string{"--stdout"}, args...)...)
	cmd.Stdin = bytes.NewReader(in)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.brotliPath, err)
	}
	return out, nil
}

// Decode decodes a byte slice of BROTLI data. The result must have the
// size announced in the header.
func (c *SystemBROTLI) Decode(encodedData []byte) ([]byte, error) {
	if len(encodedData) < brotliHeaderSize {
		return nil, fmt.Errorf("brotli section is %d bytes, shorter than its header", len(encodedData))
	}
	decoded, err := c.run(encodedData[brotliHeaderSize:], "-d")
	if err != nil {
		return nil, err
	}
	if want := binary.LittleEndian.Uint64(encodedData); uint64(len(decoded)) != want {
		return nil, fmt.Errorf("brotli section decoded to %d bytes, header announced %d", len(decoded), want)
	}
	return decoded, nil
}

// Encode encodes a byte slice with BROTLI.
func (c *SystemBROTLI) Encode(decodedData []byte) ([]byte, error) {
	encoded, err := c.run(decodedData, "-q", "9")
	if err != nil {
		return nil, err
	}
	out := make([]byte, brotliHeaderSize, brotliHeaderSize+len(encoded))
	binary.LittleEndian.PutUint64(out[0:], uint64(len(decodedData)))
	binary.LittleEndian.PutUint64(out[8:], brotliScratch)
	return append(out, encoded...), nil
}

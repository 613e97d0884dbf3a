// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package visitors

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	var out bytes.Buffer
	v := &Table{W: &out}
	require.NoError(t, v.Run(parseImage(t)))

	s := out.String()
	require.Contains(t, s, "GUID/NAME")
	require.Contains(t, s, testFV.String())
	require.Contains(t, s, "FooDxe")
	require.Contains(t, s, "InnerDxe")
	require.Contains(t, s, "dxe_core")
	require.Contains(t, s, "Free")
}

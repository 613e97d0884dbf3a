// Copyright 2018 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package visitors

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/linuxboot/dxeready/pkg/record"
)

func TestCount(t *testing.T) {
	f := parseImage(t)

	var out bytes.Buffer
	count := &Count{W: &out}
	if err := count.Run(f); err != nil {
		t.Fatal(err)
	}

	wantFirmware := map[string]int{"FirmwareVolume": 2, "File": 4, "Section": 8}
	if diff := cmp.Diff(wantFirmware, count.FirmwareTypeCount); diff != "" {
		t.Errorf("firmware counts mismatch (-want +got):\n%s", diff)
	}
	wantFiles := map[record.FileType]int{
		record.FileTypeDxeCore:     1,
		record.FileTypeDriver:      2,
		record.FileTypeVolumeImage: 1,
	}
	if diff := cmp.Diff(wantFiles, count.FileTypeCount); diff != "" {
		t.Errorf("file counts mismatch (-want +got):\n%s", diff)
	}

	for _, tt := range []struct {
		typ  record.SectionType
		want int
	}{
		{record.SectionDxeDepex, 1},
		{record.SectionPE32, 3},
		{record.SectionUserInterface, 2},
		{record.SectionCompression, 1},
		{record.SectionFirmwareVolumeImage, 1},
	} {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := count.SectionTypeCount[tt.typ]; got != tt.want {
				t.Fatalf("expected to count %d sections of type %q, got %d", tt.want, tt.typ, got)
			}
		})
	}
	if got := count.CompressionCount[record.CompressionNone]; got != 1 {
		t.Errorf("expected one uncompressed encapsulation, got %d", got)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json %q: %v", out.String(), err)
	}
	if _, ok := decoded["W"]; ok {
		t.Errorf("writer was serialized")
	}
}

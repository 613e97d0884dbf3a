// Copyright 2025 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record holds the canonical, versioned records shared by the
// capture and validation passes, and their interchange encoding.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// SchemaVersion is the interchange schema written by this build. Files
// with the same major version are accepted.
const SchemaVersion = "1.1.0"

// Capture is the content of one interchange file.
type Capture struct {
	SchemaVersion string       `json:"schema_version"`
	CaptureID     string       `json:"capture_id,omitempty"`
	HobList       HobList      `json:"hob_list"`
	FvList        []FvRecord   `json:"fv_list"`
	Diagnostics   []Diagnostic `json:"diagnostics,omitempty"`
	Extension
}

// Diagnostic records a structure the capture pass could not fully parse.
type Diagnostic struct {
	Structure string `json:"structure"`
	Address   uint64 `json:"address"`
	Message   string `json:"message"`
}

// HobList is an ordered list of HOB records.
type HobList []HobRecord

// Resources returns the V1 and V2 resource descriptors in list order.
func (c *Capture) Resources() (v1 []*ResourceDescriptor, v2 []*ResourceDescriptorV2) {
	for _, h := range c.HobList {
		switch h := h.(type) {
		case *ResourceDescriptor:
			v1 = append(v1, h)
		case *ResourceDescriptorV2:
			v2 = append(v2, h)
		}
	}
	return v1, v2
}

// MemoryAllocations returns the memory allocation records in list order.
func (c *Capture) MemoryAllocations() []*MemoryAllocation {
	var out []*MemoryAllocation
	for _, h := range c.HobList {
		if m, ok := h.(*MemoryAllocation); ok {
			out = append(out, m)
		}
	}
	return out
}

// Extension keeps fields written by a newer producer so they survive a
// decode/encode cycle.
type Extension struct {
	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

// marshalObject encodes v, merging in extra fields and, when tag is set, the
// variant tag.
func marshalObject(v interface{}, tag Kind, extra map[string]json.RawMessage) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if tag == "" && len(extra) == 0 {
		return b, nil
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := m[k]; !ok {
			m[k] = val
		}
	}
	if tag != "" {
		m["type"] = json.RawMessage(strconv.Quote(string(tag)))
	}
	return json.Marshal(m)
}

// unmarshalObject decodes data into v and stores fields v does not know in
// ext.
func unmarshalObject(data []byte, v interface{}, ext *Extension, reserved ...string) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	known, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var seen map[string]json.RawMessage
	if err := json.Unmarshal(known, &seen); err != nil {
		return err
	}
	for k := range seen {
		delete(all, k)
	}
	for _, k := range reserved {
		delete(all, k)
	}
	ext.Extra = nil
	if len(all) > 0 {
		ext.Extra = all
		for k, v := range all {
			all[k] = compact(v)
		}
	}
	return nil
}

// compact strips insignificant whitespace so preserved fragments compare
// equal across indented and compact encodings.
func compact(b []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return append(json.RawMessage(nil), b...)
	}
	return buf.Bytes()
}

// MarshalJSON implements json.Marshaler.
func (c *Capture) MarshalJSON() ([]byte, error) {
	type alias Capture
	return marshalObject((*alias)(c), "", c.Extra)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Capture) UnmarshalJSON(b []byte) error {
	type alias Capture
	return unmarshalObject(b, (*alias)(c), &c.Extension)
}

// MarshalJSON implements json.Marshaler.
func (fv *FvRecord) MarshalJSON() ([]byte, error) {
	type alias FvRecord
	return marshalObject((*alias)(fv), "", fv.Extra)
}

// UnmarshalJSON implements json.Unmarshaler.
func (fv *FvRecord) UnmarshalJSON(b []byte) error {
	type alias FvRecord
	return unmarshalObject(b, (*alias)(fv), &fv.Extension)
}

// MarshalJSON implements json.Marshaler.
func (f *FfsFile) MarshalJSON() ([]byte, error) {
	type alias FfsFile
	return marshalObject((*alias)(f), "", f.Extra)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FfsFile) UnmarshalJSON(b []byte) error {
	type alias FfsFile
	return unmarshalObject(b, (*alias)(f), &f.Extension)
}

// MarshalJSON implements json.Marshaler.
func (s *Section) MarshalJSON() ([]byte, error) {
	type alias Section
	return marshalObject((*alias)(s), "", s.Extra)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Section) UnmarshalJSON(b []byte) error {
	type alias Section
	return unmarshalObject(b, (*alias)(s), &s.Extension)
}

// MarshalJSON implements json.Marshaler. Every record carries its variant
// in the "type" field.
func (l HobList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for i, h := range l {
		b, err := marshalHob(h)
		if err != nil {
			return nil, fmt.Errorf("hob %d (%s): %w", i, h.Kind(), err)
		}
		out = append(out, b)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Variants this build does not
// know are kept as *Unknown.
func (l *HobList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	list := make(HobList, 0, len(raw))
	for i, r := range raw {
		var tag struct {
			Type *string `json:"type"`
		}
		if err := json.Unmarshal(r, &tag); err != nil {
			return fmt.Errorf("hob %d: %w", i, err)
		}
		if tag.Type == nil {
			return fmt.Errorf("hob %d: missing type tag", i)
		}
		rec := newHobRecord(Kind(*tag.Type))
		if rec == nil {
			list = append(list, &Unknown{Tag: *tag.Type, Raw: compact(r)})
			continue
		}
		if err := unmarshalHob(r, rec); err != nil {
			return fmt.Errorf("hob %d (%s): %w", i, *tag.Type, err)
		}
		list = append(list, rec)
	}
	*l = list
	return nil
}

func marshalHob(h HobRecord) ([]byte, error) {
	switch h := h.(type) {
	case *Handoff:
		type alias Handoff
		return marshalObject((*alias)(h), h.Kind(), h.Extra)
	case *MemoryAllocation:
		type alias MemoryAllocation
		return marshalObject((*alias)(h), h.Kind(), h.Extra)
	case *ResourceDescriptor:
		type alias ResourceDescriptor
		return marshalObject((*alias)(h), h.Kind(), h.Extra)
	case *ResourceDescriptorV2:
		type alias ResourceDescriptorV2
		return marshalObject((*alias)(h), h.Kind(), h.Extra)
	case *GuidExtension:
		type alias GuidExtension
		return marshalObject((*alias)(h), h.Kind(), h.Extra)
	case *FirmwareVolume:
		type alias FirmwareVolume
		return marshalObject((*alias)(h), h.Kind(), h.Extra)
	case *CPU:
		type alias CPU
		return marshalObject((*alias)(h), h.Kind(), h.Extra)
	case *Other:
		type alias Other
		return marshalObject((*alias)(h), h.Kind(), h.Extra)
	case *Unknown:
		return h.Raw, nil
	}
	return nil, fmt.Errorf("unsupported hob record type %T", h)
}

func unmarshalHob(b []byte, h HobRecord) error {
	switch h := h.(type) {
	case *Handoff:
		type alias Handoff
		return unmarshalObject(b, (*alias)(h), &h.Extension, "type")
	case *MemoryAllocation:
		type alias MemoryAllocation
		return unmarshalObject(b, (*alias)(h), &h.Extension, "type")
	case *ResourceDescriptor:
		type alias ResourceDescriptor
		return unmarshalObject(b, (*alias)(h), &h.Extension, "type")
	case *ResourceDescriptorV2:
		type alias ResourceDescriptorV2
		return unmarshalObject(b, (*alias)(h), &h.Extension, "type")
	case *GuidExtension:
		type alias GuidExtension
		return unmarshalObject(b, (*alias)(h), &h.Extension, "type")
	case *FirmwareVolume:
		type alias FirmwareVolume
		return unmarshalObject(b, (*alias)(h), &h.Extension, "type")
	case *CPU:
		type alias CPU
		return unmarshalObject(b, (*alias)(h), &h.Extension, "type")
	case *Other:
		type alias Other
		return unmarshalObject(b, (*alias)(h), &h.Extension, "type")
	}
	return fmt.Errorf("unsupported hob record type %T", h)
}

// Copyright 2019 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package guid2english provides a transform.Transformer which rewrites the
// GUIDs found in a report with their well-known names.
package guid2english

import (
	"bytes"
	"regexp"
	"text/template"

	"golang.org/x/text/transform"

	"github.com/linuxboot/dxeready/pkg/guid"
	"github.com/linuxboot/dxeready/pkg/log"
)

var guidPattern = regexp.MustCompile(
	"[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}",
)

// tailPattern matches a trailing run which may be the start of a GUID.
var tailPattern = regexp.MustCompile(
	"[-a-fA-F0-9]{1,36}$",
)

// AnnotateTemplate appends the name of well-known GUIDs and leaves the
// others as they are.
var AnnotateTemplate = template.Must(template.New("annotate").Parse(
	"{{.GUID}}{{if .IsKnown}} ({{.Name}}){{end}}"))

// Mapper converts a GUID to a string.
type Mapper interface {
	Map(guid.GUID) []byte
}

// TemplateMapper implements Mapper with a text/template. The template can
// refer to the following variables:
//   - {{.GUID}}: The GUID being mapped
//   - {{.Name}}: The well-known name of the GUID or "UNKNOWN"
//   - {{.IsKnown}}: Set to true when the name is known
type TemplateMapper struct {
	tmpl *template.Template
	log  log.Logger
}

// NewTemplateMapper creates a new TemplateMapper given a Template. Template
// errors are logged to logger and produce no output.
func NewTemplateMapper(tmpl *template.Template, logger log.Logger) *TemplateMapper {
	return &TemplateMapper{tmpl: tmpl, log: log.OrDiscard(logger)}
}

// Map implements Mapper.
func (m *TemplateMapper) Map(g guid.GUID) []byte {
	name := guid.Name(g)
	known := name != ""
	if !known {
		name = "UNKNOWN"
	}

	var b bytes.Buffer
	if err := m.tmpl.Execute(&b, struct {
		GUID    guid.GUID
		Name    string
		IsKnown bool
	}{g, name, known}); err != nil {
		m.log.Errorf("guid template %s: %v", m.tmpl.Name(), err)
	}
	return b.Bytes()
}

// Transformer replaces every GUID of a stream using a Mapper.
type Transformer struct {
	mapper Mapper
}

var _ transform.Transformer = (*Transformer)(nil)

// New creates a new Transformer with the given Mapper.
func New(m Mapper) *Transformer {
	return &Transformer{mapper: m}
}

// NewAnnotator returns a Transformer appending well-known names.
func NewAnnotator(logger log.Logger) *Transformer {
	return New(NewTemplateMapper(AnnotateTemplate, logger))
}

func (t *Transformer) replace(match []byte) []byte {
	g, err := guid.Parse(string(match))
	if err != nil {
		return match
	}
	return t.mapper.Map(g)
}

// Transform implements transform.Transformer.
func (t *Transformer) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	if atEOF {
		out := guidPattern.ReplaceAllFunc(src, t.replace)
		if len(out) <= len(dst) {
			return copy(dst, out), len(src), nil
		}
		// Emit what fits and ask for a larger destination.
		nDst, nSrc, err := t.Transform(dst, src, false)
		if err == transform.ErrShortSrc {
			err = transform.ErrShortDst
		}
		return nDst, nSrc, err
	}

	loc := guidPattern.FindIndex(src)
	if loc == nil {
		end := len(src)
		if tail := tailPattern.FindIndex(src); tail != nil {
			end = tail[0]
		}
		n := copy(dst, src[:end])
		switch {
		case n < end:
			return n, n, transform.ErrShortDst
		case end < len(src):
			return n, n, transform.ErrShortSrc
		}
		return n, n, nil
	}

	n := copy(dst, src[:loc[0]])
	if n < loc[0] {
		return n, n, transform.ErrShortDst
	}
	mapped := t.replace(src[loc[0]:loc[1]])
	if n+len(mapped) > len(dst) {
		return n, n, transform.ErrShortDst
	}
	n += copy(dst[n:], mapped)
	return n, loc[1], transform.ErrShortSrc
}

// Reset implements transform.Transformer.
func (t *Transformer) Reset() {}

// Package prompt renders fixed prompt templates into ordered text and media parts.
//
// A template is plain text/template source. Named slots are fields of Vars;
// the media function marks where a document is embedded:
//
//	Question: {{.Question}}
//	Document: {{media .Document}}
package prompt

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"pdf-insights/internal/document"
)

// PartKind distinguishes text from embedded media.
type PartKind int

const (
	PartText PartKind = iota
	PartMedia
)

// Part is one ordered piece of a rendered prompt.
type Part struct {
	Kind  PartKind
	Text  string
	Media document.DataURI
}

// Text builds a text part.
func Text(s string) Part { return Part{Kind: PartText, Text: s} }

// Media builds a media part.
func Media(d document.DataURI) Part { return Part{Kind: PartMedia, Media: d} }

// Vars are the named slots a template can reference.
type Vars struct {
	Question string
	Document document.DataURI
}

// Template is a named, parsed prompt.
type Template struct {
	name string
	tmpl *template.Template
}

// AnswerFromDocument is the prompt used to answer a question about an uploaded PDF.
var AnswerFromDocument = Must(New("answer-from-document", `You are a helpful AI assistant that answers questions based on the content of a document.

First, extract the text from the provided document. Then, based on the extracted content, answer the user's question.

Question: {{.Question}}
Document: {{media .Document}}`))

// New parses source. The media function is available to the template;
// at parse time it is a placeholder replaced on every Render.
func New(name, source string) (Template, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(template.FuncMap{"media": func(document.DataURI) string { return "" }}).
		Parse(source)
	if err != nil {
		return Template{}, fmt.Errorf("parse prompt %s: %w", name, err)
	}
	return Template{name: name, tmpl: tmpl}, nil
}

// Must panics when New fails. For package-level templates.
func Must(t Template, err error) Template {
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the template name.
func (t Template) Name() string { return t.name }

// Render executes the template and splits the output into parts in order.
// Empty text between markers is dropped.
func (t Template) Render(vars Vars) ([]Part, error) {
	if t.tmpl == nil {
		return nil, fmt.Errorf("prompt: template not initialised")
	}
	tmpl, err := t.tmpl.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone prompt %s: %w", t.name, err)
	}

	// markers carry a per-render nonce so slot values cannot forge them
	nonce := uuid.NewString()
	var media []document.DataURI
	tmpl.Funcs(template.FuncMap{"media": func(d document.DataURI) string {
		media = append(media, d)
		return marker(nonce, len(media)-1)
	}})

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("render prompt %s: %w", t.name, err)
	}

	return split(buf.String(), nonce, media)
}

func marker(nonce string, idx int) string {
	return "\x00" + nonce + ":" + strconv.Itoa(idx) + "\x00"
}

func split(out, nonce string, media []document.DataURI) ([]Part, error) {
	var parts []Part
	prefix := "\x00" + nonce + ":"
	for {
		start := strings.Index(out, prefix)
		if start < 0 {
			break
		}
		if start > 0 {
			parts = append(parts, Text(out[:start]))
		}
		rest := out[start+len(prefix):]
		end := strings.IndexByte(rest, 0)
		if end < 0 {
			return nil, fmt.Errorf("prompt: unterminated media marker")
		}
		idx, err := strconv.Atoi(rest[:end])
		if err != nil || idx < 0 || idx >= len(media) {
			return nil, fmt.Errorf("prompt: bad media marker %q", rest[:end])
		}
		parts = append(parts, Media(media[idx]))
		out = rest[end+1:]
	}
	if out != "" {
		parts = append(parts, Text(out))
	}
	return parts, nil
}

package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissingVariable is matched by every *MissingVariableError.
var ErrMissingVariable = errors.New("missing template variable")

// MissingVariableError reports the first placeholder that had no value.
type MissingVariableError struct {
	Template string
	Name     string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %q: no value for placeholder {%s}", e.Template, e.Name)
}

func (e *MissingVariableError) Is(target error) bool {
	return target == ErrMissingVariable
}

type segment struct {
	text        string
	placeholder bool
}

// Template is a parsed prompt with named {placeholders}. "{{" and "}}"
// render as literal braces. A Template is immutable once built.
type Template struct {
	name     string
	text     string
	segments []segment
}

func New(name, text string) Template {
	return Template{name: name, text: text, segments: parse(text)}
}

// Load reads a template from a file.
func Load(name, path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read prompt %s: %w", name, err)
	}
	return New(name, string(data)), nil
}

func (t Template) Name() string { return t.name }

func (t Template) Text() string { return t.text }

// Placeholders returns the distinct placeholder names in order of first use.
func (t Template) Placeholders() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range t.segments {
		if s.placeholder && !seen[s.text] {
			seen[s.text] = true
			out = append(out, s.text)
		}
	}
	return out
}

// Render substitutes vars into the template in a single pass. Values are
// never re-expanded. Extra variables are ignored.
func (t Template) Render(vars map[string]string) (string, error) {
	for _, name := range t.Placeholders() {
		if _, ok := vars[name]; !ok {
			return "", &MissingVariableError{Template: t.name, Name: name}
		}
	}

	var b strings.Builder
	b.Grow(len(t.text))
	for _, s := range t.segments {
		if s.placeholder {
			b.WriteString(vars[s.text])
			continue
		}
		b.WriteString(s.text)
	}
	return b.String(), nil
}

func parse(text string) []segment {
	var segs []segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '{' && i+1 < len(text) && text[i+1] == '{':
			lit.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(text) && text[i+1] == '}':
			lit.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 || !isIdent(text[i+1:i+1+end]) {
				lit.WriteByte(c)
				i++
				continue
			}
			flush()
			segs = append(segs, segment{text: text[i+1 : i+1+end], placeholder: true})
			i += end + 2
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return segs
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

package templator

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"text/template"
)

// ErrUnknownPlaceholder is returned when a template references a value its
// vars type does not provide.
var ErrUnknownPlaceholder = errors.New("unknown template placeholder")

type entry struct {
	tmpl *template.Template
	vars any
}

// Engine loads named templates from a filesystem and renders them with typed vars.
type Engine struct {
	fsys      fs.FS
	templates map[string]entry
}

func NewEngine(fsys fs.FS) *Engine {
	return &Engine{
		fsys:      fsys,
		templates: make(map[string]entry),
	}
}

// LoadTemplate parses path and checks every field it references against the
// exported fields of vars. vars is a zero value of the struct later passed to Render.
func (e *Engine) LoadTemplate(name, path string, vars any) error {
	raw, err := fs.ReadFile(e.fsys, path)
	if err != nil {
		return fmt.Errorf("failed to load template %s from %s: %w", name, path, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(raw))
	if err != nil {
		return fmt.Errorf("failed to parse template %s from %s: %w", name, path, err)
	}

	if err := checkPlaceholders(tmpl, vars); err != nil {
		return fmt.Errorf("template %s from %s: %w", name, path, err)
	}

	e.templates[name] = entry{tmpl: tmpl, vars: vars}
	return nil
}

func (e *Engine) HasTemplate(name string) bool {
	_, exists := e.templates[name]
	return exists
}

// Render executes the named template. Nothing is returned on failure.
func (e *Engine) Render(name string, data any) (string, error) {
	b, err := e.RenderToBytes(name, data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *Engine) RenderToBytes(name string, data any) ([]byte, error) {
	t, exists := e.templates[name]
	if !exists {
		return nil, fmt.Errorf("template %s not found", name)
	}

	if err := sameType(t.vars, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}

	buf := bytes.NewBuffer([]byte{})
	if err := t.tmpl.Execute(buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}

	return buf.Bytes(), nil
}

// Fragment returns a raw, unparametrized file from the template filesystem.
func (e *Engine) Fragment(path string) (string, error) {
	raw, err := fs.ReadFile(e.fsys, path)
	if err != nil {
		return "", fmt.Errorf("failed to read fragment %s: %w", path, err)
	}
	return string(raw), nil
}

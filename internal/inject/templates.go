package inject

import (
	"embed"
	"fmt"
	"path/filepath"
	"sync"
)

//go:embed templates/*.txt
var templateFS embed.FS

type TemplateName string

const (
	TemplateInjection  TemplateName = "injection.txt"
	TemplateCardHeader TemplateName = "card_header.txt"
)

// TemplateStore serves injection templates: embedded defaults, overridable
// at runtime from host settings. Templates are opaque text with {{VAR}}
// placeholders; the store never interprets them.
type TemplateStore struct {
	mu        sync.RWMutex
	overrides map[TemplateName]string
	defaults  map[TemplateName]string
}

func NewTemplateStore() *TemplateStore {
	return &TemplateStore{
		overrides: make(map[TemplateName]string),
		defaults:  make(map[TemplateName]string),
	}
}

// Get returns the override for name if one is set, otherwise the embedded
// default.
func (ts *TemplateStore) Get(name TemplateName) (string, error) {
	ts.mu.RLock()
	if text, ok := ts.overrides[name]; ok {
		ts.mu.RUnlock()
		return text, nil
	}
	if text, ok := ts.defaults[name]; ok {
		ts.mu.RUnlock()
		return text, nil
	}
	ts.mu.RUnlock()

	filename := filepath.ToSlash(filepath.Join("templates", string(name)))
	content, err := templateFS.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("load injection template %s: %w", name, err)
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.defaults[name] = string(content)

	return string(content), nil
}

// Set overrides a template for the rest of the session.
func (ts *TemplateStore) Set(name TemplateName, text string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.overrides[name] = text
}

// ResetOverrides drops all runtime overrides, restoring embedded defaults.
func (ts *TemplateStore) ResetOverrides() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.overrides = make(map[TemplateName]string)
}

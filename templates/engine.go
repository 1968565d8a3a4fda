// Package templates compiles embedded html/template sets into per-page
// template trees that share one layout, and renders them for full page
// loads and htmx partial swaps.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Engine holds the compiled templates. Each page file gets its own clone
// of the shared layout, so every page may define its own "content".
type Engine struct {
	mu     sync.RWMutex
	funcs  template.FuncMap
	byName map[string]*template.Template
	logger *zap.Logger
}

// New returns an empty Engine; call Boot before rendering.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		funcs:  Funcs(),
		byName: map[string]*template.Template{},
		logger: logger,
	}
}

var reDefineName = regexp.MustCompile(`{{-?\s*define\s+"([^"]+)"`)

// Boot compiles every registered Set. The shared set is required.
func (e *Engine) Boot() error {
	sets := registered()
	sort.Slice(sets, func(i, j int) bool { return sets[i].Name < sets[j].Name })

	var shared *Set
	for i := range sets {
		if sets[i].Name == SharedSet {
			shared = &sets[i]
		}
	}
	if shared == nil {
		return fmt.Errorf("templates: %q set not registered", SharedSet)
	}

	base := template.New("root").Funcs(e.funcs)
	files, err := globAll(shared.FS, shared.Patterns)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := parseFile(base, shared.FS, f); err != nil {
			return err
		}
	}

	byName := map[string]*template.Template{}
	for _, s := range sets {
		if s.Name == SharedSet {
			continue
		}
		if err := e.compileSet(base, s, byName); err != nil {
			return fmt.Errorf("templates: set %q: %w", s.Name, err)
		}
	}

	e.mu.Lock()
	e.byName = byName
	e.mu.Unlock()
	return nil
}

func (e *Engine) compileSet(base *template.Template, s Set, byName map[string]*template.Template) error {
	files, err := globAll(s.FS, s.Patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		e.logger.Warn("no templates matched", zap.String("set", s.Name))
	}

	for _, f := range files {
		src, err := fs.ReadFile(s.FS, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		page, err := base.Clone()
		if err != nil {
			return fmt.Errorf("clone layout: %w", err)
		}
		if _, err := page.Parse(string(src)); err != nil {
			return fmt.Errorf("parse %s: %w", f, err)
		}

		for _, m := range reDefineName.FindAllStringSubmatch(string(src), -1) {
			name := m[1]
			if name == "content" {
				continue
			}
			if _, dup := byName[name]; dup {
				return fmt.Errorf("template %q defined twice (second in %s)", name, f)
			}
			byName[name] = page
		}
		e.logger.Debug("template page compiled", zap.String("set", s.Name), zap.String("file", f))
	}
	return nil
}

func parseFile(t *template.Template, fsys fs.FS, path string) error {
	b, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}
	if _, err := t.Parse(string(b)); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func globAll(fsys fs.FS, patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, pat := range patterns {
		matches, err := fs.Glob(fsys, pat)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// execute renders name into a buffer first so a template error never
// leaves a half-written page.
func (e *Engine) execute(name, entry string, data any) ([]byte, error) {
	e.mu.RLock()
	t, ok := e.byName[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, entry, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Engine) write(w http.ResponseWriter, name, entry string, data any) {
	b, err := e.execute(name, entry, data)
	if err != nil {
		e.logger.Error("template render failed", zap.String("name", name), zap.String("entry", entry), zap.Error(err))
		http.Error(w, "template exec error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

// Render writes the full page name.
func (e *Engine) Render(w http.ResponseWriter, name string, data any) {
	e.write(w, name, name, data)
}

// RenderSnippet writes the partial name.
func (e *Engine) RenderSnippet(w http.ResponseWriter, name string, data any) {
	e.write(w, name, name, data)
}

// RenderAutoMap answers htmx requests with the snippet mapped to their
// HX-Target, or the page's "content" block when the target is "content".
// Everything else gets the full page.
func (e *Engine) RenderAutoMap(w http.ResponseWriter, r *http.Request, page string, targets map[string]string, data any) {
	if r.Header.Get("HX-Request") == "true" {
		target := r.Header.Get("HX-Target")
		if snip := targets[target]; snip != "" {
			e.RenderSnippet(w, snip, data)
			return
		}
		if target == "content" {
			e.write(w, page, "content", data)
			return
		}
	}
	e.Render(w, page, data)
}

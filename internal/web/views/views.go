package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

//go:embed *.html
var templatesFS embed.FS

// partials are rendered on their own, never inside the layout
var partials = map[string]bool{
	"loading.html": true,
}

type Engine struct {
	templates map[string]*template.Template
}

var funcs = template.FuncMap{
	"percent": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("Jan 2, 2006")
	},
	"join": strings.Join,
	"initials": func(name string) string {
		var out []rune
		for _, f := range strings.Fields(name) {
			out = append(out, []rune(strings.ToUpper(f))[0])
			if len(out) == 2 {
				break
			}
		}
		return string(out)
	},
}

func New() (*Engine, error) {
	e := &Engine{
		templates: make(map[string]*template.Template),
	}

	// Parse layout
	layoutTmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templatesFS, "layout.html")
	if err != nil {
		return nil, err
	}

	// Parse each page template
	entries, err := fs.ReadDir(templatesFS, ".")
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "layout.html" {
			continue
		}

		name := entry.Name()
		baseName := name[:len(name)-len(filepath.Ext(name))]

		if partials[name] {
			tmpl, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, name)
			if err != nil {
				return nil, err
			}
			e.templates[baseName] = tmpl
			continue
		}

		// Clone layout and parse page template
		tmpl, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}

		_, err = tmpl.ParseFS(templatesFS, name)
		if err != nil {
			return nil, err
		}

		e.templates[baseName] = tmpl
	}

	return e, nil
}

// MustNew is New for callers that cannot continue without templates
func MustNew() *Engine {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}

// Render executes the named page into w
func (e *Engine) Render(w io.Writer, name string, data any) error {
	tmpl, ok := e.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.Execute(w, data)
}

// Has reports whether a page exists
func (e *Engine) Has(name string) bool {
	_, ok := e.templates[name]
	return ok
}

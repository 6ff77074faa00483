package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Templates manages HTML templates for the web application.
type Templates struct {
	templates map[string]*template.Template
}

// NewTemplates loads templates from the given filesystem.
// Expects layout templates in layouts/ and page templates in pages/.
func NewTemplates(fsys fs.FS) (*Templates, error) {
	t := &Templates{
		templates: make(map[string]*template.Template),
	}

	layouts, err := fs.Glob(fsys, "layouts/*.html")
	if err != nil {
		return nil, fmt.Errorf("globbing layouts: %w", err)
	}

	pages, err := fs.Glob(fsys, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("globbing pages: %w", err)
	}

	for _, page := range pages {
		name := strings.TrimSuffix(filepath.Base(page), ".html")

		files := make([]string, 0, len(layouts)+1)
		files = append(files, layouts...)
		files = append(files, page)

		tmpl, err := template.New(name).Funcs(defaultFuncs()).ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}

	return t, nil
}

// Render renders the named page template with the given data.
func (t *Templates) Render(w io.Writer, name string, data any) error {
	tmpl, ok := t.templates[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// defaultFuncs returns the template function map.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"formatDateTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 15:04")
		},
		"km": func(meters float64) string {
			return fmt.Sprintf("%.1f km", meters/1000)
		},
		"hours": func(seconds int64) string {
			return fmt.Sprintf("%.1f h", float64(seconds)/3600)
		},
		"add": func(a, b int) int {
			return a + b
		},
	}
}

// PageData contains data common to every page.
type PageData struct {
	Title       string
	CurrentPath string
}

// UserData contains the authenticated athlete shown in the navigation.
type UserData struct {
	ID   int64
	Name string
}

// HomePageData contains data for the home page.
type HomePageData struct {
	PageData
	Authenticated bool
	User          *UserData
}

// DashboardPageData contains data for the dashboard page.
type DashboardPageData struct {
	PageData
	User       *UserData
	LastSyncAt string // formatted, empty if never synced
	Activities int
}

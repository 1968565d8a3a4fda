// Package testcomponent serves a static placeholder view.
package testcomponent

import (
	"embed"
	"net/http"

	"github.com/dalemusser/whiskers/templates"
	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "testcomponent",
		FS:       templatesFS,
		Patterns: []string{"templates/*.gohtml"},
	})
}

// Mount attaches GET /test-component.
func Mount(r chi.Router, tpl *templates.Engine) {
	r.Get("/test-component", func(w http.ResponseWriter, r *http.Request) {
		tpl.RenderAutoMap(w, r, "test_component", nil, struct{ Title string }{"Test Component"})
	})
}

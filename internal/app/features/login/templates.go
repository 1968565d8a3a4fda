package login

import (
	"embed"

	"github.com/dalemusser/whiskers/templates"
)

//go:embed templates/*.gohtml
var templatesFS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "login",
		FS:       templatesFS,
		Patterns: []string{"templates/*.gohtml"},
	})
}

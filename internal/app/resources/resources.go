// Package resources embeds the shared page layout.
package resources

import (
	"embed"

	"github.com/dalemusser/whiskers/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     templates.SharedSet,
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}

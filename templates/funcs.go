// templates/funcs.go
package templates

import (
	"html/template"
	"strings"
)

// Funcs returns helpers available to all templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"join":  strings.Join,
		// {{ attrIf .Disabled "disabled" }}
		"attrIf": func(cond bool, name string) template.HTMLAttr {
			if cond {
				return template.HTMLAttr(name)
			}
			return ""
		},
	}
}

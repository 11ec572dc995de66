// Package templates renders the embedded HTML pages. Placeholders use
// {{name}} syntax; unknown placeholders render as empty.
package templates

import (
	"embed"
	"fmt"

	"github.com/valyala/fasttemplate"
)

//go:embed files/*.html
var files embed.FS

// Render loads the named template and substitutes vars. Values may be
// string or []byte.
func Render(name string, vars map[string]any) (string, error) {
	raw, err := files.ReadFile("files/" + name)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	t, err := fasttemplate.NewTemplate(string(raw), "{{", "}}")
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return t.ExecuteString(vars), nil
}

// internal/actions/template.go
package actions

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*[a-zA-Z0-9_.]+\s*\}\}`)

// RenderTemplate replaces {{key}} placeholders with values from data.
// Nested maps are addressable with dotted keys such as {{company.name}}.
// Placeholders with no value render as empty strings.
func RenderTemplate(tmpl string, data map[string]interface{}) string {
	if tmpl == "" || !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	flat := make(map[string]string)
	flatten("", data, flat)

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-2])
		return flat[key]
	})
}

func flatten(prefix string, data map[string]interface{}, out map[string]string) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		case []interface{}:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ", ")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

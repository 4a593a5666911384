// Package template renders notification templates. Bodies and subjects
// carry {{name}} placeholders that are substituted from a flat string map.
package template

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"lawncare/internal/types"
)

// placeholderPattern matches {{name}}. Whitespace inside the braces is part
// of the name, so "{{ name }}" and "{{name}}" are different keys.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Rendered is the output of Render. Subject is empty for SMS templates.
type Rendered struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Render substitutes every placeholder whose key is present in vars.
// Unknown placeholders are left verbatim. Substitution is a single pass, so
// values are never themselves expanded.
func Render(t types.NotificationTemplate, vars map[string]string) Rendered {
	return Rendered{
		Subject: substitute(t.Subject, vars),
		Body:    substitute(t.Body, vars),
	}
}

func substitute(s string, vars map[string]string) string {
	if s == "" || !strings.Contains(s, "{{") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := vars[m[2:len(m)-2]]; ok {
			return v
		}
		return m
	})
}

// Placeholders lists the distinct placeholder names in s in order of first
// appearance.
func Placeholders(s string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(s, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

// DeclaredVariables returns t.Variables, or the placeholders found in the
// subject and body when none are declared.
func DeclaredVariables(t types.NotificationTemplate) []string {
	if len(t.Variables) > 0 {
		return t.Variables
	}
	return Placeholders(t.Subject + "\n" + t.Body)
}

// Validate reports the declared variables missing from vars. A key that is
// present with an empty value counts as supplied.
func Validate(t types.NotificationTemplate, vars map[string]string) error {
	var missing []string
	for _, name := range DeclaredVariables(t) {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingVariable,
		fmt.Sprintf("template %s is missing variables: %s", t.ID, strings.Join(missing, ", ")),
		nil,
		map[string]any{"template_id": t.ID, "missing": missing},
	)
}

// ValidateDefinition checks an admin-edited template before it is stored.
func ValidateDefinition(t types.NotificationTemplate) error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return types.NewAppError(types.ErrCodeValidationMissingField, "template id is required", nil)
	case !t.Channel.Valid():
		return types.NewAppError(types.ErrCodeValidationInvalidChannel, fmt.Sprintf("unknown channel %q", t.Channel), nil)
	case strings.TrimSpace(t.Body) == "":
		return types.NewAppError(types.ErrCodeValidationMissingField, "template body is required", nil)
	case t.Channel == types.ChannelEmail && strings.TrimSpace(t.Subject) == "":
		return types.NewAppError(types.ErrCodeValidationMissingField, "email templates need a subject", nil)
	}
	return nil
}

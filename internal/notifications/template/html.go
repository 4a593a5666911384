package template

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
)

//go:embed layouts/email.html
var layoutFS embed.FS

var emailLayout = htmltemplate.Must(htmltemplate.ParseFS(layoutFS, "layouts/email.html"))

type layoutData struct {
	Subject    string
	Paragraphs [][]string
}

// HTMLBody wraps a rendered email in the branded layout. Blank lines
// separate paragraphs; single newlines become line breaks. All text is
// HTML-escaped.
func HTMLBody(r Rendered) (string, error) {
	data := layoutData{Subject: r.Subject}
	for _, para := range strings.Split(strings.ReplaceAll(r.Body, "\r\n", "\n"), "\n\n") {
		para = strings.Trim(para, "\n")
		if strings.TrimSpace(para) == "" {
			continue
		}
		data.Paragraphs = append(data.Paragraphs, strings.Split(para, "\n"))
	}

	var buf bytes.Buffer
	if err := emailLayout.ExecuteTemplate(&buf, "email.html", data); err != nil {
		return "", fmt.Errorf("template: rendering html layout: %w", err)
	}
	return buf.String(), nil
}

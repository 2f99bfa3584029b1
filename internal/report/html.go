package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

var page = template.Must(template.New("report.html").
	Funcs(template.FuncMap{"markdown": renderMarkdown}).
	ParseFS(templateFS, "templates/report.html"))

// RenderHTML wraps the Markdown story in a standalone HTML page.
func RenderHTML(body string, meta Meta) ([]byte, error) {
	var buf bytes.Buffer
	err := page.Execute(&buf, struct {
		Title       string
		RunID       string
		GeneratedAt time.Time
		Body        string
	}{Title, meta.RunID, meta.GeneratedAt, body})
	if err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

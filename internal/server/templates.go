package server

import (
	"embed"
	"html/template"
	"time"

	"github.com/USA-RedDragon/crashula/internal/db/models"
)

//go:embed templates/*.html
var templateFS embed.FS

func loadTemplates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"isoTime": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},
		"displayTime": func(t time.Time) string {
			return t.UTC().Format("Jan 2, 2006 15:04 MST")
		},
		"kindValue": func(k models.CrashKind) int {
			return int(k)
		},
	}).ParseFS(templateFS, "templates/*.html"))
}

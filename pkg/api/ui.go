package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// IndexHandler serves the page that polls the feed.
type IndexHandler struct {
	EventsPath          string
	PollIntervalSeconds int
}

type indexData struct {
	EventsPath     string
	PollIntervalMS int
}

func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	interval := h.PollIntervalSeconds
	if interval <= 0 {
		interval = 15
	}
	path := h.EventsPath
	if path == "" {
		path = "/events"
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, indexData{EventsPath: path, PollIntervalMS: interval * 1000}); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

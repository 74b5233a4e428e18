package web

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"dispatch-cli/internal/format"
	"dispatch-cli/internal/model"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		// Raw HTML stays escaped; customer text is untrusted.
		html.WithHardWraps(),
	),
)

func renderMarkdownHTML(src string) (template.HTML, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return template.HTML(""), nil
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return "", err
	}
	return template.HTML(b.String()), nil
}

func renderDigest(snap model.BoardSnapshot) (template.HTML, error) {
	return renderMarkdownHTML(format.BoardMarkdown(snap))
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Dispatch sandbox</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0-RC.1/bundles/datastar.js"></script>
<style>
body { font: 15px/1.45 system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; padding: 0 1rem; }
#summary { background: #f4f4f5; border-radius: 6px; padding: .6rem 1rem; }
table { border-collapse: collapse; }
td, th { padding: .2rem .6rem; }
</style>
</head>
<body data-signals='{{.Signals}}' data-on-load="@get('{{.StreamURL}}')">
<p id="summary"><span data-text="$line">{{.Line}}</span> <small>updated <span data-text="$updated"></span></small></p>
<div id="digest">{{.Digest}}</div>
</body>
</html>
`))

type pageVM struct {
	Signals   string
	StreamURL string
	Line      string
	Digest    template.HTML
}

// handlePage renders today's board digest; the stream keeps it current.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	date, view, err := s.boardParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.snapshot(r, date, view)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	digest, err := renderDigest(snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	q := url.Values{}
	q.Set("date", date)
	q.Set("view", string(view))
	if tok := strings.TrimSpace(r.URL.Query().Get("access_token")); tok != "" {
		q.Set("access_token", tok)
	}
	vm := pageVM{
		Signals:   `{"line":"","updated":""}`,
		StreamURL: "/api/dispatch-board/stream?" + q.Encode(),
		Line:      format.SummaryLine(snap.Summary),
		Digest:    digest,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, vm); err != nil {
		s.logger.Warn("rendering page", "error", err)
	}
}

package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"github.com/yuripa07/itemsmith/internal/errors"
	"github.com/yuripa07/itemsmith/internal/session"
	"github.com/yuripa07/itemsmith/internal/tracker"
	"github.com/yuripa07/itemsmith/internal/workitem"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// CardData is the per-record display shape: the record, its submission
// state, and the sanitized HTML rendering of the markdown description.
type CardData struct {
	Record      workitem.Record
	State       session.SubmissionState
	Description template.HTML
	TagsEdit    string
}

// BoardPageData is the template data for the board page.
type BoardPageData struct {
	PageData
	Credentials tracker.Credentials
	Configured  bool
	Template    string
	Kinds       []string
	Kind        string
	Notes       string
	Model       string
	Generating  bool
	Cards       []CardData
	Error       string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
	sanitizer *bluemonday.Policy
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"kindClass": kindClass,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"board": "board.html",
		"error": "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("template execution error")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var iErr *errors.ItemsmithError
	if !stderrors.As(err, &iErr) {
		iErr = errors.NewInternal(err)
	}

	status := iErr.Status
	message := iErr.Message

	// JSON request
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    string(iErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderMarkdown converts markdown to HTML and sanitizes the result.
// Model-generated descriptions are untrusted input; they never reach the
// page unsanitized.
func (r *Renderer) renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(r.sanitizer.SanitizeBytes(buf.Bytes()))
}

// card builds the display shape for one session entry.
func (r *Renderer) card(e session.Entry) CardData {
	return CardData{
		Record:      e.Record,
		State:       e.State,
		Description: r.renderMarkdown(e.Record.Description),
		TagsEdit:    workitem.JoinTags(e.Record.Tags),
	}
}

// cards builds display shapes for the whole working set.
func (r *Renderer) cards(entries []session.Entry) []CardData {
	out := make([]CardData, 0, len(entries))
	for _, e := range entries {
		out = append(out, r.card(e))
	}
	return out
}

// kindClass maps a work-item kind to its chip CSS class.
func kindClass(kind string) string {
	switch kind {
	case workitem.KindBug:
		return "kind-bug"
	case workitem.KindUserStory:
		return "kind-story"
	case workitem.KindFeature:
		return "kind-feature"
	case workitem.KindTask:
		return "kind-task"
	default:
		return "kind-other"
	}
}

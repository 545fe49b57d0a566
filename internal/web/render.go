package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/echofeed/internal/errors"
	"github.com/hpungsan/echofeed/internal/narrative"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// PostCard is the render model for one post in the feed.
type PostCard struct {
	URL           string
	Title         string
	PostPath      string // path portion of the post URL, shown under the title
	ParagraphHTML []template.HTML

	Expanded    bool
	Truncated   bool // collapsed with paragraphs held back
	ExpandCtl   bool // long enough to warrant a Read More control
	Speakable   bool
	Requesting  bool
	Playing     bool
	Paragraphs  int
	KiloChars   int
}

// PlayerData binds the page's shared audio element to a fresh clip.
type PlayerData struct {
	Token       string
	PostURL     string
	ContentType string
}

// FeedPageData is the template data for the feed page.
type FeedPageData struct {
	PageData
	Query         string
	Cards         []PostCard
	FilteredCount int
	TotalCount    int
	HasMore       bool
	Remaining     int
	Player        *PlayerData
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
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
		"formatChars": formatChars,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"feed":  "feed.html",
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
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For fragment requests (HX-Request), only the "content" block is rendered to
// avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderBlock renders a specific named block from a page template.
// Used for partial swaps that target a sub-section of the page.
func (r *Renderer) renderBlock(w http.ResponseWriter, status int, page, block string, data any) {
	t, ok := r.templates[page]
	if !ok {
		log.Printf("template %q not found", page)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		log.Printf("template block %q execution error: %v", block, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var fErr *errors.FeedError
	if !stderrors.As(err, &fErr) {
		fErr = errors.NewInternal(err)
	}

	status := fErr.Status
	message := fErr.Message

	// Fragment request: return an HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	// JSON request
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    string(fErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderParagraph converts one narrative paragraph to HTML. Text runs go
// through the markdown renderer; media elements get plain tags the client
// hides on load failure; unrecognized kinds render as nothing.
func renderParagraph(paragraph narrative.Paragraph) template.HTML {
	var b strings.Builder
	for _, el := range paragraph {
		switch el.Kind {
		case narrative.KindText:
			b.WriteString(string(renderMarkdown(el.Content)))
		case narrative.KindImage:
			fmt.Fprintf(&b, `<figure class="narrative-image"><img src="%s" alt="" loading="lazy"></figure>`,
				template.HTMLEscapeString(el.URL))
		case narrative.KindVideo:
			if el.LocalVideo() {
				fmt.Fprintf(&b, `<div class="narrative-video"><video src="%s" controls preload="metadata"></video></div>`,
					template.HTMLEscapeString(el.URL))
			} else {
				fmt.Fprintf(&b, `<div class="narrative-video"><iframe src="%s" allowfullscreen></iframe></div>`,
					template.HTMLEscapeString(el.URL))
			}
		case narrative.KindLink:
			fmt.Fprintf(&b, `<a class="narrative-link" href="%s" target="_blank" rel="noopener noreferrer">%s</a>`,
				template.HTMLEscapeString(el.URL), template.HTMLEscapeString(el.LinkLabel()))
		}
	}
	return template.HTML(b.String())
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatChars formats an integer with comma thousands separators.
func formatChars(n int) string {
	if n < 0 {
		return "-" + formatChars(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

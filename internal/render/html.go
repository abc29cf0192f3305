package render

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"strconv"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	markdown = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		// Raw HTML is passed through and then sanitised below
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	policyOnce sync.Once
	policy     *bluemonday.Policy

	page = template.Must(template.ParseFS(templateFS, "templates/page.html"))
)

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// Markdown converts model output to sanitised HTML
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(sanitizer().Sanitize(template.HTMLEscapeString(src)))
	}
	return template.HTML(sanitizer().SanitizeBytes(buf.Bytes()))
}

// Tab is a rendered section ready for the page template
type Tab struct {
	ID     string
	Title  string
	Body   template.HTML
	Result bool
}

// PageData holds everything the UI page displays
type PageData struct {
	Query   string
	Warning string
	Error   string
	Raw     string
	Tabs    []Tab
}

// Tabs renders sections into tabs. Untitled output gets the title "Response".
func Tabs(sections []Section) []Tab {
	tabs := make([]Tab, 0, len(sections))
	for i, s := range sections {
		title := s.Title
		if title == "" {
			title = "Response"
		}
		tabs = append(tabs, Tab{
			ID:     "tab-" + strconv.Itoa(i),
			Title:  title,
			Body:   Markdown(s.Body),
			Result: s.IsResult(),
		})
	}
	return tabs
}

// Page writes the full UI page
func Page(w io.Writer, data PageData) error {
	return page.Execute(w, data)
}

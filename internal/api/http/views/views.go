// Package views renders the HTML pages of the enrollment flow.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"github.com/phijaro/octo-oauth-demo/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	PageIndex   = "index.html"
	PageSuccess = "success.html"
	PageFailure = "failure.html"
)

// IndexPage links to the authorize route.
type IndexPage struct {
	AuthorizeURL string
}

// SuccessPage shows the redacted enrollment.
type SuccessPage struct {
	View domain.RedactedView
}

// FailurePage explains why a callback did not enroll anyone.
type FailurePage struct {
	Code     string
	Message  string
	RetryURL string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses every embedded page.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// MustRenderer is NewRenderer for program start-up.
func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes page with status as text/html.
func (r *Renderer) Render(c *fiber.Ctx, status int, page string, data any) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, page, data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/kcearns/landing-server/cmd/routes"
)

//go:embed templates/landing.html.tmpl
var templateFS embed.FS

// RepositoryURL is the public repository linked from the landing page
const RepositoryURL = "https://github.com/kcearns/k8s-terraform-learning"

// Link is a labelled hyperlink on the landing page
type Link struct {
	Href  string
	Label string
}

// PageContent is the fixed content of the landing page
type PageContent struct {
	Title          string
	Description    string
	Heading        string
	Body           string
	HealthLink     Link
	RepositoryLink Link
}

// LandingPage returns the landing page content. It is built from constants so
// every process renders the same document.
func LandingPage() PageContent {
	return PageContent{
		Title:          "Go on EKS",
		Description:    "Go application deployed on AWS EKS",
		Heading:        "🚀 Go on AWS EKS",
		Body:           "This application is running on Amazon EKS (Elastic Kubernetes Service)",
		HealthLink:     Link{Href: routes.HealthPath, Label: "Check Health"},
		RepositoryLink: Link{Href: RepositoryURL, Label: "View Repository"},
	}
}

// LandingHandler serves a document rendered once at construction
type LandingHandler struct {
	body          []byte
	contentLength string
}

// NewLandingHandler renders content with the embedded template
func NewLandingHandler(content PageContent) (*LandingHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/landing.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse landing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, content); err != nil {
		return nil, fmt.Errorf("failed to render landing page: %w", err)
	}

	return &LandingHandler{
		body:          buf.Bytes(),
		contentLength: strconv.Itoa(buf.Len()),
	}, nil
}

// ServeHTTP writes the pre-rendered page; the request is not inspected
func (h *LandingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", h.contentLength)
	w.WriteHeader(http.StatusOK)
	w.Write(h.body)
}

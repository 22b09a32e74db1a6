package routes

import (
	"net/http"
	"strings"
)

const (
	// LandingPath serves the static landing page
	LandingPath = "/"
	// HealthPath serves the liveness status
	HealthPath = "/api/health"

	// OtherLabel is the metric label for paths outside the table
	OtherLabel = "other"
)

// Route binds an exact path to a handler
type Route struct {
	Name    string
	Path    string
	Handler http.Handler
}

// Table is the fixed set of public routes. Paths match exactly; anything else
// falls through to the mux's not-found handler.
type Table struct {
	routes []Route
	byPath map[string]string
}

// NewTable creates a route table for the landing page and health endpoints
func NewTable(landing, health http.Handler) *Table {
	return newTable([]Route{
		{Name: "landing", Path: LandingPath, Handler: landing},
		{Name: "health", Path: HealthPath, Handler: health},
	})
}

func newTable(routes []Route) *Table {
	byPath := make(map[string]string, len(routes))
	for _, r := range routes {
		byPath[r.Path] = r.Name
	}
	return &Table{routes: routes, byPath: byPath}
}

// Routes returns the registered routes in registration order
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Lookup returns the route name registered for path
func (t *Table) Lookup(path string) (string, bool) {
	name, ok := t.byPath[path]
	return name, ok
}

// Label returns a bounded label for path, used to keep metric cardinality fixed
func (t *Table) Label(path string) string {
	if name, ok := t.Lookup(path); ok {
		return name
	}
	return OtherLabel
}

// Register adds every route to mux as a GET pattern. The root route uses {$}
// so it does not act as a catch-all.
func (t *Table) Register(mux *http.ServeMux) {
	for _, r := range t.Routes() {
		mux.Handle(pattern(r.Path), r.Handler)
	}
}

func pattern(path string) string {
	if strings.HasSuffix(path, "/") {
		return http.MethodGet + " " + path + "{$}"
	}
	return http.MethodGet + " " + path
}

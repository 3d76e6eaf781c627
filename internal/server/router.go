package server

import (
	"net/http"
	"slices"
	"strings"
)

// Mux is the control API's [Router]. Patterns use [http.ServeMux] method syntax ("GET /session") and every
// registered pattern is remembered so the index route can list them.
type Mux struct {
	mux      *http.ServeMux
	chain    []Middleware
	patterns []string
}

func NewMux() *Mux {
	return &Mux{mux: http.NewServeMux()}
}

// Use appends middleware. Only routes registered after the call are wrapped.
func (m *Mux) Use(middleware ...Middleware) {
	m.chain = append(m.chain, middleware...)
}

// Handle registers handler for method and path. Other methods on the same path get a 405 from the mux.
func (m *Mux) Handle(method, path string, handler http.Handler) {
	m.register(method+" "+path, m.wrap(handler))
}

// Mount registers every route a [Handler] reports, all sharing one wrapped handler.
func (m *Mux) Mount(handler Handler) {
	wrapped := m.wrap(handler)
	for _, pattern := range handler.Routes() {
		m.register(pattern, wrapped)
	}
}

// Patterns returns the registered route patterns sorted by path.
func (m *Mux) Patterns() []string {
	out := slices.Clone(m.patterns)
	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(routePath(a), routePath(b))
	})
	return out
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	m.mux.ServeHTTP(w, req)
}

func (m *Mux) register(pattern string, h http.Handler) {
	m.patterns = append(m.patterns, pattern)
	m.mux.Handle(pattern, h)
}

// wrap applies the chain so the first middleware added is the outermost.
func (m *Mux) wrap(handler http.Handler) http.Handler {
	for i := len(m.chain) - 1; i >= 0; i-- {
		handler = m.chain[i](handler)
	}
	return handler
}

func routePath(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}

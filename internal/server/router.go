package server

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/desertthunder/journeyx/internal/shared"
)

var ErrDuplicateRoute = errors.New("route already registered")

var methods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// BasicRouter routes "METHOD /path" patterns through an [http.ServeMux] and wraps every route in the
// middleware stack. A known path with the wrong method answers 405.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	routes      map[string]struct{}
}

func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: http.NewServeMux(), routes: make(map[string]struct{})}
}

// Use appends middleware. Routes registered afterwards see it; earlier ones do not.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for one method and path.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) error {
	method = strings.ToUpper(strings.TrimSpace(method))
	if !slices.Contains(methods, method) {
		return fmt.Errorf("%w: unsupported method %q", shared.ErrInvalidInput, method)
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: path %q must start with /", shared.ErrInvalidInput, path)
	}
	return r.register(method+" "+path, r.Apply(handler))
}

// Handler registers every pattern from [Handler.Routes] to one wrapped handler.
func (r *BasicRouter) Handler(handler Handler) error {
	wrapped := r.Apply(handler)
	for _, route := range handler.Routes() {
		if err := r.register(route, wrapped); err != nil {
			return err
		}
	}
	return nil
}

func (r *BasicRouter) register(pattern string, handler http.Handler) error {
	if _, ok := r.routes[pattern]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, pattern)
	}
	r.routes[pattern] = struct{}{}
	r.mux.Handle(pattern, handler)
	return nil
}

// Routes lists the registered patterns, sorted.
func (r *BasicRouter) Routes() []string {
	return slices.Sorted(maps.Keys(r.routes))
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler so the first middleware added runs first.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for _, mw := range slices.Backward(r.middlewares) {
		wrapped = mw(wrapped)
	}
	return wrapped
}

package server

import (
	"net/http"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows its own routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                           // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) error // Handle registers a handler for the specified method and path
	Handler(handler Handler) error                          // Handler registers a custom Handler implementation
	Routes() []string                                       // Routes lists the registered patterns
	ServeHTTP(w http.ResponseWriter, r *http.Request)       // ServeHTTP implements http.Handler for the entire router
}

var _ Router = (*BasicRouter)(nil)

package server

import (
	"net/http"
)

// RouteHandler is a function type for HTTP handlers
type RouteHandler func(http.ResponseWriter, *http.Request)

// Route binds a method-qualified ServeMux pattern ("GET /api/items/{id}") to a handler
type Route struct {
	Pattern string
	Handler RouteHandler
}

// RouteCRUD builds the standard routes for a resource: list and create on
// the collection path, get, update and delete on the {id} item path. Nil
// handlers are skipped; ServeMux answers 405 for the missing methods.
func RouteCRUD(collection string, list, create, get, update, delete RouteHandler) []Route {
	item := collection + "/{id}"
	candidates := []Route{
		{"GET " + collection, list},
		{"POST " + collection, create},
		{"GET " + item, get},
		{"PUT " + item, update},
		{"DELETE " + item, delete},
	}

	routes := make([]Route, 0, len(candidates))
	for _, route := range candidates {
		if route.Handler != nil {
			routes = append(routes, route)
		}
	}
	return routes
}

// register adds every route to mux
func register(mux *http.ServeMux, routes ...[]Route) {
	for _, group := range routes {
		for _, route := range group {
			mux.HandleFunc(route.Pattern, route.Handler)
		}
	}
}

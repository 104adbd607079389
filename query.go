package quorum

import (
	"fmt"
	"sort"
	"strings"
)

// Query modifiers, given after a "?" in the query path.
const (
	// KeyQueryMod returns the single value stored under the query data.
	KeyQueryMod = ""
	// PrefixQueryMod returns every value whose key starts with the query
	// data.
	PrefixQueryMod = "prefix"
)

// Model is a key and its stored value, as returned by a query.
type Model struct {
	Key   []byte
	Value []byte
}

// Pair returns a model for given key and value.
func Pair(key, value []byte) Model {
	return Model{Key: key, Value: value}
}

// QueryHandler reads state for a query path. The modifier is one of the
// *QueryMod constants and handlers reject the ones they do not support.
type QueryHandler interface {
	Query(db ReadOnlyKVStore, mod string, data []byte) ([]Model, error)
}

// QueryRouter maps query paths, such as "/accounts", to their handler.
type QueryRouter struct {
	routes map[string]QueryHandler
}

// NewQueryRouter returns a router without routes.
func NewQueryRouter() QueryRouter {
	return QueryRouter{routes: make(map[string]QueryHandler)}
}

// Register adds a handler for a path. Paths must start with a slash.
// It panics when the path is invalid or already taken, as both are
// programming errors made while wiring the application.
func (r QueryRouter) Register(path string, h QueryHandler) {
	if !strings.HasPrefix(path, "/") || strings.Contains(path, "?") {
		panic(fmt.Sprintf("invalid query path: %q", path))
	}
	if _, ok := r.routes[path]; ok {
		panic(fmt.Sprintf("query path already registered: %s", path))
	}
	r.routes[path] = h
}

// Handler returns the handler registered for path or nil.
func (r QueryRouter) Handler(path string) QueryHandler {
	return r.routes[path]
}

// Paths returns all registered paths in order.
func (r QueryRouter) Paths() []string {
	paths := make([]string, 0, len(r.routes))
	for p := range r.routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

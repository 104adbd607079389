package app

import (
	"context"
	"fmt"
	"regexp"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

// isPath is the RegExp to ensure the routes make sense
var isPath = regexp.MustCompile(`^[a-zA-Z0-9_/]+$`).MatchString

// Router allows us to register many handlers with different paths and then
// direct each message to the proper handler.
//
// Minimal interface modeled after net/http.ServeMux
type Router struct {
	routes map[string]quorum.Handler
}

var (
	_ quorum.Registry   = (*Router)(nil)
	_ quorum.Handler    = (*Router)(nil)
	_ quorum.Dispatcher = (*Router)(nil)
)

// NewRouter returns a new empty router instance.
func NewRouter() *Router {
	return &Router{
		routes: make(map[string]quorum.Handler, 16),
	}
}

// Handle adds a new Handler for the given path. This function panics if a
// handler for given path is already registered.
func (r *Router) Handle(path string, h quorum.Handler) {
	if !isPath(path) {
		panic(fmt.Sprintf("invalid path: %s", path))
	}
	if _, ok := r.routes[path]; ok {
		panic(fmt.Sprintf("re-registering route: %s", path))
	}
	r.routes[path] = h
}

// handler returns the registered Handler for this path.
func (r *Router) handler(msg quorum.Msg) (quorum.Handler, error) {
	if msg == nil {
		return nil, errors.Wrap(errors.ErrInvalidMsg, "nil message")
	}
	h, ok := r.routes[msg.Path()]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no handler for %s", msg.Path())
	}
	return h, nil
}

// Check dispatches to the proper handler based on path.
func (r *Router) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	h, err := r.handler(msg)
	if err != nil {
		return err
	}
	return h.Check(ctx, db, msg)
}

// Deliver dispatches to the proper handler based on path.
func (r *Router) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	h, err := r.handler(msg)
	if err != nil {
		return nil, err
	}
	return h.Deliver(ctx, db, msg)
}

// Dispatch processes a message on behalf of another handler. The message
// is checked against the given store before it is delivered.
func (r *Router) Dispatch(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	if err := r.Check(ctx, db, msg); err != nil {
		return nil, err
	}
	return r.Deliver(ctx, db, msg)
}
